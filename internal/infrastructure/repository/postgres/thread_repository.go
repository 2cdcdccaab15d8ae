package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/matchthread-live/internal/domain/thread"
	qb "github.com/riskibarqy/matchthread-live/internal/platform/querybuilder"
)

const upsertThreadSuffix = `ON CONFLICT (competition) WHERE deleted_at IS NULL
DO UPDATE SET post_id = EXCLUDED.post_id, round = EXCLUDED.round, match_dates = EXCLUDED.match_dates, updated_at = EXCLUDED.updated_at
RETURNING id`

type ThreadRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ thread.Repository = (*ThreadRepository)(nil)

func NewThreadRepository(db *sqlx.DB) *ThreadRepository {
	return &ThreadRepository{db: db, now: time.Now}
}

func (r *ThreadRepository) List(ctx context.Context) ([]thread.Thread, error) {
	query, args, err := qb.Select("*").From(threadsTable).
		Where(qb.IsNull("deleted_at")).
		OrderBy("competition").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select threads query: %w", err)
	}

	var rows []threadTableModel
	if err := withPreparedRetry(func() error {
		rows = rows[:0]
		return r.db.SelectContext(ctx, &rows, query, args...)
	}); err != nil {
		return nil, fmt.Errorf("select threads: %w", err)
	}
	if len(rows) == 0 {
		return []thread.Thread{}, nil
	}

	ids := make([]any, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	fixtures, err := r.fixturesFor(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]thread.Thread, 0, len(rows))
	for _, row := range rows {
		out = append(out, toThread(row, fixtures[row.ID]))
	}
	return out, nil
}

func (r *ThreadRepository) GetByCompetition(ctx context.Context, competition string) (thread.Thread, bool, error) {
	query, args, err := qb.Select("*").From(threadsTable).
		Where(
			qb.Eq("competition", strings.TrimSpace(competition)),
			qb.IsNull("deleted_at"),
		).
		ToSQL()
	if err != nil {
		return thread.Thread{}, false, fmt.Errorf("build get thread query: %w", err)
	}

	var row threadTableModel
	if err := withPreparedRetry(func() error {
		return r.db.GetContext(ctx, &row, query, args...)
	}); err != nil {
		if isNotFound(err) {
			return thread.Thread{}, false, nil
		}
		return thread.Thread{}, false, fmt.Errorf("get thread by competition: %w", err)
	}

	fixtures, err := r.fixturesFor(ctx, []any{row.ID})
	if err != nil {
		return thread.Thread{}, false, err
	}
	return toThread(row, fixtures[row.ID]), true, nil
}

// Upsert stores the thread and replaces its fixture list in one transaction.
func (r *ThreadRepository) Upsert(ctx context.Context, item thread.Thread) error {
	if strings.TrimSpace(item.Competition) == "" {
		return fmt.Errorf("thread competition is required")
	}
	now := r.now().UTC()

	insertQuery, insertArgs, err := qb.InsertModel(threadsTable, toThreadInsert(item, now), upsertThreadSuffix)
	if err != nil {
		return fmt.Errorf("build upsert thread query: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert thread tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var threadID int64
	if err := tx.QueryRowxContext(ctx, insertQuery, insertArgs...).Scan(&threadID); err != nil {
		return fmt.Errorf("upsert thread competition=%s: %w", item.Competition, err)
	}

	deleteQuery, deleteArgs, err := qb.DeleteFrom(fixturesTable).Where(qb.Eq("thread_id", threadID)).ToSQL()
	if err != nil {
		return fmt.Errorf("build delete fixtures query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, deleteQuery, deleteArgs...); err != nil {
		return fmt.Errorf("clear thread fixtures: %w", err)
	}

	if fixtures := toFixtureInserts(threadID, item.Matches, now); len(fixtures) > 0 {
		fixtureQuery, fixtureArgs, err := qb.InsertModels(fixturesTable, fixtures, "")
		if err != nil {
			return fmt.Errorf("build insert fixtures query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, fixtureQuery, fixtureArgs...); err != nil {
			return fmt.Errorf("insert thread fixtures: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert thread tx: %w", err)
	}
	return nil
}

func (r *ThreadRepository) fixturesFor(ctx context.Context, threadIDs []any) (map[int64][]fixtureTableModel, error) {
	query, args, err := qb.Select("*").From(fixturesTable).
		Where(qb.In("thread_id", threadIDs)).
		OrderBy("kickoff_at", "match_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select fixtures query: %w", err)
	}

	var rows []fixtureTableModel
	if err := withPreparedRetry(func() error {
		rows = rows[:0]
		return r.db.SelectContext(ctx, &rows, query, args...)
	}); err != nil {
		return nil, fmt.Errorf("select thread fixtures: %w", err)
	}

	out := make(map[int64][]fixtureTableModel, len(threadIDs))
	for _, row := range rows {
		out[row.ThreadID] = append(out[row.ThreadID], row)
	}
	return out, nil
}
