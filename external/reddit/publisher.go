package reddit

import (
	"context"
	"slices"
	"strings"
	"sync"

	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/matchthread-live/internal/domain/match"
	"github.com/riskibarqy/matchthread-live/internal/livescore"
	"github.com/riskibarqy/matchthread-live/internal/platform/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// PostEditor reads and rewrites submission bodies.
type PostEditor interface {
	PostBody(ctx context.Context, postID string) (string, error)
	EditPost(ctx context.Context, postID, body string) error
}

// Publisher writes notifications into the live block of each match thread.
type Publisher struct {
	editor PostEditor
	logger *logging.Logger

	mu     sync.Mutex
	routes map[match.ID]string
	latest map[match.ID]match.Snapshot
}

var _ livescore.Publisher = (*Publisher)(nil)

func NewPublisher(editor PostEditor, logger *logging.Logger) *Publisher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{
		editor: editor,
		logger: logger,
		routes: make(map[match.ID]string),
		latest: make(map[match.ID]match.Snapshot),
	}
}

// SetRoutes replaces the match to post mapping. Scorelines of matches that
// are no longer routed are forgotten.
func (p *Publisher) SetRoutes(routes map[match.ID]string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := make(map[match.ID]string, len(routes))
	for id, postID := range routes {
		postID = strings.TrimSpace(postID)
		if postID == "" {
			continue
		}
		next[id] = postID
	}
	for id := range p.latest {
		if _, ok := next[id]; !ok {
			delete(p.latest, id)
		}
	}
	p.routes = next
}

type postBatch struct {
	postID    string
	summaries []string
}

// Publish edits every affected post once, in the order its first notification
// appears in the batch. Failed posts do not stop the others; their errors are
// combined into the result.
func (p *Publisher) Publish(ctx context.Context, notes []livescore.Notification) error {
	if len(notes) == 0 {
		return nil
	}
	ctx, span := otel.Tracer("external/reddit").Start(ctx, "reddit.Publish")
	defer span.End()
	span.SetAttributes(attribute.Int("notifications", len(notes)))

	batches, scorelines := p.plan(ctx, notes)

	var errs error
	for _, batch := range batches {
		if err := p.publishPost(ctx, batch, scorelines[batch.postID]); err != nil {
			p.logger.ErrorContext(ctx, "reddit post update failed", "post_id", batch.postID, "error", err)
			errs = crerr.CombineErrors(errs, err)
			continue
		}
		p.logger.InfoContext(ctx, "reddit post updated", "post_id", batch.postID, "updates", len(batch.summaries))
	}
	if errs != nil {
		span.RecordError(errs)
	}
	return errs
}

func (p *Publisher) plan(ctx context.Context, notes []livescore.Notification) ([]postBatch, map[string][]string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	batches := make([]postBatch, 0, 4)
	index := make(map[string]int, 4)
	for _, note := range notes {
		postID, ok := p.routes[note.MatchID]
		if !ok {
			p.logger.WarnContext(ctx, "no thread routed for match update", "match_id", note.MatchID.String(), "kind", string(note.Kind))
			continue
		}
		p.latest[note.MatchID] = note.Snapshot

		i, ok := index[postID]
		if !ok {
			i = len(batches)
			index[postID] = i
			batches = append(batches, postBatch{postID: postID})
		}
		batches[i].summaries = append(batches[i].summaries, note.Summary)
	}

	scorelines := make(map[string][]string, len(batches))
	for _, batch := range batches {
		ids := make([]match.ID, 0, 8)
		for id, postID := range p.routes {
			if postID != batch.postID {
				continue
			}
			if _, ok := p.latest[id]; ok {
				ids = append(ids, id)
			}
		}
		slices.Sort(ids)
		lines := make([]string, 0, len(ids))
		for _, id := range ids {
			lines = append(lines, scoreline(p.latest[id]))
		}
		scorelines[batch.postID] = lines
	}
	return batches, scorelines
}

func (p *Publisher) publishPost(ctx context.Context, batch postBatch, scorelines []string) error {
	body, err := p.editor.PostBody(ctx, batch.postID)
	if err != nil {
		return err
	}
	updated := mergeBody(body, scorelines, batch.summaries)
	if updated == body {
		return nil
	}
	return p.editor.EditPost(ctx, batch.postID, updated)
}
