package thread

import "context"

// Repository stores the threads created for the current gameweek.
type Repository interface {
	List(ctx context.Context) ([]Thread, error)
	GetByCompetition(ctx context.Context, competition string) (Thread, bool, error)
	Upsert(ctx context.Context, item Thread) error
}
