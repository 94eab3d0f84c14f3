package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Index.Get when no session is indexed under
// the requested id.
var ErrNotFound = errors.New("session: not found in index")

// Summary is the queryable projection of a Session that an Index keeps:
// enough to list and resume sessions without scanning every work
// directory's files. The context file itself remains the sole authority
// for conversation state — an Index is a cache, never consulted to decide
// what a session contains.
type Summary struct {
	ID          string
	WorkDir     string
	ContextFile string
	Title       string
	UpdatedAt   time.Time
}

// Index is the secondary lookup `sessions list`/`sessions resume` query
// instead of walking the share directory. Implementations: SQLiteIndex for
// the common single-machine case, PostgresIndex for a shared/team
// deployment pointed at the same share directory over a network mount.
type Index interface {
	Upsert(ctx context.Context, s Summary) error
	List(ctx context.Context, workDir string) ([]Summary, error)
	Get(ctx context.Context, id string) (Summary, error)
	Delete(ctx context.Context, id string) error
	Close() error
}
