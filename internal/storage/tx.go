package storage

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// txLike is satisfied by *sqlx.Tx; it lets upsert helpers stay
// agnostic of whether they run inside a larger transaction.
type txLike interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}

func newID() string {
	return uuid.NewString()
}
