// Package mirror defines the outbound port for the external expense
// mirror. The local SQLite database is the source of truth; the mirror is
// an eventually consistent copy a human can browse, kept up to date by the
// sync worker.
package mirror

import (
	"context"

	"spendlog/internal/core"
)

type (
	// ExpenseAppender writes one expense to the mirror and returns an
	// opaque row reference.
	ExpenseAppender interface {
		Append(ctx context.Context, e core.Expense) (rowRef string, err error)
	}

	// ExpenseRemover erases a previously mirrored expense by id. Removing
	// an id the mirror never saw is not an error.
	ExpenseRemover interface {
		Remove(ctx context.Context, id string) error
	}

	// Mirror is the full port the sync worker drives.
	Mirror interface {
		ExpenseAppender
		ExpenseRemover
	}
)
