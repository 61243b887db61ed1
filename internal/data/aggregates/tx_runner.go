package aggregates

import (
	"context"
	"database/sql"

	"gorm.io/gorm"

	domainagg "github.com/BabaYagaSystems/aroundly-backend/internal/domain/aggregates"
	"github.com/BabaYagaSystems/aroundly-backend/internal/pkg/dbctx"
)

// TxRunner opens the transaction a single write attempt runs in. A failed attempt is
// rolled back whole, so a replay always starts from a fresh read.
type TxRunner interface {
	InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error
}

type gormTxRunner struct {
	db   *gorm.DB
	opts *sql.TxOptions
}

// NewGormTxRunner runs postgres attempts at read committed; the version guard is what
// detects a concurrent writer. sqlite keeps its default isolation.
func NewGormTxRunner(db *gorm.DB) TxRunner {
	r := &gormTxRunner{db: db}
	if db != nil && db.Dialector != nil && db.Dialector.Name() == "postgres" {
		r.opts = &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	}
	return r
}

func (r *gormTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if r.db == nil {
		return domainagg.NewError(domainagg.CodeInternal, "incident.tx", "no database configured for aggregate writes", nil)
	}
	attempt := func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: ctx, Tx: tx})
	}
	if r.opts == nil {
		return r.db.WithContext(ctx).Transaction(attempt)
	}
	return r.db.WithContext(ctx).Transaction(attempt, r.opts)
}
