package aggregates

import (
	"context"

	domainagg "github.com/Crohnos/dnd-generator/internal/domain/aggregates"
	"github.com/Crohnos/dnd-generator/internal/pkg/dbctx"
	"gorm.io/gorm"
)

// TxRunner is the transaction boundary used by every multi-row write. A stage
// commit is one call to InTx.
type TxRunner interface {
	InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error
}

type gormTxRunner struct {
	db *gorm.DB
}

func NewGormTxRunner(db *gorm.DB) TxRunner {
	return &gormTxRunner{db: db}
}

func (r *gormTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if fn == nil {
		return nil
	}
	if r == nil || r.db == nil {
		return domainagg.NewError(domainagg.CodeInternal, "tx", "transaction runner has nil db", nil)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: ctx, Tx: tx})
	})
}
