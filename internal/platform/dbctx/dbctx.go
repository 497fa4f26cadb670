package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context bundles a request context with an optional GORM transaction.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

// Of returns a Context without a transaction.
func Of(ctx context.Context) Context {
	return Context{Ctx: ctx}
}

// DB resolves the handle a repo should use: the transaction when present, otherwise base.
func (c Context) DB(base *gorm.DB) *gorm.DB {
	t := c.Tx
	if t == nil {
		t = base
	}
	ctx := c.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return t.WithContext(ctx)
}
