package db

import (
	"context"
	"fmt"

	trmsqlx "github.com/avito-tech/go-transaction-manager/drivers/sqlx/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/jmoiron/sqlx"
)

// TxManager runs fn inside a transaction carried by ctx. Nested calls join the outer transaction.
type TxManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

type transactionManager struct {
	manager *manager.Manager
}

func NewTxManager(db *sqlx.DB) (TxManager, error) {
	trManager, err := manager.New(trmsqlx.NewDefaultFactory(db))
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction manager: %w", err)
	}
	return &transactionManager{manager: trManager}, nil
}

func (tm *transactionManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return tm.manager.Do(ctx, fn)
}

// Conn returns the transaction stored in ctx, or db when there is none.
func Conn(ctx context.Context, db *sqlx.DB) trmsqlx.Tr {
	return trmsqlx.DefaultCtxGetter.DefaultTrOrDB(ctx, db)
}
