package db

import (
	"context"
	"database/sql"
)

// DBTX は *sql.DB と *sql.Tx の共通部分。Txヘルパと通常クエリの両方が受けられる。
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type TxFn func(ctx context.Context, tx DBTX) error

// RunInTx は fn を1つのトランザクションで実行する。fn が nil を返せば COMMIT、
// エラーまたは panic で抜けた場合は ROLLBACK。
func RunInTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn TxFn) error {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}
	// COMMIT 済みなら ErrTxDone になるだけなので無条件に仕掛けておく
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

// ReadOnly は一覧系で rows と COUNT を同一スナップショットで読むための Tx。
func ReadOnly(ctx context.Context, db *sql.DB, fn TxFn) error {
	return RunInTx(ctx, db, &sql.TxOptions{ReadOnly: true}, fn)
}
