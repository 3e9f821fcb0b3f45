package disposals

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"LEMS-backend/internal/equipment/items"
)

type Status string

const (
	StatusPending   Status = "Pending"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
)

// Reversible: 台帳の debit がまだ取消可能な状態
func (s Status) Reversible() bool { return s == StatusPending }

// Disposal は disposal_records テーブルの1行。
// 廃棄は「ホット」で、作成時点で台帳から引き落とす。貸出の予約型とは逆。
type Disposal struct {
	DisposalID   int64
	DisposalULID string
	ItemID       int64
	ItemULID     string // JOINで埋める
	Quantity     int
	SalvageValue decimal.Decimal
	Status       Status
	Reason       sql.NullString
	DisposedAt   time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ===== 台帳への作用（SQLストアとテスト用フェイク共用） =====

func applyDispose(it *items.Item, qty int) error {
	if err := it.Dispose(qty); err != nil {
		return err
	}
	it.Reconcile()
	return nil
}

func applyReverse(it *items.Item, qty int) error {
	if err := it.ReverseDisposal(qty); err != nil {
		return err
	}
	it.Reconcile()
	return nil
}
