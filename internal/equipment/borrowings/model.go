package borrowings

import (
	"database/sql"
	"time"

	"LEMS-backend/internal/equipment/items"
	"LEMS-backend/internal/platform/api"
)

type Status string

const (
	StatusPending         Status = "pending"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusReleased        Status = "released"
	StatusReturnRequested Status = "return_requested"
	StatusReturned        Status = "returned"
	StatusOverdue         Status = "overdue"
)

// 許可される遷移。ここに無い組は全て拒否（呼び出し元の文字列は信用しない）。
// 承認時点で台帳は borrowed へ debit 済みなので、返却審査は approved からでも入れる。
var transitions = map[Status][]Status{
	StatusPending:         {StatusApproved, StatusRejected},
	StatusApproved:        {StatusReleased, StatusReturnRequested, StatusReturned},
	StatusReleased:        {StatusReturnRequested, StatusReturned},
	StatusReturnRequested: {StatusReturned, StatusReleased},
	StatusOverdue:         {StatusReturnRequested, StatusReturned},
}

func CanTransition(from, to Status) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Active: 台帳の borrowed バケットに計上されている状態
func (s Status) Active() bool {
	switch s {
	case StatusApproved, StatusReleased, StatusReturnRequested, StatusOverdue:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusReturned
}

// Borrowing は borrowings テーブルの1行を表す
type Borrowing struct {
	BorrowID           int64
	BorrowULID         string
	ItemID             int64
	ItemULID           string // JOINで埋める（レスポンス用）
	Quantity           int
	BorrowerID         string
	Status             Status
	RequestedAt        time.Time
	IntendedBorrowDate sql.NullTime
	IntendedReturnDate sql.NullTime
	ApprovedAt         sql.NullTime
	ReleasedAt         sql.NullTime
	ReturnedAt         sql.NullTime
	AdminRemarks       sql.NullString
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// EffectiveStatus は overdue を読み出し時に導出する。保存値の修正は次の
// 書き込みに任せる（読みと書きの両方で勝手に直すと二重管理になる）。
func (b *Borrowing) EffectiveStatus(now time.Time) Status {
	if (b.Status == StatusApproved || b.Status == StatusReleased) &&
		b.IntendedReturnDate.Valid && now.After(b.IntendedReturnDate.Time) {
		return StatusOverdue
	}
	return b.Status
}

// ===== 台帳への作用 =====
// SQLストアとテスト用フェイクの双方がここを通る。

func applyApprove(it *items.Item, qty int) error {
	if it.IsDisposed {
		return api.ErrInvalid("equipment is disposed")
	}
	if !it.CanBeBorrowed {
		return api.ErrInvalid("equipment cannot be borrowed")
	}
	if err := it.Transfer(items.BucketAvailable, items.BucketBorrowed, qty); err != nil {
		return err
	}
	it.Reconcile()
	return nil
}

// applyReturn は borrowed 残でクランプして available へ戻し、実際に動かした数を返す。
// 台帳を Transfer 経由でしか触らない限りクランプは発動しないが、移行データ対策として残す。
func applyReturn(it *items.Item, qty int) int {
	credit := qty
	if it.Borrowed < credit {
		credit = it.Borrowed
	}
	if credit > 0 {
		_ = it.Transfer(items.BucketBorrowed, items.BucketAvailable, credit)
	}
	it.Reconcile()
	return credit
}
