package items

import (
	"LEMS-backend/internal/platform/api"
)

type Bucket string

const (
	BucketAvailable   Bucket = "available"
	BucketBorrowed    Bucket = "borrowed"
	BucketMaintenance Bucket = "maintenance"
	BucketDisposed    Bucket = "disposed"
)

// Ledger は1つの機材（SKU）の数量内訳。
// 不変条件: Available + Borrowed + Maintenance == Quantity。
// Disposed は Quantity から既に除外された累計数で、Dispose / ReverseDisposal
// でのみ増減する。バケット間の移動は必ず Transfer を経由すること。
// 各ワークフローが勝手に個別カラムを加減算してはいけない。
type Ledger struct {
	Quantity    int
	Available   int
	Borrowed    int
	Maintenance int
	Disposed    int
}

func (l *Ledger) bucket(b Bucket) *int {
	switch b {
	case BucketAvailable:
		return &l.Available
	case BucketBorrowed:
		return &l.Borrowed
	case BucketMaintenance:
		return &l.Maintenance
	}
	return nil
}

// Transfer は qty 個を from から to へ移す。残高不足は移動前に検出して
// 数値付きで返す。Disposed への出し入れは Dispose / ReverseDisposal を使う。
func (l *Ledger) Transfer(from, to Bucket, qty int) error {
	if qty < 0 {
		return api.ErrInvalid("transfer quantity must be >= 0")
	}
	if qty == 0 {
		return nil
	}
	if from == to {
		return api.ErrInvalid("transfer source and destination are the same bucket")
	}
	src := l.bucket(from)
	dst := l.bucket(to)
	if src == nil || dst == nil {
		return api.ErrInvalid("disposed units move only through dispose/cancel")
	}
	if *src < qty {
		return api.ErrShortfall(*src, qty)
	}
	*src -= qty
	*dst += qty
	return l.Check()
}

// Dispose は qty 個を保有総数から外す（available からのみ）。
func (l *Ledger) Dispose(qty int) error {
	if qty <= 0 {
		return api.ErrInvalid("disposal quantity must be > 0")
	}
	if l.Available < qty {
		return api.ErrShortfall(l.Available, qty)
	}
	l.Available -= qty
	l.Quantity -= qty
	l.Disposed += qty
	return l.Check()
}

// ReverseDisposal は廃棄の取消。qty 個を保有総数と available に戻す。
func (l *Ledger) ReverseDisposal(qty int) error {
	if qty <= 0 {
		return api.ErrInvalid("restore quantity must be > 0")
	}
	if l.Disposed < qty {
		return api.ErrQuantity("restore quantity exceeds disposed units")
	}
	l.Disposed -= qty
	l.Quantity += qty
	l.Available += qty
	return l.Check()
}

// Check は台帳の整合を検証する。Transfer / Dispose の書き込み後に必ず呼ばれ、
// 違反はトランザクションごと巻き戻される。
func (l Ledger) Check() error {
	if l.Quantity < 0 || l.Available < 0 || l.Borrowed < 0 || l.Maintenance < 0 || l.Disposed < 0 {
		return api.ErrInternal("ledger bucket went negative")
	}
	if l.Available+l.Borrowed+l.Maintenance != l.Quantity {
		return api.ErrInternal("ledger buckets do not sum to quantity")
	}
	return nil
}
