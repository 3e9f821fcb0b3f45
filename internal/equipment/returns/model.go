package returns

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
)

type DamageSeverity string

const (
	DamageNone     DamageSeverity = "None"
	DamageMinor    DamageSeverity = "Minor"
	DamageModerate DamageSeverity = "Moderate"
	DamageSevere   DamageSeverity = "Severe"
)

func ValidSeverity(d DamageSeverity) bool {
	switch d {
	case DamageNone, DamageMinor, DamageModerate, DamageSevere:
		return true
	}
	return false
}

// Return は return_records テーブルの1行。1件の貸出を閉じる。
// total_fee と late_days は保存のたびに再計算される導出値で、
// 呼び出し側の入力をそのまま信用しない。
type Return struct {
	ReturnID       int64
	ReturnULID     string
	BorrowID       int64
	BorrowULID     string // JOINで埋める
	DamageSeverity DamageSeverity
	PenaltyFee     decimal.Decimal
	DamageFee      decimal.Decimal
	TotalFee       decimal.Decimal
	LateDays       int
	IsFeePaid      bool
	Status         Status
	Notes          sql.NullString
	ReturnedAt     time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Settled: 貸出側の台帳復元が済んでいる状態
func (s Status) Settled() bool { return s == StatusApproved || s == StatusCompleted }
