package items

import (
	"database/sql"
	"strings"
	"time"

	"golang.org/x/text/width"
)

type Condition string

const (
	ConditionExcellent        Condition = "Excellent"
	ConditionGood             Condition = "Good"
	ConditionFair             Condition = "Fair"
	ConditionNeedsRepair      Condition = "Needs Repair"
	ConditionUnderMaintenance Condition = "Under Maintenance"
	ConditionOutOfStock       Condition = "Out of Stock"
)

// 手動で設定できるのは劣化グレードのみ。Under Maintenance / Out of Stock は
// 台帳から導出されるので API からは受け付けない。
func ValidManualCondition(c Condition) bool {
	switch c {
	case ConditionExcellent, ConditionGood, ConditionFair, ConditionNeedsRepair:
		return true
	}
	return false
}

type Status string

const (
	StatusActive   Status = "Active"
	StatusBorrowed Status = "Borrowed"
	StatusDisposed Status = "Disposed"
)

// Item は equipment_items テーブルの1行を表す
type Item struct {
	ItemID   int64
	ItemULID string
	Name     string
	Category sql.NullString
	Location sql.NullString
	Ledger
	Condition     Condition
	Status        Status
	CanBeBorrowed bool
	IsDisposed    bool
	Notes         sql.NullString
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Reconcile はバケット残高から status / condition / is_disposed を再導出する。
// 台帳を書き換えた側が保存前に必ず呼ぶ。
func (it *Item) Reconcile() {
	if it.Quantity == 0 && it.Disposed > 0 {
		it.IsDisposed = true
		it.Status = StatusDisposed
		it.Condition = ConditionOutOfStock
		return
	}
	it.IsDisposed = false
	if it.Available == 0 && it.Borrowed > 0 {
		it.Status = StatusBorrowed
	} else {
		it.Status = StatusActive
	}
	switch {
	case it.Maintenance > 0:
		it.Condition = ConditionUnderMaintenance
	case it.Condition == ConditionUnderMaintenance || it.Condition == ConditionOutOfStock:
		// 保守完了・廃棄取消から復帰したときだけ Good に戻す
		it.Condition = ConditionGood
	}
}

// NormalizeCode はQR/バーコード読取値を照合用に正規化する。
// ターミナル端末のIMEによっては全角英数で入ってくるため width.Fold で半角へ寄せる。
func NormalizeCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(width.Fold.String(s)))
}
