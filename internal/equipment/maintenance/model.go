package maintenance

import (
	"database/sql"
	"time"

	"LEMS-backend/internal/equipment/items"
	"LEMS-backend/internal/platform/api"
)

type Status string

const (
	StatusScheduled  Status = "Scheduled"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
	StatusOverdue    Status = "Overdue"
	StatusCancelled  Status = "Cancelled"
)

// Outstanding: 台帳の maintenance バケットに残数を計上している状態
func (s Status) Outstanding() bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusOverdue:
		return true
	}
	return false
}

type Kind string

const (
	KindRepair      Kind = "repair"
	KindCalibration Kind = "calibration"
	KindInspection  Kind = "inspection"
)

func ValidKind(k Kind) bool {
	switch k {
	case KindRepair, KindCalibration, KindInspection:
		return true
	}
	return false
}

// MaintenanceRecord は maintenance_records テーブルの1行を表す。
// 1ジョブが複数台をカバーし、完了はユニット数単位で記録される。
type MaintenanceRecord struct {
	MaintenanceID      int64
	MaintenanceULID    string
	ItemID             int64
	ItemULID           string // JOINで埋める
	Kind               Kind
	Quantity           int
	MaintainedQuantity int // 単調非減少、Quantity 以下
	Status             Status
	ScheduledAt        time.Time
	DueDate            sql.NullTime
	NextMaintenance    sql.NullTime
	CompletedAt        sql.NullTime
	AssigneeID         sql.NullString
	Notes              sql.NullString
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (m *MaintenanceRecord) Remaining() int { return m.Quantity - m.MaintainedQuantity }

// EffectiveStatus: 期日超過は読み出し時に導出し、保存値は次の書き込みで直す
func (m *MaintenanceRecord) EffectiveStatus(now time.Time) Status {
	if m.Status.Outstanding() && m.DueDate.Valid && now.After(m.DueDate.Time) {
		return StatusOverdue
	}
	return m.Status
}

// ===== 台帳への作用（SQLストアとテスト用フェイク共用） =====

func applySchedule(it *items.Item, qty int) error {
	if it.IsDisposed {
		return api.ErrInvalid("equipment is disposed")
	}
	if err := it.Transfer(items.BucketAvailable, items.BucketMaintenance, qty); err != nil {
		return err
	}
	it.Reconcile()
	return nil
}

// applyProgress: 完了した delta 台を保守から稼働在庫へ戻す
func applyProgress(it *items.Item, delta int) error {
	if err := it.Transfer(items.BucketMaintenance, items.BucketAvailable, delta); err != nil {
		return err
	}
	it.Reconcile()
	return nil
}

// applyRequantify: ジョブ対象数の変更を符号付き差分で台帳へ反映する
func applyRequantify(it *items.Item, delta int) error {
	var err error
	switch {
	case delta > 0:
		err = it.Transfer(items.BucketAvailable, items.BucketMaintenance, delta)
	case delta < 0:
		err = it.Transfer(items.BucketMaintenance, items.BucketAvailable, -delta)
	}
	if err != nil {
		return err
	}
	it.Reconcile()
	return nil
}

// applyRelease: 未完了分（Remaining）を台帳へ戻す。取消・削除時用。
// 完了済み分は進捗記録の時点で戻っているので二重には戻さない。
func applyRelease(it *items.Item, outstanding int) error {
	if err := it.Transfer(items.BucketMaintenance, items.BucketAvailable, outstanding); err != nil {
		return err
	}
	it.Reconcile()
	return nil
}
