package maintenance

import "time"

// 保守ジョブ登録リクエスト
type CreateMaintenanceRequest struct {
	ItemULID string `json:"item_ulid" binding:"required"`
	Kind     string `json:"kind" binding:"required"` // repair/calibration/inspection
	Quantity int    `json:"quantity" binding:"required"`
	// "2006-01-02" 形式の文字列を想定（DATE）
	DueDate         *string `json:"due_date,omitempty"`
	NextMaintenance *string `json:"next_maintenance,omitempty"`
	AssigneeID      *string `json:"assignee_id,omitempty"`
	Notes           *string `json:"notes,omitempty"`
}

// PUT /maintenance/:maintenance_ulid/quantity
// maintained_quantity は累計値で渡す（差分ではない）
type RecordProgressRequest struct {
	MaintainedQuantity *int `json:"maintained_quantity" binding:"required"`
}

// PUT /maintenance/:maintenance_ulid（再スケジュール・再割当・数量変更）
type UpdateMaintenanceRequest struct {
	Kind            *string `json:"kind,omitempty"`
	Quantity        *int    `json:"quantity,omitempty"`
	DueDate         *string `json:"due_date,omitempty"`
	NextMaintenance *string `json:"next_maintenance,omitempty"`
	AssigneeID      *string `json:"assignee_id,omitempty"`
	Notes           *string `json:"notes,omitempty"`
	Status          *string `json:"status,omitempty"` // Cancelled のみ受け付ける
}

type MaintenanceResponse struct {
	MaintenanceULID    string     `json:"maintenance_ulid"`
	ItemULID           string     `json:"item_ulid"`
	Kind               string     `json:"kind"`
	Quantity           int        `json:"quantity"`
	MaintainedQuantity int        `json:"maintained_quantity"`
	RemainingQuantity  int        `json:"remaining_quantity"`
	Status             string     `json:"status"`
	IsOverdue          bool       `json:"is_overdue"`
	ScheduledAt        time.Time  `json:"scheduled_at"`
	DueDate            *time.Time `json:"due_date,omitempty"`
	NextMaintenance    *time.Time `json:"next_maintenance,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	AssigneeID         *string    `json:"assignee_id,omitempty"`
	Notes              *string    `json:"notes,omitempty"`
}

type Filter struct {
	ItemULID   *string
	AssigneeID *string
	Status     *Status
	OnlyOpen   bool
}

type Page struct {
	Limit  int
	Offset int
	Order  string
}

func (m *MaintenanceRecord) toDTO(now time.Time) MaintenanceResponse {
	eff := m.EffectiveStatus(now)
	resp := MaintenanceResponse{
		MaintenanceULID:    m.MaintenanceULID,
		ItemULID:           m.ItemULID,
		Kind:               string(m.Kind),
		Quantity:           m.Quantity,
		MaintainedQuantity: m.MaintainedQuantity,
		RemainingQuantity:  m.Remaining(),
		Status:             string(eff),
		IsOverdue:          eff == StatusOverdue,
		ScheduledAt:        m.ScheduledAt,
	}
	if m.DueDate.Valid {
		v := m.DueDate.Time
		resp.DueDate = &v
	}
	if m.NextMaintenance.Valid {
		v := m.NextMaintenance.Time
		resp.NextMaintenance = &v
	}
	if m.CompletedAt.Valid {
		v := m.CompletedAt.Time
		resp.CompletedAt = &v
	}
	if m.AssigneeID.Valid {
		v := m.AssigneeID.String
		resp.AssigneeID = &v
	}
	if m.Notes.Valid {
		v := m.Notes.String
		resp.Notes = &v
	}
	return resp
}
