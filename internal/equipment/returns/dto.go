package returns

import "time"

// POST /returning
type CreateReturnRequest struct {
	BorrowULID     string  `json:"borrow_ulid" binding:"required"`
	DamageSeverity string  `json:"damage_severity" binding:"required"`
	PenaltyFee     *string `json:"penalty_fee,omitempty"` // 金額は文字列で受ける
	DamageFee      *string `json:"damage_fee,omitempty"`
	IsFeePaid      bool    `json:"is_fee_paid"`
	Notes          *string `json:"notes,omitempty"`
}

// PATCH /returning/:return_ulid（管理者の裁定）
type UpdateReturnRequest struct {
	Status     *string `json:"status,omitempty"` // approved / rejected / completed
	PenaltyFee *string `json:"penalty_fee,omitempty"`
	DamageFee  *string `json:"damage_fee,omitempty"`
	IsFeePaid  *bool   `json:"is_fee_paid,omitempty"`
	Notes      *string `json:"notes,omitempty"`
}

type ReturnResponse struct {
	ReturnULID     string    `json:"return_ulid"`
	BorrowULID     string    `json:"borrow_ulid"`
	DamageSeverity string    `json:"damage_severity"`
	PenaltyFee     string    `json:"penalty_fee"`
	DamageFee      string    `json:"damage_fee"`
	TotalFee       string    `json:"total_fee"`
	LateDays       int       `json:"late_days"`
	IsLate         bool      `json:"is_late"`
	IsFeePaid      bool      `json:"is_fee_paid"`
	Status         string    `json:"status"`
	Notes          *string   `json:"notes,omitempty"`
	ReturnedAt     time.Time `json:"returned_at"`
}

type Filter struct {
	BorrowULID *string
	Status     *Status
}

type Page struct {
	Limit  int
	Offset int
	Order  string
}

func (r *Return) toDTO() ReturnResponse {
	resp := ReturnResponse{
		ReturnULID:     r.ReturnULID,
		BorrowULID:     r.BorrowULID,
		DamageSeverity: string(r.DamageSeverity),
		PenaltyFee:     r.PenaltyFee.StringFixed(2),
		DamageFee:      r.DamageFee.StringFixed(2),
		TotalFee:       r.TotalFee.StringFixed(2),
		LateDays:       r.LateDays,
		IsLate:         r.LateDays > 0,
		IsFeePaid:      r.IsFeePaid,
		Status:         string(r.Status),
		ReturnedAt:     r.ReturnedAt,
	}
	if r.Notes.Valid {
		v := r.Notes.String
		resp.Notes = &v
	}
	return resp
}
