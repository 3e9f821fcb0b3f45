package borrowings

import "time"

// 貸出申請リクエスト
type CreateBorrowingRequest struct {
	ItemULID   string `json:"item_ulid" binding:"required"`
	Quantity   int    `json:"quantity" binding:"required"`
	BorrowerID string `json:"borrower_id" binding:"required"`
	// "2006-01-02" 形式の文字列を想定（DATE）
	IntendedBorrowDate *string `json:"intended_borrow_date,omitempty"`
	IntendedReturnDate *string `json:"intended_return_date,omitempty"`
	Remarks            *string `json:"remarks,omitempty"`
}

// PATCH /borrowings/:borrow_ulid
// status は承認フローの閉じた集合のみ受け付ける
type UpdateBorrowingRequest struct {
	Status       string  `json:"status" binding:"required"`
	AdminRemarks *string `json:"admin_remarks,omitempty"`
}

type BorrowingResponse struct {
	BorrowULID         string     `json:"borrow_ulid"`
	ItemULID           string     `json:"item_ulid"`
	Quantity           int        `json:"quantity"`
	BorrowerID         string     `json:"borrower_id"`
	Status             string     `json:"status"`
	IsOverdue          bool       `json:"is_overdue"`
	RequestedAt        time.Time  `json:"requested_at"`
	IntendedBorrowDate *time.Time `json:"intended_borrow_date,omitempty"`
	IntendedReturnDate *time.Time `json:"intended_return_date,omitempty"`
	ApprovedAt         *time.Time `json:"approved_at,omitempty"`
	ReleasedAt         *time.Time `json:"released_at,omitempty"`
	ReturnedAt         *time.Time `json:"returned_at,omitempty"`
	AdminRemarks       *string    `json:"admin_remarks,omitempty"`
}

// 貸出リスト取得用の検索条件
type Filter struct {
	BorrowerID *string
	ItemULID   *string
	Status     *Status
	OnlyActive bool
}

type Page struct {
	Limit  int
	Offset int
	Order  string
}

func (b *Borrowing) toDTO(now time.Time) BorrowingResponse {
	eff := b.EffectiveStatus(now)
	resp := BorrowingResponse{
		BorrowULID:  b.BorrowULID,
		ItemULID:    b.ItemULID,
		Quantity:    b.Quantity,
		BorrowerID:  b.BorrowerID,
		Status:      string(eff),
		IsOverdue:   eff == StatusOverdue,
		RequestedAt: b.RequestedAt,
	}
	if b.IntendedBorrowDate.Valid {
		v := b.IntendedBorrowDate.Time
		resp.IntendedBorrowDate = &v
	}
	if b.IntendedReturnDate.Valid {
		v := b.IntendedReturnDate.Time
		resp.IntendedReturnDate = &v
	}
	if b.ApprovedAt.Valid {
		v := b.ApprovedAt.Time
		resp.ApprovedAt = &v
	}
	if b.ReleasedAt.Valid {
		v := b.ReleasedAt.Time
		resp.ReleasedAt = &v
	}
	if b.ReturnedAt.Valid {
		v := b.ReturnedAt.Time
		resp.ReturnedAt = &v
	}
	if b.AdminRemarks.Valid {
		v := b.AdminRemarks.String
		resp.AdminRemarks = &v
	}
	return resp
}
