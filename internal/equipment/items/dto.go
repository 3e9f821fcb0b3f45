package items

import "time"

// ===== Requests =====

type CreateItemRequest struct {
	Name          string  `json:"name" binding:"required"`
	Category      *string `json:"category,omitempty"`
	Location      *string `json:"location,omitempty"`
	Quantity      int     `json:"quantity"` // >=0、全数が available に入る
	Condition     *string `json:"condition,omitempty"`
	CanBeBorrowed *bool   `json:"can_be_borrowed,omitempty"`
	Notes         *string `json:"notes,omitempty"`
}

type UpdateItemRequest struct {
	Name          *string `json:"name,omitempty"`
	Category      *string `json:"category,omitempty"`
	Location      *string `json:"location,omitempty"`
	Quantity      *int    `json:"quantity,omitempty"` // 他バケットが空のときのみ変更可
	Condition     *string `json:"condition,omitempty"`
	CanBeBorrowed *bool   `json:"can_be_borrowed,omitempty"`
	Notes         *string `json:"notes,omitempty"`
}

// ===== Responses =====

type ItemResponse struct {
	ItemULID            string    `json:"item_ulid"`
	Name                string    `json:"name"`
	Category            *string   `json:"category,omitempty"`
	Location            *string   `json:"location,omitempty"`
	Quantity            int       `json:"quantity"`
	AvailableQuantity   int       `json:"available_quantity"`
	BorrowedQuantity    int       `json:"borrowed_quantity"`
	MaintenanceQuantity int       `json:"maintenance_quantity"`
	DisposalQuantity    int       `json:"disposal_quantity"`
	Condition           string    `json:"condition"`
	Status              string    `json:"status"`
	CanBeBorrowed       bool      `json:"can_be_borrowed"`
	IsDisposed          bool      `json:"is_disposed"`
	Notes               *string   `json:"notes,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// 検索条件
type ItemFilter struct {
	Query      *string
	Status     *Status
	Condition  *Condition
	Borrowable *bool
}

type Page struct {
	Limit  int
	Offset int
	Order  string
}

func (it *Item) toDTO() ItemResponse {
	resp := ItemResponse{
		ItemULID:            it.ItemULID,
		Name:                it.Name,
		Quantity:            it.Quantity,
		AvailableQuantity:   it.Available,
		BorrowedQuantity:    it.Borrowed,
		MaintenanceQuantity: it.Maintenance,
		DisposalQuantity:    it.Disposed,
		Condition:           string(it.Condition),
		Status:              string(it.Status),
		CanBeBorrowed:       it.CanBeBorrowed,
		IsDisposed:          it.IsDisposed,
		CreatedAt:           it.CreatedAt,
		UpdatedAt:           it.UpdatedAt,
	}
	if it.Category.Valid {
		v := it.Category.String
		resp.Category = &v
	}
	if it.Location.Valid {
		v := it.Location.String
		resp.Location = &v
	}
	if it.Notes.Valid {
		v := it.Notes.String
		resp.Notes = &v
	}
	return resp
}
