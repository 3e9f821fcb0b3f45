package disposals

import (
	"time"

	"github.com/shopspring/decimal"
)

type CreateDisposalRequest struct {
	ItemULID     string  `json:"item_ulid" binding:"required"`
	Quantity     int     `json:"quantity" binding:"required"`
	SalvageValue *string `json:"salvage_value,omitempty"` // 金額は文字列で受ける
	Reason       *string `json:"reason,omitempty"`
}

// PUT /disposals/:disposal_ulid
// Cancelled への変更だけが台帳を動かす。Completed は確定のみ。
type UpdateDisposalRequest struct {
	Status       *string `json:"status,omitempty"`
	SalvageValue *string `json:"salvage_value,omitempty"`
	Reason       *string `json:"reason,omitempty"`
}

type DisposalResponse struct {
	DisposalULID string    `json:"disposal_ulid"`
	ItemULID     string    `json:"item_ulid"`
	Quantity     int       `json:"quantity"`
	SalvageValue string    `json:"salvage_value"`
	Status       string    `json:"status"`
	Reason       *string   `json:"reason,omitempty"`
	DisposedAt   time.Time `json:"disposed_at"`
}

type Filter struct {
	ItemULID *string
	Status   *Status
}

type Page struct {
	Limit  int
	Offset int
	Order  string
}

func (d *Disposal) toDTO() DisposalResponse {
	resp := DisposalResponse{
		DisposalULID: d.DisposalULID,
		ItemULID:     d.ItemULID,
		Quantity:     d.Quantity,
		SalvageValue: d.SalvageValue.StringFixed(2),
		Status:       string(d.Status),
		DisposedAt:   d.DisposedAt,
	}
	if d.Reason.Valid {
		v := d.Reason.String
		resp.Reason = &v
	}
	return resp
}

func parseMoney(s *string) (decimal.Decimal, error) {
	if s == nil || *s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(*s)
}
