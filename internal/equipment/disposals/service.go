package disposals

import (
	"context"
	"crypto/rand"
	"database/sql"
	"time"

	ulid "github.com/oklog/ulid/v2"

	"LEMS-backend/internal/equipment/items"
	"LEMS-backend/internal/platform/api"
	"LEMS-backend/internal/platform/events"
)

// ===== Clock & ID =====
type Clock interface{ Now() time.Time }
type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type IDGen interface{ NewULID(t time.Time) string }
type ulidGen struct{}

func (ulidGen) NewULID(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

type storeAPI interface {
	ResolveItem(ctx context.Context, itemULID string) (*items.Item, error)
	Insert(ctx context.Context, d *Disposal) error
	GetByULID(ctx context.Context, ulid string) (*Disposal, error)
	List(ctx context.Context, f Filter, p Page) ([]Disposal, int64, error)
	Update(ctx context.Context, dispID int64, in UpdateDisposalRequest) (*Disposal, error)
	Delete(ctx context.Context, dispID int64) error
}

type Service struct {
	store  storeAPI
	clock  Clock
	id     IDGen
	events *events.Publisher
}

func NewService(db *sql.DB, pub *events.Publisher) *Service {
	return &Service{
		store:  NewStore(db),
		clock:  realClock{},
		id:     ulidGen{},
		events: pub,
	}
}

// 廃棄の登録。台帳からの引き落としは作成時点で行われる（予約ではない）。
func (s *Service) Create(ctx context.Context, in CreateDisposalRequest) (DisposalResponse, error) {
	if in.Quantity <= 0 {
		return DisposalResponse{}, api.ErrInvalid("quantity must be > 0")
	}
	salvage, err := parseMoney(in.SalvageValue)
	if err != nil {
		return DisposalResponse{}, api.ErrInvalid("salvage_value must be a decimal string")
	}
	if salvage.IsNegative() {
		return DisposalResponse{}, api.ErrInvalid("salvage_value must be >= 0")
	}

	it, err := s.store.ResolveItem(ctx, in.ItemULID)
	if err != nil {
		return DisposalResponse{}, err
	}
	// 早期の残量チェック。確定判定はTx内のロック済み台帳で行う。
	if it.Available < in.Quantity {
		return DisposalResponse{}, api.ErrShortfall(it.Available, in.Quantity)
	}

	now := s.clock.Now()
	d := &Disposal{
		DisposalULID: s.id.NewULID(now),
		ItemID:       it.ItemID,
		ItemULID:     it.ItemULID,
		Quantity:     in.Quantity,
		SalvageValue: salvage,
		Status:       StatusPending,
		DisposedAt:   now,
	}
	if in.Reason != nil && *in.Reason != "" {
		d.Reason = sql.NullString{String: *in.Reason, Valid: true}
	}

	if err := s.store.Insert(ctx, d); err != nil {
		return DisposalResponse{}, err
	}

	s.events.Publish(ctx, events.TopicItemDisposed, d.toDTO())
	return d.toDTO(), nil
}

func (s *Service) Update(ctx context.Context, dispULID string, in UpdateDisposalRequest) (DisposalResponse, error) {
	d, err := s.store.GetByULID(ctx, dispULID)
	if err != nil {
		return DisposalResponse{}, err
	}
	updated, err := s.store.Update(ctx, d.DisposalID, in)
	if err != nil {
		return DisposalResponse{}, err
	}
	return updated.toDTO(), nil
}

func (s *Service) Get(ctx context.Context, dispULID string) (DisposalResponse, error) {
	d, err := s.store.GetByULID(ctx, dispULID)
	if err != nil {
		return DisposalResponse{}, err
	}
	return d.toDTO(), nil
}

func (s *Service) List(ctx context.Context, f Filter, p Page) ([]DisposalResponse, int64, error) {
	rows, total, err := s.store.List(ctx, f, p)
	if err != nil {
		return nil, 0, err
	}
	out := make([]DisposalResponse, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDTO())
	}
	return out, total, nil
}

func (s *Service) Delete(ctx context.Context, dispULID string) error {
	d, err := s.store.GetByULID(ctx, dispULID)
	if err != nil {
		return err
	}
	return s.store.Delete(ctx, d.DisposalID)
}
