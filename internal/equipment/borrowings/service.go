package borrowings

import (
	"context"
	"crypto/rand"
	"database/sql"
	"strings"
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

// storeAPI はテストでフェイクに差し替えるための縫い目
type storeAPI interface {
	ResolveItem(ctx context.Context, itemULID string) (*items.Item, error)
	Insert(ctx context.Context, b *Borrowing) error
	GetByULID(ctx context.Context, ulid string) (*Borrowing, error)
	List(ctx context.Context, f Filter, p Page) ([]Borrowing, int64, error)
	Approve(ctx context.Context, borrowID int64, now time.Time) (*Borrowing, error)
	SetStatus(ctx context.Context, borrowID int64, to Status, remarks *string, now time.Time) (*Borrowing, error)
	Return(ctx context.Context, borrowID int64, now time.Time) (*Borrowing, error)
	Delete(ctx context.Context, borrowID int64, now time.Time) error
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

// 貸出申請。承認まで台帳は動かさないが、見込みのない申請は
// ここで在庫数付きのエラーにして返す。
func (s *Service) Create(ctx context.Context, in CreateBorrowingRequest) (BorrowingResponse, error) {
	if in.Quantity <= 0 {
		return BorrowingResponse{}, api.ErrInvalid("quantity must be > 0")
	}
	if strings.TrimSpace(in.BorrowerID) == "" {
		return BorrowingResponse{}, api.ErrInvalid("borrower_id is required")
	}

	it, err := s.store.ResolveItem(ctx, in.ItemULID)
	if err != nil {
		return BorrowingResponse{}, err
	}
	if it.IsDisposed {
		return BorrowingResponse{}, api.ErrInvalid("equipment is disposed")
	}
	if !it.CanBeBorrowed {
		return BorrowingResponse{}, api.ErrInvalid("equipment cannot be borrowed")
	}
	if it.Available < in.Quantity {
		return BorrowingResponse{}, api.ErrShortfall(it.Available, in.Quantity)
	}

	now := s.clock.Now()
	b := &Borrowing{
		BorrowULID:  s.id.NewULID(now),
		ItemID:      it.ItemID,
		ItemULID:    it.ItemULID,
		Quantity:    in.Quantity,
		BorrowerID:  in.BorrowerID,
		Status:      StatusPending,
		RequestedAt: now,
	}
	if err := parseDateInto(in.IntendedBorrowDate, &b.IntendedBorrowDate, "intended_borrow_date"); err != nil {
		return BorrowingResponse{}, err
	}
	if err := parseDateInto(in.IntendedReturnDate, &b.IntendedReturnDate, "intended_return_date"); err != nil {
		return BorrowingResponse{}, err
	}
	if in.Remarks != nil && *in.Remarks != "" {
		b.AdminRemarks = sql.NullString{String: *in.Remarks, Valid: true}
	}

	if err := s.store.Insert(ctx, b); err != nil {
		return BorrowingResponse{}, err
	}

	s.events.Publish(ctx, events.TopicBorrowRequested, b.toDTO(now))
	return b.toDTO(now), nil
}

// UpdateStatus は PATCH の入口。呼び出し元文字列は閉じた集合に落としてから処理する。
func (s *Service) UpdateStatus(ctx context.Context, borrowULID string, in UpdateBorrowingRequest) (BorrowingResponse, error) {
	b, err := s.store.GetByULID(ctx, borrowULID)
	if err != nil {
		return BorrowingResponse{}, err
	}

	now := s.clock.Now()
	target := Status(in.Status)
	var updated *Borrowing

	switch target {
	case StatusApproved:
		updated, err = s.store.Approve(ctx, b.BorrowID, now)
		if err == nil {
			s.events.Publish(ctx, events.TopicBorrowApproved, updated.toDTO(now))
		}
	case StatusRejected:
		updated, err = s.store.SetStatus(ctx, b.BorrowID, StatusRejected, in.AdminRemarks, now)
	case StatusReleased:
		updated, err = s.store.SetStatus(ctx, b.BorrowID, StatusReleased, in.AdminRemarks, now)
	case StatusReturned:
		// 二重送信は no-op（台帳は二重credit されない）
		updated, err = s.store.Return(ctx, b.BorrowID, now)
		if err == nil {
			s.events.Publish(ctx, events.TopicBorrowReturned, updated.toDTO(now))
		}
	default:
		return BorrowingResponse{}, api.ErrInvalid("status must be one of approved/rejected/released/returned")
	}
	if err != nil {
		return BorrowingResponse{}, err
	}
	return updated.toDTO(now), nil
}

func (s *Service) Get(ctx context.Context, borrowULID string) (BorrowingResponse, error) {
	b, err := s.store.GetByULID(ctx, borrowULID)
	if err != nil {
		return BorrowingResponse{}, err
	}
	return b.toDTO(s.clock.Now()), nil
}

func (s *Service) List(ctx context.Context, f Filter, p Page) ([]BorrowingResponse, int64, error) {
	rows, total, err := s.store.List(ctx, f, p)
	if err != nil {
		return nil, 0, err
	}
	now := s.clock.Now()
	out := make([]BorrowingResponse, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDTO(now))
	}
	return out, total, nil
}

// Delete は取り下げ。アクティブな貸出はストア側で台帳復元してから消える。
func (s *Service) Delete(ctx context.Context, borrowULID string) error {
	b, err := s.store.GetByULID(ctx, borrowULID)
	if err != nil {
		return err
	}
	return s.store.Delete(ctx, b.BorrowID, s.clock.Now())
}

// ---- helpers ----

func parseDateInto(src *string, dst *sql.NullTime, field string) error {
	if src == nil || *src == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", *src)
	if err != nil {
		return api.ErrInvalid(field + " must be YYYY-MM-DD")
	}
	*dst = sql.NullTime{Time: t, Valid: true}
	return nil
}
