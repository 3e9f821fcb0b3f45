package items

import (
	"context"
	"crypto/rand"
	"database/sql"
	"strings"
	"time"

	ulid "github.com/oklog/ulid/v2"

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

// ===== Service =====

type Service struct {
	store  *Store
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

// 機材登録。全数が available に入った状態で台帳が作られる。
func (s *Service) CreateItem(ctx context.Context, in CreateItemRequest) (ItemResponse, error) {
	if strings.TrimSpace(in.Name) == "" {
		return ItemResponse{}, api.ErrInvalid("name is required")
	}
	if in.Quantity < 0 {
		return ItemResponse{}, api.ErrInvalid("quantity must be >= 0")
	}

	cond := ConditionGood
	if in.Condition != nil {
		cond = Condition(*in.Condition)
		if !ValidManualCondition(cond) {
			return ItemResponse{}, api.ErrInvalid("condition must be one of Excellent/Good/Fair/Needs Repair")
		}
	}
	borrowable := true
	if in.CanBeBorrowed != nil {
		borrowable = *in.CanBeBorrowed
	}

	now := s.clock.Now()
	it := &Item{
		ItemULID: s.id.NewULID(now),
		Name:     strings.TrimSpace(in.Name),
		Category: toNullString(in.Category),
		Location: toNullString(in.Location),
		Ledger: Ledger{
			Quantity:  in.Quantity,
			Available: in.Quantity,
		},
		Condition:     cond,
		Status:        StatusActive,
		CanBeBorrowed: borrowable,
		Notes:         toNullString(in.Notes),
	}
	if err := it.Check(); err != nil {
		return ItemResponse{}, err
	}
	if err := s.store.Insert(ctx, it); err != nil {
		return ItemResponse{}, err
	}

	s.events.Publish(ctx, events.TopicItemCreated, it.toDTO())
	return it.toDTO(), nil
}

func (s *Service) GetItem(ctx context.Context, ulid string) (ItemResponse, error) {
	it, err := s.store.GetByULID(ctx, ulid)
	if err != nil {
		return ItemResponse{}, err
	}
	return it.toDTO(), nil
}

// GetItemByCode: スキャン端末からの照会。読取値を正規化してから引く。
func (s *Service) GetItemByCode(ctx context.Context, code string) (ItemResponse, error) {
	return s.GetItem(ctx, NormalizeCode(code))
}

func (s *Service) ListItems(ctx context.Context, f ItemFilter, p Page) ([]ItemResponse, int64, error) {
	rows, total, err := s.store.List(ctx, f, p)
	if err != nil {
		return nil, 0, err
	}
	out := make([]ItemResponse, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDTO())
	}
	return out, total, nil
}

// UpdateItem は属性の更新。数量の直接変更は他バケットが空のときだけ許す。
// 貸出中・保守中の数を帳簿外で書き換えると台帳が壊れるため。
func (s *Service) UpdateItem(ctx context.Context, ulid string, in UpdateItemRequest) (ItemResponse, error) {
	if in.Condition != nil && !ValidManualCondition(Condition(*in.Condition)) {
		return ItemResponse{}, api.ErrInvalid("condition must be one of Excellent/Good/Fair/Needs Repair")
	}
	if in.Quantity != nil && *in.Quantity < 0 {
		return ItemResponse{}, api.ErrInvalid("quantity must be >= 0")
	}

	id, err := ResolveIDTx(ctx, s.store.db, ulid)
	if err != nil {
		return ItemResponse{}, err
	}

	it, err := s.store.Update(ctx, id, func(it *Item) error {
		if in.Name != nil {
			if strings.TrimSpace(*in.Name) == "" {
				return api.ErrInvalid("name must not be empty")
			}
			it.Name = strings.TrimSpace(*in.Name)
		}
		if in.Category != nil {
			it.Category = toNullString(in.Category)
		}
		if in.Location != nil {
			it.Location = toNullString(in.Location)
		}
		if in.Notes != nil {
			it.Notes = toNullString(in.Notes)
		}
		if in.CanBeBorrowed != nil {
			it.CanBeBorrowed = *in.CanBeBorrowed
		}
		if in.Condition != nil {
			it.Condition = Condition(*in.Condition)
		}
		if in.Quantity != nil && *in.Quantity != it.Quantity {
			if it.Borrowed > 0 || it.Maintenance > 0 {
				return api.ErrConflict("quantity cannot be edited while units are borrowed or under maintenance")
			}
			it.Quantity = *in.Quantity
			it.Available = *in.Quantity
		}
		it.Reconcile()
		return it.Check()
	})
	if err != nil {
		return ItemResponse{}, err
	}
	return it.toDTO(), nil
}

func (s *Service) DeleteItem(ctx context.Context, ulid string) error {
	id, err := ResolveIDTx(ctx, s.store.db, ulid)
	if err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// ---- helpers ----
func toNullString(s *string) (ns sql.NullString) {
	if s != nil && strings.TrimSpace(*s) != "" {
		ns.Valid, ns.String = true, *s
	}
	return
}
