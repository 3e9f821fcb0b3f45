package maintenance

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
	Insert(ctx context.Context, m *MaintenanceRecord) error
	GetByULID(ctx context.Context, ulid string) (*MaintenanceRecord, error)
	List(ctx context.Context, f Filter, p Page) ([]MaintenanceRecord, int64, error)
	RecordProgress(ctx context.Context, maintID int64, newMaintained int, now time.Time) (*MaintenanceRecord, error)
	Update(ctx context.Context, maintID int64, in UpdateMaintenanceRequest, due, next sql.NullTime) (*MaintenanceRecord, error)
	Delete(ctx context.Context, maintID int64) error
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

// 保守ジョブの登録。対象数ぶん available から引き当てる。
func (s *Service) Create(ctx context.Context, in CreateMaintenanceRequest) (MaintenanceResponse, error) {
	if in.Quantity <= 0 {
		return MaintenanceResponse{}, api.ErrInvalid("quantity must be > 0")
	}
	if !ValidKind(Kind(in.Kind)) {
		return MaintenanceResponse{}, api.ErrInvalid("kind must be one of repair/calibration/inspection")
	}

	it, err := s.store.ResolveItem(ctx, in.ItemULID)
	if err != nil {
		return MaintenanceResponse{}, err
	}

	now := s.clock.Now()
	m := &MaintenanceRecord{
		MaintenanceULID: s.id.NewULID(now),
		ItemID:          it.ItemID,
		ItemULID:        it.ItemULID,
		Kind:            Kind(in.Kind),
		Quantity:        in.Quantity,
		Status:          StatusScheduled,
		ScheduledAt:     now,
	}
	if err := parseDateInto(in.DueDate, &m.DueDate, "due_date"); err != nil {
		return MaintenanceResponse{}, err
	}
	if err := parseDateInto(in.NextMaintenance, &m.NextMaintenance, "next_maintenance"); err != nil {
		return MaintenanceResponse{}, err
	}
	if in.AssigneeID != nil && *in.AssigneeID != "" {
		m.AssigneeID = sql.NullString{String: *in.AssigneeID, Valid: true}
	}
	if in.Notes != nil && *in.Notes != "" {
		m.Notes = sql.NullString{String: *in.Notes, Valid: true}
	}

	if err := s.store.Insert(ctx, m); err != nil {
		return MaintenanceResponse{}, err
	}

	s.events.Publish(ctx, events.TopicMaintenanceScheduled, m.toDTO(now))
	return m.toDTO(now), nil
}

// RecordProgress は累計完了数の記録。全数完了でジョブが閉じる。
func (s *Service) RecordProgress(ctx context.Context, maintULID string, in RecordProgressRequest) (MaintenanceResponse, error) {
	if in.MaintainedQuantity == nil || *in.MaintainedQuantity < 0 {
		return MaintenanceResponse{}, api.ErrInvalid("maintained_quantity must be >= 0")
	}

	m, err := s.store.GetByULID(ctx, maintULID)
	if err != nil {
		return MaintenanceResponse{}, err
	}

	now := s.clock.Now()
	updated, err := s.store.RecordProgress(ctx, m.MaintenanceID, *in.MaintainedQuantity, now)
	if err != nil {
		return MaintenanceResponse{}, err
	}
	if updated.Status == StatusCompleted {
		s.events.Publish(ctx, events.TopicMaintenanceCompleted, updated.toDTO(now))
	}
	return updated.toDTO(now), nil
}

func (s *Service) Update(ctx context.Context, maintULID string, in UpdateMaintenanceRequest) (MaintenanceResponse, error) {
	if in.Kind != nil && !ValidKind(Kind(*in.Kind)) {
		return MaintenanceResponse{}, api.ErrInvalid("kind must be one of repair/calibration/inspection")
	}
	if in.Quantity != nil && *in.Quantity <= 0 {
		return MaintenanceResponse{}, api.ErrInvalid("quantity must be > 0")
	}
	if in.Status != nil && Status(*in.Status) != StatusCancelled {
		return MaintenanceResponse{}, api.ErrInvalid("status can only be set to Cancelled; progress goes through /quantity")
	}

	var due, next sql.NullTime
	if err := parseDateInto(in.DueDate, &due, "due_date"); err != nil {
		return MaintenanceResponse{}, err
	}
	if err := parseDateInto(in.NextMaintenance, &next, "next_maintenance"); err != nil {
		return MaintenanceResponse{}, err
	}

	m, err := s.store.GetByULID(ctx, maintULID)
	if err != nil {
		return MaintenanceResponse{}, err
	}

	updated, err := s.store.Update(ctx, m.MaintenanceID, in, due, next)
	if err != nil {
		return MaintenanceResponse{}, err
	}
	return updated.toDTO(s.clock.Now()), nil
}

func (s *Service) Get(ctx context.Context, maintULID string) (MaintenanceResponse, error) {
	m, err := s.store.GetByULID(ctx, maintULID)
	if err != nil {
		return MaintenanceResponse{}, err
	}
	return m.toDTO(s.clock.Now()), nil
}

func (s *Service) List(ctx context.Context, f Filter, p Page) ([]MaintenanceResponse, int64, error) {
	rows, total, err := s.store.List(ctx, f, p)
	if err != nil {
		return nil, 0, err
	}
	now := s.clock.Now()
	out := make([]MaintenanceResponse, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDTO(now))
	}
	return out, total, nil
}

func (s *Service) Delete(ctx context.Context, maintULID string) error {
	m, err := s.store.GetByULID(ctx, maintULID)
	if err != nil {
		return err
	}
	return s.store.Delete(ctx, m.MaintenanceID)
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
