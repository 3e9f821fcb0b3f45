package maintenance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"LEMS-backend/internal/equipment/items"
	"LEMS-backend/internal/platform/api"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type seqID struct{ n int }

func (g *seqID) NewULID(time.Time) string {
	g.n++
	return fmt.Sprintf("01HTESTMAINT0%013d", g.n)
}

// fakeStore はSQLストアと同じ純関数で台帳を動かし、進捗まわりの
// ガード（減少拒否・超過拒否）も同じ順序で適用する。
type fakeStore struct {
	item *items.Item
	rec  *MaintenanceRecord
}

func (f *fakeStore) ResolveItem(ctx context.Context, itemULID string) (*items.Item, error) {
	if f.item == nil || f.item.ItemULID != itemULID {
		return nil, api.ErrNotFound("equipment not found")
	}
	cp := *f.item
	return &cp, nil
}

func (f *fakeStore) Insert(ctx context.Context, m *MaintenanceRecord) error {
	if err := applySchedule(f.item, m.Quantity); err != nil {
		return err
	}
	m.MaintenanceID = 1
	f.rec = m
	return nil
}

func (f *fakeStore) GetByULID(ctx context.Context, ulid string) (*MaintenanceRecord, error) {
	if f.rec == nil || f.rec.MaintenanceULID != ulid {
		return nil, api.ErrNotFound("maintenance record not found")
	}
	return f.rec, nil
}

func (f *fakeStore) List(ctx context.Context, _ Filter, _ Page) ([]MaintenanceRecord, int64, error) {
	if f.rec == nil {
		return nil, 0, nil
	}
	return []MaintenanceRecord{*f.rec}, 1, nil
}

func (f *fakeStore) RecordProgress(ctx context.Context, maintID int64, newMaintained int, now time.Time) (*MaintenanceRecord, error) {
	m := f.rec
	if !m.Status.Outstanding() {
		return nil, api.ErrConflict("maintenance job is closed")
	}
	delta := newMaintained - m.MaintainedQuantity
	if delta < 0 {
		return nil, api.ErrInvalid("maintained_quantity cannot decrease")
	}
	if newMaintained > m.Quantity {
		return nil, api.ErrQuantity(fmt.Sprintf("maintained_quantity exceeds job quantity (job: %d, got: %d)",
			m.Quantity, newMaintained))
	}
	if delta > 0 {
		if err := applyProgress(f.item, delta); err != nil {
			return nil, err
		}
	}
	m.MaintainedQuantity = newMaintained
	if newMaintained == m.Quantity {
		m.Status = StatusCompleted
		m.CompletedAt = sql.NullTime{Time: now, Valid: true}
	} else if delta > 0 {
		m.Status = StatusInProgress
	}
	return m, nil
}

func (f *fakeStore) Update(ctx context.Context, maintID int64, in UpdateMaintenanceRequest, due, next sql.NullTime) (*MaintenanceRecord, error) {
	m := f.rec
	if !m.Status.Outstanding() {
		return nil, api.ErrConflict("maintenance job is closed")
	}
	if in.Quantity != nil && *in.Quantity != m.Quantity {
		if *in.Quantity < m.MaintainedQuantity {
			return nil, api.ErrQuantity("quantity below already maintained units")
		}
		if err := applyRequantify(f.item, *in.Quantity-m.Quantity); err != nil {
			return nil, err
		}
		m.Quantity = *in.Quantity
	}
	if in.Status != nil && Status(*in.Status) == StatusCancelled {
		if err := applyRelease(f.item, m.Remaining()); err != nil {
			return nil, err
		}
		m.Status = StatusCancelled
	}
	if due.Valid {
		m.DueDate = due
	}
	return m, nil
}

func (f *fakeStore) Delete(ctx context.Context, maintID int64) error {
	if f.rec.Status.Outstanding() && f.rec.Remaining() > 0 {
		if err := applyRelease(f.item, f.rec.Remaining()); err != nil {
			return err
		}
	}
	f.rec = nil
	return nil
}

func newTestService(available int) (*Service, *fakeStore) {
	fs := &fakeStore{item: newTestItem(available)}
	svc := &Service{
		store: fs,
		clock: fixedClock{t: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)},
		id:    &seqID{},
	}
	return svc, fs
}

func mustCreate(t *testing.T, svc *Service, fs *fakeStore, qty int) MaintenanceResponse {
	t.Helper()
	res, err := svc.Create(context.Background(), CreateMaintenanceRequest{
		ItemULID: fs.item.ItemULID, Kind: "repair", Quantity: qty,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return res
}

func TestCreateValidation(t *testing.T) {
	svc, fs := newTestService(10)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateMaintenanceRequest{ItemULID: fs.item.ItemULID, Kind: "repair", Quantity: 0})
	var ae *api.Error
	if !errors.As(err, &ae) || ae.Code != api.CodeInvalidArgument {
		t.Fatalf("zero quantity: got %v", err)
	}

	_, err = svc.Create(ctx, CreateMaintenanceRequest{ItemULID: fs.item.ItemULID, Kind: "polish", Quantity: 1})
	if !errors.As(err, &ae) || ae.Code != api.CodeInvalidArgument {
		t.Fatalf("unknown kind: got %v", err)
	}

	_, err = svc.Create(ctx, CreateMaintenanceRequest{ItemULID: fs.item.ItemULID, Kind: "repair", Quantity: 11})
	if !errors.As(err, &ae) || ae.Code != api.CodeQuantityConflict {
		t.Fatalf("over stock: got %v", err)
	}
}

func TestScheduleProgressCompleteFlow(t *testing.T) {
	svc, fs := newTestService(10)
	ctx := context.Background()

	res := mustCreate(t, svc, fs, 4)
	if fs.item.Available != 6 || fs.item.Maintenance != 4 {
		t.Fatalf("after schedule: %+v", fs.item.Ledger)
	}
	if res.Status != string(StatusScheduled) {
		t.Fatalf("created as %s", res.Status)
	}

	one := 1
	got, err := svc.RecordProgress(ctx, res.MaintenanceULID, RecordProgressRequest{MaintainedQuantity: &one})
	if err != nil {
		t.Fatalf("progress 1: %v", err)
	}
	if got.Status != string(StatusInProgress) || got.RemainingQuantity != 3 {
		t.Fatalf("after partial progress: status=%s remaining=%d", got.Status, got.RemainingQuantity)
	}

	four := 4
	got, err = svc.RecordProgress(ctx, res.MaintenanceULID, RecordProgressRequest{MaintainedQuantity: &four})
	if err != nil {
		t.Fatalf("progress 4: %v", err)
	}
	if got.Status != string(StatusCompleted) || got.CompletedAt == nil {
		t.Fatalf("job not completed: %+v", got)
	}
	if fs.item.Available != 10 || fs.item.Maintenance != 0 {
		t.Fatalf("ledger after completion: %+v", fs.item.Ledger)
	}
}

func TestProgressDecreaseRejected(t *testing.T) {
	svc, fs := newTestService(10)
	ctx := context.Background()
	res := mustCreate(t, svc, fs, 4)

	three := 3
	if _, err := svc.RecordProgress(ctx, res.MaintenanceULID, RecordProgressRequest{MaintainedQuantity: &three}); err != nil {
		t.Fatalf("progress 3: %v", err)
	}

	two := 2
	_, err := svc.RecordProgress(ctx, res.MaintenanceULID, RecordProgressRequest{MaintainedQuantity: &two})
	var ae *api.Error
	if !errors.As(err, &ae) || ae.Code != api.CodeInvalidArgument {
		t.Fatalf("decrease: got %v, want INVALID_ARGUMENT", err)
	}
}

func TestProgressOverflowRejected(t *testing.T) {
	svc, fs := newTestService(10)
	ctx := context.Background()
	res := mustCreate(t, svc, fs, 4)

	five := 5
	_, err := svc.RecordProgress(ctx, res.MaintenanceULID, RecordProgressRequest{MaintainedQuantity: &five})
	var ae *api.Error
	if !errors.As(err, &ae) || ae.Code != api.CodeQuantityConflict {
		t.Fatalf("overflow: got %v, want QUANTITY_CONFLICT", err)
	}
	if fs.item.Available != 6 || fs.item.Maintenance != 4 {
		t.Fatalf("ledger mutated on rejected progress: %+v", fs.item.Ledger)
	}
}

func TestCancelRestoresOutstanding(t *testing.T) {
	svc, fs := newTestService(10)
	ctx := context.Background()
	res := mustCreate(t, svc, fs, 4)

	one := 1
	if _, err := svc.RecordProgress(ctx, res.MaintenanceULID, RecordProgressRequest{MaintainedQuantity: &one}); err != nil {
		t.Fatalf("progress: %v", err)
	}

	cancelled := string(StatusCancelled)
	got, err := svc.Update(ctx, res.MaintenanceULID, UpdateMaintenanceRequest{Status: &cancelled})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != string(StatusCancelled) {
		t.Fatalf("status %s after cancel", got.Status)
	}
	if fs.item.Available != 10 || fs.item.Maintenance != 0 {
		t.Fatalf("ledger after cancel: %+v", fs.item.Ledger)
	}
}

func TestUpdateRejectsForeignStatus(t *testing.T) {
	svc, fs := newTestService(10)
	res := mustCreate(t, svc, fs, 2)

	completed := string(StatusCompleted)
	_, err := svc.Update(context.Background(), res.MaintenanceULID, UpdateMaintenanceRequest{Status: &completed})
	var ae *api.Error
	if !errors.As(err, &ae) || ae.Code != api.CodeInvalidArgument {
		t.Fatalf("got %v, want INVALID_ARGUMENT (progress goes through /quantity)", err)
	}
}
