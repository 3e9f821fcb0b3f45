package borrowings

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
	return fmt.Sprintf("01HTESTBORROW%013d", g.n)
}

// fakeStore はSQLストアと同じ純関数（applyApprove / applyReturn）で台帳を動かす
type fakeStore struct {
	item *items.Item
	rec  *Borrowing
}

func (f *fakeStore) ResolveItem(ctx context.Context, itemULID string) (*items.Item, error) {
	if f.item == nil || f.item.ItemULID != itemULID {
		return nil, api.ErrNotFound("equipment not found")
	}
	cp := *f.item
	return &cp, nil
}

func (f *fakeStore) Insert(ctx context.Context, b *Borrowing) error {
	b.BorrowID = 1
	f.rec = b
	return nil
}

func (f *fakeStore) GetByULID(ctx context.Context, ulid string) (*Borrowing, error) {
	if f.rec == nil || f.rec.BorrowULID != ulid {
		return nil, api.ErrNotFound("borrowing not found")
	}
	return f.rec, nil
}

func (f *fakeStore) List(ctx context.Context, _ Filter, _ Page) ([]Borrowing, int64, error) {
	if f.rec == nil {
		return nil, 0, nil
	}
	return []Borrowing{*f.rec}, 1, nil
}

func (f *fakeStore) Approve(ctx context.Context, borrowID int64, now time.Time) (*Borrowing, error) {
	if !CanTransition(f.rec.Status, StatusApproved) {
		return nil, api.ErrConflict("borrowing cannot be approved")
	}
	if err := applyApprove(f.item, f.rec.Quantity); err != nil {
		return nil, err
	}
	f.rec.Status = StatusApproved
	f.rec.ApprovedAt = sql.NullTime{Time: now, Valid: true}
	return f.rec, nil
}

func (f *fakeStore) SetStatus(ctx context.Context, borrowID int64, to Status, remarks *string, now time.Time) (*Borrowing, error) {
	if !CanTransition(f.rec.Status, to) {
		return nil, api.ErrConflict("transition not allowed")
	}
	f.rec.Status = to
	if remarks != nil {
		f.rec.AdminRemarks = sql.NullString{String: *remarks, Valid: true}
	}
	return f.rec, nil
}

func (f *fakeStore) Return(ctx context.Context, borrowID int64, now time.Time) (*Borrowing, error) {
	if f.rec.Status == StatusReturned {
		return f.rec, nil
	}
	if !CanTransition(f.rec.Status, StatusReturned) {
		return nil, api.ErrConflict("borrowing cannot be returned")
	}
	applyReturn(f.item, f.rec.Quantity)
	f.rec.Status = StatusReturned
	f.rec.ReturnedAt = sql.NullTime{Time: now, Valid: true}
	return f.rec, nil
}

func (f *fakeStore) Delete(ctx context.Context, borrowID int64, now time.Time) error {
	if f.rec.Status.Active() {
		applyReturn(f.item, f.rec.Quantity)
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

func TestCreateValidation(t *testing.T) {
	svc, fs := newTestService(5)
	ctx := context.Background()

	cases := []struct {
		name string
		req  CreateBorrowingRequest
		code api.Code
	}{
		{"zero quantity", CreateBorrowingRequest{ItemULID: fs.item.ItemULID, Quantity: 0, BorrowerID: "u1"}, api.CodeInvalidArgument},
		{"missing borrower", CreateBorrowingRequest{ItemULID: fs.item.ItemULID, Quantity: 1, BorrowerID: " "}, api.CodeInvalidArgument},
		{"unknown item", CreateBorrowingRequest{ItemULID: "01HNOSUCHITEM0000000000000", Quantity: 1, BorrowerID: "u1"}, api.CodeNotFound},
		{"over stock", CreateBorrowingRequest{ItemULID: fs.item.ItemULID, Quantity: 6, BorrowerID: "u1"}, api.CodeQuantityConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.req)
			var ae *api.Error
			if !errors.As(err, &ae) || ae.Code != tc.code {
				t.Fatalf("got %v, want code %s", err, tc.code)
			}
		})
	}

	bad := "2026/04/01"
	_, err := svc.Create(ctx, CreateBorrowingRequest{
		ItemULID: fs.item.ItemULID, Quantity: 1, BorrowerID: "u1", IntendedReturnDate: &bad,
	})
	var ae *api.Error
	if !errors.As(err, &ae) || ae.Code != api.CodeInvalidArgument {
		t.Fatalf("bad date: got %v", err)
	}
}

func TestShortfallMessageCarriesNumbers(t *testing.T) {
	svc, fs := newTestService(3)

	_, err := svc.Create(context.Background(), CreateBorrowingRequest{
		ItemULID: fs.item.ItemULID, Quantity: 5, BorrowerID: "u1",
	})
	if err == nil {
		t.Fatal("expected shortfall")
	}
	want := "insufficient quantity (available: 3, requested: 5)"
	var ae *api.Error
	if !errors.As(err, &ae) || ae.Message != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
}

func TestBorrowLifecycleRoundTrip(t *testing.T) {
	svc, fs := newTestService(5)
	ctx := context.Background()

	res, err := svc.Create(ctx, CreateBorrowingRequest{
		ItemULID: fs.item.ItemULID, Quantity: 2, BorrowerID: "u1",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.Status != string(StatusPending) {
		t.Fatalf("created as %s", res.Status)
	}
	// 申請だけでは台帳は動かない
	if fs.item.Available != 5 || fs.item.Borrowed != 0 {
		t.Fatalf("ledger moved on request: %+v", fs.item.Ledger)
	}

	if _, err := svc.UpdateStatus(ctx, res.BorrowULID, UpdateBorrowingRequest{Status: "approved"}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if fs.item.Available != 3 || fs.item.Borrowed != 2 {
		t.Fatalf("after approve: %+v", fs.item.Ledger)
	}

	if _, err := svc.UpdateStatus(ctx, res.BorrowULID, UpdateBorrowingRequest{Status: "returned"}); err != nil {
		t.Fatalf("return: %v", err)
	}
	if fs.item.Available != 5 || fs.item.Borrowed != 0 {
		t.Fatalf("round trip not net zero: %+v", fs.item.Ledger)
	}

	// 二重送信は no-op
	if _, err := svc.UpdateStatus(ctx, res.BorrowULID, UpdateBorrowingRequest{Status: "returned"}); err != nil {
		t.Fatalf("idempotent return: %v", err)
	}
	if fs.item.Available != 5 || fs.item.Borrowed != 0 {
		t.Fatalf("double return credited ledger: %+v", fs.item.Ledger)
	}
}

func TestUpdateStatusRejectsUnknownTarget(t *testing.T) {
	svc, fs := newTestService(5)
	ctx := context.Background()

	res, err := svc.Create(ctx, CreateBorrowingRequest{
		ItemULID: fs.item.ItemULID, Quantity: 1, BorrowerID: "u1",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = svc.UpdateStatus(ctx, res.BorrowULID, UpdateBorrowingRequest{Status: "vanished"})
	var ae *api.Error
	if !errors.As(err, &ae) || ae.Code != api.CodeInvalidArgument {
		t.Fatalf("got %v, want INVALID_ARGUMENT", err)
	}
}

// ストアのガードは遷移表そのもの。表に無い組は全て 409 になる。
func TestUpdateStatusFollowsTransitionTable(t *testing.T) {
	svc, fs := newTestService(5)
	ctx := context.Background()

	res, err := svc.Create(ctx, CreateBorrowingRequest{
		ItemULID: fs.item.ItemULID, Quantity: 1, BorrowerID: "u1",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var ae *api.Error

	// pending からいきなり release はできない
	_, err = svc.UpdateStatus(ctx, res.BorrowULID, UpdateBorrowingRequest{Status: "released"})
	if !errors.As(err, &ae) || ae.Code != api.CodeConflict {
		t.Fatalf("pending->released: got %v, want CONFLICT", err)
	}

	if _, err := svc.UpdateStatus(ctx, res.BorrowULID, UpdateBorrowingRequest{Status: "approved"}); err != nil {
		t.Fatalf("approve: %v", err)
	}

	// 承認済みは reject できない（取り下げは DELETE）
	_, err = svc.UpdateStatus(ctx, res.BorrowULID, UpdateBorrowingRequest{Status: "rejected"})
	if !errors.As(err, &ae) || ae.Code != api.CodeConflict {
		t.Fatalf("approved->rejected: got %v, want CONFLICT", err)
	}
}

func TestDeleteApprovedRestoresLedger(t *testing.T) {
	svc, fs := newTestService(10)
	ctx := context.Background()

	res, err := svc.Create(ctx, CreateBorrowingRequest{
		ItemULID: fs.item.ItemULID, Quantity: 3, BorrowerID: "u1",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, res.BorrowULID, UpdateBorrowingRequest{Status: "approved"}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if fs.item.Available != 7 || fs.item.Borrowed != 3 {
		t.Fatalf("after approve: %+v", fs.item.Ledger)
	}

	if err := svc.Delete(ctx, res.BorrowULID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if fs.item.Available != 10 || fs.item.Borrowed != 0 {
		t.Fatalf("delete did not restore ledger: %+v", fs.item.Ledger)
	}
}
