package items

import (
	"errors"
	"testing"

	"LEMS-backend/internal/platform/api"
)

func codeOf(t *testing.T, err error) api.Code {
	t.Helper()
	var ae *api.Error
	if !errors.As(err, &ae) {
		t.Fatalf("expected *api.Error, got %T (%v)", err, err)
	}
	return ae.Code
}

func TestTransferMovesUnitsBetweenBuckets(t *testing.T) {
	l := Ledger{Quantity: 10, Available: 10}

	if err := l.Transfer(BucketAvailable, BucketBorrowed, 3); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if l.Available != 7 || l.Borrowed != 3 {
		t.Fatalf("got available=%d borrowed=%d, want 7/3", l.Available, l.Borrowed)
	}
	if err := l.Transfer(BucketBorrowed, BucketAvailable, 3); err != nil {
		t.Fatalf("transfer back: %v", err)
	}
	if l.Available != 10 || l.Borrowed != 0 {
		t.Fatalf("round trip not net zero: available=%d borrowed=%d", l.Available, l.Borrowed)
	}
}

func TestTransferShortfallLeavesLedgerUntouched(t *testing.T) {
	l := Ledger{Quantity: 5, Available: 5}

	err := l.Transfer(BucketAvailable, BucketBorrowed, 6)
	if err == nil {
		t.Fatal("expected shortfall error")
	}
	if codeOf(t, err) != api.CodeQuantityConflict {
		t.Fatalf("got code %s, want QUANTITY_CONFLICT", codeOf(t, err))
	}
	if l.Available != 5 || l.Borrowed != 0 {
		t.Fatalf("ledger mutated on failure: %+v", l)
	}
}

func TestTransferRejectsBadArguments(t *testing.T) {
	l := Ledger{Quantity: 5, Available: 5}

	cases := []struct {
		name     string
		from, to Bucket
		qty      int
	}{
		{"negative", BucketAvailable, BucketBorrowed, -1},
		{"same bucket", BucketAvailable, BucketAvailable, 1},
		{"into disposed", BucketAvailable, BucketDisposed, 1},
		{"out of disposed", BucketDisposed, BucketAvailable, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := l.Transfer(tc.from, tc.to, tc.qty)
			if err == nil {
				t.Fatal("expected error")
			}
			if codeOf(t, err) != api.CodeInvalidArgument {
				t.Fatalf("got code %s, want INVALID_ARGUMENT", codeOf(t, err))
			}
		})
	}
}

func TestTransferZeroIsNoop(t *testing.T) {
	l := Ledger{Quantity: 5, Available: 5}
	if err := l.Transfer(BucketAvailable, BucketBorrowed, 0); err != nil {
		t.Fatalf("zero transfer: %v", err)
	}
	if l.Available != 5 || l.Borrowed != 0 {
		t.Fatalf("zero transfer mutated ledger: %+v", l)
	}
}

func TestDisposeRemovesFromOwnedTotal(t *testing.T) {
	l := Ledger{Quantity: 2, Available: 2}

	if err := l.Dispose(2); err != nil {
		t.Fatalf("dispose: %v", err)
	}
	if l.Quantity != 0 || l.Available != 0 || l.Disposed != 2 {
		t.Fatalf("after dispose: %+v", l)
	}

	if err := l.ReverseDisposal(2); err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if l.Quantity != 2 || l.Available != 2 || l.Disposed != 0 {
		t.Fatalf("after reverse: %+v", l)
	}
}

func TestDisposeRequiresAvailableUnits(t *testing.T) {
	l := Ledger{Quantity: 5, Available: 2, Borrowed: 3}

	err := l.Dispose(3)
	if err == nil {
		t.Fatal("expected shortfall error")
	}
	if codeOf(t, err) != api.CodeQuantityConflict {
		t.Fatalf("got code %s, want QUANTITY_CONFLICT", codeOf(t, err))
	}
}

func TestReverseDisposalBoundedByDisposed(t *testing.T) {
	l := Ledger{Quantity: 3, Available: 3, Disposed: 1}
	if err := l.ReverseDisposal(2); err == nil {
		t.Fatal("expected error restoring more than disposed")
	}
}

func TestCheckDetectsCorruption(t *testing.T) {
	bad := []Ledger{
		{Quantity: 5, Available: 3, Borrowed: 1}, // sum mismatch
		{Quantity: 1, Available: 1, Borrowed: -1, Maintenance: 1},
	}
	for i, l := range bad {
		if err := l.Check(); err == nil {
			t.Fatalf("case %d: expected check failure for %+v", i, l)
		}
	}
	good := Ledger{Quantity: 6, Available: 1, Borrowed: 2, Maintenance: 3, Disposed: 4}
	if err := good.Check(); err != nil {
		t.Fatalf("valid ledger rejected: %v", err)
	}
}

func TestReconcileDerivesStatusAndCondition(t *testing.T) {
	it := &Item{Ledger: Ledger{Quantity: 2, Available: 2}, Condition: ConditionGood, Status: StatusActive}

	// 全数貸出で Borrowed
	it.Available, it.Borrowed = 0, 2
	it.Reconcile()
	if it.Status != StatusBorrowed {
		t.Fatalf("got status %s, want Borrowed", it.Status)
	}

	// 保守中は condition が導出値になる
	it.Borrowed, it.Maintenance = 0, 2
	it.Reconcile()
	if it.Condition != ConditionUnderMaintenance {
		t.Fatalf("got condition %s, want Under Maintenance", it.Condition)
	}

	// 保守完了で Good へ復帰
	it.Maintenance, it.Available = 0, 2
	it.Reconcile()
	if it.Condition != ConditionGood || it.Status != StatusActive {
		t.Fatalf("got condition=%s status=%s", it.Condition, it.Status)
	}

	// 全数廃棄
	it.Ledger = Ledger{Quantity: 0, Disposed: 2}
	it.Reconcile()
	if !it.IsDisposed || it.Status != StatusDisposed || it.Condition != ConditionOutOfStock {
		t.Fatalf("disposed state not derived: %+v", it)
	}
}

func TestNormalizeCode(t *testing.T) {
	cases := map[string]string{
		"  01hqzx ":                    "01HQZX",
		"０１ＨＱＺＸ":                       "01HQZX", // 全角読取
		"01HQZXabcdEFGH":              "01HQZXABCDEFGH",
	}
	for in, want := range cases {
		if got := NormalizeCode(in); got != want {
			t.Errorf("NormalizeCode(%q) = %q, want %q", in, got, want)
		}
	}
}
