package disposals

import (
	"testing"

	"LEMS-backend/internal/equipment/items"
)

func newTestItem(quantity int) *items.Item {
	return &items.Item{
		ItemID:        1,
		ItemULID:      "01HTESTITEM000000000000000",
		Name:          "hot plate",
		Ledger:        items.Ledger{Quantity: quantity, Available: quantity},
		Condition:     items.ConditionGood,
		Status:        items.StatusActive,
		CanBeBorrowed: true,
	}
}

func TestFullDisposalThenCancelRoundTrip(t *testing.T) {
	it := newTestItem(2)

	if err := applyDispose(it, 2); err != nil {
		t.Fatalf("dispose: %v", err)
	}
	if it.Quantity != 0 || it.Available != 0 || it.Disposed != 2 {
		t.Fatalf("after dispose: %+v", it.Ledger)
	}
	if !it.IsDisposed || it.Status != items.StatusDisposed || it.Condition != items.ConditionOutOfStock {
		t.Fatalf("item not marked disposed: status=%s condition=%s", it.Status, it.Condition)
	}

	if err := applyReverse(it, 2); err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if it.Quantity != 2 || it.Available != 2 || it.Disposed != 0 {
		t.Fatalf("after cancel: %+v", it.Ledger)
	}
	if it.IsDisposed || it.Status != items.StatusActive {
		t.Fatalf("disposed flags not cleared: status=%s is_disposed=%v", it.Status, it.IsDisposed)
	}
	if it.Condition != items.ConditionGood {
		t.Fatalf("condition %s after cancel, want Good", it.Condition)
	}
}

func TestPartialDisposalKeepsItemActive(t *testing.T) {
	it := newTestItem(5)

	if err := applyDispose(it, 2); err != nil {
		t.Fatalf("dispose: %v", err)
	}
	if it.Quantity != 3 || it.Available != 3 || it.Disposed != 2 {
		t.Fatalf("after partial dispose: %+v", it.Ledger)
	}
	if it.IsDisposed || it.Status != items.StatusActive {
		t.Fatalf("partially disposed item marked disposed")
	}
	if err := it.Check(); err != nil {
		t.Fatalf("ledger check: %v", err)
	}
}

func TestDisposeRequiresAvailable(t *testing.T) {
	it := newTestItem(5)
	// 3台貸出中
	if err := it.Transfer(items.BucketAvailable, items.BucketBorrowed, 3); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if err := applyDispose(it, 3); err == nil {
		t.Fatal("expected shortfall disposing borrowed units")
	}
	if it.Quantity != 5 || it.Disposed != 0 {
		t.Fatalf("ledger mutated on failed dispose: %+v", it.Ledger)
	}
}
