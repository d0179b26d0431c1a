package reconcile

import (
	"testing"

	"cartsync/internal/model"
)

func TestDiffCarts_EmptyToItems(t *testing.T) {
	// Empty local, items remote → all missing
	remote := &model.Cart{Lines: []model.CartLine{
		{ItemID: 1, Quantity: 2},
		{ItemID: 2, Quantity: 1},
	}}

	diff := DiffCarts(nil, remote)

	if len(diff.Missing) != 2 {
		t.Errorf("Missing = %d, want 2", len(diff.Missing))
	}
	if len(diff.Phantom) != 0 {
		t.Errorf("Phantom = %d, want 0", len(diff.Phantom))
	}
	if len(diff.Quantity) != 0 {
		t.Errorf("Quantity = %d, want 0", len(diff.Quantity))
	}
}

func TestDiffCarts_ItemsToEmpty(t *testing.T) {
	// Items local, remote empty → all phantom
	local := &model.Cart{Lines: []model.CartLine{
		{ItemID: 1, Quantity: 2},
		{ItemID: 2, Quantity: 1},
	}}

	diff := DiffCarts(local, model.NewCart())

	if len(diff.Missing) != 0 {
		t.Errorf("Missing = %d, want 0", len(diff.Missing))
	}
	if len(diff.Phantom) != 2 {
		t.Errorf("Phantom = %d, want 2", len(diff.Phantom))
	}
	if diff.Phantom[0].ItemID != 1 || diff.Phantom[1].ItemID != 2 {
		t.Errorf("Phantom order = %+v, want local line order", diff.Phantom)
	}
}

func TestDiffCarts_QuantityMismatch(t *testing.T) {
	local := &model.Cart{Lines: []model.CartLine{{ItemID: 1, Quantity: 2}}}
	remote := &model.Cart{Lines: []model.CartLine{{ItemID: 1, Quantity: 5}}}

	diff := DiffCarts(local, remote)

	if len(diff.Quantity) != 1 {
		t.Fatalf("Quantity = %d, want 1", len(diff.Quantity))
	}
	got := diff.Quantity[0]
	if got.ItemID != 1 || got.Local != 2 || got.Remote != 5 {
		t.Errorf("mismatch = %+v, want item 1 local 2 remote 5", got)
	}
}

func TestDiffCarts_NoChange(t *testing.T) {
	local := &model.Cart{Lines: []model.CartLine{
		{ItemID: 1, Quantity: 2},
		{ItemID: 2, Quantity: 1},
	}}
	remote := &model.Cart{Lines: []model.CartLine{
		{ItemID: 2, Quantity: 1},
		{ItemID: 1, Quantity: 2},
	}}

	diff := DiffCarts(local, remote)

	if !diff.IsEmpty() {
		t.Errorf("expected empty diff, got %+v", diff)
	}
}

func TestDiffCarts_Mixed(t *testing.T) {
	local := &model.Cart{Lines: []model.CartLine{
		{ItemID: 1, Quantity: 2}, // mismatch
		{ItemID: 2, Quantity: 1}, // same
		{ItemID: 3, Quantity: 1}, // phantom
	}}
	remote := &model.Cart{Lines: []model.CartLine{
		{ItemID: 1, Quantity: 3},
		{ItemID: 2, Quantity: 1},
		{ItemID: 4, Quantity: 1}, // missing
	}}

	diff := DiffCarts(local, remote)

	if len(diff.Missing) != 1 || diff.Missing[0].ItemID != 4 {
		t.Errorf("Missing = %+v, want item 4", diff.Missing)
	}
	if len(diff.Phantom) != 1 || diff.Phantom[0].ItemID != 3 {
		t.Errorf("Phantom = %+v, want item 3", diff.Phantom)
	}
	if len(diff.Quantity) != 1 || diff.Quantity[0].ItemID != 1 {
		t.Errorf("Quantity = %+v, want item 1", diff.Quantity)
	}
}

func TestDiffCarts_BothNil(t *testing.T) {
	if diff := DiffCarts(nil, nil); !diff.IsEmpty() {
		t.Errorf("DiffCarts(nil, nil) = %+v, want empty", diff)
	}
}
