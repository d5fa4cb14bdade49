package positions

import (
	"testing"

	"github.com/rickgao/reya-positions/internal/model"
)

func TestMerge_InsertAndReplace(t *testing.T) {
	existing := []model.Position{
		pos("ETHRUSDPERP", 1, "1", model.SideLong, 10),
		pos("BTCRUSDPERP", 1, "2", model.SideShort, 4),
	}
	updates := []model.Position{
		pos("ETHRUSDPERP", 1, "3", model.SideLong, 11),
		pos("SOLRUSDPERP", 1, "5", model.SideLong, 1),
	}

	got, res := Merge(existing, updates)

	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if res.Inserted != 1 || res.Replaced != 1 || res.Stale != 0 {
		t.Errorf("result = %+v, want 1 inserted, 1 replaced", res)
	}
	if got[0].Symbol != "ETHRUSDPERP" || !got[0].Qty.Equal(d("3")) {
		t.Errorf("got[0] = %s %s, want ETHRUSDPERP 3", got[0].Symbol, got[0].Qty)
	}
	if got[2].Symbol != "SOLRUSDPERP" {
		t.Errorf("got[2].Symbol = %q, want new key appended", got[2].Symbol)
	}
	if !existing[0].Qty.Equal(d("1")) {
		t.Error("Merge modified its input")
	}
}

func TestMerge_DropsStaleUpdate(t *testing.T) {
	existing := []model.Position{pos("ETHRUSDPERP", 1, "1", model.SideLong, 10)}

	got, res := Merge(existing, []model.Position{pos("ETHRUSDPERP", 1, "9", model.SideShort, 9)})

	if res.Stale != 1 {
		t.Errorf("Stale = %d, want 1", res.Stale)
	}
	if !got[0].Qty.Equal(d("1")) || got[0].Side != model.SideLong {
		t.Errorf("held = %s %s, want the newer record kept", got[0].Qty, got[0].Side)
	}
}

func TestMerge_DuplicateIsIdempotent(t *testing.T) {
	batch := []model.Position{
		pos("ETHRUSDPERP", 1, "1", model.SideLong, 10),
		pos("ETHRUSDPERP", 2, "4", model.SideShort, 3),
	}

	once, _ := Merge(nil, batch)
	twice, res := Merge(once, batch)

	if len(twice) != len(once) {
		t.Fatalf("len after replay = %d, want %d", len(twice), len(once))
	}
	if res.Replaced != 2 || res.Inserted != 0 {
		t.Errorf("replay result = %+v, want 2 replaced", res)
	}

	a := Aggregate(once, nil)["ETHRUSDPERP"]
	b := Aggregate(twice, nil)["ETHRUSDPERP"]
	if !a.NetQty.Equal(b.NetQty) {
		t.Errorf("NetQty after replay = %s, want %s", b.NetQty, a.NetQty)
	}
}

func TestMerge_OutOfOrderBatch(t *testing.T) {
	updates := []model.Position{
		pos("ETHRUSDPERP", 1, "5", model.SideLong, 7),
		pos("ETHRUSDPERP", 1, "2", model.SideLong, 6),
	}

	got, res := Merge(nil, updates)

	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if !got[0].Qty.Equal(d("5")) {
		t.Errorf("Qty = %s, want 5 from sequence 7", got[0].Qty)
	}
	if res.Stale != 1 {
		t.Errorf("Stale = %d, want 1", res.Stale)
	}
}

func TestMerge_SeparateAccountsSameSymbol(t *testing.T) {
	got, _ := Merge(
		[]model.Position{pos("ETHRUSDPERP", 1, "1", model.SideLong, 1)},
		[]model.Position{pos("ETHRUSDPERP", 2, "1", model.SideLong, 1)},
	)
	if len(got) != 2 {
		t.Errorf("len = %d, want 2 (one per account)", len(got))
	}
}

func TestReconcile(t *testing.T) {
	existing := []model.Position{
		pos("ETHRUSDPERP", 1, "1", model.SideLong, 10),
		pos("BTCRUSDPERP", 1, "2", model.SideShort, 4),
		pos("SOLRUSDPERP", 1, "5", model.SideLong, 3),
	}
	snapshot := []model.Position{
		pos("ETHRUSDPERP", 1, "7", model.SideLong, 9), // older than held
		pos("SOLRUSDPERP", 1, "6", model.SideLong, 3),
		pos("ARBRUSDPERP", 1, "1", model.SideLong, 1),
	}

	got, res := Reconcile(existing, snapshot)

	want := MergeResult{Inserted: 1, Replaced: 1, Stale: 1, Removed: 1}
	if res != want {
		t.Errorf("result = %+v, want %+v", res, want)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for _, p := range got {
		if p.Symbol == "BTCRUSDPERP" {
			t.Error("BTCRUSDPERP absent from snapshot but still held")
		}
	}
	if got[0].Symbol != "ETHRUSDPERP" || !got[0].Qty.Equal(d("1")) {
		t.Errorf("got[0] = %s %s, want held ETHRUSDPERP 1", got[0].Symbol, got[0].Qty)
	}
	if len(existing) != 3 || existing[1].Symbol != "BTCRUSDPERP" {
		t.Error("Reconcile modified its input")
	}
}

func TestReconcile_EmptySnapshotClearsAll(t *testing.T) {
	existing := []model.Position{pos("ETHRUSDPERP", 1, "1", model.SideLong, 10)}

	got, res := Reconcile(existing, nil)

	if len(got) != 0 || res.Removed != 1 {
		t.Errorf("got %d positions, result %+v, want none and 1 removed", len(got), res)
	}
}
