package positions

import "github.com/rickgao/reya-positions/internal/model"

// MergeResult summarizes what Merge did with a batch of updates.
type MergeResult struct {
	Inserted int
	Replaced int
	Stale    int // Dropped because a newer record was already held
	Removed  int // Held records absent from a full snapshot
}

// Merge upserts updates into existing keyed by (AccountID, Symbol).
//
// An update carrying a lower LastTradeSequenceNumber than the held record
// is dropped. Equal sequence numbers replace the held record, so replaying
// a snapshot is idempotent. Existing order is preserved and new keys are
// appended in arrival order. existing is not modified.
func Merge(existing, updates []model.Position) ([]model.Position, MergeResult) {
	var res MergeResult

	out := make([]model.Position, len(existing), len(existing)+len(updates))
	copy(out, existing)

	index := make(map[model.PositionKey]int, len(out))
	for i, p := range out {
		index[p.Key()] = i
	}

	for _, u := range updates {
		i, ok := index[u.Key()]
		if !ok {
			index[u.Key()] = len(out)
			out = append(out, u)
			res.Inserted++
			continue
		}
		if u.LastTradeSequenceNumber < out[i].LastTradeSequenceNumber {
			res.Stale++
			continue
		}
		out[i] = u
		res.Replaced++
	}

	return out, res
}

// Reconcile applies a full snapshot to existing. Keys in both are merged
// as in Merge, so a held record newer than the snapshot survives. Held keys
// missing from the snapshot are removed: the position was closed.
func Reconcile(existing, snapshot []model.Position) ([]model.Position, MergeResult) {
	merged, res := Merge(existing, snapshot)

	present := make(map[model.PositionKey]struct{}, len(snapshot))
	for _, p := range snapshot {
		present[p.Key()] = struct{}{}
	}

	out := merged[:0]
	for _, p := range merged {
		if _, ok := present[p.Key()]; !ok {
			res.Removed++
			continue
		}
		out = append(out, p)
	}
	return out, res
}
