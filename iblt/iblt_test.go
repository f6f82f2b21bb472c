package iblt

import (
	"math/rand"
	"testing"

	"github.com/nickva/iblt/bitstring"
	"github.com/nickva/iblt/hfs"
)

func newTestTable(t *testing.T, k, cells int) *IBLT {
	t.Helper()
	h, err := hfs.NewFromPassphrase(k, "fixed-test-passphrase")
	if err != nil {
		t.Fatalf("hfs.NewFromPassphrase: %v", err)
	}
	tbl, err := New(h, cells, DefaultOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tbl
}

func entrySet(entries []Entry) map[string]int64 {
	out := make(map[string]int64, len(entries))
	for _, e := range entries {
		out[string(bitstring.Encode(e.Key))] = e.Value
	}
	return out
}

// S1: insert two entries into a table, list_entries returns exactly those
// two (in some order).
func TestSeedS1InsertAndList(t *testing.T) {
	tbl := newTestTable(t, 5, 100)
	tbl.Insert(bitstring.FromString("abc"), 42)
	tbl.Insert(bitstring.FromString("def"), 9000)

	got := entrySet(tbl.ListEntries())
	want := map[string]int64{
		string(bitstring.Encode(bitstring.FromString("abc"))): 42,
		string(bitstring.Encode(bitstring.FromString("def"))): 9000,
	}
	if len(got) != len(want) {
		t.Fatalf("ListEntries returned %d entries, want %d: %v", len(got), len(want), got)
	}
	for k, v := range want {
		gv, ok := got[k]
		if !ok {
			t.Fatalf("missing expected entry for key bytes %q", k)
		}
		if gv != v {
			t.Fatalf("entry value = %d, want %d", gv, v)
		}
	}
}

// S2: get of an inserted key returns its value.
func TestSeedS2Get(t *testing.T) {
	tbl := newTestTable(t, 5, 100)
	tbl.Insert(bitstring.FromString("abc"), 42)
	tbl.Insert(bitstring.FromString("def"), 9000)

	v, err := tbl.Get(bitstring.FromString("abc"))
	if err != nil {
		t.Fatalf("Get(abc): %v", err)
	}
	if v != 42 {
		t.Fatalf("Get(abc) = %d, want 42", v)
	}

	// lookup of an absent key is allowed to either miss or spuriously hit;
	// it must not panic or return a malformed result.
	_, err = tbl.Get(bitstring.FromString("ghi"))
	if err != nil && err != ErrNotFound && errCause(err) != ErrNotFound {
		t.Fatalf("Get(ghi) returned unexpected error: %v", err)
	}
}

func errCause(err error) error {
	type causer interface{ Cause() error }
	for err != nil {
		if c, ok := err.(causer); ok {
			err = c.Cause()
			continue
		}
		return err
	}
	return nil
}

// S3: is_element is true for an inserted key, false on an empty table.
func TestSeedS3IsElement(t *testing.T) {
	tbl := newTestTable(t, 5, 100)
	empty := newTestTable(t, 5, 100)
	tbl.Insert(bitstring.FromString("abc"), 42)

	if !tbl.IsElement(bitstring.FromString("abc")) {
		t.Fatalf("expected is_element(abc) = true on populated table")
	}
	if empty.IsElement(bitstring.FromString("abc")) {
		t.Fatalf("expected is_element(abc) = false on empty table")
	}
}

// S4: insert, delete, re-insert round-trips to a componentwise-equal table.
func TestSeedS4DeleteRoundTrip(t *testing.T) {
	tbl := newTestTable(t, 5, 100)
	tbl.Insert(bitstring.FromString("abc"), 42)
	tbl.Insert(bitstring.FromString("def"), 9000)

	snapshot := tbl.clone()

	tbl.Delete(bitstring.FromString("abc"), 42)
	tbl.Insert(bitstring.FromString("abc"), 42)

	if !tbl.Equal(snapshot) {
		t.Fatalf("delete-then-reinsert did not restore the original table")
	}
}

// P1: delete(insert(I,k,v),k,v) == I componentwise.
func TestP1Identity(t *testing.T) {
	tbl := newTestTable(t, 4, 50)
	before := tbl.clone()
	tbl.Insert(bitstring.FromString("k1"), 7)
	tbl.Delete(bitstring.FromString("k1"), 7)
	if !tbl.Equal(before) {
		t.Fatalf("insert then delete of the same pair did not restore original state")
	}
}

// P2: permutations of the same multiset of ops yield componentwise-equal
// tables.
func TestP2Commutativity(t *testing.T) {
	a := newTestTable(t, 4, 80)
	b := newTestTable(t, 4, 80)

	keys := []string{"alpha", "beta", "gamma", "delta"}
	for i, k := range keys {
		a.Insert(bitstring.FromString(k), int64(i*10))
	}
	// apply to b in reverse order
	for i := len(keys) - 1; i >= 0; i-- {
		b.Insert(bitstring.FromString(keys[i]), int64(i*10))
	}

	if !a.Equal(b) {
		t.Fatalf("insert order changed the resulting table")
	}
}

// P3: after a inserts and b deletes, item_count == a - b.
func TestP3Counting(t *testing.T) {
	tbl := newTestTable(t, 4, 80)
	for i := 0; i < 7; i++ {
		tbl.Insert(bitstring.FromString(string(rune('a'+i))), int64(i))
	}
	for i := 0; i < 3; i++ {
		tbl.Delete(bitstring.FromString(string(rune('a'+i))), int64(i))
	}
	n, err := tbl.GetProp("item_count")
	if err != nil {
		t.Fatalf("GetProp(item_count): %v", err)
	}
	if n != 4 {
		t.Fatalf("item_count = %d, want 4", n)
	}
}

// P5: an inserted, non-deleted key is always a member.
func TestP5MembershipSoundness(t *testing.T) {
	tbl := newTestTable(t, 6, 120)
	keys := []string{"one", "two", "three", "four", "five"}
	for i, k := range keys {
		tbl.Insert(bitstring.FromString(k), int64(i))
	}
	for _, k := range keys {
		if !tbl.IsElement(bitstring.FromString(k)) {
			t.Fatalf("IsElement(%q) = false, want true", k)
		}
	}
}

// P6: every (k,v) returned by ListEntries was inserted at least once more
// than it was deleted.
func TestP6ListingSoundness(t *testing.T) {
	tbl := newTestTable(t, 5, 100)
	inserted := map[string]int64{}
	for i := 0; i < 6; i++ {
		k := bitstring.FromString(string(rune('a' + i)))
		v := int64(i * 100)
		tbl.Insert(k, v)
		inserted[string(bitstring.Encode(k))] = v
	}

	for _, e := range tbl.ListEntries() {
		v, ok := inserted[string(bitstring.Encode(e.Key))]
		if !ok {
			t.Fatalf("listed entry for a key that was never inserted")
		}
		if v != e.Value {
			t.Fatalf("listed value %d does not match inserted value %d", e.Value, v)
		}
	}
}

// P7: at low load factor, list_entries recovers every inserted entry with
// high probability.
func TestP7ListingCompletenessAtLowLoad(t *testing.T) {
	const k = 4
	const numItems = 40
	const cells = 800 // load factor = 40/800 = 0.05, well under alpha ~ 0.1

	rnd := rand.New(rand.NewSource(7))
	tbl := newTestTable(t, k, cells)
	inserted := make(map[string]int64, numItems)
	for i := 0; i < numItems; i++ {
		key := bitstring.FromBytes(randomBytes(rnd, 12), 96)
		val := rnd.Int63n(1 << 30)
		tbl.Insert(key, val)
		inserted[string(bitstring.Encode(key))] = val
	}

	listed := entrySet(tbl.ListEntries())
	if len(listed) != len(inserted) {
		t.Fatalf("listed %d of %d inserted entries at low load factor", len(listed), len(inserted))
	}
	for k, v := range inserted {
		if listed[k] != v {
			t.Fatalf("recovered value mismatch for a low-load-factor entry")
		}
	}
}

func randomBytes(rnd *rand.Rand, n int) []byte {
	b := make([]byte, n)
	rnd.Read(b)
	return b
}

func TestNewRejectsInvalidConfiguration(t *testing.T) {
	h, _ := hfs.NewFromPassphrase(3, "x")
	if _, err := New(h, 0, DefaultOptions()); err == nil {
		t.Fatalf("expected error for requestedCells < 1")
	}
	if _, err := New(nil, 10, DefaultOptions()); err == nil {
		t.Fatalf("expected error for nil hfs")
	}
}

func TestGetPropUnknown(t *testing.T) {
	tbl := newTestTable(t, 4, 40)
	if _, err := tbl.GetProp("nonsense"); err == nil {
		t.Fatalf("expected ErrUnknownProperty")
	}
	if _, err := tbl.GetPropFloat("nonsense"); err == nil {
		t.Fatalf("expected ErrUnknownProperty")
	}
}

func TestGetFPRIncreasesWithLoad(t *testing.T) {
	tbl := newTestTable(t, 4, 200)
	low := tbl.GetFPR()
	for i := 0; i < 150; i++ {
		tbl.Insert(bitstring.FromBytes([]byte{byte(i), byte(i >> 8)}, 16), int64(i))
	}
	high := tbl.GetFPR()
	if high <= low {
		t.Fatalf("expected FPR to increase with load: low=%f high=%f", low, high)
	}
}

func TestSubtractRecoversSymmetricDifference(t *testing.T) {
	h, _ := hfs.NewFromPassphrase(5, "subtract-test")
	a, _ := New(h, 200, DefaultOptions())
	b, _ := New(h, 200, DefaultOptions())

	common := bitstring.FromString("shared")
	onlyA := bitstring.FromString("only-in-a")
	onlyB := bitstring.FromString("only-in-b")

	a.Insert(common, 1)
	a.Insert(onlyA, 2)

	b.Insert(common, 1)
	b.Insert(onlyB, 3)

	diff, err := a.Subtract(b)
	if err != nil {
		t.Fatalf("Subtract: %v", err)
	}

	entries := entrySet(diff.ListEntries())
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries in symmetric difference, got %d: %v", len(entries), entries)
	}
	if v, ok := entries[string(bitstring.Encode(onlyA))]; !ok || v != 2 {
		t.Fatalf("missing or wrong value for onlyA in diff")
	}
	if v, ok := entries[string(bitstring.Encode(onlyB))]; !ok || v != 3 {
		t.Fatalf("missing or wrong value for onlyB in diff")
	}
}

func TestSubtractMismatchedShapeErrors(t *testing.T) {
	a := newTestTable(t, 4, 80)
	b := newTestTable(t, 5, 80)
	if _, err := a.Subtract(b); err == nil {
		t.Fatalf("expected error subtracting tables with different hash_count")
	}
}
