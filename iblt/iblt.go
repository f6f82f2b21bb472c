// The MIT License (MIT)
//
// # Copyright (c) 2026 nickva
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package iblt implements an Invertible Bloom Lookup Table: a probabilistic
// associative structure supporting insertion, deletion, point lookup,
// membership testing, and full enumeration of its contents via peeling when
// the load factor is low enough.
package iblt

import (
	"math"
	"strconv"

	"github.com/golang-collections/collections/queue"
	"github.com/pkg/errors"

	"github.com/nickva/iblt/bitstring"
	"github.com/nickva/iblt/hfs"
	"github.com/nickva/iblt/primeoracle"
)

// Options controls column sizing at construction. Prime defaults on
// (DefaultOptions).
type Options struct {
	// Prime rounds col_size to the nearest prime >= requested_cells/K when
	// set. When false, requested_cells is rounded up to a multiple of K
	// instead and col_size is that total divided by K.
	Prime bool
}

// DefaultOptions returns the default option set (Prime enabled).
func DefaultOptions() Options {
	return Options{Prime: true}
}

// Entry is a decoded (key, value) pair, as returned by ListEntries.
type Entry struct {
	Key   bitstring.Bitstring
	Value int64
}

// IBLT is the invertible bloom lookup table itself: K columns of col_size
// cells each, plus the running item_count total. The zero value is not
// usable; construct with New or NewWithSize.
type IBLT struct {
	hfs       hfs.Interface
	colSize   int
	cellCount int
	itemCount int64
	table     [][]cell
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func ceilToMultiple(a, b int) int {
	return ceilDiv(a, b) * b
}

// New constructs a fresh, all-zero IBLT backed by the given hash function
// set. requestedCells is a hint for the total cell count; the actual
// cell_count = K * col_size, where col_size is derived from requestedCells
// per opts.
func New(h hfs.Interface, requestedCells int, opts Options) (*IBLT, error) {
	if h == nil || h.Size() < 1 {
		return nil, errors.WithStack(ErrInvalidConfiguration)
	}
	if requestedCells < 1 {
		return nil, errors.WithStack(ErrInvalidConfiguration)
	}

	k := h.Size()
	var colSize int
	if opts.Prime {
		base := ceilDiv(requestedCells, k)
		colSize = int(primeoracle.GetNearest(int64(base)))
	} else {
		colSize = ceilToMultiple(requestedCells, k) / k
	}

	return newEmpty(h, colSize), nil
}

// newEmpty allocates a fresh, all-zero IBLT of exactly colSize cells per
// column, bypassing New's requested_cells rounding. Used by New itself and
// by Deserialize, which restores an exact column size from the wire.
func newEmpty(h hfs.Interface, colSize int) *IBLT {
	k := h.Size()
	table := make([][]cell, k)
	for i := range table {
		col := make([]cell, colSize)
		for r := range col {
			col[r] = zeroCell()
		}
		table[i] = col
	}
	return &IBLT{hfs: h, colSize: colSize, cellCount: k * colSize, table: table}
}

// NewWithSize is a convenience constructor that builds a default hash
// function set of size k (see package hfs) and delegates to New.
func NewWithSize(k int, requestedCells int, opts Options) (*IBLT, error) {
	h, err := hfs.New(k)
	if err != nil {
		return nil, errors.Wrap(err, "iblt: constructing default hash function set")
	}
	return New(h, requestedCells, opts)
}

func (t *IBLT) row(i int, key bitstring.Bitstring) int {
	h := t.hfs.ApplyVal(i, key)
	return int(h % uint64(t.colSize))
}

func (t *IBLT) operate(key bitstring.Bitstring, value, sign int64) {
	enc := encodeKeyBits(key)
	for i := 0; i < t.hfs.Size(); i++ {
		r := t.row(i, key)
		t.table[i][r].apply(enc, value, sign)
	}
	t.itemCount += sign
}

// Insert adds (key, value) to the table: for each column, it locates the
// cell at the key's row and folds the contribution in with count += 1.
func (t *IBLT) Insert(key bitstring.Bitstring, value int64) {
	t.operate(key, value, 1)
}

// Delete is insert with the opposite sign: no check is made that (key,
// value) was previously inserted, since deletion is the inverse operation
// at the cell-algebra group level, not a verified removal.
func (t *IBLT) Delete(key bitstring.Bitstring, value int64) {
	t.operate(key, value, -1)
}

// Get returns the value associated with key if any of its K cells is pure,
// without verifying that the cell's decoded key actually equals key. Under
// a hash collision this can spuriously return another entry's value, or
// spuriously miss a present key if none of its cells happens to be pure.
func (t *IBLT) Get(key bitstring.Bitstring) (int64, error) {
	for i := 0; i < t.hfs.Size(); i++ {
		c := t.table[i][t.row(i, key)]
		if c.isPure() {
			return c.valSum, nil
		}
	}
	return 0, errors.WithStack(ErrNotFound)
}

// IsElement is a Bloom-filter-style membership test: true iff every one of
// key's K cells has count > 0. False positives are possible; false
// negatives are not, absent deletions of never-inserted entries.
func (t *IBLT) IsElement(key bitstring.Bitstring) bool {
	for i := 0; i < t.hfs.Size(); i++ {
		if t.table[i][t.row(i, key)].count <= 0 {
			return false
		}
	}
	return true
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

type pureFind struct {
	key   bitstring.Bitstring
	value int64
	sign  int64
}

// dedupKey identifies a (key, value) pair so the same entry, pure
// simultaneously in more than one of its K columns, is only queued once per
// scan.
func dedupKey(key bitstring.Bitstring, value int64) string {
	return string(bitstring.Encode(key)) + "|" + strconv.FormatInt(value, 10)
}

// ListEntries is the peeling decoder: repeatedly scan for pure cells, emit
// and delete every one found, and repeat until a scan
// turns up nothing new. It operates on a scratch copy so the receiver is
// left untouched, and bounds its work at 4*|item_count| (+4 for small
// tables) full scans so it always halts, even on an over-saturated table
// where peeling stalls before every insert has been recovered.
func (t *IBLT) ListEntries() []Entry {
	work := t.clone()
	var out []Entry

	limit := 4*abs64(work.itemCount) + 4

	for round := int64(0); round < limit; round++ {
		var finds []pureFind
		visited := make(map[string]bool)

		for i := range work.table {
			for r := range work.table[i] {
				c := work.table[i][r]
				if !c.isPure() {
					continue
				}
				key, err := bitstring.Decode(c.keySum.Bytes())
				if err != nil {
					continue
				}
				dk := dedupKey(key, c.valSum)
				if visited[dk] {
					continue
				}
				visited[dk] = true
				finds = append(finds, pureFind{key: key, value: c.valSum, sign: c.count})
			}
		}

		if len(finds) == 0 {
			break
		}

		pending := queue.New()
		for _, f := range finds {
			pending.Enqueue(f)
		}
		for pending.Len() > 0 {
			f := pending.Dequeue().(pureFind)
			out = append(out, Entry{Key: f.key, Value: f.value})
			work.operate(f.key, f.value, -f.sign)
		}
	}

	return out
}

// GetFPR reports the analytically expected false-positive rate of
// IsElement given current saturation: (1 - exp(-K*N/M))^K.
func (t *IBLT) GetFPR() float64 {
	k := float64(t.hfs.Size())
	n := float64(t.itemCount)
	m := float64(t.cellCount)
	if m == 0 {
		return 1
	}
	base := 1 - math.Exp(-k*n/m)
	return math.Pow(base, k)
}

// GetProp is the read-only integer accessor for item_count, col_size,
// cell_count and hash_count.
func (t *IBLT) GetProp(name string) (int64, error) {
	switch name {
	case "item_count":
		return t.itemCount, nil
	case "col_size":
		return int64(t.colSize), nil
	case "cell_count":
		return int64(t.cellCount), nil
	case "hash_count":
		return int64(t.hfs.Size()), nil
	default:
		return 0, errors.WithStack(ErrUnknownProperty)
	}
}

// GetPropFloat is GetProp's float-valued counterpart, for the one property
// that isn't naturally an integer: load_factor = item_count / cell_count.
func (t *IBLT) GetPropFloat(name string) (float64, error) {
	switch name {
	case "load_factor":
		return float64(t.itemCount) / float64(t.cellCount), nil
	default:
		return 0, errors.WithStack(ErrUnknownProperty)
	}
}

// Subtract computes the cell-wise group difference of t and other,
// returning a new IBLT whose pure cells, once peeled, describe the
// symmetric difference between the two tables' inserted sets. Both
// operands must share K and col_size.
func (t *IBLT) Subtract(other *IBLT) (*IBLT, error) {
	if t.hfs.Size() != other.hfs.Size() || t.colSize != other.colSize {
		return nil, errors.New("iblt: subtract requires matching hash_count and col_size")
	}

	out := t.clone()
	for i := range out.table {
		for r := range out.table[i] {
			out.table[i][r] = subtractCell(t.table[i][r], other.table[i][r])
		}
	}
	out.itemCount = t.itemCount - other.itemCount
	return out, nil
}

// clone returns a deep-enough copy of t: cell values are copied, and
// bitstring.Bitstring never mutates its backing array in place (every op
// allocates a fresh result), so sharing that array between clones is safe.
func (t *IBLT) clone() *IBLT {
	cp := &IBLT{
		hfs:       t.hfs,
		colSize:   t.colSize,
		cellCount: t.cellCount,
		itemCount: t.itemCount,
		table:     make([][]cell, len(t.table)),
	}
	for i := range t.table {
		cp.table[i] = make([]cell, len(t.table[i]))
		copy(cp.table[i], t.table[i])
	}
	return cp
}

// HashCount reports K, the number of independent hash functions backing t.
func (t *IBLT) HashCount() int {
	return t.hfs.Size()
}

// Equal reports whether t and other are componentwise identical: same
// shape and every cell byte-for-byte equal. Used to check the cell-algebra
// group laws hold across insert/delete sequences.
func (t *IBLT) Equal(other *IBLT) bool {
	if t.hfs.Size() != other.hfs.Size() || t.colSize != other.colSize {
		return false
	}
	if t.itemCount != other.itemCount {
		return false
	}
	for i := range t.table {
		for r := range t.table[i] {
			a, b := t.table[i][r], other.table[i][r]
			if a.count != b.count || a.keyHashSum != b.keyHashSum ||
				a.valSum != b.valSum || a.valHashSum != b.valHashSum ||
				!a.keySum.Equal(b.keySum) {
				return false
			}
		}
	}
	return true
}
