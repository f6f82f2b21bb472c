package iblt

import (
	"hash/crc32"
	"strconv"

	"github.com/nickva/iblt/bitstring"
)

// cell holds a signed count, a bitstring accumulator of XOR-combined
// encoded keys, an integer accumulator of XOR-combined values, and a
// checksum accumulator for each sum so a cell can recognize when it holds
// exactly one live contribution.
type cell struct {
	count      int64
	keySum     bitstring.Bitstring
	keyHashSum uint32
	valSum     int64
	valHashSum uint32
}

// zeroCell is a freshly initialized cell: count 0, keySum a single zero bit,
// the other accumulators 0.
func zeroCell() cell {
	return cell{keySum: bitstring.Zero(1)}
}

func checksumBitstring(b bitstring.Bitstring) uint32 {
	return crc32.ChecksumIEEE(b.Bytes())
}

// checksumInt renders v as its decimal text representation and CRC-32s
// that.
func checksumInt(v int64) uint32 {
	return crc32.ChecksumIEEE([]byte(strconv.FormatInt(v, 10)))
}

// encodeKeyBits wraps encode(key) back up as a bitstring so it can be fed to
// bin_xor; its byte length is always a whole number of bytes, so wrapping it
// at 8*len(bytes) bits round-trips exactly through Bitstring.Bytes().
func encodeKeyBits(key bitstring.Bitstring) bitstring.Bitstring {
	enc := bitstring.Encode(key)
	return bitstring.FromBytes(enc, 8*len(enc))
}

// isPure reports whether c holds exactly one live (or one phantom-deleted)
// contribution: count is +-1 and both checksums match their recomputed
// values.
func (c cell) isPure() bool {
	return (c.count == 1 || c.count == -1) &&
		checksumBitstring(c.keySum) == c.keyHashSum &&
		checksumInt(c.valSum) == c.valHashSum
}

func (c cell) empty() bool {
	return c.count == 0 && c.keySum.IsZero() && c.keyHashSum == 0 &&
		c.valSum == 0 && c.valHashSum == 0
}

// apply folds one (key, value) contribution into c with the given sign
// (+1 for insert, -1 for delete). Every accumulator but count uses XOR,
// which is its own inverse, so insert-then-delete of the same pair restores
// c byte-for-byte.
func (c *cell) apply(encKey bitstring.Bitstring, value int64, sign int64) {
	c.count += sign
	c.keySum = bitstring.BinXor(c.keySum, encKey)
	if c.keySum.IsZero() {
		// A fully cancelled key sum returns to zeroCell's single zero bit.
		c.keySum = bitstring.Zero(1)
	}
	c.keyHashSum ^= checksumBitstring(encKey)
	c.valSum ^= value
	c.valHashSum ^= checksumInt(value)
}

// subtractCell computes the cell-wise group difference of x and y: XOR for
// the bitstring/integer accumulators (XOR is its own inverse, so "subtract"
// and "combine" are the same operation), signed subtraction for count.
func subtractCell(x, y cell) cell {
	return cell{
		count:      x.count - y.count,
		keySum:     bitstring.BinXor(x.keySum, y.keySum),
		keyHashSum: x.keyHashSum ^ y.keyHashSum,
		valSum:     x.valSum ^ y.valSum,
		valHashSum: x.valHashSum ^ y.valHashSum,
	}
}
