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

// Package bitstring implements arbitrary-width bitwise algebra: XOR, OR and
// AND over bit sequences that are not required to be byte-aligned and are
// not bounded in length. It is the "component A" primitive the IBLT engine
// uses to XOR-accumulate keys inside a cell.
package bitstring

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/templexxx/xorsimd"
)

// ChunkBits is the chunk width used when walking two operands during a
// bitwise op, keeping a single op's working set bounded regardless of
// overall bitstring length.
const ChunkBits = 0x1FFFFC0

const chunkBytes = ChunkBits / 8

// Bitstring is an immutable, ordered sequence of n bits, little-endian
// within each byte (bit i lives at byte i/8, shifted by i%8). Any bits in
// the backing array beyond position n-1 are always zero; every constructor
// and op preserves that invariant.
type Bitstring struct {
	bits []byte
	n    int
}

func byteLen(n int) int {
	return (n + 7) / 8
}

func maskTrailing(b []byte, n int) {
	if len(b) == 0 {
		return
	}
	if rem := n % 8; rem != 0 {
		b[len(b)-1] &= byte(1<<uint(rem) - 1)
	}
}

// Zero returns the all-zero bitstring of length n.
func Zero(n int) Bitstring {
	if n < 0 {
		n = 0
	}
	return Bitstring{bits: make([]byte, byteLen(n)), n: n}
}

// FromBytes builds a bitstring of length n from the low n bits of data
// (little-endian within each byte, same as Bytes would return).
func FromBytes(data []byte, n int) Bitstring {
	if n < 0 {
		n = 0
	}
	out := make([]byte, byteLen(n))
	copy(out, data)
	maskTrailing(out, n)
	return Bitstring{bits: out, n: n}
}

// FromString treats the raw bytes of s as a bitstring of length 8*len(s).
func FromString(s string) Bitstring {
	return FromBytes([]byte(s), 8*len(s))
}

// Len returns the bit length of b.
func (b Bitstring) Len() int {
	return b.n
}

// Bytes returns the packed little-endian byte representation of b, with any
// unused high bits of the final byte zeroed.
func (b Bitstring) Bytes() []byte {
	out := make([]byte, len(b.bits))
	copy(out, b.bits)
	return out
}

// Bit returns bit i of b (0 or 1), or 0 if i is out of range.
func (b Bitstring) Bit(i int) int {
	if i < 0 || i >= b.n {
		return 0
	}
	return int(b.bits[i/8]>>uint(i%8)) & 1
}

// Equal reports whether a and b denote the same bit sequence (same length,
// same bits).
func (a Bitstring) Equal(b Bitstring) bool {
	if a.n != b.n {
		return false
	}
	for i := range a.bits {
		if a.bits[i] != b.bits[i] {
			return false
		}
	}
	return true
}

// IsZero reports whether every bit of b is 0.
func (b Bitstring) IsZero() bool {
	for _, by := range b.bits {
		if by != 0 {
			return false
		}
	}
	return true
}

type chunkOp func(dst, a, b []byte) int

// bytewiseOr/bytewiseAnd are the two ops xorsimd has no entry point for;
// xorsimd is XOR-only by API surface, so these stay hand-rolled loops.
func bytewiseOr(dst, a, b []byte) int {
	n := len(dst)
	if len(a) < n {
		n = len(a)
	}
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dst[i] = a[i] | b[i]
	}
	return n
}

func bytewiseAnd(dst, a, b []byte) int {
	n := len(dst)
	if len(a) < n {
		n = len(a)
	}
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dst[i] = a[i] & b[i]
	}
	return n
}

// applyChunked walks a and b (both already zero-extended to the same byte
// length) chunkBytes at a time, applying op to each chunk, so the width of
// a single op application is never bounded by a host integer size.
func applyChunked(a, b []byte, op chunkOp) []byte {
	total := len(a)
	out := make([]byte, total)
	for off := 0; off < total; off += chunkBytes {
		end := off + chunkBytes
		if end > total {
			end = total
		}
		op(out[off:end], a[off:end], b[off:end])
	}
	return out
}

func extend(b Bitstring, n int) []byte {
	out := make([]byte, byteLen(n))
	copy(out, b.bits)
	return out
}

func combine(a, b Bitstring, op chunkOp) Bitstring {
	n := a.n
	if b.n > n {
		n = b.n
	}
	ea := extend(a, n)
	eb := extend(b, n)
	out := applyChunked(ea, eb, op)
	maskTrailing(out, n)
	return Bitstring{bits: out, n: n}
}

// BinXor returns the bitwise XOR of a and b, zero-extending the shorter
// operand to length max(|a|,|b|) first. The result has that max length.
func BinXor(a, b Bitstring) Bitstring {
	return combine(a, b, func(dst, x, y []byte) int { return xorsimd.Bytes(dst, x, y) })
}

// BinOr returns the bitwise OR of a and b, zero-extended the same way.
func BinOr(a, b Bitstring) Bitstring {
	return combine(a, b, bytewiseOr)
}

// BinAnd returns the bitwise AND of a and b, zero-extended the same way.
func BinAnd(a, b Bitstring) Bitstring {
	return combine(a, b, bytewiseAnd)
}

// Encode serializes b into a self-describing byte sequence: a varint bit
// length followed by the raw packed bits, zero-padded to a byte boundary.
// Two equal bitstrings always produce byte-identical encodings.
func Encode(b Bitstring) []byte {
	head := make([]byte, binary.MaxVarintLen64)
	hn := binary.PutUvarint(head, uint64(b.n))
	out := make([]byte, 0, hn+len(b.bits))
	out = append(out, head[:hn]...)
	out = append(out, b.bits...)
	return out
}

// Decode inverts Encode: data must hold exactly one encoded bitstring and
// nothing else.
func Decode(data []byte) (Bitstring, error) {
	b, consumed, err := DecodePrefix(data)
	if err != nil {
		return Bitstring{}, err
	}
	if consumed != len(data) {
		return Bitstring{}, errors.New("bitstring: trailing bytes after payload")
	}
	return b, nil
}

// DecodePrefix decodes one bitstring from the start of data and reports how
// many bytes it consumed, so callers can decode a sequence of
// back-to-back encoded bitstrings.
func DecodePrefix(data []byte) (Bitstring, int, error) {
	n, hn := binary.Uvarint(data)
	if hn <= 0 {
		return Bitstring{}, 0, errors.New("bitstring: malformed length prefix")
	}
	rest := data[hn:]
	bn := byteLen(int(n))
	if len(rest) < bn {
		return Bitstring{}, 0, errors.New("bitstring: truncated payload")
	}
	return FromBytes(rest, int(n)), hn + bn, nil
}
