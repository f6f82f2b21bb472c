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

// Package hfs provides a concrete Hash Function Set (HFS) implementation.
// The IBLT engine treats the HFS as an opaque external collaborator: given a
// column index and a key it returns a non-negative integer, and it reports
// how many independent hash functions it carries. This package supplies one
// working implementation of that contract so the engine is usable on its
// own; nothing in iblt depends on this package's concrete type, only on the
// Interface below.
package hfs

import (
	"crypto/rand"
	"crypto/sha1"

	"github.com/dchest/siphash"
	"github.com/pkg/errors"
	"golang.org/x/crypto/pbkdf2"

	"github.com/nickva/iblt/bitstring"
)

// salt is a fixed, public domain-separation string, not a secret.
const salt = "iblt-hfs"

const pbkdf2Iterations = 4096

// Interface is what the IBLT engine consumes. i ranges over [0, Size()).
type Interface interface {
	Size() int
	ApplyVal(i int, key bitstring.Bitstring) uint64
}

type sipKey struct {
	k0, k1 uint64
}

// SipHFS is K independently keyed SipHash-2-4 instances, one per column;
// column i hashes the encoded key with siphash.Hash(key0, key1, data)
// under its own key pair.
type SipHFS struct {
	keys []sipKey
}

// New builds an HFS of size k with randomly generated keys, for callers
// that do not care about reproducible hashing.
func New(k int) (*SipHFS, error) {
	if k < 1 {
		return nil, errors.New("hfs: size must be >= 1")
	}
	raw := make([]byte, 16*k)
	if _, err := rand.Read(raw); err != nil {
		return nil, errors.Wrap(err, "hfs: generating random keys")
	}
	return &SipHFS{keys: keysFromBytes(raw, k)}, nil
}

// NewFromPassphrase derives k deterministic SipHash keys from a single
// passphrase via PBKDF2-HMAC-SHA1. Two HFS built from the same (k,
// passphrase) pair are identical, which lets two parties doing set
// reconciliation agree on a hash function set without exchanging it.
func NewFromPassphrase(k int, passphrase string) (*SipHFS, error) {
	if k < 1 {
		return nil, errors.New("hfs: size must be >= 1")
	}
	raw := pbkdf2.Key([]byte(passphrase), []byte(salt), pbkdf2Iterations, 16*k, sha1.New)
	return &SipHFS{keys: keysFromBytes(raw, k)}, nil
}

func keysFromBytes(raw []byte, k int) []sipKey {
	keys := make([]sipKey, k)
	for i := 0; i < k; i++ {
		chunk := raw[i*16 : i*16+16]
		keys[i] = sipKey{
			k0: beUint64(chunk[0:8]),
			k1: beUint64(chunk[8:16]),
		}
	}
	return keys
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, by := range b {
		v = v<<8 | uint64(by)
	}
	return v
}

// Size reports K, the number of independent hash functions.
func (h *SipHFS) Size() int {
	return len(h.keys)
}

// ApplyVal returns hfs(i, key), a non-negative integer. Encoding the key
// before hashing guarantees two bitstring.Bitstring values that compare
// Equal always hash identically, regardless of any internal representation
// differences.
func (h *SipHFS) ApplyVal(i int, key bitstring.Bitstring) uint64 {
	k := h.keys[i]
	return siphash.Hash(k.k0, k.k1, bitstring.Encode(key))
}
