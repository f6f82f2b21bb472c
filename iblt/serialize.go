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

package iblt

import (
	"bytes"
	"encoding/binary"

	"github.com/golang/snappy"
	"github.com/pkg/errors"

	"github.com/nickva/iblt/bitstring"
	"github.com/nickva/iblt/hfs"
)

// Serialize exports a deterministic snapshot of t: a small header (hash
// count, column size, item count) followed by one record per non-empty
// cell, snappy-compressed. This is a value snapshot, not a persistence
// layer or wire protocol: it gives callers doing their own reconciliation
// something to exchange, compressing a buffer rather than a live
// connection.
func (t *IBLT) Serialize() ([]byte, error) {
	var buf bytes.Buffer

	if err := writeUint32(&buf, uint32(t.hfs.Size())); err != nil {
		return nil, errors.Wrap(err, "iblt: writing header")
	}
	if err := writeUint32(&buf, uint32(t.colSize)); err != nil {
		return nil, errors.Wrap(err, "iblt: writing header")
	}
	if err := writeInt64(&buf, t.itemCount); err != nil {
		return nil, errors.Wrap(err, "iblt: writing header")
	}

	for i := range t.table {
		for r, c := range t.table[i] {
			if c.empty() {
				continue
			}
			if err := writeUint32(&buf, uint32(i)); err != nil {
				return nil, err
			}
			if err := writeUint32(&buf, uint32(r)); err != nil {
				return nil, err
			}
			if err := writeInt64(&buf, c.count); err != nil {
				return nil, err
			}
			keySumBytes := bitstring.Encode(c.keySum)
			if err := writeUint32(&buf, uint32(len(keySumBytes))); err != nil {
				return nil, err
			}
			buf.Write(keySumBytes)
			if err := writeUint32(&buf, c.keyHashSum); err != nil {
				return nil, err
			}
			if err := writeInt64(&buf, c.valSum); err != nil {
				return nil, err
			}
			if err := writeUint32(&buf, c.valHashSum); err != nil {
				return nil, err
			}
		}
	}

	return snappy.Encode(nil, buf.Bytes()), nil
}

// Deserialize restores a table exported by Serialize, rehydrating it
// against the given hash function set. h must be the same HFS (or an
// equivalent one, e.g. hfs.NewFromPassphrase with the same passphrase and
// size) the table was built with. Deserialize itself has no way to verify
// that.
func Deserialize(data []byte, h hfs.Interface) (*IBLT, error) {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, errors.Wrap(err, "iblt: snappy decode")
	}
	r := bytes.NewReader(raw)

	hashCount, err := readUint32(r)
	if err != nil {
		return nil, errors.Wrap(err, "iblt: reading header")
	}
	if int(hashCount) != h.Size() {
		return nil, errors.Errorf("iblt: snapshot hash_count %d does not match hfs size %d", hashCount, h.Size())
	}
	colSize, err := readUint32(r)
	if err != nil {
		return nil, errors.Wrap(err, "iblt: reading header")
	}
	itemCount, err := readInt64(r)
	if err != nil {
		return nil, errors.Wrap(err, "iblt: reading header")
	}

	out := newEmpty(h, int(colSize))
	out.itemCount = itemCount

	for r.Len() > 0 {
		i, err := readUint32(r)
		if err != nil {
			return nil, errors.Wrap(err, "iblt: truncated record")
		}
		row, err := readUint32(r)
		if err != nil {
			return nil, errors.Wrap(err, "iblt: truncated record")
		}
		count, err := readInt64(r)
		if err != nil {
			return nil, errors.Wrap(err, "iblt: truncated record")
		}
		keyLen, err := readUint32(r)
		if err != nil {
			return nil, errors.Wrap(err, "iblt: truncated record")
		}
		keyBuf := make([]byte, keyLen)
		if _, err := readFull(r, keyBuf); err != nil {
			return nil, errors.Wrap(err, "iblt: truncated record")
		}
		keySum, err := bitstring.Decode(keyBuf)
		if err != nil {
			return nil, errors.Wrap(err, "iblt: decoding keySum")
		}
		keyHashSum, err := readUint32(r)
		if err != nil {
			return nil, errors.Wrap(err, "iblt: truncated record")
		}
		valSum, err := readInt64(r)
		if err != nil {
			return nil, errors.Wrap(err, "iblt: truncated record")
		}
		valHashSum, err := readUint32(r)
		if err != nil {
			return nil, errors.Wrap(err, "iblt: truncated record")
		}

		if int(i) >= len(out.table) || int(row) >= len(out.table[i]) {
			return nil, errors.Errorf("iblt: record (%d,%d) out of range", i, row)
		}
		out.table[i][row] = cell{
			count:      count,
			keySum:     keySum,
			keyHashSum: keyHashSum,
			valSum:     valSum,
			valHashSum: valHashSum,
		}
	}

	return out, nil
}

func writeUint32(buf *bytes.Buffer, v uint32) error {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	_, err := buf.Write(tmp[:])
	return err
}

func writeInt64(buf *bytes.Buffer, v int64) error {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], uint64(v))
	_, err := buf.Write(tmp[:])
	return err
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var tmp [4]byte
	if _, err := readFull(r, tmp[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(tmp[:]), nil
}

func readInt64(r *bytes.Reader) (int64, error) {
	var tmp [8]byte
	if _, err := readFull(r, tmp[:]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(tmp[:])), nil
}

func readFull(r *bytes.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
