// Package leb128 implements LEB128 (unsigned) and SLEB128 (signed)
// variable-length integer encoding, as used throughout the WebAssembly
// binary format for all section sizes, counts, and indices.
package leb128

import (
	"errors"
	"io"
)

// ErrOverflow is returned when a LEB128/SLEB128 sequence uses more
// continuation bytes than its target width allows (overlong: >5 bytes for
// u32, >10 for u64).
var ErrOverflow = errors.New("leb128: overflow")

const (
	maxVarintLenUint32 = 5
	maxVarintLenUint64 = 10
)

// DecodeUint32 reads an unsigned LEB128-encoded uint32 from r.
func DecodeUint32(r io.ByteReader) (uint32, uint64, error) {
	v, n, err := decodeUint(r, 32, maxVarintLenUint32)
	return uint32(v), n, err
}

// DecodeUint64 reads an unsigned LEB128-encoded uint64 from r.
func DecodeUint64(r io.ByteReader) (uint64, uint64, error) {
	return decodeUint(r, 64, maxVarintLenUint64)
}

func decodeUint(r io.ByteReader, width int, maxBytes int) (result uint64, bytesRead uint64, err error) {
	var shift uint
	for {
		b, e := r.ReadByte()
		if e != nil {
			return 0, bytesRead, e
		}
		bytesRead++
		if bytesRead > uint64(maxBytes) {
			return 0, bytesRead, ErrOverflow
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			if shift+7 > uint(width) {
				// high bits of the final byte beyond width must be zero.
				if uint64(b&0x7f)>>(uint(width)-shift) != 0 {
					return 0, bytesRead, ErrOverflow
				}
			}
			return result, bytesRead, nil
		}
		shift += 7
	}
}

// DecodeInt32 reads a signed SLEB128-encoded int32 from r.
func DecodeInt32(r io.ByteReader) (int32, uint64, error) {
	v, n, err := decodeInt(r, 32, maxVarintLenUint32)
	return int32(v), n, err
}

// DecodeInt64 reads a signed SLEB128-encoded int64 from r.
func DecodeInt64(r io.ByteReader) (int64, uint64, error) {
	return decodeInt(r, 64, maxVarintLenUint64)
}

func decodeInt(r io.ByteReader, width int, maxBytes int) (result int64, bytesRead uint64, err error) {
	var shift uint
	var b byte
	for {
		b, err = r.ReadByte()
		if err != nil {
			return 0, bytesRead, err
		}
		bytesRead++
		if bytesRead > uint64(maxBytes) {
			return 0, bytesRead, ErrOverflow
		}
		result |= int64(b&0x7f) << shift
		if b&0x80 == 0 && shift+7 > uint(width) {
			// bits of the final byte beyond width must all repeat its sign bit.
			valid := uint(width) - shift
			high := (b & 0x7f) >> valid
			if sign := (b >> (valid - 1)) & 1; (sign == 0 && high != 0) || (sign == 1 && high != 0x7f>>valid) {
				return 0, bytesRead, ErrOverflow
			}
		}
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	if shift < uint(width) && b&0x40 != 0 {
		result |= -1 << shift
	}
	return result, bytesRead, nil
}

// EncodeUint32 encodes v as unsigned LEB128.
func EncodeUint32(v uint32) []byte {
	return encodeUint(uint64(v))
}

// EncodeUint64 encodes v as unsigned LEB128.
func EncodeUint64(v uint64) []byte {
	return encodeUint(v)
}

func encodeUint(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

// EncodeInt32 encodes v as signed SLEB128.
func EncodeInt32(v int32) []byte {
	return encodeInt(int64(v))
}

// EncodeInt64 encodes v as signed SLEB128.
func EncodeInt64(v int64) []byte {
	return encodeInt(v)
}

func encodeInt(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			out = append(out, b)
			return out
		}
		out = append(out, b|0x80)
	}
}
