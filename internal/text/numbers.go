package text

import (
	"fmt"
	"strconv"

	"github.com/wasmaot/wasmaot/internal/leb128"
	"github.com/wasmaot/wasmaot/internal/wasm"
)

func parseValueType(b []byte) (wasm.ValueType, error) {
	switch string(b) {
	case "i32":
		return wasm.ValueTypeI32, nil
	case "i64":
		return wasm.ValueTypeI64, nil
	case "f32":
		return wasm.ValueTypeF32, nil
	case "f64":
		return wasm.ValueTypeF64, nil
	case "funcref", "anyfunc":
		return wasm.ValueTypeFuncref, nil
	}
	return 0, fmt.Errorf("invalid value type: %s", b)
}

func parseUint32(b []byte) (uint32, error) {
	v, err := strconv.ParseUint(string(b), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid index: %s", b)
	}
	return uint32(v), nil
}

func parseInt64(b []byte) (int64, error) {
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer literal: %s", b)
	}
	return v, nil
}

func leb128Uint(v uint32) []byte  { return leb128.EncodeUint32(v) }
func leb128Int32(v int32) []byte { return leb128.EncodeInt32(v) }
func leb128Int64(v int64) []byte { return leb128.EncodeInt64(v) }

// leb128Uint32Fixed5 encodes v as an unsigned LEB128 value padded to exactly
// five bytes (the maximum width for a u32), so a placeholder written before
// an identifier is resolved can later be overwritten in place without
// shifting the surrounding instruction stream.
func leb128Uint32Fixed5(v uint32) [5]byte {
	var out [5]byte
	for i := 0; i < 5; i++ {
		out[i] = byte(v&0x7f) | 0x80
		v >>= 7
	}
	out[4] &^= 0x80
	return out
}
