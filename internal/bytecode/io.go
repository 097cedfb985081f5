package bytecode

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
)

// writeU32/readU32 etc. implement the little-endian multi-byte
// integer/float encoding required by spec §4.5.

func writeU32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func writeI32(w io.Writer, v int32) error { return writeU32(w, uint32(v)) }
func readI32(r io.Reader) (int32, error) {
	v, err := readU32(r)
	return int32(v), err
}

func writeF32(w io.Writer, v float32) error { return writeU32(w, math.Float32bits(v)) }
func readF32(r io.Reader) (float32, error) {
	v, err := readU32(r)
	return math.Float32frombits(v), err
}

// writeShortString writes a UTF-8 string with a single-byte length
// prefix (0-255), used for the String value payload (spec §3: "length
// 0-255").
func writeShortString(w io.Writer, s string) error {
	if len(s) > 255 {
		return errors.Errorf("string value %q exceeds the 255-byte on-disk limit", s)
	}
	if _, err := w.Write([]byte{byte(len(s))}); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readShortString(r io.Reader) (string, error) {
	var lb [1]byte
	if _, err := io.ReadFull(r, lb[:]); err != nil {
		return "", err
	}
	buf := make([]byte, lb[0])
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// writeLongString writes a UTF-8 string with a 4-byte length prefix,
// used for WRITE literals, include paths, and (post-pass-substituted)
// expression text — none of which spec §3 bounds to 255 bytes.
func writeLongString(w io.Writer, s string) error {
	if err := writeU32(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readLongString(r io.Reader) (string, error) {
	n, err := readU32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeByte(w io.Writer, b byte) error {
	_, err := w.Write([]byte{b})
	return err
}

func readByte(r io.Reader) (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// WriteValue serializes a Value: kind tag byte followed by the
// kind-specific payload.
func WriteValue(w io.Writer, v Value) error {
	if err := writeByte(w, byte(v.Kind)); err != nil {
		return err
	}
	switch v.Kind {
	case KindBool:
		b := byte(0)
		if v.B {
			b = 1
		}
		return writeByte(w, b)
	case KindInt:
		return writeI32(w, v.I)
	case KindFloat:
		return writeF32(w, v.F)
	case KindString:
		return writeShortString(w, v.S)
	default:
		return errors.Errorf("cannot encode value of kind %v", v.Kind)
	}
}

// ReadValue deserializes a Value written by WriteValue.
func ReadValue(r io.Reader) (Value, error) {
	kb, err := readByte(r)
	if err != nil {
		return Value{}, err
	}
	kind := ValueKind(kb)
	switch kind {
	case KindBool:
		b, err := readByte(r)
		if err != nil {
			return Value{}, err
		}
		return Bool(b != 0), nil
	case KindInt:
		i, err := readI32(r)
		if err != nil {
			return Value{}, err
		}
		return Int(i), nil
	case KindFloat:
		f, err := readF32(r)
		if err != nil {
			return Value{}, err
		}
		return Float(f), nil
	case KindString:
		s, err := readShortString(r)
		if err != nil {
			return Value{}, err
		}
		return Str(s), nil
	default:
		return Value{}, errors.Errorf("unknown value kind tag %d", kb)
	}
}
