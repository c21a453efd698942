// Package nbt writes values in the big-endian Named Binary Tag format.
package nbt

import (
	"encoding/binary"
	"io"
	"math"
	"reflect"

	"github.com/pkg/errors"
)

// Tag types.
const (
	TagEnd byte = iota
	TagByte
	TagShort
	TagInt
	TagLong
	TagFloat
	TagDouble
	TagByteArray
	TagString
	TagList
	TagCompound
	TagIntArray
	TagLongArray
)

// Marshal writes v to w as an unnamed root compound.
func Marshal(w io.Writer, v interface{}) error {
	return NewEncoder(w).Encode(v)
}

// Encoder writes NBT to an underlying writer.
type Encoder struct {
	w   io.Writer
	buf [8]byte
}

// NewEncoder returns an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes v, which must be a struct or a map with string keys.
func (e *Encoder) Encode(v interface{}) error {
	val := reflect.Indirect(reflect.ValueOf(v))
	if k := val.Kind(); k != reflect.Struct && k != reflect.Map {
		return errors.Errorf("nbt: root must be a compound, got %s", k)
	}
	return e.marshal(val, "")
}

func (e *Encoder) marshal(val reflect.Value, name string) error {
	if val.Kind() == reflect.Interface || val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return errors.Errorf("nbt: nil value for %q", name)
		}
		return e.marshal(val.Elem(), name)
	}

	tag, err := tagOf(val.Type())
	if err != nil {
		return errors.Wrapf(err, "field %q", name)
	}
	if err := e.writeHeader(tag, name); err != nil {
		return err
	}
	return e.writePayload(tag, val)
}

// tagOf maps a Go type to its NBT tag.
func tagOf(t reflect.Type) (byte, error) {
	switch t.Kind() {
	case reflect.Bool, reflect.Int8, reflect.Uint8:
		return TagByte, nil
	case reflect.Int16, reflect.Uint16:
		return TagShort, nil
	case reflect.Int32, reflect.Uint32:
		return TagInt, nil
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint64, reflect.Uintptr:
		return TagLong, nil
	case reflect.Float32:
		return TagFloat, nil
	case reflect.Float64:
		return TagDouble, nil
	case reflect.String:
		return TagString, nil
	case reflect.Struct:
		return TagCompound, nil
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return 0, errors.Errorf("nbt: map key must be a string, got %s", t.Key())
		}
		return TagCompound, nil
	case reflect.Slice, reflect.Array:
		switch t.Elem().Kind() {
		case reflect.Int8, reflect.Uint8:
			return TagByteArray, nil
		case reflect.Int32, reflect.Uint32:
			return TagIntArray, nil
		case reflect.Int64, reflect.Uint64:
			return TagLongArray, nil
		}
		return TagList, nil
	}
	return 0, errors.Errorf("nbt: unsupported type %s", t)
}

func (e *Encoder) writePayload(tag byte, val reflect.Value) error {
	switch tag {
	case TagByte:
		if val.Kind() == reflect.Bool {
			if val.Bool() {
				return e.writeByte(1)
			}
			return e.writeByte(0)
		}
		return e.writeByte(byte(integer(val)))
	case TagShort:
		return e.writeUint16(uint16(integer(val)))
	case TagInt:
		return e.writeUint32(uint32(integer(val)))
	case TagLong:
		return e.writeUint64(uint64(integer(val)))
	case TagFloat:
		return e.writeUint32(math.Float32bits(float32(val.Float())))
	case TagDouble:
		return e.writeUint64(math.Float64bits(val.Float()))
	case TagString:
		return e.writeString(val.String())
	case TagCompound:
		if val.Kind() == reflect.Map {
			return e.marshalMap(val)
		}
		return e.marshalStruct(val)
	case TagByteArray, TagIntArray, TagLongArray:
		n := val.Len()
		if err := e.writeUint32(uint32(n)); err != nil {
			return err
		}
		elem, _ := tagOf(val.Type().Elem())
		for i := 0; i < n; i++ {
			if err := e.writePayload(elem, val.Index(i)); err != nil {
				return err
			}
		}
		return nil
	case TagList:
		return e.marshalList(val)
	}
	return errors.Errorf("nbt: unknown tag %d", tag)
}

func (e *Encoder) marshalList(val reflect.Value) error {
	n := val.Len()
	elemType := val.Type().Elem()
	if elemType.Kind() == reflect.Interface {
		// Every element must share one concrete type.
		if n == 0 {
			if err := e.writeByte(TagEnd); err != nil {
				return err
			}
			return e.writeUint32(0)
		}
		elemType = val.Index(0).Elem().Type()
		for i := 1; i < n; i++ {
			if t := val.Index(i).Elem().Type(); t != elemType {
				return errors.Errorf("nbt: mixed types in list: %s and %s", elemType, t)
			}
		}
	}

	elem, err := tagOf(elemType)
	if err != nil {
		return err
	}
	if err := e.writeByte(elem); err != nil {
		return err
	}
	if err := e.writeUint32(uint32(n)); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		v := val.Index(i)
		if v.Kind() == reflect.Interface {
			v = v.Elem()
		}
		if err := e.writePayload(elem, v); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) marshalStruct(val reflect.Value) error {
	n := val.NumField()
	for i := 0; i < n; i++ {
		f := val.Type().Field(i)
		tag := f.Tag.Get("nbt")
		if (f.PkgPath != "" && !f.Anonymous) || tag == "-" {
			continue // unexported
		}

		name := f.Name
		if tag != "" {
			name = tag
		}
		if err := e.marshal(val.Field(i), name); err != nil {
			return err
		}
	}
	return e.writeByte(TagEnd)
}

func (e *Encoder) marshalMap(val reflect.Value) error {
	iter := val.MapRange()
	for iter.Next() {
		if err := e.marshal(iter.Value(), iter.Key().String()); err != nil {
			return err
		}
	}
	return e.writeByte(TagEnd)
}

func integer(val reflect.Value) int64 {
	switch val.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return int64(val.Uint())
	}
	return val.Int()
}

func (e *Encoder) writeHeader(tag byte, name string) error {
	if err := e.writeByte(tag); err != nil {
		return err
	}
	return e.writeString(name)
}

func (e *Encoder) writeString(s string) error {
	if len(s) > math.MaxUint16 {
		return errors.Errorf("nbt: string of %d bytes is too long", len(s))
	}
	if err := e.writeUint16(uint16(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(e.w, s)
	return err
}

func (e *Encoder) writeByte(b byte) error {
	e.buf[0] = b
	_, err := e.w.Write(e.buf[:1])
	return err
}

func (e *Encoder) writeUint16(n uint16) error {
	binary.BigEndian.PutUint16(e.buf[:2], n)
	_, err := e.w.Write(e.buf[:2])
	return err
}

func (e *Encoder) writeUint32(n uint32) error {
	binary.BigEndian.PutUint32(e.buf[:4], n)
	_, err := e.w.Write(e.buf[:4])
	return err
}

func (e *Encoder) writeUint64(n uint64) error {
	binary.BigEndian.PutUint64(e.buf[:8], n)
	_, err := e.w.Write(e.buf[:8])
	return err
}
