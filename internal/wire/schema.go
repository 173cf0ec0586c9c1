package wire

import (
	"bytes"
	"fmt"
	"io"
	"reflect"
)

// Field binds a struct field, by name, to the codec that serializes it.
// Field order is the declaration order of the schema; it is part of the
// wire contract and must never be reordered across releases.
type Field struct {
	Name  string
	Codec Codec
}

// Schema is the declarative description of one message: its command
// string (empty for nested/composite types that are never a top-level
// message) and its ordered fields.
type Schema struct {
	Command string
	Fields  []Field
	// New constructs a zero-value instance of the schema's Go type,
	// returned as a pointer. Used by the framer to materialize decoded
	// messages; list elements are materialized from the list codec's
	// element type instead (reflect.New), not through New.
	New func() interface{}
}

// Encode walks the schema in declared order, reading each named field off
// obj (a pointer to the schema's struct type) and invoking its codec.
func (s *Schema) Encode(obj interface{}) ([]byte, error) {
	return s.encodeFields(obj, s.Fields)
}

// EncodeFields is like Encode but restricts output to the given subset of
// fields, still in the schema's declared order. Used by hash computations
// that exclude a trailing field (e.g. BlockHeader excludes TxnsCount).
func (s *Schema) EncodeFields(obj interface{}, names []string) ([]byte, error) {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var filtered []Field
	for _, f := range s.Fields {
		if want[f.Name] {
			filtered = append(filtered, f)
		}
	}
	return s.encodeFields(obj, filtered)
}

func (s *Schema) encodeFields(obj interface{}, fields []Field) ([]byte, error) {
	v := reflect.ValueOf(obj)
	if v.Kind() != reflect.Ptr {
		return nil, fmt.Errorf("wire: Encode requires a pointer, got %T", obj)
	}
	v = v.Elem()
	buf := new(bytes.Buffer)
	for _, f := range fields {
		if sc, ok := f.Codec.(structAwareCodec); ok {
			if err := sc.EncodeStruct(buf, v); err != nil {
				return nil, fmt.Errorf("encoding field %s: %w", f.Name, err)
			}
			continue
		}
		fv := v.FieldByName(f.Name)
		if !fv.IsValid() {
			return nil, fmt.Errorf("wire: field %s not found on %T", f.Name, obj)
		}
		if err := f.Codec.Encode(buf, fv); err != nil {
			return nil, fmt.Errorf("encoding field %s: %w", f.Name, err)
		}
	}
	return buf.Bytes(), nil
}

// Decode constructs no object of its own; it assumes obj is already a
// pointer to a zero-value (or caller-supplied) instance of the schema's
// type, and assigns each named field in declared order.
func (s *Schema) Decode(r *bytes.Reader, obj interface{}) error {
	v := reflect.ValueOf(obj)
	if v.Kind() != reflect.Ptr {
		return fmt.Errorf("wire: Decode requires a pointer, got %T", obj)
	}
	v = v.Elem()
	for _, f := range s.Fields {
		if sc, ok := f.Codec.(structAwareCodec); ok {
			if err := sc.DecodeStruct(r, v); err != nil {
				return fmt.Errorf("decoding field %s: %w", f.Name, err)
			}
			continue
		}
		fv := v.FieldByName(f.Name)
		if !fv.IsValid() {
			return fmt.Errorf("wire: field %s not found on %T", f.Name, obj)
		}
		if err := f.Codec.Decode(r, fv); err != nil {
			return fmt.Errorf("decoding field %s: %w", f.Name, err)
		}
	}
	return nil
}

// --- composite codecs ---

// nestedCodec recursively invokes a sub-object's own schema.
type nestedCodec struct{ schema *Schema }

// Nested builds a codec for a field whose type is itself described by a
// schema (e.g. Version.AddrRecv, typed NetworkAddress).
func Nested(schema *Schema) Codec { return nestedCodec{schema} }

func (c nestedCodec) Encode(buf *bytes.Buffer, field reflect.Value) error {
	b, err := c.schema.Encode(field.Addr().Interface())
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

func (c nestedCodec) Decode(r *bytes.Reader, field reflect.Value) error {
	return c.schema.Decode(r, field.Addr().Interface())
}

// listCodec writes VarInt(n) then n schema-encoded elements, and the
// mirror image on decode. Decode bounds n against the reader's remaining
// length before allocating anything, since n is attacker-controlled and
// can be as large as 2^64-1.
type listCodec struct {
	schema   *Schema
	elemType reflect.Type
}

// List builds a codec for a field whose type is a slice of structs, each
// described by elemSchema.
func List(elemSchema *Schema, elemType reflect.Type) Codec {
	return listCodec{schema: elemSchema, elemType: elemType}
}

func (c listCodec) Encode(buf *bytes.Buffer, field reflect.Value) error {
	n := field.Len()
	writeVarInt(buf, uint64(n))
	for i := 0; i < n; i++ {
		b, err := c.schema.Encode(field.Index(i).Addr().Interface())
		if err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
		buf.Write(b)
	}
	return nil
}

func (c listCodec) Decode(r *bytes.Reader, field reflect.Value) error {
	n, err := readVarInt(r)
	if err != nil {
		return err
	}
	// Every element consumes at least one byte on the wire, so a count
	// that exceeds the bytes actually remaining can never be satisfied.
	// Reject it before allocating anything — n comes straight off the
	// wire and can be as large as 2^64-1, which would otherwise panic
	// reflect.MakeSlice (converted to a negative int) or force a
	// multi-hundred-MB allocation ahead of the per-element reads that
	// would eventually fail anyway.
	if n > uint64(r.Len()) {
		return fmt.Errorf("%w: list count %d exceeds %d remaining bytes", ErrTruncated, n, r.Len())
	}
	slice := reflect.MakeSlice(field.Type(), 0, 0)
	for i := uint64(0); i < n; i++ {
		elemPtr := reflect.New(c.elemType)
		if err := c.schema.Decode(r, elemPtr.Interface()); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
		slice = reflect.Append(slice, elemPtr.Elem())
	}
	field.Set(slice)
	return nil
}

// blockLocatorCodec implements GetBlocks.BlockHashes: a raw concatenation
// of Hash256 values with no count of its own, sized instead by a sibling
// VarInt field already decoded earlier in the same schema. Preserved as
// specified rather than "fixed" to carry its own length prefix.
type blockLocatorCodec struct {
	field      string
	countField string
}

// BlockLocator builds a codec for a raw-concatenated hash list whose
// element count lives in a different, already-declared field.
func BlockLocator(field, countField string) Codec {
	return blockLocatorCodec{field: field, countField: countField}
}

// Encode/Decode exist only to satisfy the Codec interface; the real work
// happens in EncodeStruct/DecodeStruct, which the engine prefers.
func (c blockLocatorCodec) Encode(*bytes.Buffer, reflect.Value) error { return nil }
func (c blockLocatorCodec) Decode(*bytes.Reader, reflect.Value) error { return nil }

func (c blockLocatorCodec) EncodeStruct(buf *bytes.Buffer, v reflect.Value) error {
	fv := v.FieldByName(c.field)
	n := fv.Len()
	for i := 0; i < n; i++ {
		h := fv.Index(i).Interface().(Hash256)
		buf.Write(h[:])
	}
	return nil
}

func (c blockLocatorCodec) DecodeStruct(r *bytes.Reader, v reflect.Value) error {
	count := v.FieldByName(c.countField).Uint()
	// Each hash is exactly 32 bytes; a count that would require more
	// bytes than remain cannot be satisfied, so reject it up front
	// instead of allocating make([]Hash256, count) off an
	// attacker-controlled, unbounded VarInt.
	const hashSize = 32
	if count > uint64(r.Len())/hashSize {
		return fmt.Errorf("%w: block locator count %d exceeds %d remaining bytes", ErrTruncated, count, r.Len())
	}
	hashes := make([]Hash256, 0, count)
	for i := uint64(0); i < count; i++ {
		var h Hash256
		if _, err := io.ReadFull(r, h[:]); err != nil {
			return fmt.Errorf("%w: %v", ErrTruncated, err)
		}
		hashes = append(hashes, h)
	}
	v.FieldByName(c.field).Set(reflect.ValueOf(hashes))
	return nil
}
