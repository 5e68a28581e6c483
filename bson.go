package jsonexec

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// ObjectFromRaw converts a BSON document into an Object, preserving
// document order.  Embedded documents become nested Objects and arrays
// become []any; scalar values are unmarshalled with the driver's default
// registry.
func ObjectFromRaw(raw bson.Raw) (Object, error) {
	elems, err := raw.Elements()
	if err != nil {
		return nil, fmt.Errorf("error reading bson document: %w", err)
	}
	o := make(Object, len(elems))
	for i, e := range elems {
		key, err := e.KeyErr()
		if err != nil {
			return nil, fmt.Errorf("error reading bson key: %w", err)
		}
		rv, err := e.ValueErr()
		if err != nil {
			return nil, fmt.Errorf("error reading bson value for '%s': %w", key, err)
		}
		v, err := rawValueToGo(rv)
		if err != nil {
			return nil, fmt.Errorf("error converting bson value for '%s': %w", key, err)
		}
		o[i] = Member{Key: key, Value: v}
	}
	return o, nil
}

func rawValueToGo(rv bson.RawValue) (any, error) {
	switch rv.Type {
	case bson.TypeEmbeddedDocument:
		doc, ok := rv.DocumentOK()
		if !ok {
			return nil, fmt.Errorf("invalid embedded document")
		}
		return ObjectFromRaw(doc)
	case bson.TypeArray:
		arr, ok := rv.ArrayOK()
		if !ok {
			return nil, fmt.Errorf("invalid array")
		}
		values, err := arr.Values()
		if err != nil {
			return nil, err
		}
		a := make([]any, len(values))
		for i, v := range values {
			a[i], err = rawValueToGo(v)
			if err != nil {
				return nil, err
			}
		}
		return a, nil
	case bson.TypeUndefined:
		return Undefined, nil
	case bson.TypeNull:
		return nil, nil
	}
	var v any
	if err := rv.Unmarshal(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// appendRawValue encodes one BSON value.  Types with a JSON counterpart
// are encoded directly; the rest go through the fallback marshaler.
func (e *encoder) appendRawValue(dst []byte, rv bson.RawValue, sub *Template) []byte {
	switch rv.Type {
	case bson.TypeDouble:
		if f, ok := rv.DoubleOK(); ok {
			return appendFloat(dst, f, 64)
		}
	case bson.TypeString:
		if s, ok := rv.StringValueOK(); ok {
			return e.appendString(dst, s)
		}
	case bson.TypeBoolean:
		if b, ok := rv.BooleanOK(); ok {
			return appendBool(dst, b)
		}
	case bson.TypeInt32:
		if n, ok := rv.Int32OK(); ok {
			return appendInt(dst, int64(n))
		}
	case bson.TypeInt64:
		if n, ok := rv.Int64OK(); ok {
			return appendInt(dst, n)
		}
	case bson.TypeNull:
		return append(dst, "null"...)
	case bson.TypeUndefined, 0:
		return append(dst, e.defaultText...)
	case bson.TypeEmbeddedDocument:
		if doc, ok := rv.DocumentOK(); ok {
			if sub != nil {
				return sub.appendJSON(dst, rawRecord(doc))
			}
			return e.appendRawDocument(dst, doc)
		}
	case bson.TypeArray:
		if arr, ok := rv.ArrayOK(); ok {
			return e.appendRawArray(dst, arr)
		}
	default:
		var v any
		if err := rv.Unmarshal(&v); err == nil {
			return e.appendFallback(dst, v)
		}
	}
	return append(dst, e.defaultText...)
}

func (e *encoder) appendRawDocument(dst []byte, doc bson.Raw) []byte {
	elems, err := doc.Elements()
	if err != nil {
		return append(dst, e.defaultText...)
	}
	dst = append(dst, '{')
	for i, el := range elems {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = e.appendString(dst, el.Key())
		dst = append(dst, ':')
		dst = e.appendRawValue(dst, el.Value(), nil)
	}
	return append(dst, '}')
}

func (e *encoder) appendRawArray(dst []byte, arr bson.Raw) []byte {
	values, err := arr.Values()
	if err != nil {
		return append(dst, e.defaultText...)
	}
	dst = append(dst, '[')
	for i, v := range values {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = e.appendRawValue(dst, v, nil)
	}
	return append(dst, ']')
}
