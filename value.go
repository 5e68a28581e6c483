package jsonexec

import (
	"reflect"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Member is a single key/value pair of an Object.
type Member struct {
	Key   string
	Value any
}

// Object is an ordered JSON object.  It is the natural format type because
// template fields follow the order of the format's keys.
type Object []Member

// Lookup returns the value of the first member named key.
func (o Object) Lookup(key string) (any, bool) {
	return o.lookup(key, -1)
}

// lookup checks position hint before scanning, since live objects usually
// share the key order of the format they were compiled from.
func (o Object) lookup(key string, hint int) (any, bool) {
	if hint >= 0 && hint < len(o) && o[hint].Key == key {
		return o[hint].Value, true
	}
	for i := range o {
		if o[i].Key == key {
			return o[i].Value, true
		}
	}
	return nil, false
}

// MarshalJSON encodes the object generically, in member order.
func (o Object) MarshalJSON() ([]byte, error) {
	return defaultEncoder.appendObject(nil, o), nil
}

// Lookuper is implemented by record types that can be executed against a
// template without first being converted to an Object.  A false return
// means the key is absent and takes the template default.
type Lookuper interface {
	Lookup(key string) (any, bool)
}

// Constants maps format keys to values that are emitted verbatim instead
// of being read from the live object.  A value that is itself a Constants
// does not make its key constant; it scopes nested constants to the
// sub-format at that key.
type Constants map[string]any

type undefined struct{}

// Undefined marks a value as absent.  A field holding Undefined is encoded
// as the template default, just like a missing key.
var Undefined any = undefined{}

func isUndefined(v any) bool {
	switch v.(type) {
	case undefined, primitive.Undefined:
		return true
	}
	return false
}

// record is the lookup side of an object-shaped live value.  The index is
// the key's position in the format and serves as a lookup hint.
type record interface {
	lookup(key string, index int) (any, bool)
}

type docRecord bson.D

func (d docRecord) lookup(key string, index int) (any, bool) {
	if index >= 0 && index < len(d) && d[index].Key == key {
		return d[index].Value, true
	}
	for i := range d {
		if d[i].Key == key {
			return d[i].Value, true
		}
	}
	return nil, false
}

type mapRecord map[string]any

func (m mapRecord) lookup(key string, _ int) (any, bool) {
	v, ok := m[key]
	return v, ok
}

type stringMapRecord map[string]string

func (m stringMapRecord) lookup(key string, _ int) (any, bool) {
	v, ok := m[key]
	return v, ok
}

type rawRecord bson.Raw

func (r rawRecord) lookup(key string, _ int) (any, bool) {
	rv, err := bson.Raw(r).LookupErr(key)
	if err != nil {
		return nil, false
	}
	return rv, true
}

type lookuperRecord struct{ l Lookuper }

func (r lookuperRecord) lookup(key string, _ int) (any, bool) {
	return r.l.Lookup(key)
}

// noRecord stands in for non-object live values: every field is absent.
type noRecord struct{}

func (noRecord) lookup(string, int) (any, bool) { return nil, false }

// asRecord adapts a live value for field lookup.  It reports false for
// values that encode as a bare null.
func asRecord(v any) (record, bool) {
	switch x := v.(type) {
	case nil, primitive.Null, undefined, primitive.Undefined:
		return nil, false
	case Object:
		return x, true
	case bson.D:
		return docRecord(x), x != nil
	case bson.M:
		return mapRecord(x), x != nil
	case map[string]any:
		return mapRecord(x), x != nil
	case map[string]string:
		return stringMapRecord(x), x != nil
	case bson.Raw:
		return rawRecord(x), x != nil
	case bson.RawValue:
		switch x.Type {
		case bson.TypeNull, bson.TypeUndefined, 0:
			return nil, false
		case bson.TypeEmbeddedDocument:
			if doc, ok := x.DocumentOK(); ok {
				return rawRecord(doc), true
			}
		}
		return noRecord{}, true
	case Lookuper:
		if isNilRef(x) {
			return nil, false
		}
		return lookuperRecord{x}, true
	}
	if isNilRef(v) {
		return nil, false
	}
	return noRecord{}, true
}

// isNilRef reports whether v holds a nil pointer, map or slice, all of
// which encoding/json writes as null.  Lookup is never called on them.
func isNilRef(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}

// isFormatObject reports whether a sample value gets its own sub-template.
func isFormatObject(v any) bool {
	switch v.(type) {
	case Object, bson.D, bson.M, map[string]any, map[string]string, bson.Raw:
		return true
	}
	return false
}

// formatObject converts an object-shaped format into an ordered Object.
// Maps are ordered by key, as encoding/json orders them.
func formatObject(v any) (Object, error) {
	switch x := v.(type) {
	case Object:
		return x, nil
	case bson.D:
		o := make(Object, len(x))
		for i, e := range x {
			o[i] = Member{Key: e.Key, Value: e.Value}
		}
		return o, nil
	case bson.M:
		return mapObject(x), nil
	case map[string]any:
		return mapObject(x), nil
	case map[string]string:
		o := make(Object, 0, len(x))
		for _, k := range sortedKeys(x) {
			o = append(o, Member{Key: k, Value: x[k]})
		}
		return o, nil
	case bson.Raw:
		return ObjectFromRaw(x)
	}
	return nil, ErrNotObject
}

func mapObject(m map[string]any) Object {
	o := make(Object, 0, len(m))
	for _, k := range sortedKeys(m) {
		o = append(o, Member{Key: k, Value: m[k]})
	}
	return o
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
