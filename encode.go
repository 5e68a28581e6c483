// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package jsonexec

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultStringLimit is the longest string, in bytes, that may be copied
// into the output without a full escaping pass.
const DefaultStringLimit = 150

var nullText = []byte("null")

// Marshaler encodes values that have no JSON counterpart in the value
// model, such as time.Time or driver-specific BSON types.  The frozen
// configurations of github.com/json-iterator/go satisfy it.
type Marshaler interface {
	Marshal(v any) ([]byte, error)
}

var defaultFallback Marshaler = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
}.Froze()

// encoder holds the per-template encoding settings.  It is shared by a
// template and all of its sub-templates and is never mutated after
// compilation.
type encoder struct {
	defaultText []byte
	stringLimit int
	fallback    Marshaler
}

var defaultEncoder = &encoder{
	defaultText: nullText,
	stringLimit: DefaultStringLimit,
	fallback:    defaultFallback,
}

// AppendValue appends the JSON encoding of v to dst with no template:
// objects are encoded member by member and absent values encode as null.
// The final buffer is returned, just like with append.
func AppendValue(dst []byte, v any) []byte {
	return defaultEncoder.appendValue(dst, v, nil)
}

// appendValue encodes v.  A non-nil sub is used for object-shaped values
// in place of generic encoding.
func (e *encoder) appendValue(dst []byte, v any, sub *Template) []byte {
	switch x := v.(type) {
	case nil, primitive.Null:
		return append(dst, "null"...)
	case undefined, primitive.Undefined:
		return append(dst, e.defaultText...)
	case string:
		return e.appendString(dst, x)
	case float64:
		return appendFloat(dst, x, 64)
	case int:
		return appendInt(dst, int64(x))
	case int64:
		return appendInt(dst, x)
	case bool:
		return appendBool(dst, x)
	case int8:
		return appendInt(dst, int64(x))
	case int16:
		return appendInt(dst, int64(x))
	case int32:
		return appendInt(dst, int64(x))
	case uint:
		return appendUint(dst, uint64(x))
	case uint8:
		return appendUint(dst, uint64(x))
	case uint16:
		return appendUint(dst, uint64(x))
	case uint32:
		return appendUint(dst, uint64(x))
	case uint64:
		return appendUint(dst, x)
	case float32:
		return appendFloat(dst, float64(x), 32)
	case json.Number:
		return e.appendNumber(dst, x)
	case Object:
		if sub != nil {
			return sub.appendJSON(dst, x)
		}
		return e.appendObject(dst, x)
	case bson.D:
		if x == nil {
			return append(dst, "null"...)
		}
		if sub != nil {
			return sub.appendJSON(dst, docRecord(x))
		}
		return e.appendDoc(dst, x)
	case bson.M:
		if x == nil {
			return append(dst, "null"...)
		}
		if sub != nil {
			return sub.appendJSON(dst, mapRecord(x))
		}
		return e.appendMap(dst, x)
	case map[string]any:
		if x == nil {
			return append(dst, "null"...)
		}
		if sub != nil {
			return sub.appendJSON(dst, mapRecord(x))
		}
		return e.appendMap(dst, x)
	case map[string]string:
		if x == nil {
			return append(dst, "null"...)
		}
		if sub != nil {
			return sub.appendJSON(dst, stringMapRecord(x))
		}
		return e.appendStringMap(dst, x)
	case bson.Raw:
		if x == nil {
			return append(dst, "null"...)
		}
		if sub != nil {
			return sub.appendJSON(dst, rawRecord(x))
		}
		return e.appendRawDocument(dst, x)
	case bson.RawValue:
		return e.appendRawValue(dst, x, sub)
	case []any:
		if x == nil {
			return append(dst, "null"...)
		}
		return e.appendArray(dst, x)
	case bson.A:
		if x == nil {
			return append(dst, "null"...)
		}
		return e.appendArray(dst, x)
	case []string:
		if x == nil {
			return append(dst, "null"...)
		}
		dst = append(dst, '[')
		for i, s := range x {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = e.appendString(dst, s)
		}
		return append(dst, ']')
	case []int:
		if x == nil {
			return append(dst, "null"...)
		}
		dst = append(dst, '[')
		for i, n := range x {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = appendInt(dst, int64(n))
		}
		return append(dst, ']')
	case []int64:
		if x == nil {
			return append(dst, "null"...)
		}
		dst = append(dst, '[')
		for i, n := range x {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = appendInt(dst, n)
		}
		return append(dst, ']')
	case []float64:
		if x == nil {
			return append(dst, "null"...)
		}
		dst = append(dst, '[')
		for i, f := range x {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = appendFloat(dst, f, 64)
		}
		return append(dst, ']')
	case []bool:
		if x == nil {
			return append(dst, "null"...)
		}
		dst = append(dst, '[')
		for i, b := range x {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = appendBool(dst, b)
		}
		return append(dst, ']')
	case []Object:
		if x == nil {
			return append(dst, "null"...)
		}
		dst = append(dst, '[')
		for i, o := range x {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = e.appendObject(dst, o)
		}
		return append(dst, ']')
	case Lookuper:
		if isNilRef(x) {
			return append(dst, "null"...)
		}
		if sub != nil {
			return sub.appendJSON(dst, lookuperRecord{x})
		}
	}
	return e.appendFallback(dst, v)
}

// appendFallback hands v to the fallback marshaler.  Values it cannot
// encode (functions, channels, cycles it detects) take the default.
func (e *encoder) appendFallback(dst []byte, v any) []byte {
	b, err := e.fallback.Marshal(v)
	if err != nil || len(b) == 0 {
		return append(dst, e.defaultText...)
	}
	return append(dst, b...)
}

func (e *encoder) appendObject(dst []byte, o Object) []byte {
	dst = append(dst, '{')
	for i := range o {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = e.appendString(dst, o[i].Key)
		dst = append(dst, ':')
		dst = e.appendValue(dst, o[i].Value, nil)
	}
	return append(dst, '}')
}

func (e *encoder) appendDoc(dst []byte, d bson.D) []byte {
	dst = append(dst, '{')
	for i := range d {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = e.appendString(dst, d[i].Key)
		dst = append(dst, ':')
		dst = e.appendValue(dst, d[i].Value, nil)
	}
	return append(dst, '}')
}

func (e *encoder) appendMap(dst []byte, m map[string]any) []byte {
	dst = append(dst, '{')
	for i, k := range sortedKeys(m) {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = e.appendString(dst, k)
		dst = append(dst, ':')
		dst = e.appendValue(dst, m[k], nil)
	}
	return append(dst, '}')
}

func (e *encoder) appendStringMap(dst []byte, m map[string]string) []byte {
	dst = append(dst, '{')
	for i, k := range sortedKeys(m) {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = e.appendString(dst, k)
		dst = append(dst, ':')
		dst = e.appendString(dst, m[k])
	}
	return append(dst, '}')
}

func (e *encoder) appendArray(dst []byte, a []any) []byte {
	dst = append(dst, '[')
	for i := range a {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = e.appendValue(dst, a[i], nil)
	}
	return append(dst, ']')
}

func (e *encoder) appendNumber(dst []byte, n json.Number) []byte {
	if n == "" {
		return append(dst, '0')
	}
	if !isValidNumber(string(n)) {
		return append(dst, e.defaultText...)
	}
	return append(dst, n...)
}

// isValidNumber reports whether s is a JSON number literal.
func isValidNumber(s string) bool {
	if s == "" {
		return false
	}
	if s[0] == '-' {
		s = s[1:]
		if s == "" {
			return false
		}
	}
	switch {
	case s[0] == '0':
		s = s[1:]
	case '1' <= s[0] && s[0] <= '9':
		s = skipDigits(s[1:])
	default:
		return false
	}
	if len(s) >= 2 && s[0] == '.' && isDigit(s[1]) {
		s = skipDigits(s[2:])
	}
	if len(s) >= 2 && (s[0] == 'e' || s[0] == 'E') {
		s = s[1:]
		if s[0] == '+' || s[0] == '-' {
			s = s[1:]
			if s == "" {
				return false
			}
		}
		if !isDigit(s[0]) {
			return false
		}
		s = skipDigits(s)
	}
	return s == ""
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }

func skipDigits(s string) string {
	for len(s) > 0 && isDigit(s[0]) {
		s = s[1:]
	}
	return s
}

func appendInt(dst []byte, n int64) []byte {
	return strconv.AppendInt(dst, n, 10)
}

func appendUint(dst []byte, n uint64) []byte {
	return strconv.AppendUint(dst, n, 10)
}

func appendBool(dst []byte, b bool) []byte {
	if b {
		return append(dst, "true"...)
	}
	return append(dst, "false"...)
}

// appendFloat formats like encoding/json (the ES6 number-to-string
// algorithm) except that NaN and infinities become null.
func appendFloat(dst []byte, f float64, bits int) []byte {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return append(dst, "null"...)
	}
	abs := math.Abs(f)
	fmt := byte('f')
	if abs != 0 {
		if bits == 64 && (abs < 1e-6 || abs >= 1e21) || bits == 32 && (float32(abs) < 1e-6 || float32(abs) >= 1e21) {
			fmt = 'e'
		}
	}
	dst = strconv.AppendFloat(dst, f, fmt, -1, bits)
	if fmt == 'e' {
		// clean up e-09 to e-9
		n := len(dst)
		if n >= 4 && dst[n-4] == 'e' && dst[n-3] == '-' && dst[n-2] == '0' {
			dst[n-2] = dst[n-1]
			dst = dst[:n-1]
		}
	}
	return dst
}

// appendString copies short plain ASCII strings straight into the output
// and sends everything else through the full escaper.  Both paths produce
// the same bytes.
func (e *encoder) appendString(dst []byte, s string) []byte {
	if len(s) <= e.stringLimit && isPlainASCII(s) {
		dst = append(dst, '"')
		dst = append(dst, s...)
		return append(dst, '"')
	}
	return appendQuoted(dst, s)
}

func isPlainASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c >= 0x7f || c == '"' || c == '\\' {
			return false
		}
	}
	return true
}

type quoter struct {
	buf bytes.Buffer
	enc *json.Encoder
}

var quoterPool = sync.Pool{
	New: func() any {
		q := &quoter{}
		q.enc = json.NewEncoder(&q.buf)
		q.enc.SetEscapeHTML(false)
		return q
	},
}

// appendQuoted escapes s exactly as encoding/json does with HTML escaping
// disabled.
func appendQuoted(dst []byte, s string) []byte {
	q := quoterPool.Get().(*quoter)
	q.buf.Reset()
	// Encoding a string cannot fail.
	_ = q.enc.Encode(s)
	b := q.buf.Bytes()
	dst = append(dst, b[:len(b)-1]...)
	quoterPool.Put(q)
	return dst
}
