// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package jsonexec

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"sync"
)

// Template is a compiled encoding plan: literal JSON fragments interleaved
// with field descriptors, always one more fragment than fields.  A template
// is immutable and safe for concurrent use.
type Template struct {
	literals [][]byte
	fields   []field
	enc      *encoder
	size     int
}

// field names a dynamic key.  sub is set when the format value at the key
// was an object, and owns that object's template.
type field struct {
	key   string
	index int
	sub   *Template
}

// Execute returns the JSON text for v.  It is shorthand for t.Execute(v).
func Execute(t *Template, v any) string {
	return t.Execute(v)
}

// Execute returns the JSON text for v.  A nil v (or any null) encodes as
// "null".  Values that are not objects encode with every field set to the
// default.
func (t *Template) Execute(v any) string {
	buf := getBuffer()
	buf.b = t.AppendJSON(buf.b, v)
	s := string(buf.b)
	putBuffer(buf)
	return s
}

// AppendJSON appends the JSON text for v to dst.  The final buffer is
// returned, just like with append.
func (t *Template) AppendJSON(dst []byte, v any) []byte {
	r, ok := asRecord(v)
	if !ok {
		return append(dst, "null"...)
	}
	return t.appendJSON(dst, r)
}

func (t *Template) appendJSON(dst []byte, r record) []byte {
	var i int
	for i = 0; i < len(t.fields); i++ {
		dst = append(dst, t.literals[i]...)
		f := &t.fields[i]
		v, ok := r.lookup(f.key, f.index)
		if !ok {
			dst = append(dst, t.enc.defaultText...)
			continue
		}
		dst = t.enc.appendValue(dst, v, f.sub)
	}
	return append(dst, t.literals[i]...)
}

// Encode writes the JSON text for v to w, followed by a newline, so
// successive calls produce newline-delimited JSON.
func (t *Template) Encode(w io.Writer, v any) error {
	buf := getBuffer()
	buf.b = t.AppendJSON(buf.b, v)
	buf.b = append(buf.b, '\n')
	_, err := w.Write(buf.b)
	putBuffer(buf)
	return err
}

// Bind pairs the template with a value so the pair can be handed to
// anything that accepts a json.Marshaler.  Note that encoding/json
// re-escapes HTML characters in marshaler output.
func (t *Template) Bind(v any) json.Marshaler {
	return bound{t: t, v: v}
}

type bound struct {
	t *Template
	v any
}

func (b bound) MarshalJSON() ([]byte, error) {
	return b.t.AppendJSON(make([]byte, 0, b.t.size+16*len(b.t.fields)), b.v), nil
}

// NumFields returns the number of dynamic fields at the top level.
func (t *Template) NumFields() int { return len(t.fields) }

// Len returns the length of the alternating fragment/field sequence,
// 2*NumFields()+1.
func (t *Template) Len() int { return len(t.literals) + len(t.fields) }

// Keys returns the top-level dynamic keys in output order.
func (t *Template) Keys() []string {
	keys := make([]string, len(t.fields))
	for i, f := range t.fields {
		keys[i] = f.key
	}
	return keys
}

// Sub returns the template compiled for the object-valued field key, or
// nil if key is not a dynamic object field.
func (t *Template) Sub(key string) *Template {
	for _, f := range t.fields {
		if f.key == key {
			return f.sub
		}
	}
	return nil
}

// DefaultText returns the encoded default.
func (t *Template) DefaultText() string { return string(t.enc.defaultText) }

// String renders the alternating sequence for debugging, e.g.
// ["{\"a\":" a "}"].  Sub-templates are shown in braces after their key.
func (t *Template) String() string {
	var sb strings.Builder
	t.writeTo(&sb)
	return sb.String()
}

func (t *Template) writeTo(sb *strings.Builder) {
	sb.WriteByte('[')
	for i, l := range t.literals {
		if i > 0 {
			f := t.fields[i-1]
			sb.WriteByte(' ')
			sb.WriteString(f.key)
			if f.sub != nil {
				f.sub.writeTo(sb)
			}
			sb.WriteByte(' ')
		}
		sb.WriteString(strconv.Quote(string(l)))
	}
	sb.WriteByte(']')
}

type buffer struct{ b []byte }

var bufferPool = sync.Pool{
	New: func() any { return &buffer{b: make([]byte, 0, 1024)} },
}

func getBuffer() *buffer {
	return bufferPool.Get().(*buffer)
}

// putBuffer drops oversized buffers rather than pinning them in the pool.
func putBuffer(buf *buffer) {
	if cap(buf.b) > 64<<10 {
		return
	}
	buf.b = buf.b[:0]
	bufferPool.Put(buf)
}
