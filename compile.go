// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package jsonexec

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Option configures compilation.
type Option func(*config)

type config struct {
	constants    Constants
	defaultValue any
	hasDefault   bool
	stringLimit  int
	fallback     Marshaler
}

func newConfig(opts []Option) config {
	cfg := config{
		stringLimit: DefaultStringLimit,
		fallback:    defaultFallback,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithConstants fixes the output value of the named format keys.  Keys not
// present in the format are ignored, as are constants whose value is
// Undefined.
func WithConstants(c Constants) Option {
	return func(cfg *config) { cfg.constants = c }
}

// WithDefault sets the value emitted for absent fields.  It is encoded
// once, at compile time.  The default default is null.
func WithDefault(v any) Option {
	return func(cfg *config) {
		cfg.defaultValue = v
		cfg.hasDefault = true
	}
}

// WithStringLimit sets the longest string copied without a full escaping
// pass.  It affects speed only, never output.
func WithStringLimit(n int) Option {
	return func(cfg *config) {
		if n >= 0 {
			cfg.stringLimit = n
		}
	}
}

// WithFallback replaces the marshaler used for values outside the value
// model.
func WithFallback(m Marshaler) Option {
	return func(cfg *config) {
		if m != nil {
			cfg.fallback = m
		}
	}
}

// Compile builds a template from a format.  The format must be an Object,
// bson.D, bson.Raw or string-keyed map; anything else is an error wrapping
// ErrNotObject.  Fields appear in the output in format key order, minus
// constants, which are folded into the literal fragments.
func Compile(format any, opts ...Option) (*Template, error) {
	cfg := newConfig(opts)

	enc := &encoder{
		defaultText: nullText,
		stringLimit: cfg.stringLimit,
		fallback:    cfg.fallback,
	}
	if cfg.hasDefault {
		enc.defaultText = enc.appendValue(nil, cfg.defaultValue, nil)
	}

	return compile(format, cfg.constants, enc, "")
}

// MustCompile is like Compile but panics on error.
func MustCompile(format any, opts ...Option) *Template {
	t, err := Compile(format, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

func compile(format any, constants Constants, enc *encoder, path string) (*Template, error) {
	if format == nil {
		return nil, newCompileError(path, "nil format", ErrNotObject)
	}
	obj, err := formatObject(format)
	if errors.Is(err, ErrNotObject) {
		return nil, newCompileError(path, fmt.Sprintf("unsupported format type %T", format), err)
	}
	if err != nil {
		return nil, newCompileError(path, "invalid format document", err)
	}

	// Encode constants once; a nil entry marks a dynamic key.
	constText := make([][]byte, len(obj))
	seen := make(map[string]struct{}, len(obj))
	for i, m := range obj {
		if _, ok := seen[m.Key]; ok {
			return nil, newCompileError(path, fmt.Sprintf("duplicate key '%s'", m.Key), nil)
		}
		seen[m.Key] = struct{}{}
		if c, ok := constants[m.Key]; ok && !isUndefined(c) {
			if _, nested := c.(Constants); !nested {
				constText[i] = enc.appendValue(nil, c, nil)
			}
		}
	}

	sep := delimiter(obj, constText)

	// Serialize a sample holding the constants and a placeholder in every
	// dynamic field, then cut it apart at the placeholders.
	sample := make(Object, len(obj))
	for i, m := range obj {
		if constText[i] != nil {
			sample[i] = Member{Key: m.Key, Value: constants[m.Key]}
		} else {
			sample[i] = Member{Key: m.Key, Value: sep}
		}
	}
	sampleJSON := enc.appendObject(nil, sample)
	literals := bytes.Split(sampleJSON, enc.appendString(nil, sep))

	t := &Template{
		literals: literals,
		fields:   make([]field, 0, len(literals)-1),
		enc:      enc,
	}
	for i, m := range obj {
		if constText[i] != nil {
			continue
		}
		f := field{key: m.Key, index: i}
		if isFormatObject(m.Value) {
			nested, _ := constants[m.Key].(Constants)
			f.sub, err = compile(m.Value, nested, enc, joinPath(path, m.Key))
			if err != nil {
				return nil, err
			}
		}
		t.fields = append(t.fields, f)
	}

	if len(t.literals) != len(t.fields)+1 {
		return nil, newCompileError(path, fmt.Sprintf("split sample into %d fragments for %d fields", len(t.literals), len(t.fields)), nil)
	}
	for _, l := range t.literals {
		t.size += len(l)
	}
	return t, nil
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

// Candidate delimiter characters.  None of them is JSON punctuation or
// needs escaping.
const delimiterChars = "|~^#!%*+=_"

// delimiter derives a placeholder that cannot occur anywhere in the
// encoded sample except as a placeholder: it is built from a separator
// character found in no key and no encoded constant, so the quoted
// placeholder (which starts with that character) can't begin inside any of
// them.
func delimiter(obj Object, constText [][]byte) string {
	sep := delimiterRune(obj, constText)

	var sb strings.Builder
	sb.WriteRune(sep)
	for i, m := range obj {
		sb.WriteString(m.Key)
		sb.WriteRune(sep)
		if constText[i] != nil {
			sb.Write(constText[i])
			sb.WriteRune(sep)
		}
	}
	sb.WriteRune(sep)
	return sb.String()
}

func delimiterRune(obj Object, constText [][]byte) rune {
	absent := func(r rune) bool {
		for i, m := range obj {
			if strings.ContainsRune(m.Key, r) || bytes.ContainsRune(constText[i], r) {
				return false
			}
		}
		return true
	}
	for _, r := range delimiterChars {
		if absent(r) {
			return r
		}
	}
	// Box drawing and beyond: printable, never escaped.  The texts are
	// finite, so the search ends.
	for r := rune(0x2500); r < utf8.MaxRune; r++ {
		if r >= 0xD800 && r <= 0xDFFF {
			continue
		}
		if absent(r) {
			return r
		}
	}
	return '|'
}
