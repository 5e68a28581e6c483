// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package jsonexec is a precompiled JSON encoder for values that share a
// shape.  A sample object (the "format") is compiled once into a Template:
// an alternating sequence of pre-serialized JSON fragments and field
// descriptors.  Executing the template against a live object emits the
// fragments verbatim and encodes only the field values, skipping the
// per-call key quoting and separator placement that a generic encoder
// repeats for every document.
//
// Output is byte-for-byte what encoding/json would produce (with HTML
// escaping disabled) for an ordered object holding the same values, with
// two exceptions carried over from JavaScript's JSON.stringify: NaN and
// infinities encode as null, and absent fields encode as the template's
// default text (null unless configured).
//
// Values
//
// Go maps have no key order, so formats are normally given as an Object
// (an ordered slice of key/value members), a bson.D, or a bson.Raw
// document.  Maps are accepted too and are walked in sorted key order,
// matching encoding/json.  At execution time any of those types, or any
// Lookuper, may be presented.  Field lookups never fail: extra keys are
// ignored, missing keys take the default, and values whose type differs
// from the sample are encoded generically.
//
// Constants and defaults
//
// WithConstants bakes fixed values into the literal fragments; those keys
// are never read from the live object.  WithDefault sets the text emitted
// for absent or undefined fields.
//
// Concurrency
//
// A Template is immutable once compiled and may be executed from many
// goroutines at once.  Cache compiles each named format at most once and
// shares the result.
package jsonexec
