package jsonexec

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type executeTestCase struct {
	label  string
	format any
	opts   []Option
	input  any
	output string
}

func testWithExecute(t *testing.T, cases []executeTestCase) {
	t.Helper()

	for _, c := range cases {
		c := c
		t.Run(c.label, func(t *testing.T) {
			t.Parallel()
			tmpl, err := Compile(c.format, c.opts...)
			if err != nil {
				t.Fatalf("compile error: %v", err)
			}
			got := tmpl.Execute(c.input)
			if got != c.output {
				t.Fatalf("Execute doesn't match expected:\nGot:    %s\nExpect: %s", got, c.output)
			}
		})
	}
}

// encodeWithStdlib is the reference encoding: encoding/json without HTML
// escaping.
func encodeWithStdlib(t testing.TB, v any) string {
	t.Helper()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		t.Fatalf("encoding/json error: %v", err)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// compareWithStdlib compiles v as its own format and checks that executing
// it matches encoding/json.
func compareWithStdlib(t testing.TB, v map[string]any) {
	t.Helper()
	tmpl, err := Compile(v)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	got := tmpl.Execute(v)
	expect := encodeWithStdlib(t, v)
	if got != expect {
		t.Fatalf("jsonexec doesn't match encoding/json:\njsonexec: %s\nstdlib:   %s", got, expect)
	}
}

// decodeJSON parses text into generic values for structural comparison.
func decodeJSON(t testing.TB, text string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		t.Fatalf("output is not valid JSON: %v\ntext: %s", err, text)
	}
	return v
}

func assertDecodesTo(t testing.TB, text string, expect any) {
	t.Helper()
	if diff := cmp.Diff(expect, decodeJSON(t, text)); diff != "" {
		t.Fatalf("decoded output mismatch (-expect +got):\n%s\ntext: %s", diff, text)
	}
}
