package jsonexec

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.mongodb.org/mongo-driver/bson"
)

func TestCompileNotObject(t *testing.T) {
	t.Parallel()

	cases := []struct {
		label  string
		format any
	}{
		{label: "nil", format: nil},
		{label: "number", format: 1},
		{label: "string", format: "seven"},
		{label: "array", format: []any{1, 2}},
		{label: "bool", format: true},
	}

	for _, c := range cases {
		c := c
		t.Run(c.label, func(t *testing.T) {
			t.Parallel()
			_, err := Compile(c.format)
			if err == nil {
				t.Fatal("expected error but got nil")
			}
			if !errors.Is(err, ErrNotObject) {
				t.Errorf("expected ErrNotObject, got %v", err)
			}
			var ce *CompileError
			if !errors.As(err, &ce) {
				t.Errorf("expected a CompileError, got %T", err)
			}
		})
	}
}

func TestCompileDuplicateKey(t *testing.T) {
	t.Parallel()

	format := Object{
		{"a", 1},
		{"o", Object{{"b", 1}, {"b", 2}}},
	}
	_, err := Compile(format)
	if err == nil {
		t.Fatal("expected error but got nil")
	}
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("expected a CompileError, got %T", err)
	}
	if ce.Path() != "o" {
		t.Errorf("expected path 'o', got '%s'", ce.Path())
	}
	if !strings.Contains(err.Error(), "duplicate key 'b'") {
		t.Errorf("unexpected error text: %v", err)
	}
}

func TestMustCompilePanics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	MustCompile(42)
}

func TestTemplateShape(t *testing.T) {
	t.Parallel()

	cases := []struct {
		label  string
		format any
		opts   []Option
		keys   []string
	}{
		{
			label:  "empty",
			format: Object{},
			keys:   []string{},
		},
		{
			label:  "one key",
			format: Object{{"a", 1}},
			keys:   []string{"a"},
		},
		{
			label:  "insertion order",
			format: Object{{"z", 1}, {"a", 2}, {"m", 3}},
			keys:   []string{"z", "a", "m"},
		},
		{
			label:  "map order is sorted",
			format: map[string]any{"z": 1, "a": 2, "m": 3},
			keys:   []string{"a", "m", "z"},
		},
		{
			label:  "constants are not fields",
			format: Object{{"a", 1}, {"b", 2}, {"c", 3}},
			opts:   []Option{WithConstants(Constants{"b": "bee", "x": 1})},
			keys:   []string{"a", "c"},
		},
		{
			label:  "undefined constant stays dynamic",
			format: Object{{"a", 1}, {"b", 2}},
			opts:   []Option{WithConstants(Constants{"a": Undefined})},
			keys:   []string{"a", "b"},
		},
		{
			label:  "bson.D",
			format: bson.D{{Key: "y", Value: 1}, {Key: "x", Value: "s"}},
			keys:   []string{"y", "x"},
		},
	}

	for _, c := range cases {
		c := c
		t.Run(c.label, func(t *testing.T) {
			t.Parallel()
			tmpl, err := Compile(c.format, c.opts...)
			if err != nil {
				t.Fatalf("compile error: %v", err)
			}
			if diff := cmp.Diff(c.keys, tmpl.Keys()); diff != "" {
				t.Errorf("keys mismatch (-expect +got):\n%s", diff)
			}
			k := len(c.keys)
			if tmpl.NumFields() != k {
				t.Errorf("expected %d fields, got %d", k, tmpl.NumFields())
			}
			if tmpl.Len() != 2*k+1 {
				t.Errorf("expected sequence length %d, got %d", 2*k+1, tmpl.Len())
			}
		})
	}
}

func TestTemplateLiterals(t *testing.T) {
	t.Parallel()

	tmpl := MustCompile(
		Object{{"a", 1}, {"b", 2}, {"c", Object{{"d", true}}}},
		WithConstants(Constants{"b": "two"}),
	)
	expect := `["{\"a\":" a ",\"b\":\"two\",\"c\":" c["{\"d\":" d "}"] "}"]`
	if got := tmpl.String(); got != expect {
		t.Errorf("unexpected rendering:\nGot:    %s\nExpect: %s", got, expect)
	}
	if tmpl.Sub("c") == nil {
		t.Error("expected a sub-template for 'c'")
	}
	if tmpl.Sub("a") != nil {
		t.Error("expected no sub-template for scalar 'a'")
	}
	if tmpl.Sub("b") != nil {
		t.Error("expected no sub-template for constant 'b'")
	}
}

func TestDefaultText(t *testing.T) {
	t.Parallel()

	cases := []struct {
		label  string
		opts   []Option
		output string
	}{
		{label: "unset", output: "null"},
		{label: "number", opts: []Option{WithDefault(999)}, output: "999"},
		{label: "string", opts: []Option{WithDefault("-")}, output: `"-"`},
		{label: "needs escaping", opts: []Option{WithDefault("a\"b")}, output: `"a\"b"`},
		{label: "object", opts: []Option{WithDefault(Object{{"missing", true}})}, output: `{"missing":true}`},
		{label: "explicit null", opts: []Option{WithDefault(nil)}, output: "null"},
		{label: "undefined", opts: []Option{WithDefault(Undefined)}, output: "null"},
		{label: "unrepresentable", opts: []Option{WithDefault(func() {})}, output: "null"},
	}

	for _, c := range cases {
		c := c
		t.Run(c.label, func(t *testing.T) {
			t.Parallel()
			tmpl := MustCompile(Object{{"a", 1}}, c.opts...)
			if got := tmpl.DefaultText(); got != c.output {
				t.Errorf("expected default %s, got %s", c.output, got)
			}
		})
	}
}

// Keys and constants that use every preferred delimiter character must
// still split cleanly.
func TestDelimiterAvoidsKeysAndConstants(t *testing.T) {
	t.Parallel()

	format := Object{}
	live := Object{}
	expect := Object{}
	consts := Constants{}
	for i, r := range delimiterChars {
		key := string(r) + `"` + string(r)
		format = append(format, Member{key, 1})
		live = append(live, Member{key, i})
		expect = append(expect, Member{key, i})
	}
	format = append(format, Member{`\`, 1}, Member{"c", 1})
	live = append(live, Member{`\`, `"|"`}, Member{"c", "ignored"})
	expect = append(expect, Member{`\`, `"|"`}, Member{"c", `"` + delimiterChars + `"`})
	consts["c"] = `"` + delimiterChars + `"`

	tmpl, err := Compile(format, WithConstants(consts))
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	got := tmpl.Execute(live)
	want := string(AppendValue(nil, expect))
	if got != want {
		t.Fatalf("Execute doesn't match expected:\nGot:    %s\nExpect: %s", got, want)
	}
}

func TestDelimiterRune(t *testing.T) {
	t.Parallel()

	obj := Object{{"a|b", 1}}
	if r := delimiterRune(obj, make([][]byte, 1)); r != '~' {
		t.Errorf("expected '~', got %q", r)
	}

	obj = Object{{delimiterChars, 1}}
	if r := delimiterRune(obj, make([][]byte, 1)); r != 0x2500 {
		t.Errorf("expected U+2500, got %q", r)
	}

	obj = Object{{"k", 1}}
	consts := [][]byte{[]byte(delimiterChars + "─")}
	if r := delimiterRune(obj, consts); r != 0x2501 {
		t.Errorf("expected U+2501, got %q", r)
	}
}

func TestCompileFormatValuesIgnored(t *testing.T) {
	t.Parallel()

	// Two formats with the same shape but different sample values compile
	// to templates with identical output.
	a := MustCompile(Object{{"n", 1}, {"s", "x"}, {"o", Object{{"p", nil}}}})
	b := MustCompile(Object{{"n", 2.5}, {"s", nil}, {"o", Object{{"p", "q"}}}})
	live := Object{{"n", 7}, {"s", "str"}, {"o", Object{{"p", false}}}}
	if a.Execute(live) != b.Execute(live) {
		t.Fatalf("outputs differ: %s vs %s", a.Execute(live), b.Execute(live))
	}
}

func TestNestedConstants(t *testing.T) {
	t.Parallel()

	format := Object{
		{"a", 1},
		{"req", Object{{"method", "GET"}, {"url", "/"}}},
	}
	tmpl, err := Compile(format, WithConstants(Constants{
		"a":   "one",
		"req": Constants{"method": "POST"},
	}))
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	if diff := cmp.Diff([]string{"req"}, tmpl.Keys()); diff != "" {
		t.Errorf("keys mismatch (-expect +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"url"}, tmpl.Sub("req").Keys()); diff != "" {
		t.Errorf("nested keys mismatch (-expect +got):\n%s", diff)
	}

	live := Object{{"a", 111}, {"req", Object{{"method", "GET"}, {"url", "/x"}}}}
	expect := `{"a":"one","req":{"method":"POST","url":"/x"}}`
	if got := tmpl.Execute(live); got != expect {
		t.Errorf("Execute doesn't match expected:\nGot:    %s\nExpect: %s", got, expect)
	}
}

func TestNestedConstantsOnScalarIgnored(t *testing.T) {
	t.Parallel()

	tmpl := MustCompile(Object{{"a", 1}}, WithConstants(Constants{"a": Constants{"b": 1}}))
	if got := tmpl.Execute(Object{{"a", 2}}); got != `{"a":2}` {
		t.Errorf("unexpected output %s", got)
	}
}
