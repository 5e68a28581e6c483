package jsonexec

import "errors"

// ErrNotObject is wrapped by a CompileError when a format is not an
// object-shaped value.
var ErrNotObject = errors.New("format is not an object")

// CompileError records a failure to build a template from a format.  It
// names the key path at which compilation stopped, if any.
type CompileError struct {
	path string
	msg  string
	err  error
}

func newCompileError(path, msg string, err error) *CompileError {
	return &CompileError{path: path, msg: msg, err: err}
}

func (ce *CompileError) Error() string {
	s := "compile error: " + ce.msg
	if ce.path != "" {
		s += " at '" + ce.path + "'"
	}
	if ce.err != nil {
		s += ": " + ce.err.Error()
	}
	return s
}

// Unwrap returns the underlying error, if any.
func (ce *CompileError) Unwrap() error { return ce.err }

// Path returns the dotted key path of the sub-format that failed to
// compile.  It is empty for the top level.
func (ce *CompileError) Path() string { return ce.path }
