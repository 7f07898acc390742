// Package checkpoint decorates errors with caller information so that a
// failure deep inside the parser can be traced back through the layers it
// crossed. Both the decorated error and every error attached along the way
// stay matchable with errors.Is and retrievable with errors.As.
package checkpoint

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"
)

type checkpoint struct {
	// err further describes this checkpoint, prev is the wrapped error.
	err  error
	prev error

	callerOk bool
	file     string
	line     int
}

// From wraps an error into a new checkpoint carrying the caller's file and
// line. It returns nil if err is nil.
func From(err error) error {
	if err == nil {
		return nil
	}
	if passthrough(err) {
		return err
	}

	return newCheckpoint(nil, err)
}

// Wrap creates a checkpoint from prev and attaches err as an additional
// description. It returns nil if prev is nil, so call sites can blindly wrap
// their happy path:
//  func load() error {
//  	err := step()
//  	return checkpoint.Wrap(err, ErrLoadFailed)
//  }
// Callers can then check errors.Is(err, ErrLoadFailed) as well as
// errors.Is against whatever step() returned.
func Wrap(prev, err error) error {
	if prev == nil {
		return nil
	}
	if passthrough(prev) {
		return prev
	}

	return newCheckpoint(err, prev)
}

// passthrough reports whether the error must not be wrapped at all.
// io.EOF and io.ErrUnexpectedEOF are compared by identity all over the
// ecosystem, see https://github.com/golang/go/issues/39155.
func passthrough(err error) bool {
	return err == io.EOF || err == io.ErrUnexpectedEOF
}

func newCheckpoint(err, prev error) error {
	// Skip newCheckpoint and its exported caller.
	_, file, line, ok := runtime.Caller(2)

	return &checkpoint{
		err:  err,
		prev: prev,

		callerOk: ok,
		file:     filepath.Base(file),
		line:     line,
	}
}

func (c *checkpoint) Error() string {
	location := "File: unknown"
	if c.callerOk {
		location = fmt.Sprintf("File: %s:%d", c.file, c.line)
	}

	prev := c.prev.Error()
	if _, ok := c.prev.(*checkpoint); !ok {
		prev = "File: unknown\n\t" + strings.ReplaceAll(prev, "\n", "\n\t")
	}

	if c.err == nil {
		return fmt.Sprintf("%s\n%s", location, prev)
	}
	return fmt.Sprintf("%s\n\t%v\n%s", location, c.err, prev)
}

func (c *checkpoint) Unwrap() error {
	return c.prev
}

func (c *checkpoint) Is(target error) bool {
	return errors.Is(c.err, target)
}

func (c *checkpoint) As(target interface{}) bool {
	return errors.As(c.err, target)
}
