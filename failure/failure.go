// Package failure implements the exhaustive validation model of the kernel
// and rollup stages: every assertion is checked, every failed one recorded,
// and the stage output is only usable when nothing was recorded.
package failure

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Failure is one failed assertion.
type Failure struct {
	Code   *Code
	Detail string
}

// Kind returns the class of the failure.
func (f Failure) Kind() Kind {
	if f.Code == nil {
		return KindUnknown
	}
	return f.Code.Kind
}

func (f Failure) Error() string {
	if f.Detail == "" {
		return f.Code.Error()
	}
	return fmt.Sprintf("%s (%s)", f.Code.Error(), f.Detail)
}

// Unwrap exposes the code so errors.Is(err, failure.ErrX) works.
func (f Failure) Unwrap() error { return f.Code }

// Is matches a failure against its Kind.
func (f Failure) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && f.Kind() == k
}

// List is the ordered set of failures recorded by one stage invocation.
type List []Failure

func (l List) Error() string {
	msgs := make([]string, len(l))
	for i, f := range l {
		msgs[i] = f.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap returns every failure so errors.Is and errors.As traverse them.
func (l List) Unwrap() []error {
	errs := make([]error, len(l))
	for i, f := range l {
		errs[i] = f
	}
	return errs
}

// First returns the failure that decided the stage outcome.
func (l List) First() (Failure, bool) {
	if len(l) == 0 {
		return Failure{}, false
	}
	return l[0], true
}

// Kinds returns the distinct kinds present, in first-seen order.
func (l List) Kinds() []Kind {
	var kinds []Kind
	seen := map[Kind]bool{}
	for _, f := range l {
		if !seen[f.Kind()] {
			seen[f.Kind()] = true
			kinds = append(kinds, f.Kind())
		}
	}
	return kinds
}

// AsList extracts the failure list carried by err, if any.
func AsList(err error) (List, bool) {
	var l List
	if errors.As(err, &l) {
		return l, true
	}
	return nil, false
}

// Collector records failures of one stage invocation.
type Collector struct {
	log  zerolog.Logger
	list List
}

// NewCollector returns a collector logging every failure with log.
func NewCollector(log zerolog.Logger) *Collector {
	return &Collector{log: log}
}

// Add records a failure.
func (c *Collector) Add(code *Code, format string, args ...any) {
	f := Failure{Code: code, Detail: fmt.Sprintf(format, args...)}
	c.log.Warn().Str("code", code.ID()).Str("kind", code.Kind.String()).Msg(f.Error())
	c.list = append(c.list, f)
}

// Check records a failure when ok is false and returns ok, so callers can
// skip work that depends on the assertion while still checking the rest.
func (c *Collector) Check(ok bool, code *Code, format string, args ...any) bool {
	if !ok {
		c.Add(code, format, args...)
	}
	return ok
}

// Merge records every failure carried by err. Errors that are not failure
// lists are recorded as malformed input.
func (c *Collector) Merge(err error) {
	if err == nil {
		return
	}
	if l, ok := AsList(err); ok {
		c.list = append(c.list, l...)
		return
	}
	var f Failure
	if errors.As(err, &f) {
		c.list = append(c.list, f)
		return
	}
	c.Add(ErrWitnessShape, "%v", err)
}

// OK reports whether nothing failed so far.
func (c *Collector) OK() bool { return len(c.list) == 0 }

// Failures returns a copy of the recorded failures.
func (c *Collector) Failures() List {
	l := make(List, len(c.list))
	copy(l, c.list)
	return l
}

// Err returns the recorded failures as an error, or nil if none.
func (c *Collector) Err() error {
	if len(c.list) == 0 {
		return nil
	}
	return c.Failures()
}
