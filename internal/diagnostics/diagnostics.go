// Package diagnostics accumulates the non-fatal findings a btf2json run
// produces — unresolved type references, anonymous members without
// names, un-backed forward declarations — and reports them as a single
// summary rather than failing the run.
package diagnostics

import (
	"fmt"
	"strings"

	"github.com/datawire/dlib/derror"
)

// Sink collects ConsistencyWarning-class findings during a build. It is
// not an error accumulator in the teacher's derror.MultiError sense
// (nothing here is fatal); Warnings exposes the same underlying slice
// type so a caller that does want to treat them as a hard failure can.
type Sink struct {
	Warnings derror.MultiError
}

func (s *Sink) Warnf(format string, args ...any) {
	s.Warnings = append(s.Warnings, fmt.Errorf(format, args...))
}

// Summary renders the warnings as one line: their count, followed by
// each warning's text (including the builder's missing-type report),
// separated by "; ".
func (s *Sink) Summary() string {
	if len(s.Warnings) == 0 {
		return ""
	}
	msgs := make([]string, len(s.Warnings))
	for i, w := range s.Warnings {
		msgs[i] = w.Error()
	}
	return fmt.Sprintf("%d diagnostic(s) reported during build: %s", len(s.Warnings), strings.Join(msgs, "; "))
}

// AsError returns the accumulated warnings as a single error, or nil if
// there are none. Useful for tests that want to assert on the exact set
// without going through Summary's human-readable count.
func (s *Sink) AsError() error {
	if len(s.Warnings) == 0 {
		return nil
	}
	return s.Warnings
}
