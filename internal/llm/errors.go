package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
)

// RecoverableError marks a model failure worth retrying: timeouts, rate
// limits, 5xx responses and dropped connections.
type RecoverableError struct {
	Err error
}

func (e *RecoverableError) Error() string { return "recoverable llm error: " + e.Err.Error() }
func (e *RecoverableError) Unwrap() error { return e.Err }

// FatalError is returned for failures that would repeat on retry.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return "llm error: " + e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

var statusCodeRe = regexp.MustCompile(`status code: (\d{3})`)

// Classify wraps err as *RecoverableError or *FatalError. Errors that are
// already classified pass through. Cancellation of the caller's context is
// always fatal.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var rec *RecoverableError
	var fatal *FatalError
	if errors.As(err, &rec) || errors.As(err, &fatal) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return &FatalError{Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &RecoverableError{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &RecoverableError{Err: err}
	}

	msg := strings.ToLower(err.Error())
	if m := statusCodeRe.FindStringSubmatch(msg); m != nil {
		code, _ := strconv.Atoi(m[1])
		if code == 429 || code >= 500 {
			return &RecoverableError{Err: err}
		}
		return &FatalError{Err: err}
	}
	for _, marker := range []string{"rate limit", "connection reset", "connection refused", "timeout", "unexpected eof", "server overloaded"} {
		if strings.Contains(msg, marker) {
			return &RecoverableError{Err: err}
		}
	}
	return &FatalError{Err: err}
}

// IsRecoverable reports whether Classify would retry err.
func IsRecoverable(err error) bool {
	var rec *RecoverableError
	return errors.As(Classify(err), &rec)
}

func fatalf(format string, args ...any) error {
	return &FatalError{Err: fmt.Errorf(format, args...)}
}
