package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
)

// ErrorKind tells the retry loop what to do with a failed attempt.
type ErrorKind int

const (
	Permanent ErrorKind = iota
	Transient
	Canceled
)

func (k ErrorKind) String() string {
	switch k {
	case Transient:
		return "transient"
	case Canceled:
		return "canceled"
	default:
		return "permanent"
	}
}

// StatusError carries a remote status code (HTTP or API error code).
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("status %d", e.Code)
	}
	return fmt.Sprintf("status %d: %s", e.Code, e.Message)
}

// StatusCoder is implemented by errors that expose a remote status code.
type StatusCoder interface {
	StatusCode() int
}

func (e *StatusError) StatusCode() int { return e.Code }

// Classifier lets callers teach Classify about foreign error types.
type Classifier func(err error) (ErrorKind, bool)

var transientFragments = []string{"network", "timeout", "timed out", "connection", "429", "retry", "too many requests"}

// Classify maps err to an ErrorKind. Extra classifiers run first.
func Classify(err error, extra ...Classifier) ErrorKind {
	if err == nil {
		return Permanent
	}
	for _, fn := range extra {
		if fn == nil {
			continue
		}
		if kind, ok := fn(err); ok {
			return kind
		}
	}
	if errors.Is(err, context.Canceled) {
		return Canceled
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return Transient
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		return KindForStatus(sc.StatusCode())
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transient
	}
	msg := strings.ToLower(err.Error())
	for _, frag := range transientFragments {
		if strings.Contains(msg, frag) {
			return Transient
		}
	}
	return Permanent
}

// KindForStatus treats 429 and 5xx as transient.
func KindForStatus(code int) ErrorKind {
	if code == 429 || code >= 500 {
		return Transient
	}
	return Permanent
}
