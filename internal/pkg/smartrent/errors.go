package smartrent

import (
	"fmt"

	"github.com/pkg/errors"
)

// Every error returned by this package wraps exactly one of these, test
// with errors.Is.
var (
	// ErrAuth covers bad credentials, expired tokens and non-2xx replies
	// to authenticated calls.
	ErrAuth = errors.New("smartrent: authentication failed")

	// ErrTransport covers connection and network failures.
	ErrTransport = errors.New("smartrent: transport failure")

	// ErrProtocol is a channel reply that was recognised but not ok.
	ErrProtocol = errors.New("smartrent: command rejected")

	// ErrParse is a malformed body on an otherwise successful response.
	ErrParse = errors.New("smartrent: malformed response")
)

// wrapped marks err as kind while keeping cause's message in the chain.
type wrapped struct {
	kind  error
	cause error
	msg   string
}

func (w *wrapped) Error() string {
	if w.cause != nil {
		return w.msg + ": " + w.cause.Error()
	}
	return w.msg
}

func (w *wrapped) Is(target error) bool { return target == w.kind }

func (w *wrapped) Unwrap() error { return w.cause }

func newError(kind error, cause error, format string, args ...interface{}) error {
	return errors.WithStack(&wrapped{
		kind:  kind,
		cause: cause,
		msg:   fmt.Sprintf(format, args...),
	})
}

func authError(format string, args ...interface{}) error {
	return newError(ErrAuth, nil, format, args...)
}

func transportError(cause error, format string, args ...interface{}) error {
	return newError(ErrTransport, cause, format, args...)
}

func parseError(cause error, format string, args ...interface{}) error {
	return newError(ErrParse, cause, format, args...)
}
