package smsprovider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/raspisms/golang_services/internal/core_domain"
)

// Capability is an optional feature an adapter may declare.
type Capability string

const (
	CapabilityRead         Capability = "read"          // polling for inbound messages
	CapabilityFlash        Capability = "flash"         // flash (class 0) messages
	CapabilityStatusChange Capability = "status_change" // delivery status callbacks
	CapabilityReception    Capability = "reception"     // inbound message callbacks
)

// Field describes one configuration entry an adapter expects.
type Field struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Meta is the static description of an adapter, used by the configuration UI.
type Meta struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Fields       []Field      `json:"fields"`
	Capabilities []Capability `json:"capabilities"`
}

// Supports reports whether c is declared in m.
func (m Meta) Supports(c Capability) bool {
	for _, have := range m.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// StatusChange is a normalized delivery status report.
type StatusChange struct {
	UID    string                   `json:"uid"`
	Status core_domain.SendedStatus `json:"status"`
}

// Adapter wraps one carrier's API behind a common contract.
// Implementations return *Error values for every failure and never panic.
type Adapter interface {
	Meta() Meta
	Supports(c Capability) bool
	// Send submits one message and returns the carrier's message id.
	Send(ctx context.Context, destination, text string, flash bool) (uid string, err error)
	// Read returns inbound messages for adapters that poll. Others return nil.
	Read(ctx context.Context) ([]core_domain.IncomingSMS, error)
	// Test is a best-effort credentials and connectivity check.
	Test(ctx context.Context) bool
	StatusChangeCallback(r *http.Request) (*StatusChange, error)
	ReceptionCallback(r *http.Request) ([]core_domain.IncomingSMS, error)
}

// ReadCommitter is implemented by adapters whose Read must be acknowledged.
// Messages returned by Read are returned again until CommitRead is called with
// the number of leading messages that were stored.
type ReadCommitter interface {
	CommitRead(ctx context.Context, stored int) error
}

// ErrorKind classifies adapter failures.
type ErrorKind string

const (
	KindTransport   ErrorKind = "transport"   // network or HTTP level failure
	KindApplication ErrorKind = "application" // carrier answered with a failure code
	KindValidation  ErrorKind = "validation"  // bad configuration or input
)

// Error is the tagged failure returned by adapters.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

var ErrCapabilityUnsupported = errors.New("capability not supported by adapter")

func transportError(err error, format string, args ...any) *Error {
	return &Error{Kind: KindTransport, Message: fmt.Sprintf(format, args...), Err: err}
}

func applicationError(format string, args ...any) *Error {
	return &Error{Kind: KindApplication, Message: fmt.Sprintf(format, args...)}
}

func validationError(err error, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...), Err: err}
}

func unsupported(id string, c Capability) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf("adapter %s does not support %s", id, c), Err: ErrCapabilityUnsupported}
}

// IsKind reports whether err is an adapter *Error of kind k.
func IsKind(err error, k ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}
