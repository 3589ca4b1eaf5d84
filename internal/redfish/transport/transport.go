// Package transport defines the protocol-agnostic surface for raw RESTful
// reads against a Redfish service, plus the retrying HTTP implementation.
//
// The engine above this layer is oblivious to whether a response comes
// from cache or wire; it only sees a Transport. This layer is also the
// sole retry site: the engine never retries, it skips the branch and
// moves on.
package transport

import (
	"context"
	"encoding/json"
	"errors"
)

// DefaultRootURI is the service root every Redfish service exposes.
const DefaultRootURI = "/redfish/v1"

// Result contains a successful REST response.
//
// The application-level success or failure is captured in Code; a
// Transport error is returned only when the operation failed to be
// sent or received at all.
type Result struct {
	// Code is the HTTP status code.
	Code int

	// Body is the raw response body. For Redfish resources this is a
	// JSON document.
	Body json.RawMessage

	// Headers returned in the response.
	Headers map[string]string
}

// Transport is the data-layer-protocol agnostic interface for raw GET
// operations against a Redfish service.
//
// Implementations must be safe for use from a single goroutine at a time;
// the HTTP implementation is additionally safe for concurrent use.
type Transport interface {
	// RootURI returns the service root path.
	RootURI() string

	// Get fetches the resource at path.
	Get(ctx context.Context, path string) (Result, error)
}

// ErrNullTransport is returned by every NullTransport operation.
var ErrNullTransport = errors.New("null transport")

// NullTransport is a placeholder implementation which gracefully fails
// all of its operations.
type NullTransport struct{}

// RootURI implements Transport.
func (NullTransport) RootURI() string { return DefaultRootURI }

// Get implements Transport.
func (NullTransport) Get(context.Context, string) (Result, error) {
	return Result{}, ErrNullTransport
}
