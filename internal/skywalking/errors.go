package skywalking

import "errors"

var (
	// ErrNotConnected is returned by Client operations issued before Connect or after Close.
	ErrNotConnected = errors.New("skywalking: client is not connected")
	// ErrBackend wraps errors reported by the SkyWalking GraphQL endpoint.
	ErrBackend = errors.New("skywalking: backend error")
	// ErrMalformedResponse is returned when a response does not match the expected shape.
	ErrMalformedResponse = errors.New("skywalking: malformed response")
)
