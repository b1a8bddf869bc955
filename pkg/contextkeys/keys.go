// Package contextkeys provides centralized context key definitions
//
// All context keys used across the application are defined here to prevent
// typos and make key usage discoverable.
package contextkeys

// Key is the type for context keys to prevent collisions
type Key string

const (
	// RequestIDKey contains the request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: Logger, error responses
	// Type: string
	RequestIDKey Key = "request_id"
)
