// Package transport is the HTTP boundary of the platform client.
//
// It performs a single JSON request/response exchange with the platform
// backend, optionally attaching the session's bearer credential, and
// classifies every failure into a typed error before anything reaches the
// strongly-typed session layer.
package transport
