// Package identity owns the platform's user accounts: registration,
// credential verification, profile mutation, token versioning, and balance
// adjustments. Persistence is behind the Store interface with a Postgres
// implementation for production and an in-memory one for development and
// tests.
package identity
