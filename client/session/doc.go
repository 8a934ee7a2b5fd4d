// Package session owns the client's single authoritative session: the bearer
// credential, the resolved identity, and the account collections derived from
// it (API keys, usage statistics, billing records).
//
// All mutation goes through the documented operation set; each operation is
// atomic with respect to observers. The credential is mirrored to a durable
// store (credfile) so it survives restarts; identity and the derived
// collections are re-resolved from the backend.
package session
