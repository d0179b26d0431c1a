// Package negotiation handles client version negotiation and the structured
// headers exchanged with cart clients.
//
// Clients announce themselves with a Cartsync-Client header, an RFC 8941
// dictionary such as:
//
//	Cartsync-Client: version="v1.2.0", name="cartctl"
//
// The header is optional. When present it must parse and its version must be
// compatible with the server's (same major, not newer). Cart reads report
// whether they were served from the mirror with an RFC 9211 Cache-Status
// header.
package negotiation

// ClientInfo is the parsed Cartsync-Client header.
type ClientInfo struct {
	// Version is the client's semantic version with a leading "v".
	Version string
	// Name identifies the client program; optional.
	Name string
}

// contextKey is the type for context values to avoid collisions
type contextKey string

// ClientContextKey is the context key for storing ClientInfo
const ClientContextKey contextKey = "cartsync.client"

// ClientHeaderInvalid is the error code when the Cartsync-Client header is malformed
const ClientHeaderInvalid = "CLIENT_HEADER_INVALID"

// VersionUnsupported is the error code when the client version is incompatible
const VersionUnsupported = "VERSION_UNSUPPORTED"
