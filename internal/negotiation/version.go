package negotiation

import (
	"fmt"

	"golang.org/x/mod/semver"
)

// Negotiator checks client versions against the server's.
type Negotiator struct {
	serverVersion string
}

// NewNegotiator creates a negotiator for the given server version.
func NewNegotiator(serverVersion string) *Negotiator {
	return &Negotiator{serverVersion: NormalizeVersion(serverVersion)}
}

// ServerVersion returns the normalized server version.
func (n *Negotiator) ServerVersion() string {
	return n.serverVersion
}

// Check accepts a client whose major version matches the server's and whose
// version is not newer than the server's.
func (n *Negotiator) Check(clientVersion string) error {
	cv := NormalizeVersion(clientVersion)
	if !semver.IsValid(cv) {
		return &VersionError{
			Code:          ClientHeaderInvalid,
			Message:       fmt.Sprintf("client version %q is not a semantic version", clientVersion),
			ClientVersion: clientVersion,
			ServerVersion: n.serverVersion,
		}
	}

	if semver.Major(cv) != semver.Major(n.serverVersion) || semver.Compare(cv, n.serverVersion) > 0 {
		return &VersionError{
			Code:          VersionUnsupported,
			Message:       fmt.Sprintf("client requires version %s, server supports %s", cv, n.serverVersion),
			ClientVersion: cv,
			ServerVersion: n.serverVersion,
		}
	}

	return nil
}

// VersionError is returned when a client version is rejected.
type VersionError struct {
	Code          string
	Message       string
	ClientVersion string
	ServerVersion string
}

func (e *VersionError) Error() string {
	return e.Message
}

// NormalizeVersion adds the "v" prefix semver expects.
func NormalizeVersion(v string) string {
	if v == "" {
		return "v0.0.0"
	}
	if v[0] != 'v' {
		return "v" + v
	}
	return v
}
