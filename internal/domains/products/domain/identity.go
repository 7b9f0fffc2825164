package domain

import (
	"errors"
	"strings"
)

// ErrIdentityConflict signals an attempt to replace an already resolved endpoint id.
var ErrIdentityConflict = errors.New("identity already linked to a different endpoint id")

// ErrEmptyEndpointID signals an attempt to link an identity to a blank endpoint id.
var ErrEmptyEndpointID = errors.New("endpoint id is required")

// Identity ties a record of the system of record (Host) to its counterpart on the endpoint.
// An empty Endpoint means the record has not been resolved yet.
type Identity struct {
	Host     int64  `json:"host"`
	Endpoint string `json:"endpoint,omitempty"`
}

// NewIdentity builds an unresolved identity for the given host id.
func NewIdentity(host int64) Identity {
	return Identity{Host: host}
}

// HasEndpoint reports whether the endpoint side of the identity is known.
func (i Identity) HasEndpoint() bool {
	return strings.TrimSpace(i.Endpoint) != ""
}

// Resolve links the identity to endpointID. Resolving to the id already present is a no-op;
// a different id is rejected so a resolved identity is never overwritten.
func (i Identity) Resolve(endpointID string) (Identity, error) {
	endpointID = strings.TrimSpace(endpointID)
	if endpointID == "" {
		return i, ErrEmptyEndpointID
	}
	if i.HasEndpoint() {
		if i.Endpoint != endpointID {
			return i, ErrIdentityConflict
		}
		return i, nil
	}
	return Identity{Host: i.Host, Endpoint: endpointID}, nil
}
