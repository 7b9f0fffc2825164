package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdentityResolve_SetsEndpointOnce(t *testing.T) {
	id := NewIdentity(42)
	require.False(t, id.HasEndpoint())

	resolved, err := id.Resolve(" ABC123 ")
	require.NoError(t, err)
	require.Equal(t, Identity{Host: 42, Endpoint: "ABC123"}, resolved)

	same, err := resolved.Resolve("ABC123")
	require.NoError(t, err)
	require.Equal(t, resolved, same)

	kept, err := resolved.Resolve("OTHER")
	require.ErrorIs(t, err, ErrIdentityConflict)
	require.Equal(t, resolved, kept)
}

func TestIdentityResolve_RejectsBlank(t *testing.T) {
	_, err := NewIdentity(1).Resolve("   ")
	require.ErrorIs(t, err, ErrEmptyEndpointID)
}

func TestProductLinkEndpoint(t *testing.T) {
	p := &Product{SKU: "ABC123", ID: NewIdentity(7)}
	require.NoError(t, p.LinkEndpoint("ABC123"))
	require.Equal(t, "ABC123", p.ID.Endpoint)
	require.ErrorIs(t, p.LinkEndpoint("XYZ"), ErrIdentityConflict)
	require.Equal(t, "ABC123", p.ID.Endpoint)
	require.Equal(t, KindProduct, p.Kind())
	require.Equal(t, KindPayment, (&Payment{}).Kind())
}
