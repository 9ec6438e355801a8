package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleLookupReturnsIPForBoth(t *testing.T) {
	dc, host, err := Simple{}.Lookup("10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", dc)
	assert.Equal(t, "10.0.0.1", host)
}

func TestStaticLookupReturnsMappedEntry(t *testing.T) {
	s := NewStatic(map[string]Entry{
		"10.0.0.1": {Datacenter: "dc-a", Hostname: "redis-0.dc-a"},
	}, nil)

	dc, host, err := s.Lookup("10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "dc-a", dc)
	assert.Equal(t, "redis-0.dc-a", host)
}

func TestStaticLookupFallsBackToSimpleOnMiss(t *testing.T) {
	var missed []string
	s := NewStatic(map[string]Entry{
		"10.0.0.1": {Datacenter: "dc-a", Hostname: "redis-0.dc-a"},
	}, func(ip string) { missed = append(missed, ip) })

	dc, host, err := s.Lookup("10.0.0.9")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.9", dc)
	assert.Equal(t, "10.0.0.9", host)
	assert.Equal(t, []string{"10.0.0.9"}, missed)
}

func TestStaticLookupFallsBackToIPWhenReverseDNSFails(t *testing.T) {
	// 192.0.2.0/24 is the TEST-NET-1 documentation block (RFC 5737): it is
	// never assigned, so a reverse lookup against it cannot resolve.
	s := NewStatic(map[string]Entry{
		"192.0.2.1": {Datacenter: "dc-a"},
	}, nil)

	dc, host, err := s.Lookup("192.0.2.1")
	require.NoError(t, err)
	assert.Equal(t, "dc-a", dc)
	assert.Equal(t, "192.0.2.1", host)
}

func TestStaticLookupOnMissNilIsSafe(t *testing.T) {
	s := NewStatic(map[string]Entry{}, nil)
	dc, host, err := s.Lookup("10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", dc)
	assert.Equal(t, "10.0.0.1", host)
}
