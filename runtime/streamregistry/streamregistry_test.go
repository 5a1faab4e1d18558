package streamregistry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"goa.design/streamcore/runtime/stream"
)

func TestRegisterLookupRoundTrip(t *testing.T) {
	r := New()
	h := stream.New(stream.NewCapturingWriter())

	r.Register("sess1", h)
	got, ok := r.Lookup("sess1")
	require.True(t, ok)
	require.Same(t, h, got)
}

func TestLookupMissingReturnsFalse(t *testing.T) {
	r := New()
	_, ok := r.Lookup("nope")
	require.False(t, ok)
}

func TestRegisterOverwritesExistingEntry(t *testing.T) {
	r := New()
	h1 := stream.New(stream.NewCapturingWriter())
	h2 := stream.New(stream.NewCapturingWriter())

	r.Register("sess1", h1)
	r.Register("sess1", h2)

	got, ok := r.Lookup("sess1")
	require.True(t, ok)
	require.Same(t, h2, got)
	require.Equal(t, 1, r.Size())
}

func TestRegisterInvokesSessionSetterCapability(t *testing.T) {
	r := New()
	h := stream.New(stream.NewCapturingWriter())

	// *stream.Helper.SetSessionID is a no-op, so this only asserts Register
	// doesn't panic or error when the capability is present.
	require.NotPanics(t, func() { r.Register("sess1", h) })
}

func TestUnregisterRemovesEntryAndIsIdempotent(t *testing.T) {
	r := New()
	h := stream.New(stream.NewCapturingWriter())
	r.Register("sess1", h)

	r.Unregister("sess1")
	_, ok := r.Lookup("sess1")
	require.False(t, ok)
	require.Equal(t, 0, r.Size())

	require.NotPanics(t, func() { r.Unregister("sess1") })
}

func TestSizeTracksRegistrations(t *testing.T) {
	r := New()
	require.Equal(t, 0, r.Size())

	for i := 0; i < 5; i++ {
		r.Register(string(rune('a'+i)), stream.New(stream.NewCapturingWriter()))
	}
	require.Equal(t, 5, r.Size())

	r.Unregister("a")
	require.Equal(t, 4, r.Size())
}

func TestConcurrentRegisterLookupUnregisterDoesNotRace(t *testing.T) {
	r := New()
	done := make(chan struct{})

	go func() {
		for i := 0; i < 100; i++ {
			r.Register("sess1", stream.New(stream.NewCapturingWriter()))
		}
		close(done)
	}()

	for i := 0; i < 100; i++ {
		r.Lookup("sess1")
	}
	<-done
	r.Unregister("sess1")
}
