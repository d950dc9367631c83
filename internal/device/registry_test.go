package device

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_AddLastWriteWins(t *testing.T) {
	r := NewRegistry()

	r.Add(Device{Address: "AA:BB", Name: "Phone"})
	r.Add(Device{Address: "AA:BB", Name: "Phone (renamed)"})

	d, ok := r.Get("AA:BB").Get()
	require.True(t, ok)
	require.Equal(t, "Phone (renamed)", d.Name)
	require.Len(t, r.List(), 1)
}

func TestRegistry_SetActiveUnknownAddressFails(t *testing.T) {
	r := NewRegistry()
	require.True(t, r.SetActive("CC:DD").IsNone())
	require.True(t, r.Active().IsNone())
}

func TestRegistry_SetActiveIsExclusive(t *testing.T) {
	r := NewRegistry()
	r.Add(Device{Address: "AA:BB", Name: "Phone"})
	r.Add(Device{Address: "CC:DD", Name: "Tablet"})

	require.True(t, r.SetActive("AA:BB").IsSome())
	require.True(t, r.SetActive("CC:DD").IsSome())

	active, ok := r.Active().Get()
	require.True(t, ok)
	require.Equal(t, "CC:DD", active.Address)
}

func TestRegistry_RemoveActiveClearsSelection(t *testing.T) {
	r := NewRegistry()
	r.Add(Device{Address: "AA:BB", Name: "Phone"})
	require.True(t, r.SetActive("AA:BB").IsSome())

	wasActive := r.Remove("AA:BB")
	require.True(t, wasActive)
	require.True(t, r.Active().IsNone())
	require.True(t, r.Get("AA:BB").IsNone())
}

func TestRegistry_RemoveInactiveKeepsSelection(t *testing.T) {
	r := NewRegistry()
	r.Add(Device{Address: "AA:BB", Name: "Phone"})
	r.Add(Device{Address: "CC:DD", Name: "Tablet"})
	require.True(t, r.SetActive("AA:BB").IsSome())

	require.False(t, r.Remove("CC:DD"))

	active, ok := r.Active().Get()
	require.True(t, ok)
	require.Equal(t, "AA:BB", active.Address)
}

func TestRegistry_Clear(t *testing.T) {
	r := NewRegistry()
	r.Add(Device{Address: "AA:BB"})
	require.True(t, r.SetActive("AA:BB").IsSome())

	r.Clear()
	require.Empty(t, r.List())
	require.True(t, r.Active().IsNone())
}

func TestRegistry_AddIgnoresEmptyAddress(t *testing.T) {
	r := NewRegistry()
	r.Add(Device{Name: "ghost"})
	require.Empty(t, r.List())
}
