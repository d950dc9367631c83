package foundation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResult_OkAndErr(t *testing.T) {
	ok := Ok[int, error](42)
	require.True(t, ok.IsOk())
	require.False(t, ok.IsErr())
	require.Equal(t, 42, ok.Unwrap())
	require.Equal(t, 42, ok.UnwrapOr(0))

	failed := Err[int, error](errors.New("boom"))
	require.True(t, failed.IsErr())
	require.Equal(t, 7, failed.UnwrapOr(7))
	require.EqualError(t, failed.Error(), "boom")
}

func TestResult_UnwrapPanicsOnErr(t *testing.T) {
	failed := Err[string, error](errors.New("nope"))
	require.Panics(t, func() { failed.Unwrap() })
}

func TestOption_SomeAndNone(t *testing.T) {
	some := Some("value")
	require.True(t, some.IsSome())
	require.Equal(t, "value", some.Unwrap())

	v, ok := some.Get()
	require.True(t, ok)
	require.Equal(t, "value", v)

	none := None[string]()
	require.True(t, none.IsNone())
	require.Equal(t, "fallback", none.UnwrapOr("fallback"))
	require.Panics(t, func() { none.Unwrap() })
}
