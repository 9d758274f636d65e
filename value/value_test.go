package value

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConstructorsRoundTripThroughAccessors(t *testing.T) {
	require.Equal(t, int64(-7), Int(-7).AsI64())
	require.Equal(t, uint64(7), Uint(7).AsU64())
	require.Equal(t, 3.5, Float(3.5).AsF64())
	require.True(t, Boolean(true).AsBool())
	require.False(t, Boolean(false).AsBool())
	require.Equal(t, uint64(4), Str(4).StringIndex())
}

// Equality is defined only between values of the same tag (spec.md §4.1);
// Uninit only equals itself.
func TestEqualRequiresMatchingTag(t *testing.T) {
	require.True(t, Int(7).Equal(Int(7)))
	require.False(t, Int(7).Equal(Uint(7)))
	require.False(t, Int(0).Equal(Uninitialized))
	require.True(t, Uninitialized.Equal(Uninitialized))
	require.False(t, Int(7).Equal(Int(8)))
}

func TestStringFormatsEachTag(t *testing.T) {
	require.Equal(t, "<uninit>", Uninitialized.String())
	require.Equal(t, "-3", Int(-3).String())
	require.Equal(t, "3", Uint(3).String())
	require.Equal(t, "true", Boolean(true).String())
	require.Equal(t, "<string#2>", Str(2).String())
}
