package browser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMarshalStringsProducesValidJSONArray(t *testing.T) {
	t.Parallel()

	out, err := marshalStrings([]string{"a", "b\"c"})
	require.NoError(t, err)
	require.Equal(t, `["a","b\"c"]`, out)
}

func TestMarshalStringsEmptySlice(t *testing.T) {
	t.Parallel()

	out, err := marshalStrings(nil)
	require.NoError(t, err)
	require.Equal(t, "null", out)
}
