package amount

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDecimalRoundTrip(t *testing.T) {
	cases := []string{"0.00000001", "10.00000000", "1234.5", "0", "-1.23000000"}
	for _, c := range cases {
		a, err := ParseDecimal(c)
		require.NoErrorf(t, err, "parsing %q", c)
		// Re-parsing the rendered string must reproduce the same value.
		a2, err := ParseDecimal(a.String())
		require.NoError(t, err)
		require.Equal(t, a, a2)
	}
}

func TestParseDecimalRejectsExcessPrecision(t *testing.T) {
	_, err := ParseDecimal("1.123456789")
	require.Error(t, err)
}

func TestStringFormatsEightDigits(t *testing.T) {
	a := NewFromAtoms(100000000)
	require.Equal(t, "1.00000000", a.String())

	a = NewFromAtoms(1)
	require.Equal(t, "0.00000001", a.String())
}

func TestSumAndMin(t *testing.T) {
	amts := []Amount{NewFromAtoms(100), NewFromAtoms(200), NewFromAtoms(50)}
	require.Equal(t, NewFromAtoms(350), Sum(amts))
	require.Equal(t, NewFromAtoms(50), Min(amts[0], amts[2]))
}

func TestIsPositiveIsZero(t *testing.T) {
	require.True(t, NewFromAtoms(1).IsPositive())
	require.False(t, NewFromAtoms(0).IsPositive())
	require.True(t, Zero.IsZero())
}
