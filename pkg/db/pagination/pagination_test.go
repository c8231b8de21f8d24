package pagination

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name         string
		page, size   int
		wantPage     int
		wantPageSize int
	}{
		{"defaults", 0, 0, 1, 25},
		{"negative page", -3, 10, 1, 10},
		{"oversized page size", 2, 1000, 2, 200},
		{"in range", 3, 50, 3, 50},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			page, size := Normalize(tc.page, tc.size)
			require.Equal(t, tc.wantPage, page)
			require.Equal(t, tc.wantPageSize, size)
		})
	}
}

func TestOffset(t *testing.T) {
	require.Equal(t, 0, Offset(1, 25))
	require.Equal(t, 50, Offset(3, 25))
	require.Equal(t, 0, Offset(-1, 25))
	require.Equal(t, 200, Offset(2, 1000))
}
