package strategies

import (
	"testing"

	"github.com/ratekit/ratekit"
	"github.com/stretchr/testify/require"
)

func newRate(t *testing.T, events, period float64, burst int) ratekit.Rate {
	t.Helper()

	r, err := ratekit.NewRate(events, period, burst)
	require.NoError(t, err)
	return r
}
