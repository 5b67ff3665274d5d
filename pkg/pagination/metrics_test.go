package pagination

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_PagesAndStops(t *testing.T) {
	pagesBefore := testutil.ToFloat64(PagesFetched)
	stopsBefore := testutil.ToFloat64(Stops.WithLabelValues(string(StopExhausted)))

	src := &fakeSource{pages: [][]string{{"a"}, {"b"}, {"c"}}}
	e := New(Options{MaxPages: 10}, src.fetch)
	require.NoError(t, e.Iterate(context.Background(), func(_ []string, _ *fakeResponse) error { return nil }))

	// One series for every mode; the counter carries no labels.
	assert.Equal(t, 1, testutil.CollectAndCount(PagesFetched))
	assert.Equal(t, 3.0, testutil.ToFloat64(PagesFetched)-pagesBefore)
	assert.Equal(t, 1.0, testutil.ToFloat64(Stops.WithLabelValues(string(StopExhausted)))-stopsBefore)
}
