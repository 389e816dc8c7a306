package observability

import (
	"context"
	"errors"
	"testing"

	"murmur/internal/config"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracingDisabledIsNoop(t *testing.T) {
	cfg := config.Default()
	shutdown, err := InitTracing(context.Background(), cfg)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	span, ctx := NewSpan(context.Background(), "feed.compose")
	assert.NotNil(t, ctx)
	span.SetError(errors.New("boom"))
	span.End()
}

func TestTrackIndexCountsFailures(t *testing.T) {
	before := testutil.ToFloat64(VectorIndexErrors.WithLabelValues("test_op"))

	TrackIndex("test_op")(nil)
	TrackIndex("test_op")(errors.New("down"))

	assert.Equal(t, before+1, testutil.ToFloat64(VectorIndexErrors.WithLabelValues("test_op")))
}
