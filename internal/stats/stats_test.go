package stats_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sabouaram/staticd/internal/stats"
)

func TestAttachTooSmall(t *testing.T) {
	_, ok := stats.Attach(make([]byte, 4))
	require.False(t, ok)
}

func TestRecordResponseAccumulates(t *testing.T) {
	rec, ok := stats.Attach(make([]byte, stats.Size))
	require.True(t, ok)
	rec.Init(time.Now().Add(-5 * time.Second))

	rec.RecordResponse(200, 1024, 10*time.Millisecond)
	rec.RecordResponse(404, 0, 2*time.Millisecond)
	rec.RecordResponse(200, 2048, 6*time.Millisecond)

	snap := rec.Snapshot()
	require.EqualValues(t, 3, snap.TotalRequests)
	require.EqualValues(t, 3072, snap.BytesSent)
	require.EqualValues(t, 2, snap.Code200)
	require.EqualValues(t, 1, snap.Code404)
	require.InDelta(t, 6.0, snap.AvgResponseTimeMs, 0.01)
	require.GreaterOrEqual(t, snap.UptimeSeconds, int64(5))
}

func TestConnectionGaugeNeverNegative(t *testing.T) {
	rec, ok := stats.Attach(make([]byte, stats.Size))
	require.True(t, ok)
	rec.Init(time.Now())

	rec.ConnectionClosed()
	require.EqualValues(t, 0, rec.Snapshot().ActiveConnections)

	rec.ConnectionOpened()
	rec.ConnectionOpened()
	rec.ConnectionClosed()
	require.EqualValues(t, 1, rec.Snapshot().ActiveConnections)
}

func TestConcurrentMutationIsSerialized(t *testing.T) {
	rec, ok := stats.Attach(make([]byte, stats.Size))
	require.True(t, ok)
	rec.Init(time.Now())

	const n = 200
	done := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		go func() {
			rec.RecordResponse(200, 1, time.Microsecond)
			done <- struct{}{}
		}()
	}
	for i := 0; i < n; i++ {
		<-done
	}

	require.EqualValues(t, n, rec.Snapshot().TotalRequests)
	require.EqualValues(t, n, rec.Snapshot().Code200)
}

func TestSnapshotDeltaReportsSinceLastCall(t *testing.T) {
	rec, ok := stats.Attach(make([]byte, stats.Size))
	require.True(t, ok)
	rec.Init(time.Now())

	avg, count := rec.SnapshotDelta()
	require.Zero(t, avg)
	require.Zero(t, count)

	rec.RecordResponse(200, 0, 10*time.Millisecond)
	rec.RecordResponse(200, 0, 20*time.Millisecond)

	avg, count = rec.SnapshotDelta()
	require.EqualValues(t, 2, count)
	require.InDelta(t, 15.0, avg, 0.01)

	// A second call with no intervening requests reports an empty delta,
	// even though the cumulative Snapshot average is unchanged.
	avg, count = rec.SnapshotDelta()
	require.Zero(t, avg)
	require.Zero(t, count)
	require.InDelta(t, 15.0, rec.Snapshot().AvgResponseTimeMs, 0.01)

	rec.RecordResponse(200, 0, 30*time.Millisecond)
	avg, count = rec.SnapshotDelta()
	require.EqualValues(t, 1, count)
	require.InDelta(t, 30.0, avg, 0.01)
}
