package station

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackerInitialStatus(t *testing.T) {
	tr := newTracker()
	assert.Equal(t, StatusInitializing, tr.status)
}

func TestTrackerStuckFan(t *testing.T) {
	tr := newTracker()

	// First reading only seeds the comparison.
	assert.Equal(t, StatusOK, tr.observeReading(5, 10, 15))

	for i := 0; i < 4; i++ {
		assert.Equal(t, StatusOK, tr.observeReading(5, 10, 15), "identical reading %d", i+1)
	}
	assert.Equal(t, StatusFanStuck, tr.observeReading(5, 10, 15), "fifth identical reading")

	// A differing reading resets the counter and restores OK.
	assert.Equal(t, StatusOK, tr.observeReading(6, 10, 15))
}

func TestTrackerStuckNeedsAllThreeIdentical(t *testing.T) {
	tr := newTracker()
	tr.observeReading(5, 10, 15)
	for i := 0; i < 10; i++ {
		// PM10 alternates, so the triple is never identical twice.
		assert.Equal(t, StatusOK, tr.observeReading(5, 10, 15+i%2))
	}
}

func TestTrackerZeroDataThenStuck(t *testing.T) {
	tr := newTracker()

	for i := 0; i < 4; i++ {
		assert.Equal(t, StatusOK, tr.observeReading(0, 0, 0), "zero reading %d", i+1)
	}
	// Fifth all-zero reading crosses the zero threshold first; the
	// stuck counter is one behind because the first reading seeded it.
	assert.Equal(t, StatusZeroData, tr.observeReading(0, 0, 0))
	// One more and the stuck counter catches up; Fan Stuck wins.
	assert.Equal(t, StatusFanStuck, tr.observeReading(0, 0, 0))
}

func TestTrackerOfflineThreshold(t *testing.T) {
	tr := newTracker()
	tr.observeReading(5, 10, 15)

	st, crossed := tr.observeFailure()
	assert.Equal(t, StatusOK, st, "status unchanged below threshold")
	assert.False(t, crossed)

	st, crossed = tr.observeFailure()
	assert.Equal(t, StatusOK, st)
	assert.False(t, crossed)

	st, crossed = tr.observeFailure()
	assert.Equal(t, StatusOffline, st)
	assert.True(t, crossed, "crossing reported once")

	st, crossed = tr.observeFailure()
	assert.Equal(t, StatusOffline, st)
	assert.False(t, crossed, "no second crossing while down")
}

func TestTrackerRecoveryIsImmediate(t *testing.T) {
	tr := newTracker()
	for i := 0; i < 5; i++ {
		tr.observeFailure()
	}
	assert.Equal(t, StatusOffline, tr.status)

	assert.Equal(t, StatusOK, tr.observeReading(5, 10, 15))
	assert.Zero(t, tr.failures)
}

func TestTrackerSuccessResetsFailures(t *testing.T) {
	tr := newTracker()
	tr.observeReading(5, 10, 15)
	tr.observeFailure()
	tr.observeFailure()
	tr.observeValid()

	// Needs three fresh failures again.
	_, crossed := tr.observeFailure()
	assert.False(t, crossed)
	_, crossed = tr.observeFailure()
	assert.False(t, crossed)
	_, crossed = tr.observeFailure()
	assert.True(t, crossed)
}

func TestTrackerStuckNotCarriedAcrossOffline(t *testing.T) {
	tr := newTracker()
	tr.observeReading(5, 10, 15)
	tr.observeReading(5, 10, 15)
	tr.observeReading(5, 10, 15) // stuck counter at 2

	for i := 0; i < 3; i++ {
		tr.observeFailure()
	}
	assert.Equal(t, StatusOffline, tr.status)

	// After recovery the first reading seeds again; the old history
	// must not contribute.
	assert.Equal(t, StatusOK, tr.observeReading(5, 10, 15))
	for i := 0; i < 4; i++ {
		assert.Equal(t, StatusOK, tr.observeReading(5, 10, 15))
	}
	assert.Equal(t, StatusFanStuck, tr.observeReading(5, 10, 15))
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "Initializing", StatusInitializing.String())
	assert.Equal(t, "OK", StatusOK.String())
	assert.Equal(t, "Fan Stuck", StatusFanStuck.String())
	assert.Equal(t, "Zero Data", StatusZeroData.String())
	assert.Equal(t, "Offline", StatusOffline.String())
	assert.Equal(t, "Unknown", Status(42).String())
}
