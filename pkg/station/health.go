package station

const (
	fanStuckThreshold = 5 // identical consecutive readings before Fan Stuck
	zeroDataThreshold = 5 // all-zero consecutive readings before Zero Data
	offlineThreshold  = 3 // consecutive failed reads before Offline
)

// tracker classifies one sensor's health from the stream of read
// outcomes. Stuck and zero detection only see successful reads; failed
// reads feed a separate counter.
type tracker struct {
	status   Status
	failures int
	stuck    int
	zero     int
	prev     [3]int
	havePrev bool
}

func newTracker() *tracker {
	return &tracker{status: StatusInitializing}
}

// observeReading classifies a successful particle read from its three
// post-filter PM values.
func (t *tracker) observeReading(pm1, pm25, pm10 int) Status {
	t.failures = 0

	if t.havePrev && pm1 == t.prev[0] && pm25 == t.prev[1] && pm10 == t.prev[2] {
		t.stuck++
	} else {
		t.stuck = 0
	}
	t.prev = [3]int{pm1, pm25, pm10}
	t.havePrev = true

	if pm1 == 0 && pm25 == 0 && pm10 == 0 {
		t.zero++
	} else {
		t.zero = 0
	}

	// A seized fan also produces constant readings of zero, so the
	// stuck check takes precedence.
	switch {
	case t.stuck >= fanStuckThreshold:
		t.status = StatusFanStuck
	case t.zero >= zeroDataThreshold:
		t.status = StatusZeroData
	default:
		t.status = StatusOK
	}
	return t.status
}

// observeValid marks a successful read for sensors without stuck/zero
// failure modes.
func (t *tracker) observeValid() Status {
	t.failures = 0
	t.stuck = 0
	t.zero = 0
	t.status = StatusOK
	return t.status
}

// observeFailure counts a failed or implausible read. crossed reports
// the transition into Offline so the caller can reset filters once;
// below the threshold the reported status is unchanged.
func (t *tracker) observeFailure() (status Status, crossed bool) {
	t.failures++
	if t.failures >= offlineThreshold && t.status != StatusOffline {
		t.status = StatusOffline
		t.stuck = 0
		t.zero = 0
		t.havePrev = false
		return t.status, true
	}
	return t.status, false
}
