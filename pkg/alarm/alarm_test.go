package alarm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	st := New().State()
	assert.True(t, st.Enabled)
	assert.False(t, st.Triggered)
	assert.Equal(t, 35, st.PM25Threshold)
	assert.Equal(t, 45, st.PM10Threshold)
	assert.Equal(t, time.Hour, st.Cooldown)
	assert.Equal(t, "OK", st.Status())
}

func TestTriggerPM25(t *testing.T) {
	e := New()
	now := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)

	ev := e.Evaluate(40, 20, now)
	require.NotNil(t, ev)
	assert.Equal(t, KindTriggered, ev.Kind)
	assert.Equal(t, SeverityWarning, ev.Severity)
	assert.Equal(t, "PM2.5 HIGH: 40 µg/m³", ev.Reason)
	assert.Equal(t, 40, ev.PM25)
	assert.Equal(t, now, ev.Time)
	assert.Equal(t, "TRIGGERED", e.State().Status())
}

func TestTriggerPM10Only(t *testing.T) {
	e := New()
	ev := e.Evaluate(10, 50, time.Now())
	require.NotNil(t, ev)
	assert.Equal(t, SeverityWarning, ev.Severity)
	assert.Equal(t, "PM10 HIGH: 50 µg/m³", ev.Reason)
}

func TestTriggerBothThresholds(t *testing.T) {
	e := New()
	ev := e.Evaluate(80, 90, time.Now())
	require.NotNil(t, ev)
	assert.Equal(t, SeverityCritical, ev.Severity)
	assert.Equal(t, "PM2.5 HIGH: 80 µg/m³, PM10 HIGH: 90 µg/m³", ev.Reason)
}

func TestThresholdMustBeExceeded(t *testing.T) {
	e := New()
	assert.Nil(t, e.Evaluate(35, 45, time.Now()), "equal to threshold is not over it")
}

func TestCooldownSuppressesEverything(t *testing.T) {
	e := New()
	t0 := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)

	require.NotNil(t, e.Evaluate(40, 20, t0))

	// Still high inside the cooldown: no second event.
	assert.Nil(t, e.Evaluate(45, 20, t0.Add(10*time.Minute)))
	// Back to normal inside the cooldown: no clearing either.
	assert.Nil(t, e.Evaluate(5, 5, t0.Add(20*time.Minute)))
	assert.True(t, e.State().Triggered)

	// Past the cooldown a high reading re-triggers.
	ev := e.Evaluate(40, 20, t0.Add(61*time.Minute))
	require.NotNil(t, ev)
	assert.Equal(t, KindTriggered, ev.Kind)
}

func TestClearAfterCooldown(t *testing.T) {
	e := New()
	t0 := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)

	require.NotNil(t, e.Evaluate(40, 20, t0))

	ev := e.Evaluate(5, 5, t0.Add(61*time.Minute))
	require.NotNil(t, ev)
	assert.Equal(t, KindCleared, ev.Kind)
	assert.Equal(t, SeverityInfo, ev.Severity)
	assert.Empty(t, ev.Reason)
	assert.False(t, e.State().Triggered)

	// Once clear, further normal readings are silent.
	assert.Nil(t, e.Evaluate(5, 5, t0.Add(62*time.Minute)))
}

func TestDisabledEmitsNothing(t *testing.T) {
	e := New()
	e.SetEnabled(false)

	assert.Nil(t, e.Evaluate(500, 500, time.Now()))
	assert.Equal(t, "Disabled", e.State().Status())
}

func TestDisableDropsLatchedTrigger(t *testing.T) {
	e := New()
	t0 := time.Now()
	require.NotNil(t, e.Evaluate(40, 20, t0))
	require.True(t, e.State().Triggered)

	e.SetEnabled(false)
	assert.False(t, e.State().Triggered)

	// Re-enabled with no latched state: a high reading triggers fresh
	// without waiting out the old cooldown.
	e.SetEnabled(true)
	ev := e.Evaluate(40, 20, t0.Add(time.Minute))
	require.NotNil(t, ev)
	assert.Equal(t, KindTriggered, ev.Kind)
}

func TestSetterValidation(t *testing.T) {
	e := New()

	assert.Error(t, e.SetThresholds(0, 45))
	assert.Error(t, e.SetThresholds(35, 501))
	require.NoError(t, e.SetThresholds(50, 80))
	st := e.State()
	assert.Equal(t, 50, st.PM25Threshold)
	assert.Equal(t, 80, st.PM10Threshold)

	assert.Error(t, e.SetCooldown(30*time.Second))
	assert.Error(t, e.SetCooldown(25*time.Hour))
	require.NoError(t, e.SetCooldown(30*time.Minute))
	assert.Equal(t, 30*time.Minute, e.State().Cooldown)
}

func TestKindAndSeverityStrings(t *testing.T) {
	assert.Equal(t, "triggered", KindTriggered.String())
	assert.Equal(t, "cleared", KindCleared.String())
	assert.Equal(t, "info", SeverityInfo.String())
	assert.Equal(t, "warning", SeverityWarning.String())
	assert.Equal(t, "critical", SeverityCritical.String())
}
