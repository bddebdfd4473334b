// Package alarm evaluates particulate readings against configurable
// thresholds with trigger/cooldown hysteresis, so a reading hovering
// around a threshold does not flap between alarm states.
package alarm

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Defaults follow the WHO 24-hour guideline values.
const (
	DefaultPM25Threshold = 35 // ug/m3
	DefaultPM10Threshold = 45 // ug/m3
	DefaultCooldown      = time.Hour
)

// Kind distinguishes alarm events.
type Kind int

const (
	KindTriggered Kind = iota
	KindCleared
)

func (k Kind) String() string {
	switch k {
	case KindTriggered:
		return "triggered"
	case KindCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// Severity grades an event by how many thresholds were exceeded.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Event is emitted on a state transition. Cleared events carry no
// reason and are informational only.
type Event struct {
	Kind     Kind
	Severity Severity
	Reason   string
	PM25     int
	PM10     int
	Time     time.Time
}

// State is a point-in-time copy of the evaluator's state.
type State struct {
	Enabled       bool
	Triggered     bool
	LastTrigger   time.Time
	PM25Threshold int
	PM10Threshold int
	Cooldown      time.Duration
}

// Status renders the state for status displays.
func (s State) Status() string {
	switch {
	case !s.Enabled:
		return "Disabled"
	case s.Triggered:
		return "TRIGGERED"
	default:
		return "OK"
	}
}

// Evaluator is the two-state (Clear/Triggered) alarm machine. Safe for
// concurrent use.
type Evaluator struct {
	mu            sync.Mutex
	enabled       bool
	triggered     bool
	lastTrigger   time.Time
	pm25Threshold int
	pm10Threshold int
	cooldown      time.Duration
}

// New returns an enabled evaluator with the default thresholds.
func New() *Evaluator {
	return &Evaluator{
		enabled:       true,
		pm25Threshold: DefaultPM25Threshold,
		pm10Threshold: DefaultPM10Threshold,
		cooldown:      DefaultCooldown,
	}
}

// Evaluate inspects one reading and returns an Event on a state
// transition, or nil. While triggered and inside the cooldown period
// the reading is ignored entirely: no re-trigger and no clearing.
func (e *Evaluator) Evaluate(pm25, pm10 int, now time.Time) *Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.enabled {
		return nil
	}
	if e.triggered && now.Sub(e.lastTrigger) < e.cooldown {
		return nil
	}

	over25 := pm25 > e.pm25Threshold
	over10 := pm10 > e.pm10Threshold

	if over25 || over10 {
		var parts []string
		if over25 {
			parts = append(parts, fmt.Sprintf("PM2.5 HIGH: %d µg/m³", pm25))
		}
		if over10 {
			parts = append(parts, fmt.Sprintf("PM10 HIGH: %d µg/m³", pm10))
		}
		sev := SeverityWarning
		if over25 && over10 {
			sev = SeverityCritical
		}
		e.triggered = true
		e.lastTrigger = now
		return &Event{
			Kind:     KindTriggered,
			Severity: sev,
			Reason:   strings.Join(parts, ", "),
			PM25:     pm25,
			PM10:     pm10,
			Time:     now,
		}
	}

	if e.triggered {
		e.triggered = false
		return &Event{
			Kind:     KindCleared,
			Severity: SeverityInfo,
			PM25:     pm25,
			PM10:     pm10,
			Time:     now,
		}
	}
	return nil
}

// SetEnabled turns evaluation on or off. Disabling also drops a latched
// trigger.
func (e *Evaluator) SetEnabled(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = on
	if !on {
		e.triggered = false
	}
}

// SetThresholds changes the trigger concentrations in ug/m3.
func (e *Evaluator) SetThresholds(pm25, pm10 int) error {
	if pm25 < 1 || pm25 > 500 {
		return fmt.Errorf("pm2.5 threshold %d out of range [1,500]", pm25)
	}
	if pm10 < 1 || pm10 > 500 {
		return fmt.Errorf("pm10 threshold %d out of range [1,500]", pm10)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pm25Threshold = pm25
	e.pm10Threshold = pm10
	return nil
}

// SetCooldown changes the re-evaluation holdoff after a trigger.
func (e *Evaluator) SetCooldown(d time.Duration) error {
	if d < time.Minute || d > 24*time.Hour {
		return fmt.Errorf("cooldown %s out of range [1m,24h]", d)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cooldown = d
	return nil
}

// State returns a copy of the current state.
func (e *Evaluator) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return State{
		Enabled:       e.enabled,
		Triggered:     e.triggered,
		LastTrigger:   e.lastTrigger,
		PM25Threshold: e.pm25Threshold,
		PM10Threshold: e.pm10Threshold,
		Cooldown:      e.cooldown,
	}
}
