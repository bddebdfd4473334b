package publish

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zmilosevic/vazduh/pkg/alarm"
	"github.com/zmilosevic/vazduh/pkg/bme280"
	"github.com/zmilosevic/vazduh/pkg/config"
	"github.com/zmilosevic/vazduh/pkg/derive"
	"github.com/zmilosevic/vazduh/pkg/pms"
	"github.com/zmilosevic/vazduh/pkg/station"
)

type stubParticle struct{}

func (stubParticle) ReadFrame(time.Duration) (pms.Frame, error) { return pms.Frame{}, nil }
func (stubParticle) RequestRead() error                         { return nil }
func (stubParticle) Wake() error                                { return nil }
func (stubParticle) Sleep() error                               { return nil }
func (stubParticle) SetPassive() error                          { return nil }
func (stubParticle) Drain() error                               { return nil }
func (stubParticle) Stats() pms.Stats                           { return pms.Stats{} }

type stubEnv struct{}

func (stubEnv) Init() error                   { return nil }
func (stubEnv) Read() (bme280.Reading, error) { return bme280.Reading{}, nil }

func newTestPublisher(t *testing.T) (*Publisher, *station.Station, *alarm.Evaluator, *config.Config) {
	t.Helper()
	cfg := config.Default()
	cfg.Device.ID = "vazduh-test"

	st, err := station.New(cfg, stubParticle{}, stubEnv{}, nil)
	require.NoError(t, err)
	al := alarm.New()

	persisted := config.Default()
	p := New(cfg, st, al, func(m func(*config.Config)) { m(persisted) }, nil)
	return p, st, al, persisted
}

func decodeAssets(t *testing.T, payload []byte) map[string]assetValue {
	t.Helper()
	var m map[string]assetValue
	require.NoError(t, json.Unmarshal(payload, &m))
	return m
}

func TestStatePayload(t *testing.T) {
	p, _, _, _ := newTestPublisher(t)

	snap := station.Snapshot{
		Time:          time.Now(),
		PM1:           5,
		PM25:          10,
		PM10:          25,
		PM1Corrected:  4,
		PM25Corrected: 8,
		PM10Corrected: 21,
		Count03:       1200, Count05: 400, Count10: 80,
		Count25: 12, Count50: 4, Count100: 1,
		Temperature:      21.5,
		Humidity:         55,
		Pressure:         1007.1,
		DewPoint:         12.3,
		AbsoluteHumidity: 9.4,
		HeatIndex:        21.5,
		SeaLevelPressure: 1013.2,
		Altitude:         51.3,
		AirQuality:       derive.Good,
		ParticleStatus:   station.StatusOK,
		EnvStatus:        station.StatusOK,
	}

	m := decodeAssets(t, p.statePayload(snap))
	assert.Len(t, m, 28)

	assert.EqualValues(t, 10, m["pm2-5"].Value)
	assert.EqualValues(t, 21, m["pm10-c"].Value)
	assert.EqualValues(t, 1200, m["count-0-3"].Value)
	assert.EqualValues(t, 21.5, m["temperature"].Value)
	assert.EqualValues(t, 55, m["humidity"].Value)
	assert.EqualValues(t, 1013.2, m["pressureSea"].Value)
	assert.EqualValues(t, 51.3, m["altitude"].Value)
	assert.Equal(t, "Good", m["air-quality"].Value)
	assert.Equal(t, "OK", m["sensor-status"].Value)

	// Settings are echoed so the platform shows current values.
	assert.EqualValues(t, 5, m["interval"].Value)
	assert.EqualValues(t, 0, m["altitude-set"].Value)
	assert.Equal(t, true, m["alarm-enable"].Value)
	assert.Equal(t, true, m["deep-sleep"].Value)
	assert.Equal(t, "1.00,1.00", m["calibration"].Value)
}

func TestStatePayloadDegradedStatus(t *testing.T) {
	p, _, _, _ := newTestPublisher(t)

	snap := station.Snapshot{
		ParticleStatus: station.StatusFanStuck,
		EnvStatus:      station.StatusOK,
	}
	m := decodeAssets(t, p.statePayload(snap))
	assert.Equal(t, "Fan Stuck", m["sensor-status"].Value)
}

func TestAlarmPayload(t *testing.T) {
	ev := alarm.Event{
		Kind:   alarm.KindTriggered,
		Reason: "PM2.5 HIGH: 40 µg/m³",
	}
	var m map[string]assetValue
	require.NoError(t, json.Unmarshal(alarmPayload(ev), &m))
	assert.Equal(t, "PM2.5 HIGH: 40 µg/m³", m["alarm"].Value)
}

func TestCommandAssetParse(t *testing.T) {
	tests := []struct {
		topic string
		asset string
		ok    bool
	}{
		{"device/vazduh-test/asset/interval/command", "interval", true},
		{"device/vazduh-test/asset/calibration/command", "calibration", true},
		{"device/vazduh-test/state", "", false},
		{"device/vazduh-test/asset/interval/feed", "", false},
		{"sensor/vazduh-test/asset/interval/command", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		asset, ok := commandAsset(tt.topic)
		assert.Equal(t, tt.ok, ok, tt.topic)
		assert.Equal(t, tt.asset, asset, tt.topic)
	}
}

func cmdTopic(asset string) string {
	return "device/vazduh-test/asset/" + asset + "/command"
}

func TestHandleIntervalCommand(t *testing.T) {
	p, st, _, persisted := newTestPublisher(t)

	p.handleCommand(cmdTopic("interval"), []byte(`{"value":10}`))
	assert.Equal(t, 10, st.PublishInterval())
	assert.Equal(t, 10, persisted.Acquisition.PublishMinutes)
}

func TestHandleIntervalRejected(t *testing.T) {
	p, st, _, persisted := newTestPublisher(t)

	p.handleCommand(cmdTopic("interval"), []byte(`{"value":0}`))
	assert.Equal(t, 5, st.PublishInterval(), "out of range value ignored")
	assert.Equal(t, 5, persisted.Acquisition.PublishMinutes)
}

func TestHandleTemperatureOffsetCommand(t *testing.T) {
	p, st, _, persisted := newTestPublisher(t)

	p.handleCommand(cmdTopic("temperature-offset"), []byte(`{"value":-2.5}`))
	assert.InDelta(t, -2.5, st.TempOffset(), 1e-6)
	assert.InDelta(t, -2.5, persisted.Calibration.TempOffset, 1e-6)
}

func TestHandleAltitudeCommand(t *testing.T) {
	p, st, _, persisted := newTestPublisher(t)

	p.handleCommand(cmdTopic("altitude-set"), []byte(`{"value":117}`))
	assert.Equal(t, 117, st.Altitude())
	assert.Equal(t, 117, persisted.Acquisition.AltitudeMeters)
}

func TestHandleAlarmEnableCommand(t *testing.T) {
	p, _, al, persisted := newTestPublisher(t)

	p.handleCommand(cmdTopic("alarm-enable"), []byte(`{"value":false}`))
	assert.False(t, al.State().Enabled)
	assert.True(t, persisted.Alarm.Disabled)

	p.handleCommand(cmdTopic("alarm-enable"), []byte(`{"value":true}`))
	assert.True(t, al.State().Enabled)
	assert.False(t, persisted.Alarm.Disabled)
}

func TestHandleDeepSleepCommand(t *testing.T) {
	p, st, _, persisted := newTestPublisher(t)

	p.handleCommand(cmdTopic("deep-sleep"), []byte(`{"value":false}`))
	assert.True(t, st.Continuous(), "deep sleep off keeps the fan running")
	assert.True(t, persisted.Acquisition.Continuous)

	p.handleCommand(cmdTopic("deep-sleep"), []byte(`{"value":true}`))
	assert.False(t, st.Continuous())
	assert.False(t, persisted.Acquisition.Continuous)
}

func TestHandleCalibrationCommand(t *testing.T) {
	p, st, _, persisted := newTestPublisher(t)

	p.handleCommand(cmdTopic("calibration"), []byte(`{"value":"0.48, 0.50"}`))
	pm25, pm10 := st.PMFactors()
	assert.InDelta(t, 0.48, pm25, 1e-6)
	assert.InDelta(t, 0.50, pm10, 1e-6)
	assert.InDelta(t, 0.48, persisted.Calibration.PM25Factor, 1e-6)
}

func TestHandleCalibrationRejected(t *testing.T) {
	p, st, _, _ := newTestPublisher(t)

	p.handleCommand(cmdTopic("calibration"), []byte(`{"value":"abc"}`))
	pm25, _ := st.PMFactors()
	assert.InDelta(t, 1.0, pm25, 1e-6, "malformed pair ignored")

	p.handleCommand(cmdTopic("calibration"), []byte(`{"value":"0.01,1"}`))
	pm25, _ = st.PMFactors()
	assert.InDelta(t, 1.0, pm25, 1e-6, "out of range factor ignored")
}

func TestHandleCommandGarbage(t *testing.T) {
	p, st, _, _ := newTestPublisher(t)

	p.handleCommand(cmdTopic("interval"), []byte(`not json`))
	p.handleCommand(cmdTopic("interval"), []byte(`{"value":"ten"}`))
	p.handleCommand(cmdTopic("unknown-asset"), []byte(`{"value":1}`))
	p.handleCommand("device/other/state", []byte(`{}`))

	assert.Equal(t, 5, st.PublishInterval())
}

func TestOfferDoesNotBlock(t *testing.T) {
	p, _, _, _ := newTestPublisher(t)

	// Nothing drains the queues here; extra offers must be dropped,
	// not block the caller.
	for i := 0; i < 20; i++ {
		p.Offer(station.Snapshot{PM25: i})
		p.OfferAlarm(alarm.Event{Kind: alarm.KindTriggered})
	}

	st := p.Stats()
	assert.EqualValues(t, 24, st.Dropped)
	assert.Zero(t, st.Published)
}
