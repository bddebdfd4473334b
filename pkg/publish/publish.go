// Package publish sends measurements to an MQTT broker and applies
// remote configuration commands received from it. The topic scheme
// follows the AllThingsTalk device convention: state messages go to
// device/{id}/state and commands arrive on device/{id}/asset/{name}/command.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"go.uber.org/zap"

	"github.com/zmilosevic/vazduh/pkg/alarm"
	"github.com/zmilosevic/vazduh/pkg/config"
	"github.com/zmilosevic/vazduh/pkg/station"
)

const publishTimeout = 10 * time.Second

// assetValue is the per-asset payload wrapper the platform expects.
type assetValue struct {
	Value any `json:"value"`
}

// Publisher bridges the station and alarm to the broker. Snapshots and
// alarm events are queued through Offer/OfferAlarm so the acquisition
// loop never blocks on the network.
type Publisher struct {
	cfg      config.MQTTConfig
	deviceID string
	st       *station.Station
	al       *alarm.Evaluator
	persist  func(func(*config.Config))
	log      *zap.Logger

	snapCh  chan station.Snapshot
	alarmCh chan alarm.Event

	published uint64
	failed    uint64
	dropped   uint64
}

// Stats reports publish outcomes since start.
type Stats struct {
	Published uint64
	Failed    uint64
	Dropped   uint64
}

// Stats returns a copy of the publish counters.
func (p *Publisher) Stats() Stats {
	return Stats{
		Published: atomic.LoadUint64(&p.published),
		Failed:    atomic.LoadUint64(&p.failed),
		Dropped:   atomic.LoadUint64(&p.dropped),
	}
}

// New creates a Publisher. persist, when non-nil, is called with a
// config mutation after every accepted remote command so the change
// survives restarts.
func New(cfg *config.Config, st *station.Station, al *alarm.Evaluator, persist func(func(*config.Config)), log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	if persist == nil {
		persist = func(func(*config.Config)) {}
	}
	return &Publisher{
		cfg:      cfg.MQTT,
		deviceID: cfg.Device.ID,
		st:       st,
		al:       al,
		persist:  persist,
		log:      log,
		snapCh:   make(chan station.Snapshot, 8),
		alarmCh:  make(chan alarm.Event, 8),
	}
}

// Offer queues a snapshot for publishing without blocking.
func (p *Publisher) Offer(snap station.Snapshot) {
	select {
	case p.snapCh <- snap:
	default:
		atomic.AddUint64(&p.dropped, 1)
		p.log.Warn("publish queue full, dropping snapshot")
	}
}

// OfferAlarm queues an alarm event without blocking. Only triggered
// events produce a network message.
func (p *Publisher) OfferAlarm(ev alarm.Event) {
	select {
	case p.alarmCh <- ev:
	default:
		atomic.AddUint64(&p.dropped, 1)
		p.log.Warn("alarm queue full, dropping event")
	}
}

func (p *Publisher) stateTopic() string {
	return fmt.Sprintf("device/%s/state", p.deviceID)
}

func (p *Publisher) commandTopic() string {
	return fmt.Sprintf("device/%s/asset/+/command", p.deviceID)
}

// Run maintains the broker connection and drains the queues until the
// context is cancelled. Reconnects are handled by the managed client.
func (p *Publisher) Run(ctx context.Context) error {
	u, err := url.Parse(p.cfg.Broker)
	if err != nil {
		return fmt.Errorf("invalid broker url %q: %w", p.cfg.Broker, err)
	}

	cliCfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{u},
		KeepAlive:                     30,
		CleanStartOnInitialConnection: false,
		SessionExpiryInterval:         60,
		ConnectUsername:               p.cfg.Username,
		ConnectPassword:               []byte(p.cfg.Password),
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			p.log.Info("mqtt connected", zap.String("broker", p.cfg.Broker))
			if _, err := cm.Subscribe(ctx, &paho.Subscribe{
				Subscriptions: []paho.SubscribeOptions{
					{Topic: p.commandTopic(), QoS: 1},
				},
			}); err != nil {
				p.log.Warn("mqtt subscribe failed", zap.Error(err))
			}
		},
		OnConnectError: func(err error) {
			p.log.Warn("mqtt connect failed", zap.Error(err))
		},
		ClientConfig: paho.ClientConfig{
			ClientID: p.deviceID,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				func(pr paho.PublishReceived) (bool, error) {
					p.handleCommand(pr.Packet.Topic, pr.Packet.Payload)
					return true, nil
				},
			},
			OnClientError: func(err error) {
				p.log.Warn("mqtt client error", zap.Error(err))
			},
		},
	}

	cm, err := autopaho.NewConnection(ctx, cliCfg)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			dctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = cm.Disconnect(dctx)
			<-cm.Done()
			return nil
		case snap := <-p.snapCh:
			p.publishState(ctx, cm, p.statePayload(snap))
		case ev := <-p.alarmCh:
			if ev.Kind == alarm.KindTriggered {
				p.publishState(ctx, cm, alarmPayload(ev))
			}
		}
	}
}

func (p *Publisher) publishState(ctx context.Context, cm *autopaho.ConnectionManager, payload []byte) {
	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if _, err := cm.Publish(pctx, &paho.Publish{
		QoS:     1,
		Topic:   p.stateTopic(),
		Payload: payload,
	}); err != nil {
		atomic.AddUint64(&p.failed, 1)
		p.log.Warn("mqtt publish failed", zap.Error(err))
		return
	}
	atomic.AddUint64(&p.published, 1)
	p.log.Debug("published state", zap.Int("bytes", len(payload)))
}

// statePayload renders a snapshot plus the current settings as one
// multi-asset state message.
func (p *Publisher) statePayload(snap station.Snapshot) []byte {
	pm25f, pm10f := p.st.PMFactors()
	alState := p.al.State()

	msg := map[string]assetValue{
		"pm1":     {snap.PM1},
		"pm2-5":   {snap.PM25},
		"pm10":    {snap.PM10},
		"pm1-c":   {snap.PM1Corrected},
		"pm2-5-c": {snap.PM25Corrected},
		"pm10-c":  {snap.PM10Corrected},

		"count-0-3":  {snap.Count03},
		"count-0-5":  {snap.Count05},
		"count-1-0":  {snap.Count10},
		"count-2-5":  {snap.Count25},
		"count-5-0":  {snap.Count50},
		"count-10-0": {snap.Count100},

		"temperature": {round1(snap.Temperature)},
		"humidity":    {round1(snap.Humidity)},
		"pressure":    {round1(snap.Pressure)},
		"dewpoint":    {round1(snap.DewPoint)},
		"humidityAbs": {round1(snap.AbsoluteHumidity)},
		"pressureSea": {round1(snap.SeaLevelPressure)},
		"HeatIndex":   {round1(snap.HeatIndex)},
		"altitude":    {round1(snap.Altitude)},

		"air-quality":   {snap.AirQuality.String()},
		"sensor-status": {station.CombinedStatus(snap.ParticleStatus, snap.EnvStatus)},

		"interval":           {p.st.PublishInterval()},
		"temperature-offset": {round1(p.st.TempOffset())},
		"altitude-set":       {p.st.Altitude()},
		"alarm-enable":       {alState.Enabled},
		"deep-sleep":         {!p.st.Continuous()},
		"calibration":        {fmt.Sprintf("%.2f,%.2f", pm25f, pm10f)},
	}

	b, _ := json.Marshal(msg)
	return b
}

func alarmPayload(ev alarm.Event) []byte {
	b, _ := json.Marshal(map[string]assetValue{
		"alarm": {ev.Reason},
	})
	return b
}

func round1(v float32) float64 {
	return math.Round(float64(v)*10) / 10
}

// commandAsset extracts the asset name from a
// device/{id}/asset/{name}/command topic.
func commandAsset(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 5 || parts[0] != "device" || parts[2] != "asset" || parts[4] != "command" {
		return "", false
	}
	return parts[3], true
}

// handleCommand applies one remote command. Rejected values are logged
// and dropped; the device keeps running on its previous settings.
func (p *Publisher) handleCommand(topic string, payload []byte) {
	asset, ok := commandAsset(topic)
	if !ok {
		return
	}

	var cmd struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(payload, &cmd); err != nil {
		p.log.Warn("bad command payload", zap.String("asset", asset), zap.Error(err))
		return
	}

	var err error
	switch asset {
	case "interval":
		var v float64
		if err = json.Unmarshal(cmd.Value, &v); err == nil {
			if err = p.st.SetPublishInterval(int(v)); err == nil {
				p.persist(func(c *config.Config) { c.Acquisition.PublishMinutes = int(v) })
			}
		}
	case "temperature-offset":
		var v float64
		if err = json.Unmarshal(cmd.Value, &v); err == nil {
			if err = p.st.SetTempOffset(float32(v)); err == nil {
				p.persist(func(c *config.Config) { c.Calibration.TempOffset = float32(v) })
			}
		}
	case "altitude-set":
		var v float64
		if err = json.Unmarshal(cmd.Value, &v); err == nil {
			if err = p.st.SetAltitude(int(v)); err == nil {
				p.persist(func(c *config.Config) { c.Acquisition.AltitudeMeters = int(v) })
			}
		}
	case "alarm-enable":
		var v bool
		if err = json.Unmarshal(cmd.Value, &v); err == nil {
			p.al.SetEnabled(v)
			p.persist(func(c *config.Config) { c.Alarm.Disabled = !v })
		}
	case "deep-sleep":
		// Deep sleep on means the fan is duty cycled between reads.
		var v bool
		if err = json.Unmarshal(cmd.Value, &v); err == nil {
			p.st.SetContinuous(!v)
			p.persist(func(c *config.Config) { c.Acquisition.Continuous = !v })
		}
	case "calibration":
		var v string
		if err = json.Unmarshal(cmd.Value, &v); err == nil {
			err = p.applyCalibration(v)
		}
	default:
		p.log.Debug("ignoring unknown command asset", zap.String("asset", asset))
		return
	}

	if err != nil {
		p.log.Warn("command rejected", zap.String("asset", asset), zap.Error(err))
		return
	}
	p.log.Info("command applied", zap.String("asset", asset))
}

// applyCalibration parses a "pm25,pm10" factor pair.
func (p *Publisher) applyCalibration(v string) error {
	parts := strings.Split(v, ",")
	if len(parts) != 2 {
		return fmt.Errorf(`calibration wants "pm25,pm10", got %q`, v)
	}
	pm25, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 32)
	if err != nil {
		return fmt.Errorf("pm2.5 factor: %w", err)
	}
	pm10, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 32)
	if err != nil {
		return fmt.Errorf("pm10 factor: %w", err)
	}
	if err := p.st.SetPMFactors(float32(pm25), float32(pm10)); err != nil {
		return err
	}
	p.persist(func(c *config.Config) {
		c.Calibration.PM25Factor = float32(pm25)
		c.Calibration.PM10Factor = float32(pm10)
	})
	return nil
}
