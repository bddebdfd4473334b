// Package dashboard serves the local web UI, the JSON API and the
// Prometheus metrics endpoint.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/zmilosevic/vazduh/pkg/alarm"
	"github.com/zmilosevic/vazduh/pkg/config"
	"github.com/zmilosevic/vazduh/pkg/history"
	"github.com/zmilosevic/vazduh/pkg/publish"
	"github.com/zmilosevic/vazduh/pkg/station"
)

// Server exposes the station state over HTTP.
type Server struct {
	addr     string
	deviceID string
	st       *station.Station
	al       *alarm.Evaluator
	hist     *history.Log
	pub      *publish.Publisher
	log      *zap.Logger
	start    time.Time
}

// New creates the dashboard server. pub may be nil when MQTT is
// disabled; publish counters are then omitted.
func New(cfg *config.Config, st *station.Station, al *alarm.Evaluator, hist *history.Log, pub *publish.Publisher, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		addr:     cfg.HTTP.Addr,
		deviceID: cfg.Device.ID,
		st:       st,
		al:       al,
		hist:     hist,
		pub:      pub,
		log:      log,
		start:    time.Now(),
	}
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods("GET")
	r.HandleFunc("/api/data", s.handleData).Methods("GET")
	r.HandleFunc("/api/status", s.handleStatus).Methods("GET")
	r.HandleFunc("/api/log", s.handleLog).Methods("GET")
	r.HandleFunc("/metrics", s.handleMetrics).Methods("GET")
	return r
}

// Run serves until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Handler:      s.routes(),
		Addr:         s.addr,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.Info("dashboard listening", zap.String("addr", s.addr))

	select {
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}

type dataResponse struct {
	Time      time.Time `json:"time"`
	PM1       int       `json:"pm1"`
	PM25      int       `json:"pm25"`
	PM10      int       `json:"pm10"`
	PM1C      int       `json:"pm1c"`
	PM25C     int       `json:"pm25c"`
	PM10C     int       `json:"pm10c"`
	Temp      float32   `json:"temp"`
	Hum       float32   `json:"hum"`
	Pres      float32   `json:"pres"`
	Dewpoint  float32   `json:"dewpoint"`
	HeatIndex float32   `json:"heatIndex"`
	AbsHum    float32   `json:"absHum"`
	SeaPres   float32   `json:"seaPres"`
	Altitude  float32   `json:"altitude"`
	AQ        string    `json:"aq"`
	Uptime    string    `json:"uptime"`
	Alarm     bool      `json:"alarm"`
}

func (s *Server) handleData(w http.ResponseWriter, _ *http.Request) {
	snap := s.st.Snapshot()

	resp := dataResponse{
		Time:      snap.Time,
		PM1:       snap.PM1,
		PM25:      snap.PM25,
		PM10:      snap.PM10,
		PM1C:      snap.PM1Corrected,
		PM25C:     snap.PM25Corrected,
		PM10C:     snap.PM10Corrected,
		Temp:      snap.Temperature,
		Hum:       snap.Humidity,
		Pres:      snap.Pressure,
		Dewpoint:  snap.DewPoint,
		HeatIndex: snap.HeatIndex,
		AbsHum:    snap.AbsoluteHumidity,
		SeaPres:   snap.SeaLevelPressure,
		Altitude:  snap.Altitude,
		AQ:        snap.AirQuality.String(),
		Uptime:    formatUptime(time.Since(s.start)),
		Alarm:     s.al.State().Triggered,
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

type alarmStatus struct {
	Enabled       bool `json:"enabled"`
	Triggered     bool `json:"triggered"`
	PM25Threshold int  `json:"pm25Threshold"`
	PM10Threshold int  `json:"pm10Threshold"`
	CooldownSec   int  `json:"cooldownSec"`
}

type statsBlock struct {
	Cycles           uint64 `json:"cycles"`
	ParticleReads    uint64 `json:"particleReads"`
	ParticleFailures uint64 `json:"particleFailures"`
	EnvReads         uint64 `json:"envReads"`
	EnvFailures      uint64 `json:"envFailures"`
	Frames           uint64 `json:"frames"`
	SyncErrors       uint64 `json:"syncErrors"`
	LengthErrors     uint64 `json:"lengthErrors"`
	ChecksumErrors   uint64 `json:"checksumErrors"`
	Timeouts         uint64 `json:"timeouts"`
	Published        uint64 `json:"published"`
	PublishFailures  uint64 `json:"publishFailures"`
	HistoryEntries   int    `json:"historyEntries"`
}

type statusResponse struct {
	Device         string      `json:"device"`
	Status         string      `json:"status"`
	ParticleStatus string      `json:"particleStatus"`
	EnvStatus      string      `json:"envStatus"`
	UptimeSeconds  int64       `json:"uptimeSeconds"`
	Alarm          alarmStatus `json:"alarm"`
	Stats          statsBlock  `json:"stats"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap := s.st.Snapshot()
	stats := s.st.Stats()
	alState := s.al.State()

	resp := statusResponse{
		Device:         s.deviceID,
		Status:         station.CombinedStatus(snap.ParticleStatus, snap.EnvStatus),
		ParticleStatus: snap.ParticleStatus.String(),
		EnvStatus:      snap.EnvStatus.String(),
		UptimeSeconds:  int64(time.Since(s.start).Seconds()),
		Alarm: alarmStatus{
			Enabled:       alState.Enabled,
			Triggered:     alState.Triggered,
			PM25Threshold: alState.PM25Threshold,
			PM10Threshold: alState.PM10Threshold,
			CooldownSec:   int(alState.Cooldown.Seconds()),
		},
		Stats: statsBlock{
			Cycles:           stats.Cycles,
			ParticleReads:    stats.ParticleReads,
			ParticleFailures: stats.ParticleFailures,
			EnvReads:         stats.EnvReads,
			EnvFailures:      stats.EnvFailures,
			Frames:           stats.Decode.Frames,
			SyncErrors:       stats.Decode.SyncErrors,
			LengthErrors:     stats.Decode.LengthErrors,
			ChecksumErrors:   stats.Decode.ChecksumErrors,
			Timeouts:         stats.Decode.Timeouts,
			HistoryEntries:   s.hist.Len(),
		},
	}
	if s.pub != nil {
		pubStats := s.pub.Stats()
		resp.Stats.Published = pubStats.Published
		resp.Stats.PublishFailures = pubStats.Failed
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleLog(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.hist.Entries())
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	snap := s.st.Snapshot()
	stats := s.st.Stats()
	alState := s.al.State()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	m := metricWriter{w: w, device: s.deviceID}
	m.gauge("vazduh_pm1", "PM1.0 concentration in µg/m³", snap.PM1)
	m.gauge("vazduh_pm25", "PM2.5 concentration in µg/m³", snap.PM25)
	m.gauge("vazduh_pm10", "PM10 concentration in µg/m³", snap.PM10)
	m.gauge("vazduh_pm25_corrected", "Humidity-corrected PM2.5 in µg/m³", snap.PM25Corrected)
	m.gauge("vazduh_pm10_corrected", "Humidity-corrected PM10 in µg/m³", snap.PM10Corrected)
	m.gauge("vazduh_temperature", "Temperature in Celsius", snap.Temperature)
	m.gauge("vazduh_humidity", "Relative humidity in percent", snap.Humidity)
	m.gauge("vazduh_pressure", "Atmospheric pressure in hPa", snap.Pressure)
	m.gauge("vazduh_heat_index", "Heat index in Celsius", snap.HeatIndex)
	m.gauge("vazduh_dewpoint", "Dewpoint temperature in Celsius", snap.DewPoint)
	m.counter("vazduh_uptime_seconds", "Daemon uptime in seconds", uint64(time.Since(s.start).Seconds()))

	triggered := 0
	if alState.Triggered {
		triggered = 1
	}
	m.gauge("vazduh_alarm_triggered", "Alarm currently triggered (1=yes, 0=no)", triggered)

	m.counter("vazduh_cycles_total", "Completed read cycles", stats.Cycles)
	m.counter("vazduh_particle_failures_total", "Particle sensor read failures", stats.ParticleFailures)
	m.counter("vazduh_env_failures_total", "Environmental sensor read failures", stats.EnvFailures)
	m.counter("vazduh_decoder_frames_total", "Valid frames decoded", stats.Decode.Frames)
	m.counter("vazduh_decoder_checksum_errors_total", "Frames dropped for bad checksum", stats.Decode.ChecksumErrors)
	m.counter("vazduh_decoder_sync_errors_total", "Sync losses while scanning the byte stream", stats.Decode.SyncErrors)

	if s.pub != nil {
		pubStats := s.pub.Stats()
		m.counter("vazduh_publishes_total", "Total successful MQTT publishes", pubStats.Published)
		m.counter("vazduh_publishes_failed", "Total failed MQTT publishes", pubStats.Failed)
	}

	m.gauge("vazduh_particle_count_0_3", "Particle count >0.3µm per 0.1L", snap.Count03)
	m.gauge("vazduh_particle_count_2_5", "Particle count >2.5µm per 0.1L", snap.Count25)
}

// metricWriter renders Prometheus text exposition lines.
type metricWriter struct {
	w      io.Writer
	device string
}

func (m metricWriter) emit(name, typ, help, value string) {
	fmt.Fprintf(m.w, "# HELP %s %s\n# TYPE %s %s\n%s{device=%q} %s\n",
		name, help, name, typ, name, m.device, value)
}

func (m metricWriter) gauge(name, help string, v any)   { m.emit(name, "gauge", help, metricValue(v)) }
func (m metricWriter) counter(name, help string, v any) { m.emit(name, "counter", help, metricValue(v)) }

func metricValue(v any) string {
	switch x := v.(type) {
	case float32:
		return strconv.FormatFloat(float64(x), 'f', 2, 32)
	case float64:
		return strconv.FormatFloat(x, 'f', 2, 64)
	case int:
		return strconv.Itoa(x)
	case uint64:
		return strconv.FormatUint(x, 10)
	default:
		return fmt.Sprint(x)
	}
}

// formatUptime renders d the way the status line shows it, e.g.
// "1d 02:03:04".
func formatUptime(d time.Duration) string {
	secs := int64(d.Seconds())
	days := secs / 86400
	secs %= 86400
	return fmt.Sprintf("%dd %02d:%02d:%02d", days, secs/3600, (secs%3600)/60, secs%60)
}
