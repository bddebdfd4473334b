// Package config holds the station configuration: sensor links,
// acquisition timing, calibration, alarm thresholds and the outward
// surfaces (MQTT, HTTP). Secrets and deploy-specific values can be
// overridden through the environment so the YAML file stays shareable.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/zmilosevic/vazduh/pkg/filter"
)

// Config represents the application configuration.
type Config struct {
	Device      DeviceConfig      `yaml:"device"`
	Serial      SerialConfig      `yaml:"serial"`
	I2C         I2CConfig         `yaml:"i2c"`
	Acquisition AcquisitionConfig `yaml:"acquisition"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Alarm       AlarmConfig       `yaml:"alarm"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	HTTP        HTTPConfig        `yaml:"http"`
	History     HistoryConfig     `yaml:"history"`
	Log         LogConfig         `yaml:"log"`
	Sim         SimConfig         `yaml:"sim"`
}

// DeviceConfig identifies this station.
type DeviceConfig struct {
	ID string `yaml:"id"` // used in MQTT topics; generated when empty
}

// SerialConfig contains the particle sensor's serial link.
type SerialConfig struct {
	Port string `yaml:"port"`
}

// I2CConfig contains the environmental sensor's bus.
type I2CConfig struct {
	Device string `yaml:"device"`
}

// AcquisitionConfig contains read scheduling and smoothing parameters.
type AcquisitionConfig struct {
	PublishMinutes int           `yaml:"publish_minutes"` // minutes between publishes; one filter window fills in between
	Window         int           `yaml:"window"`          // samples per filter window
	Smoothing      string        `yaml:"smoothing"`       // "average" or "median"
	ReadTimeout    time.Duration `yaml:"read_timeout"`    // per-frame read deadline
	Continuous     bool          `yaml:"continuous"`      // keep the particle sensor awake between reads
	AltitudeMeters int           `yaml:"altitude_meters"` // station altitude for sea-level pressure; 0 disables
}

// CalibrationConfig contains per-unit correction values.
type CalibrationConfig struct {
	PM25Factor float32 `yaml:"pm25_factor"`
	PM10Factor float32 `yaml:"pm10_factor"`
	TempOffset float32 `yaml:"temp_offset"` // degC added to raw temperature
	HumOffset  float32 `yaml:"hum_offset"`  // %RH added after temperature compensation
}

// AlarmConfig contains threshold alarm settings.
type AlarmConfig struct {
	Disabled      bool          `yaml:"disabled"`
	PM25Threshold int           `yaml:"pm25_threshold"` // ug/m3
	PM10Threshold int           `yaml:"pm10_threshold"` // ug/m3
	Cooldown      time.Duration `yaml:"cooldown"`
}

// MQTTConfig contains the publisher connection.
type MQTTConfig struct {
	Disabled bool   `yaml:"disabled"`
	Broker   string `yaml:"broker"` // e.g. tcp://broker.local:1883
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// HTTPConfig contains the dashboard/metrics listener.
type HTTPConfig struct {
	Disabled bool   `yaml:"disabled"`
	Addr     string `yaml:"addr"`
}

// HistoryConfig contains the measurement log. File, when set, makes
// the log survive restarts.
type HistoryConfig struct {
	Size int    `yaml:"size"`
	File string `yaml:"file"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// SimConfig contains simulated sensor parameters for running without
// hardware.
type SimConfig struct {
	Enabled         bool    `yaml:"enabled"`
	BasePM25        float64 `yaml:"base_pm25"`        // ug/m3
	BaseTemperature float64 `yaml:"base_temperature"` // degC
	BaseHumidity    float64 `yaml:"base_humidity"`    // %RH
	BasePressure    float64 `yaml:"base_pressure"`    // hPa
	Noise           float64 `yaml:"noise"`            // relative noise amplitude
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			ID: "", // generated on first load
		},
		Serial: SerialConfig{
			Port: "/dev/ttyUSB0",
		},
		I2C: I2CConfig{
			Device: "/dev/i2c-1",
		},
		Acquisition: AcquisitionConfig{
			PublishMinutes: 5,
			Window:         filter.DefaultWindow,
			Smoothing:      filter.NameAverage,
			ReadTimeout:    time.Second,
			Continuous:     false,
			AltitudeMeters: 0,
		},
		Calibration: CalibrationConfig{
			PM25Factor: 1.0,
			PM10Factor: 1.0,
			TempOffset: 0,
			HumOffset:  0,
		},
		Alarm: AlarmConfig{
			PM25Threshold: 35, // WHO 24h guideline
			PM10Threshold: 45,
			Cooldown:      time.Hour,
		},
		MQTT: MQTTConfig{
			Broker: "tcp://localhost:1883",
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		History: HistoryConfig{
			Size: 100,
		},
		Log: LogConfig{
			Level: "info",
		},
		Sim: SimConfig{
			BasePM25:        12,
			BaseTemperature: 21,
			BaseHumidity:    45,
			BasePressure:    1007,
			Noise:           0.05,
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment variables (optionally from a .env file) override
// the deploy-specific fields afterwards.
func Load(filename string) (*Config, error) {
	_ = godotenv.Load() // a .env file is optional

	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()
	cfg.applyEnv()
	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Device.ID == "" {
		c.Device.ID = "vazduh-" + uuid.NewString()[:8]
	}

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.I2C.Device == "" {
		c.I2C.Device = def.I2C.Device
	}

	if c.Acquisition.PublishMinutes == 0 {
		c.Acquisition.PublishMinutes = def.Acquisition.PublishMinutes
	}
	if c.Acquisition.Window == 0 {
		c.Acquisition.Window = def.Acquisition.Window
	}
	if c.Acquisition.Smoothing == "" {
		c.Acquisition.Smoothing = def.Acquisition.Smoothing
	}
	if c.Acquisition.ReadTimeout == 0 {
		c.Acquisition.ReadTimeout = def.Acquisition.ReadTimeout
	}

	if c.Calibration.PM25Factor == 0 {
		c.Calibration.PM25Factor = def.Calibration.PM25Factor
	}
	if c.Calibration.PM10Factor == 0 {
		c.Calibration.PM10Factor = def.Calibration.PM10Factor
	}

	if c.Alarm.PM25Threshold == 0 {
		c.Alarm.PM25Threshold = def.Alarm.PM25Threshold
	}
	if c.Alarm.PM10Threshold == 0 {
		c.Alarm.PM10Threshold = def.Alarm.PM10Threshold
	}
	if c.Alarm.Cooldown == 0 {
		c.Alarm.Cooldown = def.Alarm.Cooldown
	}

	if c.MQTT.Broker == "" {
		c.MQTT.Broker = def.MQTT.Broker
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = def.HTTP.Addr
	}
	if c.History.Size == 0 {
		c.History.Size = def.History.Size
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}

	if c.Sim.BasePM25 == 0 {
		c.Sim.BasePM25 = def.Sim.BasePM25
	}
	if c.Sim.BaseTemperature == 0 {
		c.Sim.BaseTemperature = def.Sim.BaseTemperature
	}
	if c.Sim.BaseHumidity == 0 {
		c.Sim.BaseHumidity = def.Sim.BaseHumidity
	}
	if c.Sim.BasePressure == 0 {
		c.Sim.BasePressure = def.Sim.BasePressure
	}
	if c.Sim.Noise == 0 {
		c.Sim.Noise = def.Sim.Noise
	}
}

// applyEnv overrides deploy-specific fields from the environment.
func (c *Config) applyEnv() {
	c.Device.ID = getEnv("VAZDUH_DEVICE_ID", c.Device.ID)
	c.Serial.Port = getEnv("VAZDUH_SERIAL_PORT", c.Serial.Port)
	c.I2C.Device = getEnv("VAZDUH_I2C_DEVICE", c.I2C.Device)
	c.MQTT.Broker = getEnv("VAZDUH_MQTT_BROKER", c.MQTT.Broker)
	c.MQTT.Username = getEnv("VAZDUH_MQTT_USERNAME", c.MQTT.Username)
	c.MQTT.Password = getEnv("VAZDUH_MQTT_PASSWORD", c.MQTT.Password)
	c.HTTP.Addr = getEnv("VAZDUH_HTTP_ADDR", c.HTTP.Addr)
	c.Log.Level = getEnv("VAZDUH_LOG_LEVEL", c.Log.Level)
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// Validate rejects values outside the ranges the pipeline is specified
// for. It is called once at startup; runtime reconfiguration revalidates
// through the station and alarm setters.
func (c *Config) Validate() error {
	a := c.Acquisition
	if a.PublishMinutes < 1 || a.PublishMinutes > 60 {
		return fmt.Errorf("acquisition.publish_minutes %d out of range [1,60]", a.PublishMinutes)
	}
	if a.Window < 1 || a.Window > filter.MaxWindow {
		return fmt.Errorf("acquisition.window %d out of range [1,%d]", a.Window, filter.MaxWindow)
	}
	if _, err := filter.ForName(a.Smoothing, a.Window); err != nil {
		return fmt.Errorf("acquisition.smoothing: %w", err)
	}
	if a.ReadTimeout < 100*time.Millisecond || a.ReadTimeout > 10*time.Second {
		return fmt.Errorf("acquisition.read_timeout %s out of range [100ms,10s]", a.ReadTimeout)
	}
	if a.AltitudeMeters < 0 || a.AltitudeMeters > 8850 {
		return fmt.Errorf("acquisition.altitude_meters %d out of range [0,8850]", a.AltitudeMeters)
	}

	if err := validFactor("calibration.pm25_factor", c.Calibration.PM25Factor); err != nil {
		return err
	}
	if err := validFactor("calibration.pm10_factor", c.Calibration.PM10Factor); err != nil {
		return err
	}
	if o := c.Calibration.TempOffset; o < -20 || o > 20 {
		return fmt.Errorf("calibration.temp_offset %.1f out of range [-20,20]", o)
	}
	if o := c.Calibration.HumOffset; o < -30 || o > 30 {
		return fmt.Errorf("calibration.hum_offset %.1f out of range [-30,30]", o)
	}

	if t := c.Alarm.PM25Threshold; t < 1 || t > 500 {
		return fmt.Errorf("alarm.pm25_threshold %d out of range [1,500]", t)
	}
	if t := c.Alarm.PM10Threshold; t < 1 || t > 500 {
		return fmt.Errorf("alarm.pm10_threshold %d out of range [1,500]", t)
	}
	if d := c.Alarm.Cooldown; d < time.Minute || d > 24*time.Hour {
		return fmt.Errorf("alarm.cooldown %s out of range [1m,24h]", d)
	}

	if !c.MQTT.Disabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker must be set when MQTT is enabled")
	}
	if c.History.Size < 1 || c.History.Size > 10000 {
		return fmt.Errorf("history.size %d out of range [1,10000]", c.History.Size)
	}
	return nil
}

func validFactor(name string, f float32) error {
	if f < 0.1 || f > 10.0 {
		return fmt.Errorf("%s %.2f out of range [0.1,10.0]", name, f)
	}
	return nil
}
