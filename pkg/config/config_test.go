package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotNil(t, cfg)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Port)
	assert.Equal(t, "/dev/i2c-1", cfg.I2C.Device)
	assert.Equal(t, 5, cfg.Acquisition.PublishMinutes)
	assert.Equal(t, 10, cfg.Acquisition.Window)
	assert.Equal(t, "average", cfg.Acquisition.Smoothing)
	assert.Equal(t, time.Second, cfg.Acquisition.ReadTimeout)
	assert.Equal(t, float32(1.0), cfg.Calibration.PM25Factor)
	assert.Equal(t, float32(1.0), cfg.Calibration.PM10Factor)
	assert.False(t, cfg.Alarm.Disabled)
	assert.Equal(t, 35, cfg.Alarm.PM25Threshold)
	assert.Equal(t, 45, cfg.Alarm.PM10Threshold)
	assert.Equal(t, time.Hour, cfg.Alarm.Cooldown)
	assert.Equal(t, 100, cfg.History.Size)
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Port)
	assert.NotEmpty(t, cfg.Device.ID, "device id should be generated")
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
device:
  id: "vazduh-balcony"

serial:
  port: "/dev/ttyAMA0"

acquisition:
  publish_minutes: 10
  window: 8
  smoothing: "median"
  read_timeout: 2s
  continuous: true
  altitude_meters: 117

calibration:
  pm25_factor: 0.48
  pm10_factor: 0.5
  temp_offset: -2.5
  hum_offset: 4

alarm:
  pm25_threshold: 50
  pm10_threshold: 80
  cooldown: 30m
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, "vazduh-balcony", cfg.Device.ID)
	assert.Equal(t, "/dev/ttyAMA0", cfg.Serial.Port)
	assert.Equal(t, 10, cfg.Acquisition.PublishMinutes)
	assert.Equal(t, 8, cfg.Acquisition.Window)
	assert.Equal(t, "median", cfg.Acquisition.Smoothing)
	assert.Equal(t, 2*time.Second, cfg.Acquisition.ReadTimeout)
	assert.True(t, cfg.Acquisition.Continuous)
	assert.Equal(t, 117, cfg.Acquisition.AltitudeMeters)
	assert.InDelta(t, 0.48, cfg.Calibration.PM25Factor, 1e-6)
	assert.InDelta(t, -2.5, cfg.Calibration.TempOffset, 1e-6)
	assert.Equal(t, 50, cfg.Alarm.PM25Threshold)
	assert.Equal(t, 30*time.Minute, cfg.Alarm.Cooldown)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	_, err = tmpfile.WriteString("invalid: yaml: content: [")
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_PartialYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
serial:
  port: "/dev/ttyAMA0"

acquisition:
  window: 4
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// Should use defaults for missing fields
	assert.Equal(t, "/dev/ttyAMA0", cfg.Serial.Port)
	assert.Equal(t, 4, cfg.Acquisition.Window)
	assert.Equal(t, 5, cfg.Acquisition.PublishMinutes)        // default
	assert.Equal(t, "average", cfg.Acquisition.Smoothing)     // default
	assert.Equal(t, float32(1.0), cfg.Calibration.PM10Factor) // default
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("VAZDUH_MQTT_BROKER", "tcp://broker.example:1883")
	t.Setenv("VAZDUH_MQTT_PASSWORD", "hunter2")

	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.Equal(t, "tcp://broker.example:1883", cfg.MQTT.Broker)
	assert.Equal(t, "hunter2", cfg.MQTT.Password)
}

func TestSave(t *testing.T) {
	cfg := Default()
	cfg.Device.ID = "vazduh-test"
	cfg.Serial.Port = "/dev/ttyS0"
	cfg.Acquisition.PublishMinutes = 15

	tmpfile, err := os.CreateTemp("", "test_save_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	err = cfg.Save(tmpfile.Name())
	require.NoError(t, err)

	// Load it back and verify
	loaded, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.Equal(t, "vazduh-test", loaded.Device.ID)
	assert.Equal(t, "/dev/ttyS0", loaded.Serial.Port)
	assert.Equal(t, 15, loaded.Acquisition.PublishMinutes)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"publish minutes zero", func(c *Config) { c.Acquisition.PublishMinutes = 0 }},
		{"publish minutes too high", func(c *Config) { c.Acquisition.PublishMinutes = 61 }},
		{"window too large", func(c *Config) { c.Acquisition.Window = 17 }},
		{"unknown smoothing", func(c *Config) { c.Acquisition.Smoothing = "kalman" }},
		{"read timeout too short", func(c *Config) { c.Acquisition.ReadTimeout = time.Millisecond }},
		{"altitude negative", func(c *Config) { c.Acquisition.AltitudeMeters = -5 }},
		{"altitude too high", func(c *Config) { c.Acquisition.AltitudeMeters = 9000 }},
		{"pm25 factor too small", func(c *Config) { c.Calibration.PM25Factor = 0.05 }},
		{"pm10 factor too large", func(c *Config) { c.Calibration.PM10Factor = 11 }},
		{"temp offset out of range", func(c *Config) { c.Calibration.TempOffset = 25 }},
		{"hum offset out of range", func(c *Config) { c.Calibration.HumOffset = -35 }},
		{"alarm threshold zero", func(c *Config) { c.Alarm.PM25Threshold = -1 }},
		{"alarm threshold too high", func(c *Config) { c.Alarm.PM10Threshold = 501 }},
		{"cooldown too short", func(c *Config) { c.Alarm.Cooldown = 30 * time.Second }},
		{"cooldown too long", func(c *Config) { c.Alarm.Cooldown = 25 * time.Hour }},
		{"history size zero", func(c *Config) { c.History.Size = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.ensureDefaults()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
