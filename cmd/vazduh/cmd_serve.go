package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zmilosevic/vazduh/pkg/alarm"
	"github.com/zmilosevic/vazduh/pkg/bme280"
	"github.com/zmilosevic/vazduh/pkg/config"
	"github.com/zmilosevic/vazduh/pkg/dashboard"
	"github.com/zmilosevic/vazduh/pkg/history"
	"github.com/zmilosevic/vazduh/pkg/logging"
	"github.com/zmilosevic/vazduh/pkg/pms"
	"github.com/zmilosevic/vazduh/pkg/publish"
	"github.com/zmilosevic/vazduh/pkg/sim"
	"github.com/zmilosevic/vazduh/pkg/station"
)

var (
	configPath string
	simulate   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the station daemon",
	Long: `Read the sensors on the configured cadence, publish measurements
over MQTT and serve the local dashboard.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "vazduh.yaml", "path to the config file")
	serveCmd.Flags().BoolVar(&simulate, "simulate", false, "use simulated sensors instead of hardware")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if simulate {
		cfg.Sim.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, err := logging.New(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("vazduh starting",
		zap.String("version", version),
		zap.String("device", cfg.Device.ID),
		zap.Bool("simulated", cfg.Sim.Enabled),
	)

	particle, env, closeSensors, err := buildSensors(cfg)
	if err != nil {
		return err
	}
	defer closeSensors()

	st, err := station.New(cfg, particle, env, log)
	if err != nil {
		return err
	}

	al := alarm.New()
	al.SetEnabled(!cfg.Alarm.Disabled)
	if err := al.SetThresholds(cfg.Alarm.PM25Threshold, cfg.Alarm.PM10Threshold); err != nil {
		return err
	}
	if err := al.SetCooldown(cfg.Alarm.Cooldown); err != nil {
		return err
	}

	hist := history.NewLog(cfg.History.Size)
	if cfg.History.File != "" {
		if err := hist.LoadFile(cfg.History.File); err != nil {
			log.Warn("history load failed", zap.Error(err))
		}
	}

	// Remote commands persist their change so it survives restarts.
	var persistMu sync.Mutex
	persist := func(m func(*config.Config)) {
		persistMu.Lock()
		defer persistMu.Unlock()
		m(cfg)
		if err := cfg.Save(configPath); err != nil {
			log.Warn("config save failed", zap.Error(err))
		}
	}

	var pub *publish.Publisher
	if !cfg.MQTT.Disabled {
		pub = publish.New(cfg, st, al, persist, log)
	}
	var dash *dashboard.Server
	if !cfg.HTTP.Disabled {
		dash = dashboard.New(cfg, st, al, hist, pub, log)
	}

	wireSnapshots(cfg, st, al, hist, pub, log)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()

	errCh := make(chan error, 3)
	running := 1
	go func() { errCh <- st.Run(ctx) }()
	if pub != nil {
		running++
		go func() { errCh <- pub.Run(ctx) }()
	}
	if dash != nil {
		running++
		go func() { errCh <- dash.Run(ctx) }()
	}

	var firstErr error
	for i := 0; i < running; i++ {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
			cancel()
		}
	}
	log.Info("vazduh stopped")
	return firstErr
}

// buildSensors returns the particle and environmental sensors, either
// simulated or on real hardware, plus a cleanup for the opened ports.
func buildSensors(cfg *config.Config) (station.ParticleSensor, station.EnvSensor, func(), error) {
	if cfg.Sim.Enabled {
		return pms.New(sim.NewParticlePort(cfg.Sim)), sim.NewEnv(cfg.Sim), func() {}, nil
	}

	port, err := pms.OpenSerial(cfg.Serial.Port)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open %s: %w", cfg.Serial.Port, err)
	}
	env, err := bme280.Open(cfg.I2C.Device)
	if err != nil {
		port.Close()
		return nil, nil, nil, err
	}
	closer := func() {
		env.Close()
		port.Close()
	}
	return pms.New(port), env, closer, nil
}

// wireSnapshots runs the per-snapshot pipeline on the acquisition
// goroutine: alarm evaluation on every snapshot, history and MQTT on
// the snapshot closing each publish interval.
func wireSnapshots(cfg *config.Config, st *station.Station, al *alarm.Evaluator, hist *history.Log, pub *publish.Publisher, log *zap.Logger) {
	var cycles int
	st.OnUpdate(func(snap station.Snapshot) {
		if ev := al.Evaluate(snap.PM25, snap.PM10, snap.Time); ev != nil {
			switch ev.Kind {
			case alarm.KindTriggered:
				log.Warn("alarm triggered", zap.String("reason", ev.Reason))
				if pub != nil {
					pub.OfferAlarm(*ev)
				}
			case alarm.KindCleared:
				log.Info("alarm cleared")
			}
		}

		cycles++
		if cycles%st.Window() != 0 {
			return
		}

		hist.Append(history.Entry{
			Time:        snap.Time,
			PM1:         snap.PM1,
			PM25:        snap.PM25,
			PM10:        snap.PM10,
			Temperature: snap.Temperature,
			Humidity:    snap.Humidity,
			Pressure:    snap.Pressure,
		})
		if cfg.History.File != "" {
			if err := hist.SaveFile(cfg.History.File); err != nil {
				log.Warn("history save failed", zap.Error(err))
			}
		}
		if pub != nil {
			pub.Offer(snap)
		}
	})
}
