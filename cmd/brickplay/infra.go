package main

import (
	"context"
	"fmt"

	"github.com/nerrad567/brickplay-core/internal/infrastructure/config"
	"github.com/nerrad567/brickplay-core/internal/infrastructure/database"
	"github.com/nerrad567/brickplay-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/brickplay-core/internal/infrastructure/logging"
	"github.com/nerrad567/brickplay-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/brickplay-core/internal/play"
)

// infra holds the station's external connections. close releases them in
// reverse order of opening.
type infra struct {
	db     *database.DB
	mqtt   *mqtt.Client
	influx *influxdb.Client // nil when telemetry is disabled

	log     *logging.Logger
	closers []func()
}

func (in *infra) onClose(name string, fn func() error) {
	in.closers = append(in.closers, func() {
		in.log.Info("closing " + name)
		if err := fn(); err != nil {
			in.log.Error("error closing "+name, "error", err)
		}
	})
}

func (in *infra) close() {
	for i := len(in.closers) - 1; i >= 0; i-- {
		in.closers[i]()
	}
	in.closers = nil
}

// openInfra connects the database (migrated), the broker and, when
// enabled, InfluxDB. On error everything already opened is closed.
func openInfra(ctx context.Context, cfg *config.Config, log *logging.Logger) (_ *infra, err error) {
	in := &infra{log: log}
	defer func() {
		if err != nil {
			in.close()
		}
	}()

	in.db, err = database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	in.onClose("database", in.db.Close)
	if err = in.db.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	in.mqtt, err = mqtt.Connect(cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	in.onClose("MQTT", in.mqtt.Close)
	in.mqtt.SetLogger(log)
	in.mqtt.SetOnConnect(func() { log.Info("MQTT connected") })
	in.mqtt.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID)

	if !cfg.InfluxDB.Enabled {
		log.Info("InfluxDB disabled, session telemetry is not recorded")
		return in, nil
	}
	in.influx, err = influxdb.Connect(ctx, cfg.InfluxDB)
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	in.onClose("InfluxDB", in.influx.Close)
	in.influx.SetOnError(func(err error) { log.Error("InfluxDB write error", "error", err) })
	log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)

	return in, nil
}

// telemetry returns the InfluxDB client as a play.Telemetry, or a nil
// interface when disabled.
func (in *infra) telemetry() play.Telemetry {
	if in.influx == nil {
		return nil
	}
	return in.influx
}

func (in *infra) healthCheck(ctx context.Context) error {
	if err := in.db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := in.mqtt.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if in.influx != nil {
		if err := in.influx.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
