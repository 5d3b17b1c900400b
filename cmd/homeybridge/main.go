// Homey Bridge - Gray Logic adapter for Homey hubs
//
// This is the main entry point for the Homey bridge. It connects to one or
// more Homey hubs over WebSocket, keeps their entities in a local registry,
// and exposes them on MQTT and an HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	_ "github.com/nerrad567/gray-logic-homey/migrations"

	"github.com/nerrad567/gray-logic-homey/internal/api"
	"github.com/nerrad567/gray-logic-homey/internal/bridges/homey"
	"github.com/nerrad567/gray-logic-homey/internal/entity"
	"github.com/nerrad567/gray-logic-homey/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-homey/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-homey/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-homey/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-homey/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-homey/internal/infrastructure/redis"
	"github.com/nerrad567/gray-logic-homey/internal/notify"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Deferred cleanups run in reverse order: adapters, API, Redis, InfluxDB,
// MQTT, database.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // Linear startup sequence
	log := logging.Default()
	log.Info("starting Homey bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath, "hubs", len(cfg.Hubs))

	log = logging.New(cfg.Logging, version)

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	registry := entity.NewRegistry(entity.NewSQLiteRepository(db.DB))
	registry.SetLogger(log.With("component", "entity"))
	if refreshErr := registry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading entity registry: %w", refreshErr)
	}
	log.Info("entity registry initialised", "entities", registry.Count())

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.With("component", "mqtt"))
	mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
	mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	influxClient, err := connectInflux(ctx, cfg, log)
	if err != nil {
		return err
	}
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		registry.AddListener(func(change entity.StateChange) {
			influxClient.WriteEntityState(change.AdapterID, change.EntityID, string(change.Domain), change.Changes)
		})
	}

	mirror, closeRedis, err := startStateMirror(ctx, cfg, registry, log)
	if err != nil {
		return err
	}
	if mirror != nil {
		defer closeRedis()
		registry.AddListener(func(change entity.StateChange) {
			mirror.Enqueue(change.EntityID, change.State)
		})
	}

	center := notify.NewCenter(log.With("component", "notify"))
	center.SetPublisher(mqttClient, mqtt.Topics{}.HomeyNotification)

	bridge, err := homey.NewBridge(homey.BridgeOptions{
		BridgeID:       cfg.Bridge.ID,
		Version:        version,
		Hubs:           cfg.Hubs,
		HealthInterval: cfg.GetHealthInterval(),
		Registry:       registry,
		Notifier:       center,
		MQTT:           mqttClient,
		Metrics:        homey.NewMetrics(prometheus.DefaultRegisterer),
		Logger:         log.With("component", "homey"),
		AdapterLogger:  func(id string) homey.Logger { return log.ForAdapter(id) },
	})
	if err != nil {
		return fmt.Errorf("creating Homey bridge: %w", err)
	}

	server, err := api.New(api.Deps{
		Config:        cfg.API,
		WS:            cfg.WebSocket,
		Logger:        log.With("component", "api"),
		Registry:      registry,
		Bridge:        bridge,
		Notifications: center,
		Gatherer:      prometheus.DefaultGatherer,
		Registerer:    prometheus.DefaultRegisterer,
		Version:       version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if startErr := bridge.Start(ctx); startErr != nil {
		return fmt.Errorf("starting Homey bridge: %w", startErr)
	}
	defer func() {
		log.Info("stopping Homey bridge")
		bridge.Stop()
	}()
	log.Info("Homey bridge started", "adapters", len(bridge.Adapters()))

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	return nil
}

// getConfigPath returns the configuration file path.
// Uses HOMEY_BRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HOMEY_BRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// connectInflux returns nil, nil when InfluxDB is disabled.
func connectInflux(ctx context.Context, cfg *config.Config, log *logging.Logger) (*influxdb.Client, error) {
	if !cfg.InfluxDB.Enabled {
		log.Info("InfluxDB disabled")
		return nil, nil
	}

	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Org,
		"bucket", cfg.InfluxDB.Bucket,
	)
	return client, nil
}

// startStateMirror connects Redis, prunes states of entities that no longer
// exist, seeds the cache from the registry and starts the mirror goroutine.
// It returns a nil mirror when Redis is disabled.
func startStateMirror(ctx context.Context, cfg *config.Config, registry *entity.Registry, log *logging.Logger) (*redis.Mirror, func(), error) {
	if !cfg.Redis.Enabled {
		log.Info("Redis state cache disabled")
		return nil, nil, nil
	}

	rdb, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to Redis: %w", err)
	}
	cache := redis.NewStateCache(rdb, cfg.GetStateTTL())

	entities := registry.List(ctx)
	ids := make([]string, 0, len(entities))
	for _, e := range entities {
		ids = append(ids, e.ID)
	}
	removed, err := cache.RemoveAllExcept(ctx, ids)
	if err != nil {
		log.Warn("pruning cached entity states", "error", err)
	} else if len(removed) > 0 {
		log.Info("pruned cached states of unknown entities", "count", len(removed))
	}

	mirrorCtx, cancel := context.WithCancel(ctx)
	mirror := redis.NewMirror(cache, 0, log.With("component", "redis"))
	for _, e := range entities {
		mirror.Enqueue(e.ID, e.Attributes)
	}
	go mirror.Run(mirrorCtx)
	log.Info("Redis state cache connected", "addr", cfg.Redis.Addr, "seeded", len(entities))

	return mirror, func() {
		cancel()
		log.Info("closing Redis connection", "written", mirror.Written(), "dropped", mirror.Dropped())
		if closeErr := rdb.Close(); closeErr != nil {
			log.Error("error closing Redis", "error", closeErr)
		}
	}, nil
}

// healthCheck verifies all infrastructure connections are healthy.
// influxClient may be nil if disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	// Hub connections are not checked: adapters reconnect on their own and
	// report through the health topic.
	return nil
}
