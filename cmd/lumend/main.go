// Lumen Core - Lighting Output Coordination Daemon
//
// This is the main entry point for the Lumen Core application.
// Lumen Core coordinates frame delivery to heterogeneous lighting
// output devices:
//   - Latest-frame coalescing per device (slow hardware never queues)
//   - Supervised initialization with bounded retries
//   - Runtime device policy (disable types without restarting)
//   - REST + WebSocket + MQTT surfaces for frame producers and UIs
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lumen-hub/lumen-core/migrations"

	"github.com/lumen-hub/lumen-core/internal/api"
	"github.com/lumen-hub/lumen-core/internal/device"
	"github.com/lumen-hub/lumen-core/internal/driver"
	"github.com/lumen-hub/lumen-core/internal/driver/virtual"
	"github.com/lumen-hub/lumen-core/internal/history"
	"github.com/lumen-hub/lumen-core/internal/infrastructure/config"
	"github.com/lumen-hub/lumen-core/internal/infrastructure/database"
	"github.com/lumen-hub/lumen-core/internal/infrastructure/influxdb"
	"github.com/lumen-hub/lumen-core/internal/infrastructure/logging"
	"github.com/lumen-hub/lumen-core/internal/infrastructure/mqtt"
	"github.com/lumen-hub/lumen-core/internal/policy"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// shutdownGrace is how long the manager waits for in-flight device updates
// and teardown workers before giving up on a stuck driver.
const shutdownGrace = 10 * time.Second

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	// This is the Go pattern for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Run the application
	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Lumen Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
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
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Initialise device policy store (disabled device types)
	policyStore := policy.NewStore(policy.NewSQLiteRepository(db.DB))
	policyStore.SetLogger(log)
	if refreshErr := policyStore.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device policy: %w", refreshErr)
	}
	log.Info("device policy loaded", "disabled_types", len(policyStore.ListDisabled()))

	// Initialise event history (lifecycle audit trail)
	historyRepo := history.NewSQLiteRepository(db.DB)
	recorder := history.NewRecorder(historyRepo, log)

	// Build the device set from configuration
	drivers := buildDrivers(cfg, log)
	if len(drivers) == 0 {
		log.Warn("no devices configured, frame dispatch will be a no-op")
	}

	// Create the device manager
	manager := device.NewManager(device.Config{
		RetryAttempts: cfg.Devices.RetryAttempts,
		RetryInterval: cfg.GetRetryInterval(),
	}, device.PolicyFunc(policyStore.Disabled), drivers)
	manager.SetLogger(log)

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		if subErr := subscribeFrameIntake(mqttClient, manager, cfg, log); subErr != nil {
			return fmt.Errorf("subscribing to frame intake: %w", subErr)
		}
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		manager.SetTelemetry(influxClient)
		go sampleFrameRates(ctx, manager, influxClient)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Create the WebSocket hub up front so device-set change notifications
	// reach UI clients as well as the message bus.
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	// Device lifecycle events go to the history log and are mirrored to the
	// WebSocket hub and the per-device MQTT event topics.
	manager.SetEventSink(&eventFanout{
		sink: recorder,
		hub:  hub,
		mqtt: mqttClient,
		qos:  byte(cfg.MQTT.QoS),
		log:  log,
	})

	// Fan out the payload-less device-set change notification. Consumers
	// re-query /devices (or the status topic) rather than parsing a payload.
	topics := mqtt.Topics{}
	manager.OnDevicesChanged(func() {
		hub.BroadcastDevicesChanged()
		if mqttClient != nil {
			if pubErr := mqttClient.Publish(topics.DevicesChanged(), nil, byte(cfg.MQTT.QoS), false); pubErr != nil {
				log.Warn("publishing devices_changed failed", "error", pubErr)
			}
		}
	})

	// Run the initialization pass (with supervised retries in background)
	manager.Initialize(ctx)
	log.Info("device initialization started",
		"devices", len(drivers),
		"initialized", len(manager.GetInitializedDevices()),
		"retry_attempts", cfg.Devices.RetryAttempts,
	)

	// Start the API server
	apiServer, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Logger:      log,
		Manager:     manager,
		Policy:      policyStore,
		History:     historyRepo,
		MQTT:        mqttClient,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))

	// Verify infrastructure connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Shut down devices first so the last frame each device shows is a
	// deliberate off/neutral state, then let the deferred Close() calls
	// tear down the API server, InfluxDB, MQTT, and database in reverse.
	manager.Close(shutdownGrace)

	log.Info("Lumen Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses LUMEN_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("LUMEN_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// buildDrivers constructs the output device set from configuration.
// Only virtual devices are configuration-driven today; hardware drivers
// register here as they are ported.
func buildDrivers(cfg *config.Config, log *logging.Logger) []driver.Driver {
	drivers := make([]driver.Driver, 0, len(cfg.Devices.Virtual))
	for _, vc := range cfg.Devices.Virtual {
		d := virtual.New(virtual.Config{
			Type:  vc.Type,
			Name:  vc.Name,
			Zones: vc.Zones,
		})
		drivers = append(drivers, d)
		log.Info("registered device", "type", d.Type(), "name", d.Name(), "zones", vc.Zones)
	}
	return drivers
}

// subscribeFrameIntake wires the MQTT frame intake topics to the device
// manager. Frames arrive as JSON ({"colors":[{"r":..,"g":..,"b":..},...]})
// and are dispatched to every initialized device; the forced variant
// bypasses driver-side redundancy suppression.
func subscribeFrameIntake(client *mqtt.Client, manager *device.Manager, cfg *config.Config, log *logging.Logger) error {
	topics := mqtt.Topics{}
	qos := byte(cfg.MQTT.QoS)

	handler := func(forced bool) mqtt.MessageHandler {
		return func(topic string, payload []byte) error {
			var frame driver.Frame
			if err := json.Unmarshal(payload, &frame); err != nil {
				log.Warn("discarding malformed frame", "topic", topic, "error", err)
				return nil // malformed frames are dropped, not retried
			}
			if len(frame.Colors) == 0 {
				log.Debug("discarding empty frame", "topic", topic)
				return nil
			}
			manager.UpdateDevices(frame, forced)
			return nil
		}
	}

	if err := client.Subscribe(topics.Frames(), qos, handler(false)); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topics.Frames(), err)
	}
	if err := client.Subscribe(topics.ForcedFrames(), qos, handler(true)); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topics.ForcedFrames(), err)
	}
	log.Info("frame intake subscribed",
		"topics", []string{topics.Frames(), topics.ForcedFrames()},
		"qos", qos,
	)
	return nil
}

// deviceEventPayload is the wire form of a device lifecycle event on the
// WebSocket device.event channel and the lumen/core/device/+/event topics.
type deviceEventPayload struct {
	Device string `json:"device"`
	Event  string `json:"event"`
	Detail string `json:"detail,omitempty"`
}

// eventFanout implements device.EventSink. Every lifecycle event is recorded
// to the history log and mirrored to the WebSocket hub and, when MQTT is
// enabled, to the device's event topic. Mirroring is best-effort; a failed
// publish never blocks a device operation.
type eventFanout struct {
	sink device.EventSink
	hub  *api.Hub
	mqtt *mqtt.Client
	qos  byte
	log  *logging.Logger
}

func (f *eventFanout) Record(deviceName, event, detail string) {
	f.sink.Record(deviceName, event, detail)

	payload := deviceEventPayload{Device: deviceName, Event: event, Detail: detail}
	f.hub.Broadcast(api.ChannelDeviceEvent, payload)

	if f.mqtt == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	topic := mqtt.Topics{}.DeviceEvent(deviceName)
	if pubErr := f.mqtt.Publish(topic, body, f.qos, false); pubErr != nil {
		f.log.Warn("publishing device event failed",
			"device", deviceName,
			"event", event,
			"error", pubErr,
		)
	}
}

// frameRateSampleInterval is how often cumulative per-device counters are
// converted into per-second rates for telemetry.
const frameRateSampleInterval = 10 * time.Second

// sampleFrameRates periodically turns the manager's cumulative
// applied/coalesced counters into per-second rates and writes them to
// InfluxDB. Runs until ctx is cancelled.
func sampleFrameRates(ctx context.Context, manager *device.Manager, influx *influxdb.Client) {
	ticker := time.NewTicker(frameRateSampleInterval)
	defer ticker.Stop()

	prevApplied := make(map[string]uint64)
	prevCoalesced := make(map[string]uint64)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, s := range manager.Statuses() {
				applied := perSecond(s.Applied, prevApplied[s.Name], frameRateSampleInterval)
				coalesced := perSecond(s.Coalesced, prevCoalesced[s.Name], frameRateSampleInterval)
				prevApplied[s.Name] = s.Applied
				prevCoalesced[s.Name] = s.Coalesced
				influx.WriteFrameRate(s.Name, applied, coalesced)
			}
		}
	}
}

// perSecond converts a cumulative counter delta into a rate over interval.
func perSecond(cur, prev uint64, interval time.Duration) float64 {
	if cur < prev {
		prev = 0
	}
	return float64(cur-prev) / interval.Seconds()
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	// Check database
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	// Check MQTT (if enabled)
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	// Check InfluxDB (if enabled)
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
