// Gray Logic Node - device connectivity and entity sync runtime
//
// This is the main entry point for a Gray Logic node. The node keeps a
// network link and a broker session alive, announces its entities to the
// hub through MQTT discovery, and keeps entity values in sync in both
// directions.
//
// For configuration, see: configs/config.yaml
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/nerrad567/gray-logic-node/internal/announce"
	"github.com/nerrad567/gray-logic-node/internal/api"
	"github.com/nerrad567/gray-logic-node/internal/comm"
	"github.com/nerrad567/gray-logic-node/internal/entity"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-node/internal/link"
	"github.com/nerrad567/gray-logic-node/internal/mdns"
	"github.com/nerrad567/gray-logic-node/internal/node"
	"github.com/nerrad567/gray-logic-node/internal/prefs"
	"github.com/nerrad567/gray-logic-node/internal/session"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

const (
	// Default configuration file path
	defaultConfigPath = "configs/config.yaml"

	configEnv = "GRAYLOGIC_NODE_CONFIG"
)

// errVersionRequested stops run after printing build information.
var errVersionRequested = errors.New("version requested")

func main() {
	// Cancel on Ctrl+C and SIGTERM so the session is released cleanly.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := run(ctx, os.Args[1:])
	if errors.Is(err, errVersionRequested) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Cancelled on shutdown signal
//   - args: Command line arguments without the program name
//
// Returns:
//   - error: nil on clean shutdown, otherwise the start-up failure
func run(ctx context.Context, args []string) error {
	configPath, err := parseFlags(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	bootID := uuid.NewString()
	log := logging.New(cfg.Logging, version, bootID)
	log.Info("starting Gray Logic Node",
		"device_id", cfg.Device.ID,
		"commit", commit,
		"build_date", date,
		"config", configPath,
	)

	// Preferences
	store, err := prefs.Open(prefs.Config{
		Backend:     cfg.Persistence.Backend,
		Path:        cfg.Persistence.Path,
		WALMode:     cfg.Persistence.WALMode,
		BusyTimeout: cfg.Persistence.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening preferences: %w", err)
	}
	defer func() {
		log.Info("closing preferences")
		store.Close() //nolint:errcheck // best-effort on shutdown
	}()
	log.Info("preferences opened", "backend", cfg.Persistence.Backend, "path", cfg.Persistence.Path)

	checks := map[string]api.HealthChecker{}
	if hc, ok := store.(api.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("preferences health check: %w", err)
		}
		checks["prefs"] = hc
	}

	// Entities
	table, err := entity.LoadTable(cfg.Entities.Table)
	if err != nil {
		return fmt.Errorf("loading entity table: %w", err)
	}
	regOpts := []entity.Option{
		entity.WithNamespace(cfg.Persistence.Namespace),
		entity.WithLogger(log.With("component", "entity")),
	}
	if cfg.Entities.TopicIndex {
		regOpts = append(regOpts, entity.WithTopicIndex())
	}
	registry := entity.NewRegistry(store, regOpts...)

	// Network link
	radio, closeRadio := newRadio(cfg.Link)
	defer closeRadio()
	linkGuard := link.NewGuard(radio, cfg.Params(), link.WithLogger(log.With("component", "link")))

	// Broker session
	topics := mqtt.Topics{Prefix: cfg.MQTT.DiscoveryPrefix}
	availability := topics.Availability(cfg.Device.ID)

	transport := mqtt.NewTransport(cfg.MQTT.InboundQueue)
	transport.SetLogger(log.With("component", "mqtt"))
	sess := session.NewGuard(transport, linkGuard, cfg.Params(),
		session.WithLogger(log.With("component", "session")),
		session.WithTLS(cfg.MQTT.Broker.TLS),
		session.WithAvailability(session.Availability{
			Topic:   availability,
			Online:  "online",
			Offline: "offline",
		}),
	)

	// Announcement and sequence
	announcer, err := announce.NewPublisher(sess, topics.DeviceConfig(cfg.Device.ID), log.With("component", "announce"))
	if err != nil {
		return fmt.Errorf("creating announcement publisher: %w", err)
	}

	qos := byte(cfg.MQTT.QoS) //nolint:gosec // validated to 0..2
	orch := comm.New(linkGuard, sess, registry, announcer,
		comm.WithLogger(log.With("component", "comm")),
		comm.WithFlushWindow(cfg.Sequence.FlushWindow),
		comm.WithHubOnlineEntity(cfg.Sequence.HubOnlineEntity),
		comm.WithPublishQoS(qos, cfg.MQTT.RetainState),
		comm.WithSubscribeQoS(qos),
	)
	if err := orch.LoadEntityTable(table); err != nil {
		return fmt.Errorf("registering entities: %w", err)
	}
	registry.InitAll()
	log.Info("entities registered", "count", registry.Len())

	payload, err := buildAnnouncement(cfg, registry.Entities(), availability)
	if err != nil {
		return fmt.Errorf("building announcement: %w", err)
	}
	if err := orch.LoadAnnouncementPayload(payload); err != nil {
		return fmt.Errorf("loading announcement: %w", err)
	}

	// Connect to InfluxDB (if enabled)
	var telemetry node.Telemetry
	if cfg.InfluxDB.Enabled {
		influxClient, err := influxdb.Connect(ctx, cfg.InfluxDB, cfg.Device.ID, bootID)
		if err != nil {
			// Telemetry is optional: the node keeps running without it.
			log.Warn("influxdb unavailable, telemetry disabled", "error", err)
		} else {
			influxClient.SetOnError(func(err error) {
				log.Warn("influxdb write failed", "error", err)
			})
			defer func() {
				log.Info("closing InfluxDB connection")
				influxClient.Close() //nolint:errcheck // best-effort on shutdown
			}()
			telemetry = influxClient
			checks["influxdb"] = influxClient
			log.Info("connected to InfluxDB", "url", cfg.InfluxDB.URL)
		}
	}

	var advertiser node.Advertiser
	if cfg.MDNS.Enabled {
		advertiser = mdns.NewAdvertiser(mdns.Config{
			Service:   cfg.MDNS.Service,
			Domain:    cfg.MDNS.Domain,
			Port:      cfg.MDNS.Port,
			Interface: cfg.Link.Interface,
		}, log.With("component", "mdns"))
	}

	rt, err := node.New(node.Deps{
		Orchestrator: orch,
		Link:         linkGuard,
		Session:      sess,
		Application:  cfg.Application,
		Sequence:     cfg.Sequence,
		DeviceID:     cfg.Device.ID,
		Version:      version,
		BootID:       bootID,
		Logger:       log.With("component", "node"),
		Telemetry:    telemetry,
		Advertiser:   advertiser,
	})
	if err != nil {
		return fmt.Errorf("creating node runtime: %w", err)
	}

	// Diagnostics API (if enabled)
	if cfg.Diagnostics.Enabled {
		srv, err := api.New(api.Deps{
			Config:  cfg.Diagnostics,
			Logger:  log,
			Node:    rt,
			Checks:  checks,
			Version: version,
		})
		if err != nil {
			return fmt.Errorf("creating diagnostics server: %w", err)
		}
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("starting diagnostics server: %w", err)
		}
		defer func() {
			log.Info("stopping diagnostics server")
			srv.Close() //nolint:errcheck // best-effort on shutdown
		}()
		log.Info("diagnostics server started", "addr", srv.Addr())
	}

	log.Info("initialisation complete, entering main loop")

	if err := rt.Run(ctx); err != nil {
		return fmt.Errorf("node runtime: %w", err)
	}

	// Deferred Close() calls run in reverse order:
	// 1. Diagnostics server (if enabled)
	// 2. InfluxDB (if enabled)
	// 3. Radio
	// 4. Preferences
	log.Info("Gray Logic Node stopped")
	return nil
}

// parseFlags reads the command line. The config path comes from --config,
// then GRAYLOGIC_NODE_CONFIG, then the default.
func parseFlags(args []string) (string, error) {
	fs := pflag.NewFlagSet("graylogic-node", pflag.ContinueOnError)
	configPath := fs.StringP("config", "c", getConfigPath(), "path to the configuration file")
	showVersion := fs.BoolP("version", "v", false, "print version information and exit")

	if err := fs.Parse(args); err != nil {
		return "", fmt.Errorf("parsing flags: %w", err)
	}
	if *showVersion {
		fmt.Printf("graylogic-node %s (commit %s, built %s)\n", version, commit, date)
		return "", errVersionRequested
	}
	return *configPath, nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_NODE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	return defaultConfigPath
}

// newRadio builds the link driver named by cfg.Driver. The returned func
// releases it.
func newRadio(cfg config.LinkConfig) (link.Radio, func()) {
	if cfg.Driver == "static" {
		return link.Wired{Interface: cfg.Interface}, func() {}
	}
	r := link.NewNMCLI(link.NMCLIConfig{
		Interface:     cfg.Interface,
		Binary:        cfg.NMCLIBinary,
		AttachTimeout: cfg.AttachTimeout,
	})
	return r, func() { r.Close() } //nolint:errcheck // best-effort on shutdown
}

// buildAnnouncement merges the entity component blocks into the discovery
// template. Without a template a minimal device block is generated.
func buildAnnouncement(cfg *config.Config, entities []*entity.Entity, availability string) ([]byte, error) {
	var template []byte
	if cfg.Announcement.Template != "" {
		data, err := os.ReadFile(cfg.Announcement.Template)
		if err != nil {
			return nil, fmt.Errorf("reading template: %w", err)
		}
		template = data
	} else {
		template = fmt.Appendf(nil, `{"device":{"identifiers":%q,"name":%q},"o":{"name":"graylogic-node","sw":%q}}`,
			cfg.Device.ID, cfg.Device.Name, version)
	}

	return announce.Build(template, entities, announce.BuildOptions{
		DeviceID:          cfg.Device.ID,
		AvailabilityTopic: availability,
	})
}
