package mdns

import (
	"fmt"
	"net"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

// Defaults used when Config leaves a field empty.
const (
	DefaultService = "_graylogic-node._tcp"
	DefaultDomain  = "local."
)

// Config describes the advertised service.
type Config struct {
	Service   string
	Domain    string
	Port      int
	Interface string // empty advertises on every multicast interface
}

// Logger is the logging surface the advertiser needs.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// server is the part of *zeroconf.Server the advertiser drives.
type server interface {
	SetText(txt []string)
	Shutdown()
}

type registerFunc func(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (server, error)

func zeroconfRegister(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (server, error) {
	return zeroconf.Register(instance, service, domain, port, txt, ifaces)
}

// Advertiser owns at most one registered mDNS service.
//
// Thread Safety: all methods are safe for concurrent use.
type Advertiser struct {
	cfg      Config
	logger   Logger
	register registerFunc

	mu       sync.Mutex
	srv      server
	instance string
}

// NewAdvertiser creates an idle advertiser.
func NewAdvertiser(cfg Config, logger Logger) *Advertiser {
	if cfg.Service == "" {
		cfg.Service = DefaultService
	}
	if cfg.Domain == "" {
		cfg.Domain = DefaultDomain
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Advertiser{cfg: cfg, logger: logger, register: zeroconfRegister}
}

// Advertise registers instance with the given TXT records. A previous
// registration under another name is withdrawn first; the same name only
// refreshes the TXT records.
func (a *Advertiser) Advertise(instance string, txt []string) error {
	if instance == "" {
		return ErrEmptyInstance
	}
	if a.cfg.Port <= 0 || a.cfg.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, a.cfg.Port)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.srv != nil {
		if a.instance == instance {
			a.srv.SetText(txt)
			return nil
		}
		a.srv.Shutdown()
		a.srv = nil
	}

	srv, err := a.register(instance, a.cfg.Service, a.cfg.Domain, a.cfg.Port, txt, a.interfaces())
	if err != nil {
		return fmt.Errorf("registering %s.%s: %w", instance, a.cfg.Service, err)
	}
	a.srv = srv
	a.instance = instance
	a.logger.Info("mdns service registered",
		"instance", instance, "service", a.cfg.Service, "port", a.cfg.Port)
	return nil
}

// Withdraw shuts the registered service down. No-op when idle.
func (a *Advertiser) Withdraw() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.srv == nil {
		return
	}
	a.srv.Shutdown()
	a.srv = nil
	a.logger.Info("mdns service withdrawn", "instance", a.instance)
	a.instance = ""
}

// Active reports whether a service is registered.
func (a *Advertiser) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.srv != nil
}

func (a *Advertiser) interfaces() []net.Interface {
	if a.cfg.Interface == "" {
		return nil
	}
	iface, err := net.InterfaceByName(a.cfg.Interface)
	if err != nil {
		a.logger.Warn("mdns interface not found, advertising on all",
			"interface", a.cfg.Interface, "error", err)
		return nil
	}
	return []net.Interface{*iface}
}
