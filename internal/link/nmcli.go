package link

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// NMCLI defaults.
const (
	defaultNMCLIBinary    = "nmcli"
	defaultSysfsRoot      = "/sys/class/net"
	defaultAttachTimeout  = 20 * time.Second
	defaultCommandTimeout = 5 * time.Second
	radioQueueSize        = 4
)

// Runner executes a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput() //nolint:gosec // binary comes from config
}

// NMCLIConfig configures the NetworkManager radio.
type NMCLIConfig struct {
	// Interface is the Wi-Fi device, for example "wlan0".
	Interface string

	// Binary is the nmcli executable. Default: "nmcli".
	Binary string

	// AttachTimeout bounds one association attempt. Default: 20s.
	AttachTimeout time.Duration

	// SysfsRoot is where operstate is read from. Default: /sys/class/net.
	SysfsRoot string

	// Runner executes nmcli. Default: os/exec.
	Runner Runner
}

// NMCLI drives a NetworkManager-managed Wi-Fi interface.
//
// Begin and Reset are queued to a worker goroutine so the caller never waits
// on nmcli. Status combines the kernel operstate with the outcome of the
// last attach command. Scan and Info read NetworkManager's cached results
// and never trigger a rescan.
type NMCLI struct {
	cfg NMCLIConfig

	jobs chan func(context.Context)
	done chan struct{}
	wg   sync.WaitGroup

	mu         sync.Mutex
	pending    bool
	lastSSID   string
	lastErr    error
	everUp     bool
	lastStatus Status
}

// NewNMCLI creates the radio and starts its worker.
func NewNMCLI(cfg NMCLIConfig) *NMCLI {
	if cfg.Binary == "" {
		cfg.Binary = defaultNMCLIBinary
	}
	if cfg.AttachTimeout <= 0 {
		cfg.AttachTimeout = defaultAttachTimeout
	}
	if cfg.SysfsRoot == "" {
		cfg.SysfsRoot = defaultSysfsRoot
	}
	if cfg.Runner == nil {
		cfg.Runner = execRunner
	}

	r := &NMCLI{
		cfg:  cfg,
		jobs: make(chan func(context.Context), radioQueueSize),
		done: make(chan struct{}),
	}
	r.wg.Add(1)
	go r.worker()
	return r
}

func (r *NMCLI) worker() {
	defer r.wg.Done()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for {
		select {
		case <-r.done:
			return
		case job := <-r.jobs:
			job(ctx)
		}
	}
}

// Close stops the worker. Queued jobs are abandoned.
func (r *NMCLI) Close() error {
	select {
	case <-r.done:
	default:
		close(r.done)
	}
	r.wg.Wait()
	return nil
}

func (r *NMCLI) enqueue(job func(context.Context)) error {
	select {
	case r.jobs <- job:
		return nil
	default:
		return ErrBusy
	}
}

// Status implements Radio.
func (r *NMCLI) Status() Status {
	up := operstateUp(r.cfg.SysfsRoot, r.cfg.Interface) && hasIPv4(r.cfg.Interface)

	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case up:
		r.everUp = true
		r.lastStatus = StatusConnected
	case r.pending:
		r.lastStatus = StatusIdle
	case r.lastErr != nil:
		r.lastStatus = classifyNMCLIError(r.lastErr)
	case r.everUp:
		r.lastStatus = StatusConnectionLost
	default:
		r.lastStatus = StatusDisconnected
	}
	return r.lastStatus
}

// Begin implements Radio.
func (r *NMCLI) Begin(ssid, password string) error {
	if ssid == "" {
		return ErrNoSSID
	}

	r.mu.Lock()
	if r.pending {
		r.mu.Unlock()
		return nil
	}
	r.pending = true
	r.lastSSID = ssid
	r.mu.Unlock()

	args := []string{"--wait", strconv.Itoa(int(r.cfg.AttachTimeout.Seconds())),
		"device", "wifi", "connect", ssid}
	if password != "" {
		args = append(args, "password", password)
	}
	if r.cfg.Interface != "" {
		args = append(args, "ifname", r.cfg.Interface)
	}

	err := r.enqueue(func(ctx context.Context) {
		cctx, cancel := context.WithTimeout(ctx, r.cfg.AttachTimeout+defaultCommandTimeout)
		defer cancel()
		out, runErr := r.cfg.Runner(cctx, r.cfg.Binary, args...)

		r.mu.Lock()
		r.pending = false
		r.lastErr = nil
		if runErr != nil {
			r.lastErr = fmt.Errorf("%w: %s", runErr, strings.TrimSpace(string(out)))
		}
		r.mu.Unlock()
	})
	if err != nil {
		r.mu.Lock()
		r.pending = false
		r.mu.Unlock()
	}
	return err
}

// Reset implements Radio. It disconnects the interface, deletes the
// profile created by the last Begin and applies hostname. Reset is a no-op
// while an attach is in flight, so a slow association is never torn down
// by a reset queued behind it.
func (r *NMCLI) Reset(hostname string) error {
	r.mu.Lock()
	if r.pending {
		r.mu.Unlock()
		return nil
	}
	ssid := r.lastSSID
	r.lastSSID = ""
	r.mu.Unlock()

	err := r.enqueue(func(ctx context.Context) {
		cctx, cancel := context.WithTimeout(ctx, defaultCommandTimeout)
		defer cancel()
		if r.cfg.Interface != "" {
			_, _ = r.cfg.Runner(cctx, r.cfg.Binary, "device", "disconnect", r.cfg.Interface)
		}
		if ssid != "" {
			// nmcli names the profile after the SSID. It may already be gone.
			_, _ = r.cfg.Runner(cctx, r.cfg.Binary, "connection", "delete", "id", ssid)
		}
		if hostname != "" {
			_, _ = r.cfg.Runner(cctx, r.cfg.Binary, "general", "hostname", hostname)
		}
	})
	if err != nil {
		r.mu.Lock()
		if r.lastSSID == "" {
			r.lastSSID = ssid
		}
		r.mu.Unlock()
	}
	return err
}

// Scan implements Radio. It lists the networks NetworkManager last saw;
// NetworkManager refreshes that list in the background.
func (r *NMCLI) Scan() ([]Network, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultCommandTimeout)
	defer cancel()

	args := []string{"-t", "-f", "SSID,SIGNAL,CHAN", "device", "wifi", "list", "--rescan", "no"}
	if r.cfg.Interface != "" {
		args = append(args, "ifname", r.cfg.Interface)
	}
	out, err := r.cfg.Runner(ctx, r.cfg.Binary, args...)
	if err != nil {
		return nil, fmt.Errorf("nmcli wifi list: %w", err)
	}
	return parseScan(string(out)), nil
}

// Info implements Radio.
func (r *NMCLI) Info() (Info, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultCommandTimeout)
	defer cancel()

	args := []string{"-t", "-f", "ACTIVE,SSID,SIGNAL", "device", "wifi", "list", "--rescan", "no"}
	if r.cfg.Interface != "" {
		args = append(args, "ifname", r.cfg.Interface)
	}
	out, err := r.cfg.Runner(ctx, r.cfg.Binary, args...)
	if err != nil {
		return Info{}, fmt.Errorf("nmcli wifi list: %w", err)
	}

	info := Info{Address: ipv4Address(r.cfg.Interface)}
	for _, line := range strings.Split(string(out), "\n") {
		fields := splitTerse(line)
		if len(fields) < 3 || fields[0] != "yes" {
			continue
		}
		info.SSID = fields[1]
		if sig, convErr := strconv.Atoi(fields[2]); convErr == nil {
			info.RSSI = signalToRSSI(sig)
		}
		break
	}
	return info, nil
}

// parseScan parses `nmcli -t -f SSID,SIGNAL,CHAN device wifi list` output.
func parseScan(out string) []Network {
	var networks []Network
	for _, line := range strings.Split(out, "\n") {
		fields := splitTerse(line)
		if len(fields) < 3 || fields[0] == "" {
			continue
		}
		n := Network{SSID: fields[0]}
		n.Signal, _ = strconv.Atoi(fields[1])
		n.Channel, _ = strconv.Atoi(fields[2])
		networks = append(networks, n)
	}
	return networks
}

// splitTerse splits one line of nmcli terse output on unescaped colons.
func splitTerse(line string) []string {
	line = strings.TrimRight(line, "\r")
	if line == "" {
		return nil
	}

	var (
		fields []string
		cur    strings.Builder
	)
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '\\' && i+1 < len(line):
			i++
			cur.WriteByte(line[i])
		case c == ':':
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	return append(fields, cur.String())
}

// classifyNMCLIError maps nmcli failure text to a Status.
func classifyNMCLIError(err error) Status {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no network with ssid"):
		return StatusNoTarget
	case strings.Contains(msg, "secrets were required"),
		strings.Contains(msg, "802-11-wireless-security"),
		strings.Contains(msg, "invalid password"):
		return StatusConnectFailed
	case errors.Is(err, context.DeadlineExceeded):
		return StatusConnectFailed
	default:
		return StatusDisconnected
	}
}

// operstateUp reports whether the kernel marks iface as up.
func operstateUp(root, iface string) bool {
	if iface == "" {
		return false
	}
	data, err := os.ReadFile(filepath.Join(root, iface, "operstate"))
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == "up"
}

func hasIPv4(iface string) bool {
	return ipv4Address(iface) != ""
}

// ipv4Address returns the first IPv4 address on iface, or "".
func ipv4Address(iface string) string {
	if iface == "" {
		return ""
	}
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return ""
	}
	addrs, err := ifi.Addrs()
	if err != nil {
		return ""
	}
	for _, a := range addrs {
		if ipNet, ok := a.(*net.IPNet); ok {
			if v4 := ipNet.IP.To4(); v4 != nil {
				return v4.String()
			}
		}
	}
	return ""
}
