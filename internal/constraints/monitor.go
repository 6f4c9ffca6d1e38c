package constraints

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"kura/internal/logging"
)

// Monitor listens for power_supply and net uevents and calls wake so held
// jobs are re-evaluated without waiting for the next poll.
type Monitor struct {
	logger *slog.Logger
	wake   func()

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// NewMonitor builds a monitor that calls wake on matching events.
func NewMonitor(logger *slog.Logger, wake func()) *Monitor {
	return &Monitor{
		logger: logging.NewComponentLogger(logger, "constraints-monitor"),
		wake:   wake,
	}
}

// Start connects to the kernel uevent socket. Failure to connect is logged
// and not returned; polling still re-evaluates constraints.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.KernelEvent); err != nil {
		m.logger.Warn("failed to connect to netlink socket; constraint changes are picked up by polling",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "check that netlink sockets are permitted in this environment"),
			logging.String(logging.FieldImpact, "held jobs start up to one poll interval late"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.loop(ctx, conn, quit)

	m.logger.Debug("constraint monitor started",
		logging.String(logging.FieldEventType, "constraint_monitor_started"),
	)
	return nil
}

// Stop closes the uevent socket.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false
}

func (m *Monitor) loop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	events := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(events, errs, Matcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case event := <-events:
			m.handleEvent(event)
		case err := <-errs:
			m.logger.Debug("netlink monitor error", logging.Error(err))
		}
	}
}

func (m *Monitor) handleEvent(event netlink.UEvent) {
	m.logger.Debug("constraint uevent",
		logging.String("action", string(event.Action)),
		logging.String("subsystem", event.Env["SUBSYSTEM"]),
		logging.String("kobj", event.KObj),
	)
	if m.wake != nil {
		m.wake()
	}
}

// Matcher accepts power_supply and net uevents.
func Matcher() netlink.Matcher {
	rules := &netlink.RuleDefinitions{}
	for _, subsystem := range []string{"^power_supply$", "^net$"} {
		rules.AddRule(netlink.RuleDefinition{
			Env: map[string]string{"SUBSYSTEM": subsystem},
		})
	}
	return rules
}
