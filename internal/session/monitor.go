// Package session provides the client-side idle-session monitor. It is not
// a server concern: a Go client embeds a Monitor next to its stored token,
// feeds it activity events, and logs out when the expiry callback fires.
package session

import (
	"sync"
	"time"
)

// Config controls the idle window. WarningLead is how long before expiry
// the warning callback fires.
type Config struct {
	IdleTimeout time.Duration
	WarningLead time.Duration
}

// DefaultConfig mirrors the portal defaults: 30 minute timeout, 5 minute
// warning lead.
func DefaultConfig() Config {
	return Config{
		IdleTimeout: 30 * time.Minute,
		WarningLead: 5 * time.Minute,
	}
}

// Monitor tracks user activity and fires one warning and one expiry
// callback per idle period. Each activity event cancels and reschedules
// both timers, so only one pair is ever live: last event wins.
type Monitor struct {
	mu           sync.Mutex
	config       Config
	active       bool
	lastActivity time.Time

	warnTimer   *time.Timer
	expireTimer *time.Timer
	generation  uint64

	onWarning func()
	onExpired func()

	now func() time.Time
}

func NewMonitor(cfg Config) *Monitor {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultConfig().IdleTimeout
	}
	if cfg.WarningLead <= 0 || cfg.WarningLead >= cfg.IdleTimeout {
		cfg.WarningLead = cfg.IdleTimeout / 6
	}
	return &Monitor{
		config: cfg,
		now:    time.Now,
	}
}

// Start begins tracking. onExpired is required and fires exactly once when
// the idle timeout elapses; onWarning is optional and fires once per idle
// period, WarningLead before expiry. Callbacks run on timer goroutines.
func (m *Monitor) Start(onExpired func(), onWarning func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.onExpired = onExpired
	m.onWarning = onWarning
	m.active = true
	m.lastActivity = m.now()
	m.rescheduleLocked()
}

// Touch records a user-interaction event, resetting the idle clock and
// rescheduling both timers.
func (m *Monitor) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return
	}
	m.lastActivity = m.now()
	m.rescheduleLocked()
}

// Extend is the explicit form of Touch, for a "stay signed in" button.
func (m *Monitor) Extend() {
	m.Touch()
}

// Stop ends tracking without firing callbacks. Safe to call repeatedly.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.active = false
	m.cancelTimersLocked()
}

// Active reports whether the monitor is tracking a session.
func (m *Monitor) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// TimeRemaining reports the idle time left before forced logout.
func (m *Monitor) TimeRemaining() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return 0
	}
	remaining := m.config.IdleTimeout - m.now().Sub(m.lastActivity)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Expiring reports whether the session is inside the warning window.
func (m *Monitor) Expiring() bool {
	remaining := m.TimeRemaining()
	return remaining > 0 && remaining <= m.config.WarningLead
}

func (m *Monitor) rescheduleLocked() {
	m.cancelTimersLocked()
	// The generation guards against a stale timer that was already firing
	// when its reschedule happened.
	m.generation++
	gen := m.generation
	m.warnTimer = time.AfterFunc(m.config.IdleTimeout-m.config.WarningLead, func() { m.fireWarning(gen) })
	m.expireTimer = time.AfterFunc(m.config.IdleTimeout, func() { m.fireExpiry(gen) })
}

func (m *Monitor) cancelTimersLocked() {
	if m.warnTimer != nil {
		m.warnTimer.Stop()
		m.warnTimer = nil
	}
	if m.expireTimer != nil {
		m.expireTimer.Stop()
		m.expireTimer = nil
	}
}

func (m *Monitor) fireWarning(gen uint64) {
	m.mu.Lock()
	callback := m.onWarning
	fire := m.active && gen == m.generation && callback != nil
	m.mu.Unlock()

	if fire {
		callback()
	}
}

func (m *Monitor) fireExpiry(gen uint64) {
	m.mu.Lock()
	callback := m.onExpired
	fire := m.active && gen == m.generation && callback != nil
	if fire {
		// The session is over; further Touch calls are no-ops.
		m.active = false
		m.cancelTimersLocked()
	}
	m.mu.Unlock()

	if fire {
		callback()
	}
}
