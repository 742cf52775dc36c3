package network

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/beevik/ntp"
)

// DefaultQueryTimeout bounds a single NTP exchange.
const DefaultQueryTimeout = 2 * time.Second

// QueryFunc performs one NTP exchange. It matches ntp.QueryWithOptions.
type QueryFunc func(host string, opt ntp.QueryOptions) (*ntp.Response, error)

// NTPClockConfig configures NTPClock.
type NTPClockConfig struct {
	Servers      []string
	QueryTimeout time.Duration

	// Query overrides the NTP exchange. Tests inject a fake.
	Query QueryFunc

	Logger Logger
}

// NTPClock is a ClockSource whose wall time is only meaningful after a
// successful NTP exchange. Until then it counts up from the Unix epoch, the
// way an unset RTC does, so callers can tell a synced clock from an unsynced
// one by comparing against the epoch sentinel.
type NTPClock struct {
	servers []string
	timeout time.Duration
	query   QueryFunc
	logger  Logger
	boot    time.Time

	mu      sync.Mutex
	offset  time.Duration
	synced  bool
	pending bool
}

// NewNTPClock creates an unsynced clock.
func NewNTPClock(cfg NTPClockConfig) *NTPClock {
	c := &NTPClock{
		servers: cfg.Servers,
		timeout: cfg.QueryTimeout,
		query:   cfg.Query,
		logger:  cfg.Logger,
		boot:    time.Now(),
	}
	if c.timeout <= 0 {
		c.timeout = DefaultQueryTimeout
	}
	if c.query == nil {
		c.query = ntp.QueryWithOptions
	}
	if c.logger == nil {
		c.logger = noopLogger{}
	}
	return c
}

// RequestSync starts a background query against each server in turn until
// one answers with a usable response. A request already in flight is not
// duplicated.
func (c *NTPClock) RequestSync() error {
	if len(c.servers) == 0 {
		return errors.New("no NTP servers configured")
	}

	c.mu.Lock()
	if c.pending {
		c.mu.Unlock()
		return nil
	}
	c.pending = true
	c.mu.Unlock()

	go c.sync()
	return nil
}

func (c *NTPClock) sync() {
	defer func() {
		c.mu.Lock()
		c.pending = false
		c.mu.Unlock()
	}()

	for _, server := range c.servers {
		offset, err := c.queryOffset(server)
		if err != nil {
			c.logger.Warn("NTP query failed", "server", server, "error", err)
			continue
		}

		c.mu.Lock()
		c.offset = offset
		c.synced = true
		c.mu.Unlock()

		c.logger.Debug("NTP response accepted", "server", server, "offset", offset)
		return
	}
}

func (c *NTPClock) queryOffset(server string) (time.Duration, error) {
	resp, err := c.query(server, ntp.QueryOptions{Timeout: c.timeout})
	if err != nil {
		return 0, err
	}
	if err := resp.Validate(); err != nil {
		return 0, fmt.Errorf("invalid response: %w", err)
	}
	return resp.ClockOffset, nil
}

// Now returns the disciplined wall time, or time since boot counted from
// the Unix epoch while unsynced.
func (c *NTPClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.synced {
		return time.Unix(0, 0).Add(time.Since(c.boot))
	}
	return time.Now().Add(c.offset)
}

// Synced reports whether an NTP response has been applied.
func (c *NTPClock) Synced() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.synced
}
