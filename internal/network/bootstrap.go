package network

import (
	"fmt"
	"time"
)

// Defaults matching the node's firmware timings.
const (
	DefaultAssociateTimeout = 15 * time.Second
	DefaultSyncTimeout      = 8 * time.Second
	DefaultPollInterval     = 200 * time.Millisecond

	// DefaultEpochSentinel is 2020-09-13. Any clock reading below it has
	// not been set from the network yet.
	DefaultEpochSentinel int64 = 1600000000
)

// Radio is the WiFi driver. Implementations own the only handle to the
// hardware; Bootstrap holds the Radio and nothing else touches it.
type Radio interface {
	// StartStation puts the radio in station mode and begins associating.
	// It returns without waiting for the association to complete.
	StartStation(ssid, password string) error

	// Associated reports whether the station is currently associated.
	Associated() bool

	// Channel returns the primary channel of the current association.
	Channel() (int, error)

	// Stop disassociates, stops the WiFi stack and disables any other
	// radio sharing the chip. It must be safe to call repeatedly.
	Stop() error
}

// connectErrorReporter is implemented by radios that can explain a failed
// association, for example a rejected password.
type connectErrorReporter interface {
	LastConnectError() error
}

// ClockSource is the wall clock being disciplined by network time.
type ClockSource interface {
	// RequestSync starts a network time request. It does not wait for it.
	RequestSync() error

	// Now returns the current wall-clock time as the device sees it.
	Now() time.Time
}

// Ticker measures elapsed time for the bounded waits. It is separate from
// ClockSource because the wall clock jumps when it is synchronised.
type Ticker interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// SystemTicker is the Ticker backed by the runtime's monotonic clock.
type SystemTicker struct{}

// Now returns time.Now.
func (SystemTicker) Now() time.Time { return time.Now() }

// Sleep calls time.Sleep.
func (SystemTicker) Sleep(d time.Duration) { time.Sleep(d) }

// Logger defines the logging interface for the bootstrap.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Options configures a Bootstrap. Zero values select the defaults.
type Options struct {
	Radio         Radio
	Clock         ClockSource
	Ticker        Ticker
	PollInterval  time.Duration
	EpochSentinel int64
	Logger        Logger
}

// Bootstrap drives the radio through association and clock sync.
//
// Thread Safety:
//   - Not safe for concurrent use. Associate and SyncClock block the
//     calling goroutine until they succeed or time out.
type Bootstrap struct {
	radio    Radio
	clock    ClockSource
	ticker   Ticker
	interval time.Duration
	sentinel int64
	logger   Logger

	connected  bool
	channel    int
	hasChannel bool
}

// New creates a Bootstrap. Radio and Clock are required.
func New(opts Options) *Bootstrap {
	b := &Bootstrap{
		radio:    opts.Radio,
		clock:    opts.Clock,
		ticker:   opts.Ticker,
		interval: opts.PollInterval,
		sentinel: opts.EpochSentinel,
		logger:   opts.Logger,
	}
	if b.ticker == nil {
		b.ticker = SystemTicker{}
	}
	if b.interval <= 0 {
		b.interval = DefaultPollInterval
	}
	if b.sentinel == 0 {
		b.sentinel = DefaultEpochSentinel
	}
	if b.logger == nil {
		b.logger = noopLogger{}
	}
	return b
}

// Associate joins the network and returns the negotiated channel.
//
// It polls the radio every poll interval until associated or until timeout
// has elapsed. On timeout the channel is cleared and ErrAssociationTimeout
// is returned. If the link comes up but the channel cannot be read, the
// association is kept, CurrentChannel reports absent and
// ErrChannelUnavailable is returned.
func (b *Bootstrap) Associate(ssid, password string, timeout time.Duration) (int, error) {
	b.clearLink()

	if err := b.radio.StartStation(ssid, password); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrRadio, err)
	}
	b.logger.Info("connecting to WiFi", "ssid", ssid)

	start := b.ticker.Now()
	for !b.radio.Associated() {
		if b.ticker.Now().Sub(start) >= timeout {
			if cause := b.connectError(); cause != nil {
				b.logger.Warn("WiFi connection failed", "ssid", ssid, "timeout", timeout, "error", cause)
				return 0, fmt.Errorf("%w after %v: %w", ErrAssociationTimeout, timeout, cause)
			}
			b.logger.Warn("WiFi connection failed", "ssid", ssid, "timeout", timeout)
			return 0, fmt.Errorf("%w after %v", ErrAssociationTimeout, timeout)
		}
		b.ticker.Sleep(b.interval)
	}
	b.connected = true

	ch, err := b.radio.Channel()
	if err != nil {
		b.logger.Warn("WiFi connected but AP channel unknown", "error", err)
		return 0, fmt.Errorf("%w: %w", ErrChannelUnavailable, err)
	}

	b.channel = ch
	b.hasChannel = true
	b.logger.Info("WiFi connected", "channel", ch)
	return ch, nil
}

// SyncClock requests network time and waits until the clock reads past
// the epoch sentinel. It must follow a successful Associate.
func (b *Bootstrap) SyncClock(timeout time.Duration) error {
	if !b.connected {
		return ErrNotAssociated
	}

	if err := b.clock.RequestSync(); err != nil {
		return fmt.Errorf("requesting time sync: %w", err)
	}
	b.logger.Info("syncing time")

	start := b.ticker.Now()
	for b.clock.Now().Unix() < b.sentinel {
		if b.ticker.Now().Sub(start) >= timeout {
			b.logger.Warn("time sync timed out", "timeout", timeout)
			return fmt.Errorf("%w after %v", ErrClockSyncTimeout, timeout)
		}
		b.ticker.Sleep(b.interval)
	}

	b.logger.Info("time synchronised", "now", b.clock.Now().UTC().Format(time.RFC3339))
	return nil
}

// CurrentChannel returns the channel of the current association, or false
// when not associated or the channel is unknown.
func (b *Bootstrap) CurrentChannel() (int, bool) {
	if !b.connected || !b.hasChannel {
		return 0, false
	}
	return b.channel, true
}

// Associated reports whether the last Associate succeeded and no
// Teardown has happened since.
func (b *Bootstrap) Associated() bool {
	return b.connected
}

// Teardown powers the radios down. Link state is cleared even when the
// driver reports an error. Safe to call when already down.
func (b *Bootstrap) Teardown() error {
	b.logger.Info("disconnecting WiFi completely")
	b.clearLink()

	if err := b.radio.Stop(); err != nil {
		return fmt.Errorf("%w: %w", ErrRadio, err)
	}
	return nil
}

// connectError asks the radio why the last association attempt failed.
func (b *Bootstrap) connectError() error {
	if r, ok := b.radio.(connectErrorReporter); ok {
		return r.LastConnectError()
	}
	return nil
}

func (b *Bootstrap) clearLink() {
	b.connected = false
	b.channel = 0
	b.hasChannel = false
}
