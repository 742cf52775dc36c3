package node

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-sensornode/internal/credentials"
	"github.com/nerrad567/gray-logic-sensornode/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-sensornode/internal/network"
	"github.com/nerrad567/gray-logic-sensornode/internal/readings"
	"github.com/nerrad567/gray-logic-sensornode/internal/session"
)

// CredentialLoader produces the provisioned credential set.
type CredentialLoader interface {
	Load(ctx context.Context) (*credentials.Credentials, error)
}

// Network brings the WiFi link and wall clock up and down.
type Network interface {
	Associate(ssid, password string, timeout time.Duration) (int, error)
	SyncClock(timeout time.Duration) error
	CurrentChannel() (int, bool)
	Teardown() error
}

// Mirror receives a copy of published telemetry. Optional.
type Mirror interface {
	WriteBatch(meshID string, samples []influxdb.HumiditySample, ts time.Time)
	WriteConnectResult(meshID string, code int, ts time.Time)
	WriteLink(meshID string, channel int, ts time.Time)
}

// flusher is implemented by mirrors that buffer writes. Shutdown drains
// them while the link is still up.
type flusher interface {
	Flush()
}

// Logger defines the logging interface for the runner.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Mode selects how long the node stays up.
type Mode int

const (
	// Continuous publishes on schedule until the context is cancelled.
	Continuous Mode = iota
	// OneShot publishes a single batch and returns, for duty-cycled nodes.
	OneShot
)

// Schedule holds the timings the runner works to.
type Schedule struct {
	Mode              Mode
	Port              int
	AssociateTimeout  time.Duration
	SyncTimeout       time.Duration
	PollInterval      time.Duration
	PublishInterval   time.Duration
	ReconnectInterval time.Duration
}

// Options configures a Runner. Store, Network, Session and Source are required.
type Options struct {
	Store    CredentialLoader
	Network  Network
	Session  *session.Manager
	Source   readings.Source
	Mirror   Mirror
	Schedule Schedule

	// Now is the monotonic clock used for scheduling. Defaults to time.Now.
	Now func() time.Time

	// WallClock stamps mirrored telemetry. Defaults to time.Now.
	WallClock func() time.Time

	Logger Logger
}

// Status is a point-in-time view of the node for diagnostics.
type Status struct {
	Identity        string    `json:"identity,omitempty"`
	Session         string    `json:"session"`
	Channel         int       `json:"channel,omitempty"`
	LastConnectCode int       `json:"last_connect_code"`
	LastConnectAt   time.Time `json:"last_connect_at,omitzero"`
	LastPublishAt   time.Time `json:"last_publish_at,omitzero"`
	Published       uint64    `json:"batches_published"`
	Dropped         uint64    `json:"batches_dropped"`
}

// Runner sequences boot, the cooperative control loop and shutdown.
//
// Thread Safety:
//   - Boot, Run, Step and Shutdown are called from one goroutine, in that
//     order. Status is safe to call from any goroutine.
type Runner struct {
	store   CredentialLoader
	net     Network
	session *session.Manager
	source  readings.Source
	mirror  Mirror
	sched   Schedule
	now     func() time.Time
	wall    func() time.Time
	logger  Logger

	creds       *credentials.Credentials
	lastConnect time.Time
	lastPublish time.Time

	statusMu sync.RWMutex
	status   Status
}

// New creates a Runner.
func New(opts Options) *Runner {
	r := &Runner{
		store:   opts.Store,
		net:     opts.Network,
		session: opts.Session,
		source:  opts.Source,
		mirror:  opts.Mirror,
		sched:   opts.Schedule,
		now:     opts.Now,
		wall:    opts.WallClock,
		logger:  opts.Logger,
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.wall == nil {
		r.wall = time.Now
	}
	if r.logger == nil {
		r.logger = noopLogger{}
	}
	if r.sched.PollInterval <= 0 {
		r.sched.PollInterval = 100 * time.Millisecond
	}
	r.status.Session = session.Unconfigured.String()
	return r
}

// Status returns a copy of the latest diagnostics snapshot.
func (r *Runner) Status() Status {
	r.statusMu.RLock()
	defer r.statusMu.RUnlock()
	return r.status
}

func (r *Runner) updateStatus(fn func(s *Status)) {
	r.statusMu.Lock()
	fn(&r.status)
	r.status.Session = r.session.State().String()
	r.statusMu.Unlock()
}

// Boot loads credentials, joins the network, synchronises the clock and
// configures the session. Each failure is returned wrapped with its stage.
// An association whose channel cannot be read is logged and accepted.
func (r *Runner) Boot(ctx context.Context) error {
	creds, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}
	r.logger.Info("credentials loaded", "identity", creds.IdentityName)

	channel, err := r.net.Associate(creds.NetworkSSID, creds.NetworkPassword, r.sched.AssociateTimeout)
	switch {
	case errors.Is(err, network.ErrChannelUnavailable):
		r.logger.Warn("associated, channel unknown", "error", err)
	case err != nil:
		return fmt.Errorf("joining network: %w", err)
	default:
		r.logger.Info("associated", "ssid", creds.NetworkSSID, "channel", channel)
	}

	if err := r.net.SyncClock(r.sched.SyncTimeout); err != nil {
		return fmt.Errorf("synchronising clock: %w", err)
	}

	if err := r.session.Begin(creds, r.sched.Port); err != nil {
		return fmt.Errorf("configuring session: %w", err)
	}
	r.creds = creds

	ch, ok := r.net.CurrentChannel()
	r.updateStatus(func(s *Status) {
		s.Identity = creds.IdentityName
		s.Channel = ch
	})
	if ok && r.mirror != nil {
		r.mirror.WriteLink(creds.IdentityName, ch, r.wall())
	}
	return nil
}

// Run drives the control loop every poll interval until ctx is cancelled
// or, in OneShot mode, until one publish cycle has completed.
func (r *Runner) Run(ctx context.Context) error {
	if r.creds == nil {
		return session.ErrNotConfigured
	}

	ticker := time.NewTicker(r.sched.PollInterval)
	defer ticker.Stop()

	for {
		if cycled := r.Step(ctx, r.now()); cycled && r.sched.Mode == OneShot {
			r.logger.Info("one-shot cycle complete")
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Step runs one pass of the loop at monotonic time now: connect when
// needed and allowed, service the session, publish when due. It reports
// whether a publish cycle ran. Failures are logged; none of them stop the
// loop.
func (r *Runner) Step(ctx context.Context, now time.Time) bool {
	if r.session.State() != session.Connected {
		if !r.connectDue(now) {
			return false
		}
		r.lastConnect = now
		if !r.connect() {
			return false
		}
	} else if err := r.session.Poll(); err != nil {
		r.logger.Warn("session poll failed", "error", err)
		r.updateStatus(func(*Status) {})
		return false
	}

	if !r.publishDue(now) {
		return false
	}
	r.lastPublish = now
	r.publish(ctx)
	return true
}

func (r *Runner) connectDue(now time.Time) bool {
	return r.lastConnect.IsZero() || now.Sub(r.lastConnect) >= r.sched.ReconnectInterval
}

func (r *Runner) publishDue(now time.Time) bool {
	return r.lastPublish.IsZero() || now.Sub(r.lastPublish) >= r.sched.PublishInterval
}

func (r *Runner) connect() bool {
	err := r.session.Connect()
	code := session.CodeConnected
	if err != nil {
		code = session.CodeConnectFailed
		var pce *session.ProtocolConnectError
		if errors.As(err, &pce) && pce.Code != session.CodeConnected {
			code = pce.Code
		}
		r.logger.Warn("broker connect failed, will retry", "code", code, "retry_in", r.sched.ReconnectInterval)
	}
	r.updateStatus(func(s *Status) {
		s.LastConnectCode = code
		s.LastConnectAt = r.wall()
	})
	if r.mirror != nil {
		r.mirror.WriteConnectResult(r.creds.IdentityName, code, r.wall())
	}
	return err == nil
}

func (r *Runner) publish(ctx context.Context) {
	batch, err := r.source.Collect(ctx)
	if err != nil {
		r.logger.Warn("collecting readings failed", "error", err)
		return
	}
	if len(batch) == 0 {
		r.logger.Debug("no readings to publish")
		return
	}

	if err := r.session.Publish(batch); err != nil {
		r.logger.Warn("batch dropped", "readings", len(batch), "error", err)
		r.updateStatus(func(s *Status) { s.Dropped++ })
		return
	}
	r.logger.Info("batch published", "readings", len(batch))
	r.updateStatus(func(s *Status) {
		s.Published++
		s.LastPublishAt = r.wall()
	})

	if r.mirror != nil {
		samples := make([]influxdb.HumiditySample, len(batch))
		for i, rd := range batch {
			samples[i] = influxdb.HumiditySample{NodeID: rd.NodeID, Humidity: rd.Humidity, Raw: rd.Raw}
		}
		r.mirror.WriteBatch(r.creds.IdentityName, samples, r.wall())
	}
}

// Shutdown closes the broker session, drains the mirror and powers the
// radios down.
func (r *Runner) Shutdown() error {
	r.session.Disconnect()
	if f, ok := r.mirror.(flusher); ok {
		f.Flush()
	}
	r.updateStatus(func(s *Status) { s.Channel = 0 })
	if err := r.net.Teardown(); err != nil {
		return fmt.Errorf("tearing down network: %w", err)
	}
	r.logger.Info("radios powered down")
	return nil
}
