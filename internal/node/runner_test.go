package node

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-sensornode/internal/credentials"
	"github.com/nerrad567/gray-logic-sensornode/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-sensornode/internal/network"
	"github.com/nerrad567/gray-logic-sensornode/internal/session"
)

type fakeStore struct {
	creds *credentials.Credentials
	err   error
}

func (f *fakeStore) Load(context.Context) (*credentials.Credentials, error) {
	return f.creds, f.err
}

type fakeNetwork struct {
	associateErr error
	syncErr      error
	teardownErr  error
	channel      int

	associated bool
	teardowns  int
	lastSSID   string
}

func (f *fakeNetwork) Associate(ssid, _ string, _ time.Duration) (int, error) {
	f.lastSSID = ssid
	if f.associateErr != nil && !errors.Is(f.associateErr, network.ErrChannelUnavailable) {
		return 0, f.associateErr
	}
	f.associated = true
	if f.associateErr != nil {
		return 0, f.associateErr
	}
	return f.channel, nil
}

func (f *fakeNetwork) SyncClock(time.Duration) error { return f.syncErr }

func (f *fakeNetwork) CurrentChannel() (int, bool) {
	if !f.associated || f.channel == 0 || f.associateErr != nil {
		return 0, false
	}
	return f.channel, true
}

func (f *fakeNetwork) Teardown() error {
	f.teardowns++
	f.associated = false
	return f.teardownErr
}

type fakeTransport struct {
	connectErr error
	connected  bool
	connects   int
	publishes  int
	payloads   [][]byte
}

func (f *fakeTransport) InstallTLS(_, _, _ []byte) error { return nil }

func (f *fakeTransport) Connect(string, int, string) error {
	f.connects++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeTransport) IsConnected() bool { return f.connected }
func (f *fakeTransport) Service() error    { return nil }

func (f *fakeTransport) Publish(_ string, payload []byte) error {
	f.publishes++
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakeTransport) Disconnect() error {
	f.connected = false
	return nil
}

type fakeSource struct {
	batch []session.Reading
	err   error
	calls int
}

func (f *fakeSource) Collect(context.Context) ([]session.Reading, error) {
	f.calls++
	return f.batch, f.err
}

type fakeMirror struct {
	batches  int
	samples  []influxdb.HumiditySample
	connects []int
	links    []int
	flushes  int
	onFlush  func()
}

func (f *fakeMirror) Flush() {
	f.flushes++
	if f.onFlush != nil {
		f.onFlush()
	}
}

func (f *fakeMirror) WriteBatch(_ string, samples []influxdb.HumiditySample, _ time.Time) {
	f.batches++
	f.samples = append(f.samples, samples...)
}

func (f *fakeMirror) WriteConnectResult(_ string, code int, _ time.Time) {
	f.connects = append(f.connects, code)
}

func (f *fakeMirror) WriteLink(_ string, channel int, _ time.Time) {
	f.links = append(f.links, channel)
}

type connackError struct{ code int }

func (e connackError) Error() string    { return "refused" }
func (e connackError) ConnectCode() int { return e.code }

func testCredentials() *credentials.Credentials {
	return &credentials.Credentials{
		IdentityName:         "node-A",
		BrokerEndpoint:       "broker.example",
		PublishTopic:         "gateways/juan/node-A",
		OwnerID:              "juan",
		NetworkSSID:          "greenhouse",
		NetworkPassword:      "hunter22",
		CACertificatePEM:     "ca",
		DeviceCertificatePEM: "cert",
		PrivateKeyPEM:        "key",
	}
}

type harness struct {
	runner    *Runner
	store     *fakeStore
	net       *fakeNetwork
	transport *fakeTransport
	sess      *session.Manager
	source    *fakeSource
	mirror    *fakeMirror
}

func newHarness(mode Mode) *harness {
	h := &harness{
		store:     &fakeStore{creds: testCredentials()},
		net:       &fakeNetwork{channel: 6},
		transport: &fakeTransport{},
		source:    &fakeSource{batch: []session.Reading{{NodeID: 1, Humidity: 55.2, Raw: 710}}},
		mirror:    &fakeMirror{},
	}
	h.sess = session.NewManager(session.Options{
		Transport: h.transport,
		Now:       func() time.Time { return time.Unix(1700000000, 0) },
	})
	h.runner = New(Options{
		Store:   h.store,
		Network: h.net,
		Session: h.sess,
		Source:  h.source,
		Mirror:  h.mirror,
		Schedule: Schedule{
			Mode:              mode,
			Port:              8883,
			AssociateTimeout:  time.Second,
			SyncTimeout:       time.Second,
			PollInterval:      time.Millisecond,
			PublishInterval:   30 * time.Second,
			ReconnectInterval: 5 * time.Second,
		},
	})
	return h
}

func TestBoot(t *testing.T) {
	h := newHarness(Continuous)

	if err := h.runner.Boot(context.Background()); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	if h.net.lastSSID != "greenhouse" {
		t.Errorf("associated with %q, want greenhouse", h.net.lastSSID)
	}
	if h.sess.State() != session.Disconnected {
		t.Errorf("session State() = %v, want disconnected", h.sess.State())
	}
	if len(h.mirror.links) != 1 || h.mirror.links[0] != 6 {
		t.Errorf("mirrored links = %v, want [6]", h.mirror.links)
	}
}

func TestBoot_StageFailures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(h *harness)
		wantErr error
	}{
		{
			name:    "no metadata",
			mutate:  func(h *harness) { h.store.creds, h.store.err = nil, credentials.ErrMetadataMissing },
			wantErr: credentials.ErrMetadataMissing,
		},
		{
			name:    "association timeout",
			mutate:  func(h *harness) { h.net.associateErr = network.ErrAssociationTimeout },
			wantErr: network.ErrAssociationTimeout,
		},
		{
			name:    "clock sync timeout",
			mutate:  func(h *harness) { h.net.syncErr = network.ErrClockSyncTimeout },
			wantErr: network.ErrClockSyncTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(Continuous)
			tt.mutate(h)

			err := h.runner.Boot(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Boot() error = %v, want %v", err, tt.wantErr)
			}
			if h.sess.State() != session.Unconfigured {
				t.Errorf("session configured despite boot failure")
			}
		})
	}
}

func TestBoot_ChannelUnavailableTolerated(t *testing.T) {
	h := newHarness(Continuous)
	h.net.associateErr = network.ErrChannelUnavailable

	if err := h.runner.Boot(context.Background()); err != nil {
		t.Fatalf("Boot() error = %v, want nil", err)
	}
	if h.sess.State() != session.Disconnected {
		t.Errorf("session State() = %v, want disconnected", h.sess.State())
	}
	if len(h.mirror.links) != 0 {
		t.Errorf("mirrored a link without a channel: %v", h.mirror.links)
	}
}

func TestStep_ConnectAndPublish(t *testing.T) {
	h := newHarness(Continuous)
	if err := h.runner.Boot(context.Background()); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}

	start := time.Unix(0, 0)
	if !h.runner.Step(context.Background(), start) {
		t.Fatal("first Step() did not publish")
	}
	if h.sess.State() != session.Connected {
		t.Errorf("State() = %v, want connected", h.sess.State())
	}
	if h.transport.publishes != 1 {
		t.Errorf("publishes = %d, want 1", h.transport.publishes)
	}
	want := `{"meshId":"node-A","timestamp":1700000000,"readings":[{"nodeId":1,"humidity":55.2,"raw":710}]}`
	if string(h.transport.payloads[0]) != want {
		t.Errorf("payload = %s", h.transport.payloads[0])
	}
	if h.mirror.batches != 1 || len(h.mirror.connects) != 1 || h.mirror.connects[0] != 0 {
		t.Errorf("mirror batches = %d, connects = %v", h.mirror.batches, h.mirror.connects)
	}

	if h.runner.Step(context.Background(), start.Add(10*time.Second)) {
		t.Error("Step() published before the publish interval elapsed")
	}
	if !h.runner.Step(context.Background(), start.Add(30*time.Second)) {
		t.Error("Step() did not publish once the interval elapsed")
	}
	if h.transport.connects != 1 {
		t.Errorf("transport connects = %d, want 1", h.transport.connects)
	}
}

func TestStep_ReconnectSpacing(t *testing.T) {
	h := newHarness(Continuous)
	h.transport.connectErr = connackError{code: 5}
	if err := h.runner.Boot(context.Background()); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}

	start := time.Unix(0, 0)
	h.runner.Step(context.Background(), start)
	h.runner.Step(context.Background(), start.Add(time.Second))
	h.runner.Step(context.Background(), start.Add(4*time.Second))
	if h.transport.connects != 1 {
		t.Fatalf("connects within reconnect interval = %d, want 1", h.transport.connects)
	}

	h.runner.Step(context.Background(), start.Add(5*time.Second))
	if h.transport.connects != 2 {
		t.Errorf("connects after reconnect interval = %d, want 2", h.transport.connects)
	}
	if h.transport.publishes != 0 || h.source.calls != 0 {
		t.Errorf("collected or published while disconnected")
	}
	if len(h.mirror.connects) != 2 || h.mirror.connects[0] != 5 {
		t.Errorf("mirrored connect results = %v, want [5 5]", h.mirror.connects)
	}
}

func TestStep_FailedConnectNeverRecordedAsSuccess(t *testing.T) {
	h := newHarness(Continuous)
	h.transport.connectErr = connackError{code: session.CodeConnected}
	if err := h.runner.Boot(context.Background()); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}

	if h.runner.Step(context.Background(), time.Unix(0, 0)) {
		t.Fatal("Step() published after a failed connect")
	}
	if len(h.mirror.connects) != 1 || h.mirror.connects[0] != session.CodeConnectFailed {
		t.Errorf("mirrored connect results = %v, want [%d]", h.mirror.connects, session.CodeConnectFailed)
	}
	if got := h.runner.Status().LastConnectCode; got != session.CodeConnectFailed {
		t.Errorf("LastConnectCode = %d, want %d", got, session.CodeConnectFailed)
	}
}

func TestStep_EmptyBatchNotPublished(t *testing.T) {
	h := newHarness(Continuous)
	h.source.batch = nil
	if err := h.runner.Boot(context.Background()); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}

	if !h.runner.Step(context.Background(), time.Unix(0, 0)) {
		t.Error("Step() did not run a publish cycle")
	}
	if h.transport.publishes != 0 {
		t.Errorf("published an empty batch")
	}
}

func TestStep_SourceFails(t *testing.T) {
	h := newHarness(Continuous)
	h.source.err = errors.New("spool unreadable")
	if err := h.runner.Boot(context.Background()); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}

	h.runner.Step(context.Background(), time.Unix(0, 0))
	if h.transport.publishes != 0 {
		t.Error("published despite source failure")
	}
	if h.sess.State() != session.Connected {
		t.Errorf("State() = %v, want connected", h.sess.State())
	}
}

func TestRun_OneShot(t *testing.T) {
	h := newHarness(OneShot)
	if err := h.runner.Boot(context.Background()); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := h.runner.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if ctx.Err() != nil {
		t.Fatal("Run() only returned because the context expired")
	}
	if h.transport.publishes != 1 {
		t.Errorf("publishes = %d, want 1", h.transport.publishes)
	}
}

func TestRun_ContinuousStopsOnCancel(t *testing.T) {
	h := newHarness(Continuous)
	if err := h.runner.Boot(context.Background()); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.runner.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestRun_BeforeBoot(t *testing.T) {
	h := newHarness(Continuous)
	if err := h.runner.Run(context.Background()); !errors.Is(err, session.ErrNotConfigured) {
		t.Errorf("Run() error = %v, want ErrNotConfigured", err)
	}
}

func TestShutdown(t *testing.T) {
	h := newHarness(Continuous)
	if err := h.runner.Boot(context.Background()); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	h.runner.Step(context.Background(), time.Unix(0, 0))

	if err := h.runner.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if h.sess.State() != session.Disconnected {
		t.Errorf("State() = %v, want disconnected", h.sess.State())
	}
	if h.transport.connected {
		t.Error("transport still connected")
	}
	if h.net.teardowns != 1 {
		t.Errorf("teardowns = %d, want 1", h.net.teardowns)
	}
}

func TestShutdown_FlushesMirrorBeforeTeardown(t *testing.T) {
	h := newHarness(Continuous)
	if err := h.runner.Boot(context.Background()); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	linkUp := false
	h.mirror.onFlush = func() { linkUp = h.net.associated }

	if err := h.runner.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if h.mirror.flushes != 1 {
		t.Fatalf("mirror flushes = %d, want 1", h.mirror.flushes)
	}
	if !linkUp {
		t.Error("mirror flushed after the radio was torn down")
	}
}

func TestShutdown_TeardownFails(t *testing.T) {
	h := newHarness(Continuous)
	h.net.teardownErr = network.ErrRadio

	if err := h.runner.Shutdown(); !errors.Is(err, network.ErrRadio) {
		t.Errorf("Shutdown() error = %v, want ErrRadio", err)
	}
}

func TestStatus(t *testing.T) {
	h := newHarness(Continuous)
	if got := h.runner.Status(); got.Session != "unconfigured" {
		t.Errorf("initial Session = %q, want unconfigured", got.Session)
	}

	if err := h.runner.Boot(context.Background()); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	h.runner.Step(context.Background(), time.Unix(0, 0))

	got := h.runner.Status()
	if got.Identity != "node-A" || got.Session != "connected" || got.Channel != 6 {
		t.Errorf("Status() = %+v", got)
	}
	if got.Published != 1 || got.Dropped != 0 || got.LastPublishAt.IsZero() {
		t.Errorf("publish counters = %+v", got)
	}

	h.transport.connected = false
	h.runner.Step(context.Background(), time.Unix(30, 0))
	if got := h.runner.Status(); got.Session != "disconnected" {
		t.Errorf("Session after drop = %q, want disconnected", got.Session)
	}

	if err := h.runner.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if got := h.runner.Status(); got.Channel != 0 {
		t.Errorf("Channel after shutdown = %d, want 0", got.Channel)
	}
}
