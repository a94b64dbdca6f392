package relay

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/kbukum/pitwall/broadcast"
	"github.com/kbukum/pitwall/component"
	"github.com/kbukum/pitwall/grpc/client"
	grpcx "github.com/kbukum/pitwall/grpc"
	"github.com/kbukum/pitwall/ingest"
	"github.com/kbukum/pitwall/logger"
	"github.com/kbukum/pitwall/telemetry"
)

func testConfig() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	return cfg
}

// startRelay starts every component and returns an ingest client over bufconn.
func startRelay(t *testing.T, cfg *Config) (*Relay, *ingest.TelemetryClient) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	r, err := New(cfg, logger.Nop(), WithGRPCListener(lis))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	reg := component.NewRegistry(logger.Nop())
	if err := r.Register(reg); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = reg.StopAll(ctx)
	})

	conn, err := client.NewClient(grpcx.Config{}, nil,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return r, ingest.NewTelemetryClient(conn)
}

func dialObserver(t *testing.T, r *Relay) *websocket.Conn {
	t.Helper()
	before := r.Medium().Stats().Subscribers
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+r.HTTPAddr()+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	waitFor(t, "observer subscription", func() bool { return r.Medium().Stats().Subscribers > before })
	return conn
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func sendFrames(t *testing.T, c *ingest.TelemetryClient, n int) telemetry.TransferSummary {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream, err := c.StreamTelemetry(ctx)
	if err != nil {
		t.Fatalf("StreamTelemetry: %v", err)
	}
	for i := 0; i < n; i++ {
		if err := stream.Send(telemetry.Frame{DriverID: "LEC", TimestampMs: int64(i), Speed: 300, Gear: 8}); err != nil {
			t.Fatalf("Send #%d: %v", i, err)
		}
	}
	summary, err := stream.CloseAndRecv()
	if err != nil {
		t.Fatalf("CloseAndRecv: %v", err)
	}
	return summary
}

func readFrame(t *testing.T, conn *websocket.Conn) telemetry.Frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	kind, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if kind != websocket.TextMessage {
		t.Fatalf("expected text message, got %d", kind)
	}
	f, err := telemetry.ParseFrame(msg)
	if err != nil {
		t.Fatalf("invalid frame JSON %q: %v", msg, err)
	}
	return f
}

func TestConfig_Defaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	if cfg.Name != "pitwall" {
		t.Errorf("expected name pitwall, got %s", cfg.Name)
	}
	if cfg.Broadcast.Capacity != 100 {
		t.Errorf("expected capacity 100, got %d", cfg.Broadcast.Capacity)
	}
	if cfg.GRPC.Address() != "127.0.0.1:50051" {
		t.Errorf("expected ingest on 127.0.0.1:50051, got %s", cfg.GRPC.Address())
	}
	if cfg.Server.Address() != "0.0.0.0:3000" {
		t.Errorf("expected observers on 0.0.0.0:3000, got %s", cfg.Server.Address())
	}
	if cfg.Observer.LagPolicy != "terminate" {
		t.Errorf("expected terminate lag policy, got %s", cfg.Observer.LagPolicy)
	}
	if cfg.Mirror.Enabled {
		t.Error("expected mirror disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative capacity", func(c *Config) { c.Broadcast.Capacity = -1 }},
		{"unknown lag policy", func(c *Config) { c.Observer.LagPolicy = "drop" }},
		{"negative max sessions", func(c *Config) { c.Observer.MaxSessions = -1 }},
		{"bad grpc port", func(c *Config) { c.GRPC.Port = 70000 }},
		{"bad server port", func(c *Config) { c.Server.Port = -5 }},
		{"sample rate above one", func(c *Config) { c.Observability.SampleRate = 2 }},
		{"mirror without addr", func(c *Config) { c.Mirror.Enabled = true; c.Mirror.Addr = "" }},
		{"unknown environment", func(c *Config) { c.Environment = "qa" }},
		{"progress below disabled", func(c *Config) { c.Ingest.ProgressEvery = -2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			cfg.ApplyDefaults()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestConfig_ProgressLoggingDisabled(t *testing.T) {
	var cfg Config
	cfg.Ingest.ProgressEvery = -1
	cfg.ApplyDefaults()
	if cfg.Ingest.ProgressEvery != -1 {
		t.Errorf("expected progress_every -1, got %d", cfg.Ingest.ProgressEvery)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected -1 to validate, got %v", err)
	}
}

func TestRelay_FiftyFramesOneObserver(t *testing.T) {
	r, producer := startRelay(t, testConfig())
	conn := dialObserver(t, r)

	summary := sendFrames(t, producer, 50)
	if summary.TotalPackets != 50 || summary.Status != telemetry.StatusStreamEnded {
		t.Fatalf("expected 50/%q, got %+v", telemetry.StatusStreamEnded, summary)
	}

	for i := 0; i < 50; i++ {
		f := readFrame(t, conn)
		if f.TimestampMs != int64(i) || f.DriverID != "LEC" {
			t.Fatalf("expected frame %d, got %+v", i, f)
		}
	}
}

func TestRelay_ObserverLeavesProducerUnaffected(t *testing.T) {
	r, producer := startRelay(t, testConfig())
	leaver := dialObserver(t, r)
	stayer := dialObserver(t, r)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream, err := producer.StreamTelemetry(ctx)
	if err != nil {
		t.Fatalf("StreamTelemetry: %v", err)
	}
	for i := 0; i < 10; i++ {
		if err := stream.Send(telemetry.Frame{DriverID: "NOR", TimestampMs: int64(i)}); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}
	for i := 0; i < 10; i++ {
		readFrame(t, leaver)
	}
	_ = leaver.Close()
	waitFor(t, "leaver release", func() bool { return r.Medium().Stats().Subscribers == 1 })

	for i := 10; i < 50; i++ {
		if err := stream.Send(telemetry.Frame{DriverID: "NOR", TimestampMs: int64(i)}); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}
	summary, err := stream.CloseAndRecv()
	if err != nil {
		t.Fatalf("CloseAndRecv: %v", err)
	}
	if summary.TotalPackets != 50 {
		t.Errorf("expected total 50, got %d", summary.TotalPackets)
	}
	for i := 0; i < 50; i++ {
		if f := readFrame(t, stayer); f.TimestampMs != int64(i) {
			t.Fatalf("expected frame %d, got %d", i, f.TimestampMs)
		}
	}
}

func TestRelay_StalledSubscriberLags(t *testing.T) {
	r, producer := startRelay(t, testConfig())
	cur := r.Medium().Subscribe()
	defer cur.Close()

	if summary := sendFrames(t, producer, 250); summary.TotalPackets != 250 {
		t.Fatalf("expected 250, got %d", summary.TotalPackets)
	}

	_, err := cur.Next(context.Background())
	skipped, lagged := broadcast.Lagged(err)
	if !lagged {
		t.Fatalf("expected lagged error, got %v", err)
	}
	if skipped < 150 {
		t.Errorf("expected at least 150 skipped, got %d", skipped)
	}
}

func TestRelay_LateObserverSeesNoHistory(t *testing.T) {
	r, producer := startRelay(t, testConfig())
	sendFrames(t, producer, 20)

	conn := dialObserver(t, r)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream, err := producer.StreamTelemetry(ctx)
	if err != nil {
		t.Fatalf("StreamTelemetry: %v", err)
	}
	if err := stream.Send(telemetry.Frame{DriverID: "PIA", TimestampMs: 1000}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, err := stream.CloseAndRecv(); err != nil {
		t.Fatalf("CloseAndRecv: %v", err)
	}

	if f := readFrame(t, conn); f.TimestampMs != 1000 {
		t.Errorf("expected first frame after joining, got %+v", f)
	}
}

func TestRelay_SystemEndpoints(t *testing.T) {
	r, producer := startRelay(t, testConfig())
	sendFrames(t, producer, 30)

	get := func(path string) (int, string) {
		resp, err := http.Get("http://" + r.HTTPAddr() + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(body)
	}

	code, body := get("/health")
	if code != http.StatusOK {
		t.Errorf("expected healthy relay, got %d: %s", code, body)
	}
	for _, name := range []string{"broadcast", "grpc-server", "http-server"} {
		if !strings.Contains(body, `"name":"`+name+`"`) {
			t.Errorf("expected %s in health body: %s", name, body)
		}
	}

	code, body = get("/metrics")
	if code != http.StatusOK {
		t.Fatalf("expected metrics, got %d", code)
	}
	for _, want := range []string{
		"pitwall_ingest_frames_total 30",
		"pitwall_broadcast_capacity 100",
		"pitwall_broadcast_published_total 30",
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in metrics", want)
		}
	}

	if code, _ := get("/info"); code != http.StatusOK {
		t.Errorf("expected info 200, got %d", code)
	}
}

func TestRelay_Stats(t *testing.T) {
	r, producer := startRelay(t, testConfig())
	dialObserver(t, r)
	sendFrames(t, producer, 5)

	waitFor(t, "session count", func() bool { return r.Stats().ActiveSessions == 1 })
	s := r.Stats()
	if s.FramesIngested != 5 || s.Broadcast.Published != 5 {
		t.Errorf("unexpected stats: %+v", s)
	}
	if s.ActiveStreams != 0 {
		t.Errorf("expected no active streams, got %d", s.ActiveStreams)
	}
}

func TestRelay_HTTPBindConflict(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	cfg := testConfig()
	cfg.Server.Port = ln.Addr().(*net.TCPAddr).Port
	r, err := New(cfg, logger.Nop(), WithGRPCListener(bufconn.Listen(1<<10)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	reg := component.NewRegistry(logger.Nop())
	if err := r.Register(reg); err != nil {
		t.Fatalf("Register: %v", err)
	}
	defer reg.StopAll(context.Background())
	if err := reg.StartAll(context.Background()); err == nil {
		t.Fatal("expected startup to fail on an occupied port")
	}
}

func TestRelay_Components(t *testing.T) {
	cfg := testConfig()
	cfg.Mirror.Enabled = true
	cfg.Mirror.Addr = "127.0.0.1:1"
	r, err := New(cfg, logger.Nop(), WithGRPCListener(bufconn.Listen(1<<10)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var names []string
	for _, c := range r.Components() {
		names = append(names, c.Name())
	}
	want := "broadcast,grpc-server,http-server,redis-mirror"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}
