package main

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/signalsfoundry/orbital-flight-sim/internal/config"
	"github.com/signalsfoundry/orbital-flight-sim/internal/logging"
	"github.com/signalsfoundry/orbital-flight-sim/internal/observability"
	"github.com/signalsfoundry/orbital-flight-sim/model"
)

func listen(t *testing.T) net.Listener {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	t.Cleanup(func() { _ = lis.Close() })
	return lis
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("../../configs/solar-system.yaml")
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	cfg.Time.Tick = 5 * time.Millisecond
	cfg.Stream.Every = 1
	cfg.Tracing.Enabled = false
	return cfg
}

func TestSimulatorStartupSmoke(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := testConfig(t)
	grpcLis, httpLis := listen(t), listen(t)
	log := logging.New(logging.Config{Level: "warn", Format: "text"})

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, cfg, log, grpcLis, httpLis)
	}()

	conn, err := grpc.NewClient(grpcLis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	defer conn.Close()
	health := healthpb.NewHealthClient(conn)
	waitFor(t, "health SERVING", func() bool {
		resp, err := health.Check(ctx, &healthpb.HealthCheckRequest{Service: observability.SimulatorService})
		return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
	})

	base := "http://" + httpLis.Addr().String()
	var snap model.FrameSnapshot
	waitFor(t, "first snapshot", func() bool {
		resp, err := http.Get(base + "/snapshot")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return false
		}
		return json.NewDecoder(resp.Body).Decode(&snap) == nil
	})
	if snap.Star.Name != "Sun" || len(snap.Bodies) != len(cfg.Bodies) {
		t.Fatalf("snapshot star=%q bodies=%d, want Sun and %d bodies", snap.Star.Name, len(snap.Bodies), len(cfg.Bodies))
	}
	if snap.Nearest == nil {
		t.Fatalf("snapshot has no nearest body")
	}

	ws, _, err := websocket.DefaultDialer.Dial("ws://"+httpLis.Addr().String()+"/stream", nil)
	if err != nil {
		t.Fatalf("dial stream: %v", err)
	}
	defer ws.Close()
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	var first, next model.FrameSnapshot
	if err := ws.ReadJSON(&first); err != nil {
		t.Fatalf("read first frame: %v", err)
	}
	if err := ws.ReadJSON(&next); err != nil {
		t.Fatalf("read next frame: %v", err)
	}
	if next.Tick < first.Tick || next.SimTime < first.SimTime {
		t.Fatalf("stream went backwards: %d@%v then %d@%v", first.Tick, first.SimTime, next.Tick, next.SimTime)
	}

	resp, err := http.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	for _, name := range []string{"sim_ticks_total", "sim_bodies", "stream_clients"} {
		if !strings.Contains(string(body), name) {
			t.Fatalf("/metrics missing %s", name)
		}
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("run did not return after cancel")
	}
}

func TestRunStopsAfterDuration(t *testing.T) {
	cfg := testConfig(t)
	cfg.Time.Mode = "accelerated"
	cfg.Time.Tick = 20 * time.Millisecond
	cfg.Time.Duration = 1
	cfg.Metrics.Enabled = false

	grpcLis, httpLis := listen(t), listen(t)
	done := make(chan error, 1)
	go func() {
		done <- run(context.Background(), cfg, logging.Noop(), grpcLis, httpLis)
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("run did not stop after its duration")
	}
}

func TestRunRejectsBadCatalog(t *testing.T) {
	cfg := testConfig(t)
	cfg.Bodies = append(cfg.Bodies, config.BodyConfig{
		Name: "Ghost", Parent: "Nowhere",
		Radius: 1, AtmosphereRadius: 1, GM: 1,
		Orbit: &config.OrbitConfig{SemiMajorAxis: 10, Period: 1},
	})
	err := run(context.Background(), cfg, logging.Noop(), listen(t), listen(t))
	if err == nil {
		t.Fatalf("run with an unknown parent succeeded")
	}
}

func waitFor(t *testing.T, what string, ok func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !ok() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
