package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harunnryd/ouvidoria/internal/adapter"
	"github.com/harunnryd/ouvidoria/internal/config"
	"github.com/harunnryd/ouvidoria/internal/daemon"
	"github.com/harunnryd/ouvidoria/internal/daemon/components"
	"github.com/harunnryd/ouvidoria/internal/intel"
	"github.com/harunnryd/ouvidoria/internal/metrics"
)

func testConfig(t *testing.T, port int) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Server:   config.ServerConfig{Port: port, ShutdownTimeout: "2s"},
		Intake:   config.IntakeConfig{Flow: "short", SessionTimeout: "5m", IssueCredentials: true},
		Sessions: config.SessionsConfig{Backend: "memory"},
		Records:  config.RecordsConfig{Path: filepath.Join(dir, "records.db"), Table: "denuncias"},
		Ingress:  config.IngressConfig{IdempotencyTTL: "1h", SendTimeout: "1s"},
		Daemon:   config.DaemonConfig{DataPath: dir, ShutdownTimeout: "5s", LockTimeout: "1s"},
	}
}

// assemble registers the serving stack the way the serve command does,
// minus the network gateways.
func assemble(t *testing.T, cfg *config.Config) *daemon.Daemon {
	t.Helper()

	d, err := daemon.NewDaemon(cfg)
	if err != nil {
		t.Fatalf("Failed to create daemon: %v", err)
	}

	m := metrics.New()
	storeComp := components.NewStoreComponent(cfg)
	intakeComp := components.NewIntakeComponent(cfg, storeComp, nil, m, intel.Noop{})

	var ingressComp *components.IngressComponent
	eventHandler := func(ctx context.Context, msg adapter.Message) error {
		ing := ingressComp.GetIngress()
		if ing == nil {
			return fmt.Errorf("ingress not initialized")
		}
		return ing.HandleMessage(ctx, msg)
	}
	adapterMgr, err := adapter.NewRuntimeManager(cfg.Adapters, eventHandler, adapter.RuntimeAdapterOptions{SkipGateways: true})
	if err != nil {
		t.Fatalf("failed to create adapter manager: %v", err)
	}
	ingressComp = components.NewIngressComponent(storeComp, intakeComp, &cfg.Ingress, m, adapterMgr.OutputAdapters())

	d.AddComponent(storeComp)
	d.AddComponent(intakeComp)
	d.AddComponent(ingressComp)
	d.AddComponent(components.NewAdaptersComponent(adapterMgr))
	d.AddComponent(components.NewHTTPServerComponent(d, &cfg.Server, ingressComp, intakeComp, components.HTTPRoutes{Metrics: m}))
	d.AddComponent(components.NewJanitorComponent(&cfg.Janitor, intakeComp, ingressComp))
	return d
}

func waitRunning(t *testing.T, d *daemon.Daemon) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if d.Health() == daemon.StatusRunning {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("daemon did not reach running, status %v", d.Health())
}

func TestDaemonFullLifecycle(t *testing.T) {
	cfg := testConfig(t, 18081)
	d := assemble(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	startDone := make(chan error, 1)
	go func() {
		startDone <- d.Start(ctx)
	}()
	waitRunning(t, d)

	healths := d.ComponentHealth()
	if len(healths) != 6 {
		t.Errorf("Expected 6 components, got %d", len(healths))
	}
	for name, h := range healths {
		if !h.Healthy {
			t.Errorf("Component %s unhealthy: %v", name, h.Error)
		}
	}

	healthResp, err := http.Get("http://127.0.0.1:18081/health")
	if err != nil {
		t.Fatalf("Failed to get health endpoint: %v", err)
	}
	defer healthResp.Body.Close()

	if healthResp.StatusCode != http.StatusOK {
		t.Errorf("Expected status OK, got %v", healthResp.StatusCode)
	}
	body, err := io.ReadAll(healthResp.Body)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}
	if !strings.Contains(string(body), `"Intake"`) {
		t.Errorf("Health endpoint should list components, got %s", body)
	}

	cancel()

	select {
	case err := <-startDone:
		if err == nil {
			t.Error("Daemon.Start() should have returned error when context cancelled")
		} else if !strings.Contains(err.Error(), "context canceled") && !strings.Contains(err.Error(), "shutdown cancelled") {
			t.Errorf("Daemon.Start() returned unexpected error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Error("Daemon did not shut down within timeout")
	}

	if d.Health() != daemon.StatusStopped {
		t.Errorf("Expected StatusStopped after shutdown, got %v", d.Health())
	}
}

func TestDaemonServesIntakeOverHTTP(t *testing.T) {
	cfg := testConfig(t, 18082)
	d := assemble(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	startDone := make(chan error, 1)
	go func() {
		startDone <- d.Start(ctx)
	}()
	defer func() {
		cancel()
		<-startDone
	}()
	waitRunning(t, d)

	client := &http.Client{Timeout: 5 * time.Second}
	send := func(id, text string) string {
		payload, _ := json.Marshal(map[string]string{"id": id, "sender_id": "+5511977776666", "content": text})
		resp, err := client.Post("http://127.0.0.1:18082/api/v1/events", "application/json", bytes.NewReader(payload))
		if err != nil {
			t.Fatalf("POST event: %v", err)
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("POST event status %d: %s", resp.StatusCode, b)
		}
		return string(b)
	}

	send("e1", "olá")
	send("e2", "1")
	send("e3", "Recebi ameaças de um colega no almoxarifado")
	out := send("e4", "1")
	if !strings.Contains(out, "Protocolo: ") {
		t.Fatalf("expected a protocol in the final reply, got %s", out)
	}
}

func TestDaemonHealthEndpointMethods(t *testing.T) {
	cfg := testConfig(t, 18083)
	d := assemble(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	startDone := make(chan error, 1)
	go func() {
		startDone <- d.Start(ctx)
	}()
	defer func() {
		cancel()
		<-startDone
	}()
	waitRunning(t, d)

	tests := []struct {
		name           string
		method         string
		expectedStatus int
	}{
		{name: "GET health endpoint", method: http.MethodGet, expectedStatus: http.StatusOK},
		{name: "POST health endpoint (should fail)", method: http.MethodPost, expectedStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(tt.method, "http://127.0.0.1:18083/health", nil)
			client := &http.Client{Timeout: 2 * time.Second}
			resp, err := client.Do(req)
			if err != nil {
				t.Fatalf("Failed to send request: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.expectedStatus {
				t.Errorf("Expected status %v, got %v", tt.expectedStatus, resp.StatusCode)
			}
		})
	}
}

func TestDaemonInitFailureRollsBack(t *testing.T) {
	cfg := testConfig(t, 18084)
	cfg.Sessions.Backend = "redis"
	d := assemble(t, cfg)

	err := d.Start(context.Background())
	if err == nil {
		t.Fatal("Start() should fail with an unknown sessions backend")
	}
	if !strings.Contains(err.Error(), "component initialization failed") {
		t.Errorf("unexpected error: %v", err)
	}
	if d.Health() != daemon.StatusStopped {
		t.Errorf("Expected StatusStopped after rollback, got %v", d.Health())
	}
}
