package manager

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"proxyrotation/internal/shared/types"
	"proxyrotation/proxypool/model"
	"proxyrotation/proxypool/source"
)

type mapChecker map[model.Endpoint]bool

func (m mapChecker) Check(_ context.Context, e model.Endpoint) bool { return m[e] }

func TestManager_RunAndImport(t *testing.T) {
	cfg := types.NewDefaultConfig()
	checker := mapChecker{"p1": true, "p2": false, "p3": true, "p4": true}
	m := New(cfg, checker)
	m.AddSource(source.NewStaticSource("p1", "", " p2 ", "p3", "p1"))

	summary, err := m.Run()
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Checked != 3 || summary.Duplicates != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if m.Pool().ValidCount() != 2 || m.Pool().InvalidCount() != 1 {
		t.Fatalf("counts = (%d, %d), want (2, 1)", m.Pool().ValidCount(), m.Pool().InvalidCount())
	}

	// p2 stays invalid even though the import lists it again
	imported := m.ImportAndValidate([]string{"p2", "p4", " "})
	if imported.Checked != 1 {
		t.Errorf("ImportAndValidate() checked %d, want 1", imported.Checked)
	}
	if m.Pool().State("p4") != model.StateValid || m.Pool().State("p2") != model.StateInvalid {
		t.Errorf("states after import: p4=%v p2=%v", m.Pool().State("p4"), m.Pool().State("p2"))
	}
	if err := m.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestManager_NoSources(t *testing.T) {
	m := New(types.NewDefaultConfig(), mapChecker{})
	if _, err := m.Run(); err == nil {
		t.Error("Run() without sources should fail")
	}
}

func TestManager_UnreadableSourceLeavesPoolEmpty(t *testing.T) {
	cfg := types.NewDefaultConfig()
	cfg.File = filepath.Join(t.TempDir(), "missing.txt")

	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	summary, err := m.Run()
	if err == nil {
		t.Error("Run() should report the unreadable source")
	}
	if summary.Checked != 0 || m.Pool().ValidCount() != 0 {
		t.Errorf("summary = %+v, valid = %d", summary, m.Pool().ValidCount())
	}
	if _, ok := m.Pool().Next(); ok {
		t.Error("Next() on an empty pool should report unavailable")
	}
}

func TestNewManager_EndToEnd(t *testing.T) {
	liveProxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"origin": "10.0.0.1"}`))
	}))
	defer liveProxy.Close()
	deadProxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer deadProxy.Close()

	dir := t.TempDir()
	listPath := filepath.Join(dir, "proxy-list.txt")
	list := liveProxy.URL + "\n\n" + deadProxy.URL + "\n"
	if err := os.WriteFile(listPath, []byte(list), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := types.NewDefaultConfig()
	cfg.File = listPath
	cfg.ValidationTarget = "http://liveness.test/ip"
	cfg.PoolConf.TimeoutSeconds = 2
	cfg.Driver = "sqlite"
	cfg.ReportConf.Path = filepath.Join(dir, "report.db")
	cfg.ValidFile = filepath.Join(dir, "valid-proxy.txt")

	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer m.Close()

	if _, err := m.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if m.Pool().State(model.Endpoint(liveProxy.URL)) != model.StateValid {
		t.Error("live proxy should be valid")
	}
	if m.Pool().State(model.Endpoint(deadProxy.URL)) != model.StateInvalid {
		t.Error("dead proxy should be invalid")
	}

	if err := m.ExportValid(); err != nil {
		t.Fatalf("ExportValid() error = %v", err)
	}
	data, _ := os.ReadFile(cfg.ValidFile)
	if strings.TrimSpace(string(data)) != liveProxy.URL {
		t.Errorf("exported %q, want only the live proxy", data)
	}

	resp, err := m.Fetcher().Fetch(context.Background(), "http://setlist.test/")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if resp.Proxy != model.Endpoint(liveProxy.URL) {
		t.Errorf("Fetch() used %q", resp.Proxy)
	}
}
