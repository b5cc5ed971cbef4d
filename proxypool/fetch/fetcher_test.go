package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"proxyrotation/proxypool/model"
	"proxyrotation/proxypool/pool"
)

const target = "http://setlist.test/page"

func fakeProxy(t *testing.T, status int, body string, hits *atomic.Int32) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		if r.URL.Host != "setlist.test" {
			http.Error(w, "unexpected target", http.StatusBadGateway)
			return
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func poolOf(endpoints ...string) *pool.Pool {
	p := pool.New()
	for _, e := range endpoints {
		p.Record(model.ValidationResult{Endpoint: model.Endpoint(e), Live: true})
	}
	return p
}

// scriptedRotator hands out proxies in a fixed order and records demotions.
type scriptedRotator struct {
	queue   []model.Endpoint
	demoted []model.Endpoint
}

func (r *scriptedRotator) Next() (model.Endpoint, bool) {
	if len(r.queue) == 0 {
		return "", false
	}
	e := r.queue[0]
	r.queue = r.queue[1:]
	return e, true
}

func (r *scriptedRotator) MarkInvalid(e model.Endpoint) bool {
	r.demoted = append(r.demoted, e)
	return true
}

func TestFetcher_DemotesFailingProxies(t *testing.T) {
	bad := fakeProxy(t, http.StatusBadGateway, "", nil)
	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()
	good := fakeProxy(t, http.StatusOK, "<html>setlist</html>", nil)

	rot := &scriptedRotator{queue: []model.Endpoint{
		model.Endpoint(bad), model.Endpoint(closedURL), model.Endpoint(good),
	}}
	resp, err := NewFetcher(rot, 0, 2*time.Second).Fetch(context.Background(), target)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if resp.Proxy != model.Endpoint(good) {
		t.Errorf("resp.Proxy = %q, want %q", resp.Proxy, good)
	}
	if string(resp.Body) != "<html>setlist</html>" || resp.StatusCode != http.StatusOK {
		t.Errorf("resp = %d %q", resp.StatusCode, resp.Body)
	}
	if resp.Attempts != 3 {
		t.Errorf("resp.Attempts = %d, want 3", resp.Attempts)
	}
	want := []model.Endpoint{model.Endpoint(bad), model.Endpoint(closedURL)}
	if len(rot.demoted) != 2 || rot.demoted[0] != want[0] || rot.demoted[1] != want[1] {
		t.Errorf("demoted = %v, want %v", rot.demoted, want)
	}
}

func TestFetcher_WithPool(t *testing.T) {
	bad := fakeProxy(t, http.StatusBadGateway, "", nil)
	good := fakeProxy(t, http.StatusOK, "ok", nil)
	p := poolOf(bad, good)

	resp, err := NewFetcher(p, 0, 2*time.Second).Fetch(context.Background(), target)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if resp.Proxy != model.Endpoint(good) {
		t.Errorf("resp.Proxy = %q, want %q", resp.Proxy, good)
	}
	if p.State(model.Endpoint(bad)) != model.StateInvalid {
		t.Error("failing proxy should be demoted")
	}
	if p.State(model.Endpoint(good)) != model.StateValid {
		t.Error("working proxy should stay valid")
	}
}

func TestFetcher_NoProxyAvailable(t *testing.T) {
	_, err := NewFetcher(pool.New(), 0, time.Second).Fetch(context.Background(), target)
	if !errors.Is(err, ErrNoProxyAvailable) {
		t.Errorf("Fetch() error = %v, want ErrNoProxyAvailable", err)
	}

	bad := fakeProxy(t, http.StatusServiceUnavailable, "", nil)
	p := poolOf(bad)
	_, err = NewFetcher(p, 0, time.Second).Fetch(context.Background(), target)
	if !errors.Is(err, ErrNoProxyAvailable) {
		t.Errorf("Fetch() error = %v, want ErrNoProxyAvailable once the pool drains", err)
	}
	if p.ValidCount() != 0 {
		t.Errorf("ValidCount() = %d, want 0", p.ValidCount())
	}
}

func TestFetcher_MaxAttempts(t *testing.T) {
	var hits atomic.Int32
	p := poolOf(
		fakeProxy(t, http.StatusForbidden, "", &hits),
		fakeProxy(t, http.StatusForbidden, "", &hits),
		fakeProxy(t, http.StatusForbidden, "", &hits),
	)
	_, err := NewFetcher(p, 2, time.Second).Fetch(context.Background(), target)
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("Fetch() error = %v, want ErrExhausted", err)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("proxies hit %d times, want 2", got)
	}
	if p.ValidCount() != 1 {
		t.Errorf("ValidCount() = %d, want 1", p.ValidCount())
	}
}

func TestFetcher_CancelledContextKeepsProxy(t *testing.T) {
	good := fakeProxy(t, http.StatusOK, "ok", nil)
	p := poolOf(good)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFetcher(p, 0, time.Second).Fetch(ctx, target)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Fetch() error = %v, want context.Canceled", err)
	}
	if p.ValidCount() != 1 {
		t.Error("a cancelled fetch must not demote the proxy")
	}
}
