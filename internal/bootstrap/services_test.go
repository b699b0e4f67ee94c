package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/target/clinic-portal/config"
	"github.com/target/clinic-portal/internal/adapters/memory"
	redisadapter "github.com/target/clinic-portal/internal/adapters/redis"
	"github.com/target/clinic-portal/internal/audit"
	"github.com/target/clinic-portal/internal/data"
	domainauth "github.com/target/clinic-portal/internal/domain/auth"
	"github.com/target/clinic-portal/internal/testutil"
)

func testConfig() *config.AppConfig {
	cfg := &config.AppConfig{
		IsDev:   true,
		Backend: config.BackendConfig{BaseURL: "http://localhost:8001"},
	}
	cfg.Sanitize()
	return cfg
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNewServices_Defaults(t *testing.T) {
	svc, err := NewServices(&ServiceDeps{Config: testConfig(), Logger: discard()})
	if err != nil {
		t.Fatalf("NewServices: %v", err)
	}
	if _, ok := svc.Sessions.(*memory.SessionStore); !ok {
		t.Fatalf("expected in-memory session store, got %T", svc.Sessions)
	}
	if svc.Auth == nil || svc.Guard == nil || svc.Analytics == nil || svc.Interactions == nil {
		t.Fatal("expected every service to be wired")
	}
	if _, ok := svc.Health["cache"]; !ok {
		t.Fatal("expected a cache health check")
	}
	if _, ok := svc.Health["database"]; ok {
		t.Fatal("no database check without a database")
	}
	if svc.MetricsSink != nil {
		t.Fatal("metrics are disabled by default")
	}
}

func TestNewServices_RequiresConfig(t *testing.T) {
	if _, err := NewServices(nil); err == nil {
		t.Fatal("expected error for nil deps")
	}
	cfg := testConfig()
	cfg.Backend.BaseURL = "ftp://nowhere"
	if _, err := NewServices(&ServiceDeps{Config: cfg}); err == nil {
		t.Fatal("expected error for a non-http backend")
	}
}

func TestNewSessionStore(t *testing.T) {
	store, err := newSessionStore(config.SessionConfig{Store: config.SessionStoreMemory}, nil)
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}
	if _, ok := store.(*memory.SessionStore); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}

	if _, err = newSessionStore(config.SessionConfig{Store: config.SessionStoreRedis}, nil); err == nil {
		t.Fatal("expected error when redis is missing")
	}

	client := testutil.SetupTestRedis(t)
	store, err = newSessionStore(config.SessionConfig{Store: config.SessionStoreRedis, KeyPrefix: "t:"}, client)
	if err != nil {
		t.Fatalf("redis store: %v", err)
	}
	if _, ok := store.(*redisadapter.SessionStore); !ok {
		t.Fatalf("expected redis store, got %T", store)
	}

	sealed := config.SessionConfig{Store: config.SessionStoreRedis, EncryptionKey: strings.Repeat("0f", 32)}
	if _, err = newSessionStore(sealed, client); err != nil {
		t.Fatalf("sealed redis store: %v", err)
	}
	sealed.EncryptionKey = "not-a-key"
	if _, err = newSessionStore(sealed, client); err == nil {
		t.Fatal("expected error for a malformed session key")
	}
}

func TestNewCacheRepository(t *testing.T) {
	repo, err := newCacheRepository(config.CacheConfig{Backend: config.CacheBackendNone}, nil)
	if err != nil || repo != nil {
		t.Fatalf("none backend: repo=%v err=%v", repo, err)
	}

	repo, err = newCacheRepository(config.CacheConfig{Backend: config.CacheBackendLocal, LocalCapacity: 8}, nil)
	if err != nil {
		t.Fatalf("local backend: %v", err)
	}
	if _, ok := repo.(*data.LocalCacheRepo); !ok {
		t.Fatalf("expected local cache, got %T", repo)
	}

	if _, err = newCacheRepository(config.CacheConfig{Backend: config.CacheBackendRedis}, nil); err == nil {
		t.Fatal("expected error when redis is missing")
	}
}

func TestNewAuditRecorder(t *testing.T) {
	if _, ok := newAuditRecorder(config.AuditConfig{Enabled: true}, nil, discard()).(audit.Nop); !ok {
		t.Fatal("audit without a database must be a no-op")
	}
	if _, ok := newAuditRecorder(config.AuditConfig{}, nil, discard()).(audit.Nop); !ok {
		t.Fatal("disabled audit must be a no-op")
	}
}

func TestRunSessionSweeper(t *testing.T) {
	now := time.Now()
	store := memory.NewSessionStore().WithClock(func() time.Time { return now })
	if err := store.Save(context.Background(), domainauth.Session{ID: "a", ExpiresAt: now.Add(time.Millisecond)}); err != nil {
		t.Fatalf("save: %v", err)
	}
	now = now.Add(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := runSessionSweeper(ctx, store, 5*time.Millisecond, discard())

	deadline := time.After(2 * time.Second)
	for {
		list, err := store.List(context.Background())
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) == 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("sweeper did not remove the expired session")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestBuildHTTPHandler(t *testing.T) {
	cfg := testConfig()
	svc, err := NewServices(&ServiceDeps{Config: cfg, Logger: discard()})
	if err != nil {
		t.Fatalf("NewServices: %v", err)
	}
	h := buildHTTPHandler(discard(), routerServices(cfg, svc, discard()))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestShutdownHTTPServer_NilServer(t *testing.T) {
	if err := ShutdownHTTPServer(ShutdownConfig{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
