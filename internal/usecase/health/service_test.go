package health

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// --- Mocks ---

type mockCatalog struct {
	err error
}

func (m *mockCatalog) Check(_ context.Context) error { return m.err }

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

type mockEmbeddingChecker struct {
	err error
}

func (m *mockEmbeddingChecker) HealthCheck(_ context.Context) error { return m.err }

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockCatalog{}, &mockPinger{}, &mockEmbeddingChecker{})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	for _, c := range []string{ComponentCatalog, ComponentCache, ComponentEmbedding} {
		if r.Checks[c] != CheckOK {
			t.Errorf("expected %s %q, got %q", c, CheckOK, r.Checks[c])
		}
	}
}

func TestCheck_CacheError(t *testing.T) {
	svc := New(&mockCatalog{}, &mockPinger{err: errors.New("conn refused")}, &mockEmbeddingChecker{})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks[ComponentCache] != CheckError {
		t.Errorf("expected cache %q, got %q", CheckError, r.Checks[ComponentCache])
	}
	if r.Checks[ComponentEmbedding] != CheckOK {
		t.Errorf("expected embedding %q, got %q", CheckOK, r.Checks[ComponentEmbedding])
	}
}

func TestCheck_EmbeddingError(t *testing.T) {
	svc := New(&mockCatalog{}, nil, &mockEmbeddingChecker{err: errors.New("timeout")})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks[ComponentEmbedding] != CheckError {
		t.Errorf("expected embedding %q, got %q", CheckError, r.Checks[ComponentEmbedding])
	}
	if _, ok := r.Checks[ComponentCache]; ok {
		t.Error("cache check should be absent when cache is nil")
	}
}

func TestCheck_CatalogError(t *testing.T) {
	svc := New(
		&mockCatalog{err: errors.New("permission denied")},
		&mockPinger{err: errors.New("down")},
		nil,
	)
	r := svc.Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
	if r.Checks[ComponentCatalog] != CheckError {
		t.Error("expected catalog error")
	}
	if _, ok := r.Checks[ComponentEmbedding]; ok {
		t.Error("embedding check should be absent when embedding is nil")
	}
}

func TestCheck_OnlyCatalog(t *testing.T) {
	svc := New(&mockCatalog{}, nil, nil)
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if len(r.Checks) != 1 {
		t.Errorf("expected 1 check, got %d", len(r.Checks))
	}
}

func TestCatalogDir(t *testing.T) {
	dir := t.TempDir()
	if err := CatalogDir(dir).Check(context.Background()); err != nil {
		t.Errorf("empty dir: unexpected error: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "f"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := CatalogDir(dir).Check(context.Background()); err != nil {
		t.Errorf("populated dir: unexpected error: %v", err)
	}

	if err := CatalogDir(filepath.Join(dir, "missing")).Check(context.Background()); err == nil {
		t.Error("expected error for missing dir")
	}
	if err := CatalogDir(filepath.Join(dir, "f")).Check(context.Background()); err == nil {
		t.Error("expected error for regular file")
	}
}

type slowPinger struct{}

func (slowPinger) Ping(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestCheck_SlowCheckTimesOut(t *testing.T) {
	svc := New(&mockCatalog{}, slowPinger{}, nil).WithTimeout(20 * time.Millisecond)

	start := time.Now()
	r := svc.Check(context.Background())
	if time.Since(start) > time.Second {
		t.Fatalf("Check took %s, timeout not applied", time.Since(start))
	}
	if r.Status != Degraded || r.Checks[ComponentCache] != CheckError {
		t.Errorf("report = %+v, want degraded cache", r)
	}
	if !strings.Contains(r.Errors[ComponentCache], "deadline") {
		t.Errorf("cache error = %q", r.Errors[ComponentCache])
	}
}

func TestCheck_ErrorsOnlyForFailures(t *testing.T) {
	svc := New(&mockCatalog{}, &mockPinger{err: errors.New("conn refused")}, &mockEmbeddingChecker{})
	r := svc.Check(context.Background())

	if len(r.Errors) != 1 || r.Errors[ComponentCache] != "conn refused" {
		t.Errorf("errors = %v", r.Errors)
	}
}

func TestWithTimeout_IgnoresNonPositive(t *testing.T) {
	svc := New(&mockCatalog{}, nil, nil).WithTimeout(0)
	if svc.timeout != DefaultCheckTimeout {
		t.Errorf("timeout = %s, want default", svc.timeout)
	}
}
