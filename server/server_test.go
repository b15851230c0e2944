package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/rollcall/config"
	"github.com/tech-arch1tect/rollcall/services/metrics"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host: "localhost",
			Port: "8080",
		},
		Metrics: config.MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

func TestNew(t *testing.T) {
	cfg := testConfig()
	server := New(cfg, nil, nil)

	if server == nil {
		t.Fatal("expected server to be created")
	}
	if server.cfg != cfg {
		t.Error("expected config to be set")
	}
	if server.echo == nil {
		t.Error("expected echo instance to be created")
	}
	if got := server.Addr(); got != "localhost:8080" {
		t.Errorf("expected addr localhost:8080, got %s", got)
	}
}

func TestServer_Routes(t *testing.T) {
	server := New(testConfig(), nil, nil)

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "test")
	}

	t.Run("GET", func(t *testing.T) {
		server.Get("/test", handler)

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
	})

	t.Run("POST with middleware", func(t *testing.T) {
		called := false
		mw := func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				called = true
				return next(c)
			}
		}
		server.Post("/test", handler, mw)

		req := httptest.NewRequest(http.MethodPost, "/test", nil)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if !called {
			t.Error("expected route middleware to run")
		}
	})

	t.Run("Group", func(t *testing.T) {
		group := server.Group("/api")
		group.GET("/ping", handler)

		req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
	})

	t.Run("request id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		if len(rec.Header().Get(echo.HeaderXRequestID)) != 36 {
			t.Errorf("expected uuid request id, got %q", rec.Header().Get(echo.HeaderXRequestID))
		}
	})

	t.Run("healthz", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
	})

	t.Run("recovers from panics", func(t *testing.T) {
		server.Get("/panic", func(c echo.Context) error {
			panic("boom")
		})

		req := httptest.NewRequest(http.MethodGet, "/panic", nil)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected status %d, got %d", http.StatusInternalServerError, rec.Code)
		}
	})
}

func TestServer_Metrics(t *testing.T) {
	t.Run("mounted when enabled", func(t *testing.T) {
		m := metrics.NewService()
		m.VerificationIssued("sent")
		server := New(testConfig(), nil, m)

		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `rollcall_verification_issued_total{outcome="sent"} 1`) {
			t.Error("expected verification counter in metrics output")
		}
	})

	t.Run("absent without metrics service", func(t *testing.T) {
		server := New(testConfig(), nil, nil)

		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})
}

func TestIPExtractor(t *testing.T) {
	t.Run("direct without trusted proxies", func(t *testing.T) {
		extract := ipExtractor(nil, nil)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "203.0.113.5:1234"
		req.Header.Set(echo.HeaderXForwardedFor, "198.51.100.1")

		if got := extract(req); got != "203.0.113.5" {
			t.Errorf("expected remote addr, got %s", got)
		}
	})

	t.Run("forwarded from trusted proxy", func(t *testing.T) {
		extract := ipExtractor([]string{"10.0.0.0/8", "not-a-cidr"}, nil)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.1.2.3:1234"
		req.Header.Set(echo.HeaderXForwardedFor, "198.51.100.1")

		if got := extract(req); got != "198.51.100.1" {
			t.Errorf("expected forwarded client ip, got %s", got)
		}
	})
}
