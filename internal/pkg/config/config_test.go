package config

import (
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("howitt-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Telemetry.ServiceName != "howitt-test" {
		t.Errorf("expected service name howitt-test, got %q", cfg.Telemetry.ServiceName)
	}
	if cfg.Query.MaxRadius != 100000 {
		t.Errorf("expected max radius 100000, got %g", cfg.Query.MaxRadius)
	}
	if cfg.Viewport.Debounce().Milliseconds() != 250 {
		t.Errorf("expected 250ms debounce, got %s", cfg.Viewport.Debounce())
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("HOWITT_DATABASE_HOST", "db.internal")
	t.Setenv("HOWITT_QUERY_MAX_LIMIT", "500")

	cfg, err := Load("howitt-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Host != "db.internal" {
		t.Errorf("expected db.internal, got %q", cfg.Database.Host)
	}
	if cfg.Query.MaxLimit != 500 {
		t.Errorf("expected max limit 500, got %d", cfg.Query.MaxLimit)
	}
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("HOWITT_SERVER_PORT", "70000")

	_, err := Load("howitt-test")
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "server.port") {
		t.Errorf("expected server.port in error, got %v", err)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for empty config")
	}
	for _, want := range []string{"server.port", "database.host", "nats.url", "valkey.addr", "query.max_radius", "temporal.task_queue"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in error, got %v", want, err)
		}
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: 5432, User: "u", Password: "p", DBName: "n", SSLMode: "disable"}
	want := "postgres://u:p@h:5432/n?sslmode=disable"
	if got := d.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
