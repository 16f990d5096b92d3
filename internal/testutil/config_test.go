package testutil

import (
	"strings"
	"testing"
)

const (
	testDBDefaultUser     = "items"
	testDBDefaultPassword = "items"
	testDBDefaultName     = "items"
)

func TestDefaultTestDBConfig(t *testing.T) {
	t.Run("defaults to local test database port 55432", func(t *testing.T) {
		for _, k := range []string{"TEST_DB_HOST", "TEST_DB_PORT", "TEST_DB_USER", "TEST_DB_PASSWORD", "TEST_DB_NAME"} {
			t.Setenv(k, "")
		}

		cfg := DefaultTestDBConfig()

		if cfg.Host != "localhost" {
			t.Errorf("expected Host=localhost, got %s", cfg.Host)
		}
		if cfg.Port != "55432" {
			t.Errorf("expected Port=55432 (test DB), got %s", cfg.Port)
		}
		if cfg.User != testDBDefaultUser {
			t.Errorf("expected User=%s, got %s", testDBDefaultUser, cfg.User)
		}
		if cfg.Password != testDBDefaultPassword {
			t.Errorf("expected Password=%s, got %s", testDBDefaultPassword, cfg.Password)
		}
		if cfg.DBName != testDBDefaultName {
			t.Errorf("expected DBName=%s, got %s", testDBDefaultName, cfg.DBName)
		}
	})

	t.Run("respects TEST_DB_PORT environment variable", func(t *testing.T) {
		t.Setenv("TEST_DB_HOST", "postgres")
		t.Setenv("TEST_DB_PORT", "5432")

		cfg := DefaultTestDBConfig()

		if cfg.Host != "postgres" {
			t.Errorf("expected Host=postgres, got %s", cfg.Host)
		}
		if cfg.Port != "5432" {
			t.Errorf("expected Port=5432 (CI DB), got %s", cfg.Port)
		}
	})
}

func TestTestDBConfig_DSN(t *testing.T) {
	t.Setenv("DB_SSL_MODE", "")
	cfg := TestDBConfig{Host: "db", Port: "5432", User: "u", Password: "p@ss", DBName: "items"}

	dsn := cfg.DSN()

	if !strings.HasPrefix(dsn, "postgres://u:p%40ss@db:5432/items?") {
		t.Errorf("unexpected DSN prefix: %s", dsn)
	}
	if !strings.Contains(dsn, "sslmode=disable") {
		t.Errorf("expected sslmode=disable in %s", dsn)
	}
}
