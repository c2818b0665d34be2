package config

import (
	"os"
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg == nil {
		t.Fatal("Config should not be nil")
	}

	if cfg.Port != 8090 {
		t.Errorf("Expected default port 8090, got %d", cfg.Port)
	}
	if cfg.DatabasePath != "./inventory.db" {
		t.Errorf("Expected default database path './inventory.db', got %s", cfg.DatabasePath)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log level 'info', got %s", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("Expected default log format 'json', got %s", cfg.LogFormat)
	}
	if cfg.DispatchPoolSize != 16 {
		t.Errorf("Expected default dispatch pool size 16, got %d", cfg.DispatchPoolSize)
	}
	if cfg.TLSEnabled {
		t.Error("Expected default TLS to be disabled")
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	os.Setenv("INVENTORY_CRAWLER_PORT", "9000")
	os.Setenv("INVENTORY_CRAWLER_DATABASE_PATH", "/tmp/test.db")
	os.Setenv("INVENTORY_CRAWLER_LOG_LEVEL", "debug")
	os.Setenv("INVENTORY_CRAWLER_DISPATCH_POOL_SIZE", "4")
	defer func() {
		os.Unsetenv("INVENTORY_CRAWLER_PORT")
		os.Unsetenv("INVENTORY_CRAWLER_DATABASE_PATH")
		os.Unsetenv("INVENTORY_CRAWLER_LOG_LEVEL")
		os.Unsetenv("INVENTORY_CRAWLER_DISPATCH_POOL_SIZE")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Port != 9000 {
		t.Errorf("Expected port 9000 from env, got %d", cfg.Port)
	}
	if cfg.DatabasePath != "/tmp/test.db" {
		t.Errorf("Expected database path '/tmp/test.db' from env, got %s", cfg.DatabasePath)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log level 'debug' from env, got %s", cfg.LogLevel)
	}
	if cfg.DispatchPoolSize != 4 {
		t.Errorf("Expected dispatch pool size 4 from env, got %d", cfg.DispatchPoolSize)
	}
}

func TestLoad_RootIDsCommaSeparated(t *testing.T) {
	os.Setenv("INVENTORY_CRAWLER_ROOT_IDS", "organizations/111, folders/222 ,projects/333")
	defer os.Unsetenv("INVENTORY_CRAWLER_ROOT_IDS")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if len(cfg.RootIDs) != 3 {
		t.Fatalf("Expected 3 root ids, got %d: %v", len(cfg.RootIDs), cfg.RootIDs)
	}
	for _, id := range cfg.RootIDs {
		if id != strings.TrimSpace(id) {
			t.Errorf("root id has unexpected whitespace: %q", id)
		}
	}
	if cfg.RootIDs[0] != "organizations/111" {
		t.Errorf("expected first root id 'organizations/111', got %q", cfg.RootIDs[0])
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load should not error when config file is missing: %v", err)
	}
	if cfg == nil {
		t.Fatal("Config should not be nil even without config file")
	}
}
