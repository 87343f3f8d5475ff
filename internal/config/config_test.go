package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Chat.SubscriberBuffer != 64 {
		t.Errorf("Chat.SubscriberBuffer = %d, want 64", cfg.Chat.SubscriberBuffer)
	}
	if GlobalConfig != cfg {
		t.Error("GlobalConfig should point to the loaded config")
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("server:\n  port: \"9090\"\nchat:\n  post_burst: 3\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %q, want 9090", cfg.Server.Port)
	}
	if cfg.Chat.PostBurst != 3 {
		t.Errorf("Chat.PostBurst = %d, want 3", cfg.Chat.PostBurst)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want default 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Chat.MaxMessageLength != 2000 {
		t.Errorf("Chat.MaxMessageLength = %d, want default 2000", cfg.Chat.MaxMessageLength)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid yaml")
	}
}

func TestOverrideFromEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("CHAT_RATE_RPS", "2.5")
	t.Setenv("CHAT_RATE_BURST", "bogus")
	t.Setenv("LOG_FILE", "/tmp/taskmate.log")

	cfg := DefaultConfig()
	cfg.overrideFromEnv()

	if cfg.Database.Driver != "postgres" {
		t.Errorf("Database.Driver = %q", cfg.Database.Driver)
	}
	if cfg.JWT.Secret != "env-secret" {
		t.Errorf("JWT.Secret = %q", cfg.JWT.Secret)
	}
	if cfg.Chat.PostRPS != 2.5 {
		t.Errorf("Chat.PostRPS = %v, want 2.5", cfg.Chat.PostRPS)
	}
	if cfg.Chat.PostBurst != 10 {
		t.Errorf("invalid CHAT_RATE_BURST should keep default, got %d", cfg.Chat.PostBurst)
	}
	if cfg.Log.File != "/tmp/taskmate.log" {
		t.Errorf("Log.File = %q", cfg.Log.File)
	}
}

func TestParseRedisURL(t *testing.T) {
	tests := []struct {
		url      string
		addr     string
		password string
		db       int
	}{
		{"redis://localhost:6379", "localhost:6379", "", 0},
		{"redis://:secret@redis:6380/2", "redis:6380", "secret", 2},
		{"redis://user:pw@10.0.0.1:6379/5", "10.0.0.1:6379", "pw", 5},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Redis.DB = 0
			cfg.parseRedisURL(tt.url)
			if cfg.Redis.Addr != tt.addr {
				t.Errorf("Addr = %q, want %q", cfg.Redis.Addr, tt.addr)
			}
			if cfg.Redis.Password != tt.password {
				t.Errorf("Password = %q, want %q", cfg.Redis.Password, tt.password)
			}
			if cfg.Redis.DB != tt.db {
				t.Errorf("DB = %d, want %d", cfg.Redis.DB, tt.db)
			}
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Chat.PreviewRebuildSpec = "@every 1m"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Chat.PreviewRebuildSpec != "@every 1m" {
		t.Errorf("PreviewRebuildSpec = %q", loaded.Chat.PreviewRebuildSpec)
	}
}
