package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	origHome := os.Getenv("HOME")
	t.Setenv("HOME", t.TempDir())
	defer os.Setenv("HOME", origHome)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if cfg.BaseURL != defaultBaseURL {
		t.Errorf("expected default base URL %q, got %q", defaultBaseURL, cfg.BaseURL)
	}
	if cfg.PageSize != defaultPageSize {
		t.Errorf("expected default page size %d, got %d", defaultPageSize, cfg.PageSize)
	}
	if cfg.TTS {
		t.Error("TTS should default to off")
	}
}

func TestLoad_BaseURLFromEnv(t *testing.T) {
	t.Setenv(envKeyBase, "https://fortune.example.com/api")

	origHome := os.Getenv("HOME")
	t.Setenv("HOME", t.TempDir())
	defer os.Setenv("HOME", origHome)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if cfg.BaseURL != "https://fortune.example.com/api" {
		t.Errorf("expected base URL from env, got: %s", cfg.BaseURL)
	}
}

func TestLoad_TTSFromEnv(t *testing.T) {
	t.Setenv(envKeyTTS, "1")

	origHome := os.Getenv("HOME")
	t.Setenv("HOME", t.TempDir())
	defer os.Setenv("HOME", origHome)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if !cfg.TTS {
		t.Error("expected TTS enabled via env")
	}
}

func TestSetBaseURL_RoundTrip(t *testing.T) {
	origHome := os.Getenv("HOME")
	t.Setenv("HOME", t.TempDir())
	defer os.Setenv("HOME", origHome)

	if err := SetBaseURL("https://tianji.example.com/api"); err != nil {
		t.Fatalf("SetBaseURL failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(Dir(), fileName)); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.BaseURL != "https://tianji.example.com/api" {
		t.Errorf("expected saved base URL, got: %s", cfg.BaseURL)
	}
}

func TestSetTTS_PreservesBaseURL(t *testing.T) {
	origHome := os.Getenv("HOME")
	t.Setenv("HOME", t.TempDir())
	defer os.Setenv("HOME", origHome)

	if err := SetBaseURL("https://tianji.example.com/api"); err != nil {
		t.Fatalf("SetBaseURL failed: %v", err)
	}
	if err := SetTTS(true); err != nil {
		t.Fatalf("SetTTS failed: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.TTS {
		t.Error("expected TTS enabled")
	}
	if cfg.BaseURL != "https://tianji.example.com/api" {
		t.Errorf("SetTTS should not clobber base URL, got: %s", cfg.BaseURL)
	}
}
