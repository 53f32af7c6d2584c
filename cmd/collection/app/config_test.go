package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestLoadConfig verifies defaults.
func TestLoadConfig(t *testing.T) {
	config, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if config.IndexPath != "rdf.yaml" {
		t.Errorf("IndexPath = %s, want rdf.yaml", config.IndexPath)
	}
	if config.DistDir != "dist" || config.CollectionDir != "collection" {
		t.Errorf("unexpected layout: %s, %s", config.DistDir, config.CollectionDir)
	}
	if config.Zenodo.MaxItems != 10000 {
		t.Errorf("Zenodo.MaxItems = %d, want 10000", config.Zenodo.MaxItems)
	}
	if config.FetchTimeout != 5*time.Minute {
		t.Errorf("FetchTimeout = %v, want 5m", config.FetchTimeout)
	}
	if config.LogFormat == "" {
		t.Error("LogFormat not set to default")
	}
}

// TestConfig_EnvironmentVariables verifies COLLECTION_* variables.
func TestConfig_EnvironmentVariables(t *testing.T) {
	t.Setenv("COLLECTION_INDEX_PATH", "catalog/rdf.yaml")
	t.Setenv("COLLECTION_ZENODO_COMMUNITY", "bioimage-io")
	t.Setenv("COLLECTION_ZENODO_MAX_ITEMS", "50")
	t.Setenv("COLLECTION_ZENODO_SANDBOX", "true")
	t.Setenv("COLLECTION_ZENODO_ACCESS_TOKEN", "secret")
	t.Setenv("COLLECTION_FETCH_TIMEOUT", "90s")

	config, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if config.IndexPath != "catalog/rdf.yaml" {
		t.Errorf("IndexPath = %s", config.IndexPath)
	}
	if config.Zenodo.Community != "bioimage-io" || config.Zenodo.MaxItems != 50 {
		t.Errorf("unexpected zenodo config: %+v", config.Zenodo)
	}
	if config.Zenodo.URL() != "https://sandbox.zenodo.org" {
		t.Errorf("URL() = %s, want sandbox", config.Zenodo.URL())
	}
	if config.Zenodo.AccessToken != "secret" {
		t.Error("access token not loaded")
	}
	if config.FetchTimeout != 90*time.Second {
		t.Errorf("FetchTimeout = %v, want 90s", config.FetchTimeout)
	}
}

// TestConfig_File verifies an explicit config file.
func TestConfig_File(t *testing.T) {
	file := filepath.Join(t.TempDir(), "collection.yaml")
	content := "dist_dir: out\nzenodo:\n  page_size: 25\n  requests_per_second: 0.5\n"
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfig(file)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if config.DistDir != "out" {
		t.Errorf("DistDir = %s, want out", config.DistDir)
	}
	if config.Zenodo.PageSize != 25 || config.Zenodo.RequestsPerSecond != 0.5 {
		t.Errorf("unexpected zenodo config: %+v", config.Zenodo)
	}
	if config.ConfigFile != file {
		t.Errorf("ConfigFile = %s, want %s", config.ConfigFile, file)
	}
}

// TestConfig_MissingFile verifies an explicit file must exist.
func TestConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing config file")
	}
}

// TestConfig_Validate verifies invalid values are rejected.
func TestConfig_Validate(t *testing.T) {
	t.Setenv("COLLECTION_ZENODO_MAX_ITEMS", "-1")
	if _, err := LoadConfig(""); err == nil {
		t.Error("expected an error for negative max items")
	}
}

// TestConfig_UpdateFromFlags verifies flag precedence.
func TestConfig_UpdateFromFlags(t *testing.T) {
	config := &Config{LogLevel: "info"}
	config.UpdateFromFlags(true, false, true, "")
	if !config.Verbose || !config.NoColor {
		t.Error("flags not applied")
	}
	if config.LogLevel != "info" {
		t.Error("empty log level flag must not clear the configured level")
	}
	config.UpdateFromFlags(false, false, false, "debug")
	if config.LogLevel != "debug" {
		t.Errorf("LogLevel = %s, want debug", config.LogLevel)
	}
}
