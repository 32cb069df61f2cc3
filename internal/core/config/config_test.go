package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"ADDR", "DATA_SOURCE", "H3_RES", "LOAD_WORKERS", "PREFS_STORE", "SUBSTITUTE_FALLBACK"} {
		t.Setenv(k, "")
	}
	cfg := FromEnv()
	if cfg.Addr != ":8090" {
		t.Fatalf("addr=%q want :8090", cfg.Addr)
	}
	if cfg.DataSource != "file" {
		t.Fatalf("data source=%q want file", cfg.DataSource)
	}
	if cfg.H3Res != 8 {
		t.Fatalf("h3 res=%d want 8", cfg.H3Res)
	}
	if !cfg.SubstituteFallback {
		t.Fatalf("substitute fallback should default to true")
	}
	if cfg.PrefsStore != "memory" {
		t.Fatalf("prefs store=%q want memory", cfg.PrefsStore)
	}
}

func TestFromEnv_ClampsAndParses(t *testing.T) {
	t.Setenv("H3_RES", "14")
	t.Setenv("LOAD_WORKERS", "0")
	t.Setenv("LOAD_TIMEOUT", "5s")
	t.Setenv("DATA_SOURCE", "S3")
	t.Setenv("SUBSTITUTE_FALLBACK", "no")

	cfg := FromEnv()
	if cfg.H3Res != 10 {
		t.Fatalf("h3 res=%d want clamp to 10", cfg.H3Res)
	}
	if cfg.LoadWorkers != 1 {
		t.Fatalf("workers=%d want 1", cfg.LoadWorkers)
	}
	if cfg.LoadTimeout != 5*time.Second {
		t.Fatalf("timeout=%v want 5s", cfg.LoadTimeout)
	}
	if cfg.DataSource != "s3" {
		t.Fatalf("data source=%q want s3", cfg.DataSource)
	}
	if cfg.SubstituteFallback {
		t.Fatalf("substitute fallback should be false")
	}
}

func TestLoadDotEnv_DoesNotOverrideSetVars(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, ".env")
	if err := os.WriteFile(p, []byte("OBRAS_TEST_A=from-file\nOBRAS_TEST_B=file-b\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("OBRAS_TEST_A", "from-env")
	t.Setenv("OBRAS_TEST_B", "")
	_ = os.Unsetenv("OBRAS_TEST_B")

	LoadDotEnv(p, filepath.Join(dir, "missing.env"))

	if got := os.Getenv("OBRAS_TEST_A"); got != "from-env" {
		t.Fatalf("A=%q want from-env", got)
	}
	if got := os.Getenv("OBRAS_TEST_B"); got != "file-b" {
		t.Fatalf("B=%q want file-b", got)
	}
}

func TestSplitCSV(t *testing.T) {
	got := SplitCSV(" a, b,,c ,")
	if !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Fatalf("got=%v", got)
	}
}
