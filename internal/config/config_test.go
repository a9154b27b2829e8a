package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gensys.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[gensys]
schema_dir = "schema"
tick_rate = "100ms"
ticks = 20

[logging]
format = "json"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	g := cfg.Gensys
	if g.SchemaDir != "schema" || g.TickRate != 100*time.Millisecond || g.Ticks != 20 {
		t.Fatalf("gensys = %+v", g)
	}
	if g.ScriptsDir != "scripts" || g.EntityCapacity != 1024 {
		t.Fatalf("defaults lost: %+v", g)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "info" {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if cfg.Profile.Enabled || cfg.Profile.Mode != "cpu" {
		t.Fatalf("profile = %+v", cfg.Profile)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"zero tick rate":   "[gensys]\ntick_rate = \"0s\"\n",
		"negative ticks":   "[gensys]\nticks = -1\n",
		"unknown profile":  "[profile]\nmode = \"trace\"\n",
		"malformed toml":   "[gensys\n",
		"wrong value type": "[gensys]\nticks = \"many\"\n",
	}
	for name, body := range cases {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Errorf("%s: accepted", name)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err == nil || !strings.Contains(err.Error(), "read config") {
		t.Fatalf("err = %v", err)
	}
}
