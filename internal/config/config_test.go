package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/text/language"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), FileName))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MaxCallDepth != 1000 || cfg.Serve.Workers != 4 || !cfg.AllowShell {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.Tag() != language.AmericanEnglish {
		t.Errorf("Tag() = %v", cfg.Tag())
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	doc := `log_level: debug
locale: de-DE
encoding: windows-1252
option_explicit: true
timeout: 30s
allow_shell: false
serve:
  addr: ":9000"
  workers: 2
connections:
  inventory:
    driver: sqlite
    dsn: inventory.db
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.OptionExplicit || cfg.AllowShell || cfg.Timeout != 30*time.Second {
		t.Errorf("scalars not read: %+v", cfg)
	}
	if cfg.Serve.Addr != ":9000" || cfg.Serve.Workers != 2 {
		t.Errorf("serve = %+v", cfg.Serve)
	}
	if cfg.MaxCallDepth != 1000 {
		t.Errorf("unset field lost its default: %d", cfg.MaxCallDepth)
	}
	if got := cfg.ConnectionStrings()["inventory"]; got != "Driver=sqlite;DSN=inventory.db" {
		t.Errorf("connection string = %q", got)
	}
	base, _ := cfg.Tag().Base()
	if base.String() != "de" {
		t.Errorf("locale base = %v", base)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown field", "colour: red\n", "colour"},
		{"bad locale", "locale: not_a_locale!!\n", "locale"},
		{"bad encoding", "encoding: klingon\n", "encoding"},
		{"bad driver", "connections:\n  x:\n    driver: oracle\n    dsn: y\n", "connections.x"},
		{"empty dsn", "connections:\n  x:\n    driver: sqlite\n", "dsn is empty"},
		{"no workers", "serve:\n  workers: 0\n", "serve.workers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.doc))
			if err == nil {
				t.Fatal("Parse succeeded")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestParseEmptyDocument(t *testing.T) {
	cfg, err := Parse(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Locale != "en-US" {
		t.Errorf("Locale = %q", cfg.Locale)
	}
}
