// Package config reads vbscript.yaml, the settings shared by the run,
// repl and serve commands.
package config

import (
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"fortio.org/log"
	"github.com/pkg/errors"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"vbscript/internal/database"
	"vbscript/internal/source"
)

// FileName is the configuration file looked up in the working directory.
const FileName = "vbscript.yaml"

type Config struct {
	LogLevel       string                `yaml:"log_level"`
	Locale         string                `yaml:"locale"`
	Encoding       string                `yaml:"encoding"`
	OptionExplicit bool                  `yaml:"option_explicit"`
	MaxCallDepth   int                   `yaml:"max_call_depth"`
	Timeout        time.Duration         `yaml:"timeout"`
	AllowShell     bool                  `yaml:"allow_shell"`
	Serve          Serve                 `yaml:"serve"`
	Connections    map[string]Connection `yaml:"connections"`
}

// Serve configures the websocket run server.
type Serve struct {
	Addr    string `yaml:"addr"`
	Workers int    `yaml:"workers"`
}

// Connection is a named database a script can open with
// ADODB.Connection.Open "name".
type Connection struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

func Default() *Config {
	return &Config{
		LogLevel:     "info",
		Locale:       "en-US",
		Encoding:     "gbk",
		MaxCallDepth: 1000,
		AllowShell:   true,
		Serve: Serve{
			Addr:    "localhost:8740",
			Workers: 4,
		},
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		log.LogVf("config: %s not found, using defaults", path)
		return cfg, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "config")
	}
	defer f.Close()
	if err := cfg.decode(f); err != nil {
		return nil, errors.Wrapf(err, "config: %s", path)
	}
	return cfg, nil
}

// Parse reads a configuration document over the defaults.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(r); err != nil {
		return nil, errors.Wrap(err, "config")
	}
	return cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && err != io.EOF {
		return err
	}
	return c.Validate()
}

// Validate checks the values that are parsed later, so a bad file fails at
// startup rather than in the middle of a run.
func (c *Config) Validate() error {
	var issues []string
	if _, err := language.Parse(c.Locale); err != nil {
		issues = append(issues, "locale: "+err.Error())
	}
	if _, err := source.Lookup(c.Encoding); err != nil {
		issues = append(issues, "encoding: "+err.Error())
	}
	if c.MaxCallDepth < 0 {
		issues = append(issues, "max_call_depth must not be negative")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must not be negative")
	}
	if c.Serve.Workers < 1 {
		issues = append(issues, "serve.workers must be at least 1")
	}
	for _, name := range c.connectionNames() {
		conn := c.Connections[name]
		if _, err := database.DriverName(conn.Driver); err != nil {
			issues = append(issues, "connections."+name+": "+err.Error())
		}
		if conn.DSN == "" {
			issues = append(issues, "connections."+name+": dsn is empty")
		}
	}
	if len(issues) > 0 {
		return errors.New(strings.Join(issues, "; "))
	}
	return nil
}

func (c *Config) connectionNames() []string {
	names := make([]string, 0, len(c.Connections))
	for name := range c.Connections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tag returns the configured locale.
func (c *Config) Tag() language.Tag {
	tag, err := language.Parse(c.Locale)
	if err != nil {
		return language.AmericanEnglish
	}
	return tag
}

// ConnectionStrings renders the named connections as ADO connection
// strings for the host.
func (c *Config) ConnectionStrings() map[string]string {
	out := make(map[string]string, len(c.Connections))
	for name, conn := range c.Connections {
		out[name] = "Driver=" + conn.Driver + ";DSN=" + conn.DSN
	}
	return out
}

// Apply sets the process-wide log level and ANSI code page.
func (c *Config) Apply() error {
	if c.LogLevel != "" {
		if err := log.SetLogLevelStr(c.LogLevel); err != nil {
			return errors.Wrap(err, "config: log_level")
		}
	}
	return errors.Wrap(source.SetANSI(c.Encoding), "config: encoding")
}
