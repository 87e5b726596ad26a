package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/windnow/dlanalyzer/internal/deadlock"
)

const (
	SourceXML   = "xml"
	SourceMSSQL = "mssql"
)

type Config struct {
	LogLevel string       `toml:"log_level"`
	Timezone string       `toml:"timezone"`
	Source   SourceConfig `toml:"source"`
	Filter   FilterConfig `toml:"filter"`
	Output   OutputConfig `toml:"output"`
	Server   ServerConfig `toml:"server"`
}

type SourceConfig struct {
	Kind             string `toml:"kind"`
	TraceFilePattern string `toml:"trace_file_pattern"`
	ConnString       string `toml:"connection_string"`
}

type FilterConfig struct {
	StartTime       string `toml:"start_time"`
	EndTime         string `toml:"end_time"`
	FirstVictimOnly bool   `toml:"first_victim_only"`
}

type OutputConfig struct {
	Format string `toml:"format"`
}

type ServerConfig struct {
	BindAddr string `toml:"bind_addr"`
}

func New() *Config {
	return &Config{
		LogLevel: "info",
		Timezone: "UTC",
		Source: SourceConfig{
			Kind: SourceXML,
		},
		Output: OutputConfig{
			Format: "table",
		},
		Server: ServerConfig{
			BindAddr: ":8080",
		},
	}
}

// Load decodes the file over the defaults. The returned config is usable
// even when the file could not be read.
func Load(path string) (*Config, error) {
	conf := New()
	if _, err := toml.DecodeFile(path, conf); err != nil {
		return New(), errors.Wrapf(err, "чтение конфигурации %s", path)
	}
	return conf, nil
}

func (c *Config) Validate() error {
	switch c.Source.Kind {
	case SourceXML, SourceMSSQL:
	default:
		return errors.Errorf("неизвестный источник событий: %q", c.Source.Kind)
	}
	if c.Source.Kind == SourceXML && c.Source.TraceFilePattern == "" {
		return errors.New("для источника xml необходимо указать шаблон файлов трассировки")
	}
	if c.Source.Kind == SourceMSSQL && c.Source.ConnString == "" {
		return errors.New("для источника mssql необходимо указать строку подключения")
	}
	switch c.Output.Format {
	case "table", "json", "yaml":
	default:
		return errors.Errorf("неизвестный формат вывода: %q", c.Output.Format)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.Window(); err != nil {
		return err
	}
	return nil
}

func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "часовой пояс %q", c.Timezone)
	}
	return loc, nil
}

func (c *Config) Options() deadlock.Options {
	return deadlock.Options{FirstVictimOnly: c.Filter.FirstVictimOnly}
}

func (c *Config) Window() (deadlock.Window, error) {
	loc, err := c.Location()
	if err != nil {
		return deadlock.Window{}, err
	}
	return ParseWindow(c.Filter.StartTime, c.Filter.EndTime, loc)
}

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseWindow treats empty bounds as unbounded. Values without an offset are
// read in loc.
func ParseWindow(start, end string, loc *time.Location) (deadlock.Window, error) {
	var w deadlock.Window
	var err error

	if w.Start, err = parseBound(start, loc); err != nil {
		return w, errors.Wrap(err, "start_time")
	}
	if w.End, err = parseBound(end, loc); err != nil {
		return w, errors.Wrap(err, "end_time")
	}
	if w.Start != nil && w.End != nil && w.Start.After(*w.End) {
		return w, errors.New("start_time позже end_time")
	}
	return w, nil
}

func parseBound(value string, loc *time.Location) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return &t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return &t, nil
		}
	}
	return nil, errors.Errorf("не удалось разобрать время %q", value)
}

// Set assigns a setting by its command line flag name.
func (c *Config) Set(name, value string) error {
	switch name {
	case "source":
		c.Source.Kind = value
	case "pattern":
		c.Source.TraceFilePattern = value
	case "conn":
		c.Source.ConnString = value
	case "start":
		c.Filter.StartTime = value
	case "end":
		c.Filter.EndTime = value
	case "first-victim-only":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return errors.Wrapf(err, "флаг %s", name)
		}
		c.Filter.FirstVictimOnly = v
	case "format":
		c.Output.Format = value
	case "tz":
		c.Timezone = value
	case "log-level":
		c.LogLevel = value
	case "bind":
		c.Server.BindAddr = value
	default:
		return errors.Errorf("неизвестный параметр %q", name)
	}
	return nil
}
