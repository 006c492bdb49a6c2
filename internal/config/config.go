// Package config loads the audiobridge daemon's YAML configuration.
// Command-line flags (pflag) choose the config file and ask for version
// or help; no configuration value can be overridden from the command
// line.
package config

import (
	"fmt"
	"os"
	"path"

	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/binaryvr/hifi/pkg/jitter"
)

// Listen holds the UDP bind address and the frame geometry every
// nodestream.Stream on this daemon shares.
type Listen struct {
	Address          string `yaml:"address,omitempty"`
	FrameSampleCount int    `yaml:"frameSampleCount,omitempty"`
	FrameCapacity    int    `yaml:"frameCapacity,omitempty"`
	SampleRate       int    `yaml:"sampleRate,omitempty"`
}

// Prometheus controls the /metrics exposition server.
type Prometheus struct {
	Enable        bool   `yaml:"enable,omitempty"`
	ListenAddress string `yaml:"listenAddress,omitempty"`
}

// LogConfig controls logrus's level.
type LogConfig struct {
	Level string `yaml:"level,omitempty"`
}

// Config is the daemon's full configuration: transport, exposition,
// logging, and the jitter.Settings new streams are constructed with.
type Config struct {
	Listen     Listen          `yaml:"listen,omitempty"`
	Prometheus Prometheus      `yaml:"prometheus,omitempty"`
	Log        LogConfig       `yaml:"log,omitempty"`
	Stream     jitter.Settings `yaml:"stream,omitempty"`
}

// Defaults returns a Config with every field at its documented default.
func Defaults() Config {
	return Config{
		Listen: Listen{
			Address:          ":7788",
			FrameSampleCount: 240,
			FrameCapacity:    100,
			SampleRate:       48000,
		},
		Prometheus: Prometheus{
			Enable:        false,
			ListenAddress: "127.0.0.1:9107",
		},
		Log: LogConfig{
			Level: "info",
		},
		Stream: jitter.DefaultSettings(),
	}
}

// Load reads configFile (if non-empty and present) over Defaults. A
// missing file is not an error: the daemon runs on defaults alone.
func Load(configFile string) (Config, error) {
	cfg := Defaults()
	if configFile == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path.Clean(configFile))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: reading %s: %w", configFile, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %s: %w", configFile, err)
	}
	return cfg, nil
}

// Flags holds the command-line overrides parsed by ParseFlags.
type Flags struct {
	ConfigFile string
	Version    bool
	Help       bool
}

// ParseFlags parses os.Args into Flags using pflag, matching the
// short/long flag pairing the daemon's config loader was grounded on.
func ParseFlags() Flags {
	var f Flags
	flag.StringVarP(&f.ConfigFile, "config", "c", "", "path to a YAML config file")
	flag.BoolVarP(&f.Version, "version", "v", false, "print version and exit")
	flag.BoolVarP(&f.Help, "help", "h", false, "print usage and exit")
	flag.Parse()
	return f
}
