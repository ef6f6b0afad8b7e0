// Package config loads SharedBoard settings.
//
// Settings come from a single YAML file named by the --config flag or the
// SHAREDBOARD_CONFIG environment variable, layered over Default(). Flags the
// user actually set on the command line win over the file. Without a file
// the defaults and flags alone are used.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const EnvVar = "SHAREDBOARD_CONFIG"

type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	Client ClientConfig `yaml:"client"`
	Relay  RelayConfig  `yaml:"relay"`
}

// ClientConfig configures a drawing participant.
type ClientConfig struct {
	// Relay is the relay's host:port. Empty means browse for one over mDNS.
	Relay    string `yaml:"relay"`
	Room     string `yaml:"room"`
	Username string `yaml:"username"`

	// Color is the participant's cursor color and initial pen color.
	Color string  `yaml:"color"`
	Width float64 `yaml:"width"`

	// PresenceTTL hides idle cursors. Zero keeps them until the peer leaves.
	PresenceTTL time.Duration `yaml:"presence_ttl"`

	Reconnect        bool          `yaml:"reconnect"`
	MaxReconnectTime time.Duration `yaml:"max_reconnect_time"`
	DiscoverTimeout  time.Duration `yaml:"discover_timeout"`
}

// RelayConfig configures the relay server.
type RelayConfig struct {
	Listen string `yaml:"listen"`

	// RedisAddr enables the multi-process bus when set.
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	ChannelPrefix string `yaml:"channel_prefix"`

	// Advertise announces the relay over mDNS.
	Advertise bool `yaml:"advertise"`
}

func Default() *Config {
	return &Config{
		LogLevel: "info",
		Client: ClientConfig{
			Room:            "lobby",
			Username:        os.Getenv("USER"),
			Color:           "#000000",
			Width:           3,
			Reconnect:       true,
			DiscoverTimeout: 3 * time.Second,
		},
		Relay: RelayConfig{
			Listen:        ":8888",
			ChannelPrefix: "sharedboard:room:",
			Advertise:     true,
		},
	}
}

// Load reads path, or the file named by SHAREDBOARD_CONFIG when path is
// empty. With neither set it returns Default().
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// AddClientFlags registers the client's command-line flags.
func AddClientFlags(fs *pflag.FlagSet) {
	addCommonFlags(fs)
	d := Default().Client
	fs.String("relay", d.Relay, "relay address host:port (default: discover over mDNS)")
	fs.String("room", d.Room, "room to join")
	fs.StringP("username", "u", d.Username, "name shown to other participants")
	fs.String("color", d.Color, "cursor and pen color, #rrggbb")
	fs.Float64("width", d.Width, "pen width")
	fs.Duration("presence-ttl", d.PresenceTTL, "hide cursors idle for this long (0 keeps them)")
	fs.Bool("reconnect", d.Reconnect, "rejoin the room when the connection drops")
	fs.Duration("max-reconnect-time", d.MaxReconnectTime, "give up reconnecting after this long (0 never gives up)")
	fs.Duration("discover-timeout", d.DiscoverTimeout, "how long to browse for a relay")
}

// AddRelayFlags registers the relay's command-line flags.
func AddRelayFlags(fs *pflag.FlagSet) {
	addCommonFlags(fs)
	d := Default().Relay
	fs.String("listen", d.Listen, "address to serve websockets on")
	fs.String("redis-addr", d.RedisAddr, "redis address for multi-process fan-out")
	fs.String("redis-password", d.RedisPassword, "redis password")
	fs.Int("redis-db", d.RedisDB, "redis database")
	fs.String("channel-prefix", d.ChannelPrefix, "redis channel prefix for rooms")
	fs.Bool("advertise", d.Advertise, "announce the relay over mDNS")
}

func addCommonFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a YAML config file (or $"+EnvVar+")")
	fs.String("log-level", Default().LogLevel, "log level: debug, info, warn, error")
}

// FromFlags loads the file named by --config and applies every flag that was
// set on the command line. fs must already be parsed.
func FromFlags(fs *pflag.FlagSet) (*Config, error) {
	path, err := fs.GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	var errs []error
	fs.Visit(func(f *pflag.Flag) {
		if err := cfg.apply(fs, f.Name); err != nil {
			errs = append(errs, fmt.Errorf("--%s: %w", f.Name, err))
		}
	})
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) apply(fs *pflag.FlagSet, name string) error {
	var err error
	switch name {
	case "log-level":
		c.LogLevel, err = fs.GetString(name)
	case "relay":
		c.Client.Relay, err = fs.GetString(name)
	case "room":
		c.Client.Room, err = fs.GetString(name)
	case "username":
		c.Client.Username, err = fs.GetString(name)
	case "color":
		c.Client.Color, err = fs.GetString(name)
	case "width":
		c.Client.Width, err = fs.GetFloat64(name)
	case "presence-ttl":
		c.Client.PresenceTTL, err = fs.GetDuration(name)
	case "reconnect":
		c.Client.Reconnect, err = fs.GetBool(name)
	case "max-reconnect-time":
		c.Client.MaxReconnectTime, err = fs.GetDuration(name)
	case "discover-timeout":
		c.Client.DiscoverTimeout, err = fs.GetDuration(name)
	case "listen":
		c.Relay.Listen, err = fs.GetString(name)
	case "redis-addr":
		c.Relay.RedisAddr, err = fs.GetString(name)
	case "redis-password":
		c.Relay.RedisPassword, err = fs.GetString(name)
	case "redis-db":
		c.Relay.RedisDB, err = fs.GetInt(name)
	case "channel-prefix":
		c.Relay.ChannelPrefix, err = fs.GetString(name)
	case "advertise":
		c.Relay.Advertise, err = fs.GetBool(name)
	}
	return err
}

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

func validLogLevel(level string) bool {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

// ValidateClient checks the settings a participant needs.
func (c *Config) ValidateClient() error {
	var errs []error
	if !validLogLevel(c.LogLevel) {
		errs = append(errs, fmt.Errorf("invalid log_level: %q", c.LogLevel))
	}
	if c.Client.Room == "" {
		errs = append(errs, errors.New("client.room is required"))
	}
	if c.Client.Username == "" {
		errs = append(errs, errors.New("client.username is required"))
	}
	if !hexColor.MatchString(c.Client.Color) {
		errs = append(errs, fmt.Errorf("client.color must be #rrggbb, got %q", c.Client.Color))
	}
	if c.Client.Width <= 0 {
		errs = append(errs, fmt.Errorf("client.width must be positive, got %v", c.Client.Width))
	}
	if c.Client.PresenceTTL < 0 || c.Client.MaxReconnectTime < 0 || c.Client.DiscoverTimeout < 0 {
		errs = append(errs, errors.New("client durations must not be negative"))
	}
	return errors.Join(errs...)
}

// ValidateRelay checks the settings the relay server needs.
func (c *Config) ValidateRelay() error {
	var errs []error
	if !validLogLevel(c.LogLevel) {
		errs = append(errs, fmt.Errorf("invalid log_level: %q", c.LogLevel))
	}
	if c.Relay.Listen == "" {
		errs = append(errs, errors.New("relay.listen is required"))
	}
	if c.Relay.RedisAddr != "" && c.Relay.ChannelPrefix == "" {
		errs = append(errs, errors.New("relay.channel_prefix is required with redis_addr"))
	}
	if c.Relay.RedisDB < 0 {
		errs = append(errs, fmt.Errorf("relay.redis_db must not be negative, got %d", c.Relay.RedisDB))
	}
	return errors.Join(errs...)
}
