package config

import (
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v2"

	"github.com/JJ-Intelligence/SR-Sea-Battle/pkg/arena"
)

const (
	DefaultPath = "/dev/shm/sea_battle_shm"
	EnvPath     = "SEABATTLE_CONFIG"
)

type Config struct {
	Arena   ArenaConfig   `mapstructure:"arena"`
	Server  ServerConfig  `mapstructure:"server"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	Client  ClientConfig  `mapstructure:"client"`
	Log     LogConfig     `mapstructure:"log"`
	Debug   DebugConfig   `mapstructure:"debug"`
}

type ArenaConfig struct {
	Path       string `mapstructure:"path" validate:"required"`
	MaxPlayers int    `mapstructure:"max_players" validate:"min=1,max=20"`
	MaxGames   int    `mapstructure:"max_games" validate:"min=1,max=10"`
}

func (c ArenaConfig) Limits() arena.Limits {
	return arena.Limits{MaxPlayers: int32(c.MaxPlayers), MaxGames: int32(c.MaxGames)}
}

type ServerConfig struct {
	Tick              time.Duration `mapstructure:"tick" validate:"gt=0"`
	StatusEvery       int           `mapstructure:"status_every" validate:"min=1"`
	InactivityTimeout time.Duration `mapstructure:"inactivity_timeout" validate:"gt=0"`
}

// MonitorConfig controls the websocket status feed. An empty Listen
// disables it.
type MonitorConfig struct {
	Listen string `mapstructure:"listen" validate:"omitempty,hostname_port"`
	Format string `mapstructure:"format" validate:"oneof=json msgpack"`
}

type ClientConfig struct {
	Poll time.Duration `mapstructure:"poll" validate:"gt=0"`
}

type LogConfig struct {
	Development bool `mapstructure:"development"`
}

type DebugConfig struct {
	// DeadlockDetection turns on lock-order and timeout checks on the
	// in-process arena mutex.
	DeadlockDetection bool          `mapstructure:"deadlock_detection"`
	DeadlockTimeout   time.Duration `mapstructure:"deadlock_timeout" validate:"gte=0"`
}

func Default() *Config {
	return &Config{
		Arena: ArenaConfig{
			Path:       DefaultPath,
			MaxPlayers: arena.MaxPlayers,
			MaxGames:   arena.MaxGames,
		},
		Server: ServerConfig{
			Tick:              500 * time.Millisecond,
			StatusEvery:       20,
			InactivityTimeout: 300 * time.Second,
		},
		Monitor: MonitorConfig{
			Format: "json",
		},
		Client: ClientConfig{
			Poll: time.Second,
		},
		Debug: DebugConfig{
			DeadlockTimeout: 30 * time.Second,
		},
	}
}

// ParseConfig reads the YAML file at path on top of the defaults. An empty
// path yields the defaults.
func ParseConfig(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	configFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read config: %w", err)
	}
	if err := cfg.Decode(configFile); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// Decode merges YAML document data into c. Keys that are absent keep their
// current values.
func (c *Config) Decode(data []byte) error {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unable to parse yaml config: %w", err)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           c,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			secondsToDurationHook,
		),
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// secondsToDurationHook reads bare numbers as seconds.
func secondsToDurationHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	switch v := data.(type) {
	case int:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	}
	return data, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Path picks the config file from the flag value, falling back to the
// environment.
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(EnvPath)
}
