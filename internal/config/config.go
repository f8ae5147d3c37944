package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/samber/lo"

	"github.com/rocketscienceinc/gridarbiter/internal/entity"
)

const (
	ArchiveMemory = "memory"
	ArchiveRedis  = "redis"
	ArchiveSQLite = "sqlite"
)

var ErrInvalidLayout = errors.New("invalid layout")

type Config struct {
	LogLevel       string   `yaml:"log-level" env:"LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`
	HTTPPort       string   `yaml:"http-port" env:"HTTP_PORT" env-default:"9090" validate:"required,numeric"`
	SocketPort     string   `yaml:"socket-port" env:"SOCKET_PORT" env-default:"8080" validate:"required,numeric"`
	AllowedOrigins []string `yaml:"allowed-origins" env:"ALLOWED_ORIGINS" env-default:"*"`
	Game           Game     `yaml:"game"`
	Archive        Archive  `yaml:"archive"`
}

type Game struct {
	BoardSize      int           `yaml:"board-size" env:"GAME_BOARD_SIZE" env-default:"5" validate:"min=3,max=26"`
	Mode           string        `yaml:"mode" env:"GAME_MODE" env-default:"fixed" validate:"oneof=fixed placement"`
	Layout         []string      `yaml:"layout" env:"GAME_LAYOUT" env-default:"Runner,Runner,Orthogonal,Diagonal,Runner"`
	PlacementLimit int           `yaml:"placement-limit" env:"GAME_PLACEMENT_LIMIT" env-default:"0" validate:"min=0"`
	IdleTimeout    time.Duration `yaml:"idle-timeout" env:"GAME_IDLE_TIMEOUT" env-default:"0s"`
	ReapInterval   time.Duration `yaml:"reap-interval" env:"GAME_REAP_INTERVAL" env-default:"10s"`
}

type Archive struct {
	Driver      string        `yaml:"driver" env:"ARCHIVE_DRIVER" env-default:"memory" validate:"oneof=memory redis sqlite"`
	Redis       Redis         `yaml:"redis"`
	SQLitePath  string        `yaml:"sqlite-path" env:"ARCHIVE_SQLITE_PATH" env-default:"matches.db"`
	TTL         time.Duration `yaml:"ttl" env:"ARCHIVE_TTL" env-default:"24h"`
	RecentLimit int           `yaml:"recent-limit" env:"ARCHIVE_RECENT_LIMIT" env-default:"100" validate:"min=1"`
}

type Redis struct {
	Host string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

// Load - reads path when it exists, otherwise the environment only, then validates the result.
func Load(path string) (*Config, error) {
	config := &Config{}

	var err error
	if _, statErr := os.Stat(path); statErr == nil {
		err = cleanenv.ReadConfig(path, config)
	} else {
		err = cleanenv.ReadEnv(config)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err = config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (that *Config) Validate() error {
	if err := validator.New().Struct(that); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if that.Game.Mode != string(entity.ModeFixed) {
		return nil
	}

	if len(that.Game.Layout) != that.Game.BoardSize {
		return fmt.Errorf("%w: %d kinds for board size %d", ErrInvalidLayout, len(that.Game.Layout), that.Game.BoardSize)
	}

	for _, value := range that.Game.Layout {
		if _, err := entity.ParseKind(value); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidLayout, err)
		}
	}

	return nil
}

// Settings - converts the game section into entity settings. Call after Validate.
func (that *Game) Settings() entity.Settings {
	return entity.Settings{
		BoardSize: that.BoardSize,
		Mode:      entity.Mode(that.Mode),
		Layout: lo.Map(that.Layout, func(value string, _ int) entity.Kind {
			kind, _ := entity.ParseKind(value)
			return kind
		}),
		PlacementLimit: that.PlacementLimit,
	}
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
