package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dkeye/LiveClass/internal/domain"
)

const EnvPrefix = "LIVECLASS"

type Config struct {
	Mode                string         `mapstructure:"mode"`
	Port                int            `mapstructure:"port"`
	StaticPath          string         `mapstructure:"static_path"`
	Secret              string         `mapstructure:"secret"`
	LogLevel            string         `mapstructure:"log_level"`
	TrustIdentityHeader bool           `mapstructure:"trust_identity_header"`
	Signal              SignalConfig   `mapstructure:"signal"`
	Rooms               RoomsConfig    `mapstructure:"rooms"`
	Chat                ChatConfig     `mapstructure:"chat"`
	ICEServers          []ICEServer    `mapstructure:"ice_servers"`
	Database            DatabaseConfig `mapstructure:"database"`
	Schedules           []Schedule     `mapstructure:"schedules"`
}

type SignalConfig struct {
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	PongWait   time.Duration `mapstructure:"pong_wait"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	SendQueue  int           `mapstructure:"send_queue"`
}

type RoomsConfig struct {
	DefaultMaxParticipants int           `mapstructure:"default_max_participants"`
	AllowAdhoc             bool          `mapstructure:"allow_adhoc"`
	IdleGrace              time.Duration `mapstructure:"idle_grace"`
	SweepInterval          time.Duration `mapstructure:"sweep_interval"`
	KickAfterDrops         int           `mapstructure:"kick_after_drops"`
}

type ChatConfig struct {
	RateLimit    int           `mapstructure:"rate_limit"`
	RateInterval time.Duration `mapstructure:"rate_interval"`
	MaxBody      int           `mapstructure:"max_body"`
}

type ICEServer struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

// DatabaseConfig points at the scheduling database. Empty DSN means the
// schedules listed in the config file are used instead.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type Schedule struct {
	ID              string    `mapstructure:"id"`
	Title           string    `mapstructure:"title"`
	HostID          string    `mapstructure:"host_id"`
	MaxParticipants int       `mapstructure:"max_participants"`
	StartsAt        time.Time `mapstructure:"starts_at"`
	EndsAt          time.Time `mapstructure:"ends_at"`
}

func (s Schedule) RoomSpec() (domain.RoomSpec, error) {
	spec := domain.RoomSpec{
		ID:              domain.RoomID(s.ID),
		Title:           s.Title,
		HostID:          domain.ParticipantID(s.HostID),
		MaxParticipants: s.MaxParticipants,
		StartsAt:        s.StartsAt,
		EndsAt:          s.EndsAt,
	}
	if err := domain.ValidateRoomID(spec.ID); err != nil {
		return domain.RoomSpec{}, fmt.Errorf("schedule %q: %w", s.ID, err)
	}
	if !s.EndsAt.IsZero() && !s.StartsAt.IsZero() && !s.EndsAt.After(s.StartsAt) {
		return domain.RoomSpec{}, fmt.Errorf("schedule %q: ends_at before starts_at", s.ID)
	}
	return spec, nil
}

func (c *Config) RoomSpecs() ([]domain.RoomSpec, error) {
	out := make([]domain.RoomSpec, 0, len(c.Schedules))
	for _, s := range c.Schedules {
		spec, err := s.RoomSpec()
		if err != nil {
			return nil, err
		}
		out = append(out, spec)
	}
	return out, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("secret", "change-me")
	v.SetDefault("log_level", "info")
	v.SetDefault("trust_identity_header", false)

	v.SetDefault("signal.read_limit", 65536)
	v.SetDefault("signal.ping_period", "54s")
	v.SetDefault("signal.pong_wait", "60s")
	v.SetDefault("signal.write_wait", "10s")
	v.SetDefault("signal.send_queue", 64)

	v.SetDefault("rooms.default_max_participants", 50)
	v.SetDefault("rooms.allow_adhoc", true)
	v.SetDefault("rooms.idle_grace", "10m")
	v.SetDefault("rooms.sweep_interval", "1m")
	v.SetDefault("rooms.kick_after_drops", 32)

	v.SetDefault("chat.rate_limit", 5)
	v.SetDefault("chat.rate_interval", "3s")
	v.SetDefault("chat.max_body", 2000)

	v.SetDefault("ice_servers", []map[string]any{
		{"urls": []string{"stun:stun.l.google.com:19302"}},
	})
}

// Load reads config/config.<CONFIG_ENV>.yaml (or the --config file), then
// environment variables prefixed LIVECLASS_, then flags. A missing file
// is not an error.
func Load(flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Info().Str("module", "config").Msg("loaded .env")
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileName := ""
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
		if f := flags.Lookup("config"); f != nil {
			fileName = f.Value.String()
		}
	}
	if fileName == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		fileName = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(fileName)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		fileLoaded = false
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	ApplyLogLevel(cfg.LogLevel)

	if fileLoaded {
		v.OnConfigChange(func(e fsnotify.Event) {
			if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
				return
			}
			ApplyLogLevel(v.GetString("log_level"))
			log.Info().Str("module", "config").Str("file", e.Name).Msg("config reloaded")
		})
		v.WatchConfig()
	}

	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("static", cfg.StaticPath).
		Int("schedules", len(cfg.Schedules)).
		Msg("config ready")
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.StringToTimeHookFunc(time.RFC3339),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Signal.PingPeriod >= cfg.Signal.PongWait {
		return nil, fmt.Errorf("signal.ping_period %s must be shorter than signal.pong_wait %s", cfg.Signal.PingPeriod, cfg.Signal.PongWait)
	}
	return &cfg, nil
}

// ApplyLogLevel sets the global zerolog level; unknown names keep the
// current one.
func ApplyLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		log.Warn().Str("module", "config").Str("level", level).Msg("unknown log level")
		return
	}
	if lvl != zerolog.GlobalLevel() {
		zerolog.SetGlobalLevel(lvl)
		log.Info().Str("module", "config").Str("level", lvl.String()).Msg("log level set")
	}
}
