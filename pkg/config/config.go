package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 環境變數前綴，例如 PICTIONARY_SERVER_ADDRESS
const EnvPrefix = "PICTIONARY"

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Store  StoreConfig  `mapstructure:"store"`
	DB     DBConfig     `mapstructure:"db"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Game   GameConfig   `mapstructure:"game"`
	Admin  AdminConfig  `mapstructure:"admin"`
	Log    LogConfig    `mapstructure:"log"`
}

type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig 選擇房間存儲：memory、postgres 或 redis
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

type DBConfig struct {
	Host     string `mapstructure:"host"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	Port     int    `mapstructure:"port"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// GameConfig 回合計時與計分
type GameConfig struct {
	TurnDuration   time.Duration `mapstructure:"turn_duration"`
	TurnPause      time.Duration `mapstructure:"turn_pause"`
	ScoreIncrement int           `mapstructure:"score_increment"`
}

// AdminConfig 管理員重置所需的憑證，RoomID 為空時停用
type AdminConfig struct {
	RoomID       string        `mapstructure:"room_id"`
	UsernameHash string        `mapstructure:"username_hash"`
	JWTSecret    string        `mapstructure:"jwt_secret"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load 從 ./pkg/config/config.yaml 與環境變數載入配置
func Load() (*Config, error) {
	// .env 不存在時直接忽略
	_ = godotenv.Load()
	return LoadFrom("./pkg/config")
}

// LoadFrom 從指定目錄讀取 config.yaml，檔案不存在時只使用預設值與環境變數
func LoadFrom(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("store.driver", "memory")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "pictionary")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.sslmode", "disable")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "pictionary:")

	v.SetDefault("game.turn_duration", 30*time.Second)
	v.SetDefault("game.turn_pause", 3*time.Second)
	v.SetDefault("game.score_increment", 1)

	v.SetDefault("admin.room_id", "")
	v.SetDefault("admin.username_hash", "")
	v.SetDefault("admin.jwt_secret", "")
	v.SetDefault("admin.token_ttl", time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate 檢查配置是否合理
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "postgres", "redis":
	default:
		return fmt.Errorf("invalid store.driver %q", c.Store.Driver)
	}
	if c.Game.TurnDuration < time.Second || c.Game.TurnDuration%time.Second != 0 {
		return errors.New("game.turn_duration must be a whole number of seconds")
	}
	if c.Game.TurnPause < 0 {
		return errors.New("game.turn_pause must not be negative")
	}
	if c.Game.ScoreIncrement <= 0 {
		return errors.New("game.score_increment must be positive")
	}
	if c.Admin.RoomID != "" && (c.Admin.UsernameHash == "" || c.Admin.JWTSecret == "") {
		return errors.New("admin.room_id requires admin.username_hash and admin.jwt_secret")
	}
	return nil
}

// AdminEnabled 是否啟用管理員重置
func (c *Config) AdminEnabled() bool {
	return c.Admin.RoomID != ""
}
