// Package config 基于 Viper 加载服务配置：默认值 → 可选 YAML 文件 → 环境变量
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，例如 RELAY_LOGGING_LEVEL=debug
const EnvPrefix = "RELAY"

// ServerConfig HTTP 监听与静态资源
type ServerConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	StaticDir string `mapstructure:"static_dir"`
	// AllowedOrigins 为空表示允许所有来源
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Addr 返回 "host:port" 监听地址
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// WorldConfig 玩家记录的默认值与约束
type WorldConfig struct {
	// Extent 出生坐标在 [0, Extent) 内均匀随机
	Extent      float64 `mapstructure:"extent"`
	NameMaxLen  int     `mapstructure:"name_max_len"`
	DefaultName string  `mapstructure:"default_name"`
}

// AuthConfig 管理员认证
type AuthConfig struct {
	// AdminMarker 名称前缀，命中即为管理员（前缀本身会被剥离）
	AdminMarker string `mapstructure:"admin_marker"`
}

// TransportConfig WebSocket 连接参数
type TransportConfig struct {
	SendQueue    int           `mapstructure:"send_queue"`
	InboundQueue int           `mapstructure:"inbound_queue"`
	ReadLimit    int64         `mapstructure:"read_limit"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
}

// LoggingConfig 日志与审计输出
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	// File 为空时只输出到控制台
	File      string `mapstructure:"file"`
	AuditFile string `mapstructure:"audit_file"`

	MaxSizeMB  int `mapstructure:"max_size_mb"`
	MaxBackups int `mapstructure:"max_backups"`
	MaxAgeDays int `mapstructure:"max_age_days"`
}

// Config 顶层配置
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	World     WorldConfig     `mapstructure:"world"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Transport TransportConfig `mapstructure:"transport"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// Validate 检查所有约束，一次性汇总返回全部违规项
func (c Config) Validate() error {
	var errs []string
	add := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	add(validateServer(c.Server))
	add(validateWorld(c.World))
	add(validateAuth(c.Auth))
	add(validateTransport(c.Transport))
	add(validateLogging(c.Logging))

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", s.Port)
	}
	return nil
}

func validateWorld(w WorldConfig) error {
	var errs []string
	if w.Extent <= 0 {
		errs = append(errs, fmt.Sprintf("world.extent must be > 0, got %v", w.Extent))
	}
	if w.NameMaxLen < 1 {
		errs = append(errs, fmt.Sprintf("world.name_max_len must be >= 1, got %d", w.NameMaxLen))
	}
	if w.DefaultName == "" {
		errs = append(errs, "world.default_name must not be empty")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateAuth(a AuthConfig) error {
	if a.AdminMarker == "" {
		return errors.New("auth.admin_marker must not be empty")
	}
	return nil
}

func validateTransport(t TransportConfig) error {
	var errs []string
	if t.SendQueue < 1 {
		errs = append(errs, fmt.Sprintf("transport.send_queue must be >= 1, got %d", t.SendQueue))
	}
	if t.InboundQueue < 1 {
		errs = append(errs, fmt.Sprintf("transport.inbound_queue must be >= 1, got %d", t.InboundQueue))
	}
	if t.ReadLimit < 1 {
		errs = append(errs, fmt.Sprintf("transport.read_limit must be >= 1, got %d", t.ReadLimit))
	}
	if t.ReadTimeout <= 0 || t.WriteTimeout <= 0 {
		errs = append(errs, "transport.read_timeout and transport.write_timeout must be positive")
	}
	if t.PingInterval <= 0 || t.PingInterval >= t.ReadTimeout {
		errs = append(errs, "transport.ping_interval must be positive and shorter than transport.read_timeout")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	if l.MaxSizeMB < 1 {
		return fmt.Errorf("logging.max_size_mb must be >= 1, got %d", l.MaxSizeMB)
	}
	return nil
}

// Load 读取配置；path 为空时只使用默认值与环境变量
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// 平台约定的 PORT 优先级低于 RELAY_SERVER_PORT
	if err := v.BindEnv("server.port", EnvPrefix+"_SERVER_PORT", "PORT"); err != nil {
		return Config{}, fmt.Errorf("binding PORT: %w", err)
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}
	return LoadFromViper(v)
}

// LoadFromViper 从已配置好的 Viper 实例构建 Config
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.static_dir", "web")
	v.SetDefault("server.allowed_origins", []string{})

	v.SetDefault("world.extent", 2000.0)
	v.SetDefault("world.name_max_len", 15)
	v.SetDefault("world.default_name", "Guest")

	v.SetDefault("auth.admin_marker", "!!!")

	v.SetDefault("transport.send_queue", 64)
	v.SetDefault("transport.inbound_queue", 256)
	v.SetDefault("transport.read_limit", 1<<16)
	v.SetDefault("transport.read_timeout", "60s")
	v.SetDefault("transport.write_timeout", "5s")
	v.SetDefault("transport.ping_interval", "25s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", "app.log")
	v.SetDefault("logging.audit_file", "audit.log")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 7)
}

// Default 返回全部默认值组成的配置（测试与嵌入使用）
func Default() Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := LoadFromViper(v)
	if err != nil {
		panic(fmt.Sprintf("default config invalid: %v", err))
	}
	return cfg
}
