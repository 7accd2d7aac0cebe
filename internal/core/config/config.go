package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type HTTP struct {
	Host            string
	Port            int
	ReadTimeoutSec  int
	WriteTimeoutSec int
	IdleTimeoutSec  int
}

type AdminHTTP struct {
	Host string
	Port int
}

type App struct {
	Name  string
	Env   string
	HTTP  HTTP
	Admin AdminHTTP
}

type Log struct {
	Level      string
	JSON       bool
	File       string // 非空则同时写文件（lumberjack 切割）
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type JWT struct {
	Secret            string
	Issuer            string
	AccessTokenTTLMin int
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DB struct {
	Driver             string
	DSN                string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	AutoMigrate        bool
	LogLevel           string
}

// Auth 本地认证提供方
type Auth struct {
	FederatedEnabled bool   `mapstructure:"federatedEnabled"`
	FederatedSecret  string `mapstructure:"federatedSecret"`
	ResetTokenTTLMin int    `mapstructure:"resetTokenTTLMin"`
}

// Stream 订阅 / SSE 推送
type Stream struct {
	HeartbeatSec   int `mapstructure:"heartbeatSec"`
	WatchRetries   int `mapstructure:"watchRetries"`   // 订阅断开后的重试次数
	WatchBackoffMs int `mapstructure:"watchBackoffMs"` // 固定退避
}

type Config struct {
	App    App
	Log    Log
	JWT    JWT
	DB     DB
	Redis  Redis  `mapstructure:"redis"`
	Auth   Auth   `mapstructure:"auth"`
	Stream Stream `mapstructure:"stream"`
}

func Load(path string) *Config {
	v := viper.New()
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		if path == "" {
			path = "./configs/config.local.yaml"
		}
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("read config: %v", err)
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		log.Fatalf("unmarshal config: %v", err)
	}
	applyDefaults(&c)
	return &c
}

func applyDefaults(c *Config) {
	if c.Auth.ResetTokenTTLMin <= 0 {
		c.Auth.ResetTokenTTLMin = 30
	}
	if c.Stream.HeartbeatSec <= 0 {
		c.Stream.HeartbeatSec = 25
	}
	if c.Stream.WatchRetries <= 0 {
		c.Stream.WatchRetries = 3
	}
	if c.Stream.WatchBackoffMs <= 0 {
		c.Stream.WatchBackoffMs = 500
	}
}
