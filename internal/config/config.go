package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config 保存应用程序配置。
type Config struct {
	App      AppConfig      `json:"app"`
	MySQL    MySQLConfig    `json:"mysql"`
	Redis    RedisConfig    `json:"redis"`
	Email    EmailConfig    `json:"email"`
	Security SecurityConfig `json:"security"`
}

// AppConfig 应用程序基础配置。
type AppConfig struct {
	Env              string        `json:"env"`               // 运行环境: local / prod
	LogLevel         string        `json:"log_level"`         // 日志级别: debug / info / warn / error
	HTTPAddr         string        `json:"http_addr"`         // API 服务监听地址
	LoanPeriodDays   int           `json:"loan_period_days"`  // 借期天数（应还日期 = 借出日期 + 借期）
	SessionTTL       time.Duration `json:"session_ttl"`       // 会话令牌有效期（如 "24h"）
	ReminderInterval time.Duration `json:"reminder_interval"` // 逾期提醒扫描间隔（如 "1h"）
	LoginRateLimit   float64       `json:"login_rate_limit"`  // 登录限流速率（token/s）
	LoginRateBurst   float64       `json:"login_rate_burst"`  // 登录限流桶容量
}

// MySQLConfig MySQL 数据库配置。
type MySQLConfig struct {
	DSN string `json:"dsn"` // 数据库连接字符串
}

// RedisConfig Redis 配置（会话吊销、提醒去重、登录限流）。
type RedisConfig struct {
	Addr     string `json:"addr"`     // Redis 地址 (host:port)
	Password string `json:"password"` // Redis 密码
}

// EmailConfig 邮件通知配置。
type EmailConfig struct {
	SMTPHost  string `json:"smtp_host"`
	SMTPPort  int    `json:"smtp_port"`
	SMTPUser  string `json:"smtp_user"`
	SMTPPass  string `json:"smtp_pass"`
	FromEmail string `json:"from_email"`
}

// SecurityConfig 安全相关配置。
type SecurityConfig struct {
	JWTSecret     string `json:"jwt_secret"`     // 会话令牌签名密钥
	AdminUsername string `json:"admin_username"` // 引导管理员用户名
	AdminEmail    string `json:"admin_email"`    // 引导管理员邮箱
	AdminPassword string `json:"admin_password"` // 引导管理员初始密码
}

// Load 从 JSON 文件加载配置。
//
// 它会尝试读取 configs/config.json 文件，如果不存在则使用默认值。
// 环境变量始终优先于文件内容。
//
// 参数:
//
//	configPath: 配置文件路径（如果为空则使用默认路径 "configs/config.json"）
//
// 返回值:
//
//	*Config: 加载完成的配置对象
//	error: 加载失败返回错误
func Load(configPath ...string) (*Config, error) {
	path := "configs/config.json"
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	}

	// 如果配置文件不存在，使用默认配置
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := getDefaultConfig()
		applyEnvOverrides(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	return cfg, nil
}

// getDefaultConfig 返回默认配置。
//
// 管理员默认凭据仅用于本地开发，生产环境必须通过环境变量覆盖。
func getDefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Env:              "local",
			LogLevel:         "info",
			HTTPAddr:         ":8080",
			LoanPeriodDays:   14,
			SessionTTL:       24 * time.Hour,
			ReminderInterval: 1 * time.Hour,
			LoginRateLimit:   3,
			LoginRateBurst:   5,
		},
		MySQL: MySQLConfig{
			DSN: "root:password@tcp(localhost:3306)/librarydesk?parseTime=true&loc=Local",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
		},
		Email: EmailConfig{
			SMTPHost:  "smtp.gmail.com",
			SMTPPort:  587,
			SMTPUser:  "",
			SMTPPass:  "",
			FromEmail: "",
		},
		Security: SecurityConfig{
			JWTSecret:     "dev_secret_change_me",
			AdminUsername: "admin",
			AdminEmail:    "admin@example.com",
			AdminPassword: "admin123",
		},
	}
}

// applyDefaults 对未设置的字段应用默认值。
func applyDefaults(cfg *Config) {
	defaults := getDefaultConfig()

	if cfg.App.Env == "" {
		cfg.App.Env = defaults.App.Env
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = defaults.App.LogLevel
	}
	if cfg.App.HTTPAddr == "" {
		cfg.App.HTTPAddr = defaults.App.HTTPAddr
	}
	if cfg.App.LoanPeriodDays == 0 {
		cfg.App.LoanPeriodDays = defaults.App.LoanPeriodDays
	}
	if cfg.App.SessionTTL == 0 {
		cfg.App.SessionTTL = defaults.App.SessionTTL
	}
	if cfg.App.ReminderInterval == 0 {
		cfg.App.ReminderInterval = defaults.App.ReminderInterval
	}
	if cfg.App.LoginRateLimit == 0 {
		cfg.App.LoginRateLimit = defaults.App.LoginRateLimit
	}
	if cfg.App.LoginRateBurst == 0 {
		cfg.App.LoginRateBurst = defaults.App.LoginRateBurst
	}
	if cfg.MySQL.DSN == "" {
		cfg.MySQL.DSN = defaults.MySQL.DSN
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = defaults.Redis.Addr
	}
	if cfg.Email.SMTPPort == 0 {
		cfg.Email.SMTPPort = defaults.Email.SMTPPort
	}
	if cfg.Security.JWTSecret == "" {
		cfg.Security.JWTSecret = defaults.Security.JWTSecret
	}
	if cfg.Security.AdminUsername == "" {
		cfg.Security.AdminUsername = defaults.Security.AdminUsername
	}
	if cfg.Security.AdminEmail == "" {
		cfg.Security.AdminEmail = defaults.Security.AdminEmail
	}
	if cfg.Security.AdminPassword == "" {
		cfg.Security.AdminPassword = defaults.Security.AdminPassword
	}
}

func applyEnvOverrides(cfg *Config) {
	viper.AutomaticEnv()

	_ = viper.BindEnv("db_dsn", "DB_DSN")
	_ = viper.BindEnv("redis_addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis_password", "REDIS_PASSWORD")
	_ = viper.BindEnv("smtp_pass", "SMTP_PASS")
	_ = viper.BindEnv("jwt_secret", "JWT_SECRET")
	_ = viper.BindEnv("admin_password", "ADMIN_PASSWORD")

	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.App.Env = v
	}
	if v := os.Getenv("APP_LOG_LEVEL"); v != "" {
		cfg.App.LogLevel = v
	}
	if v := os.Getenv("APP_HTTP_ADDR"); v != "" {
		cfg.App.HTTPAddr = v
	}
	if v := os.Getenv("APP_LOAN_PERIOD_DAYS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			cfg.App.LoanPeriodDays = i
		}
	}
	if v := os.Getenv("APP_SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.App.SessionTTL = d
		}
	}
	if v := os.Getenv("APP_REMINDER_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.App.ReminderInterval = d
		}
	}
	if v := os.Getenv("APP_LOGIN_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.App.LoginRateLimit = f
		}
	}
	if v := os.Getenv("APP_LOGIN_RATE_BURST"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.App.LoginRateBurst = f
		}
	}

	if v := viper.GetString("db_dsn"); v != "" {
		cfg.MySQL.DSN = v
	}
	if v := viper.GetString("redis_addr"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := viper.GetString("redis_password"); v != "" {
		cfg.Redis.Password = v
	}

	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.Email.SMTPHost = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Email.SMTPPort = i
		}
	}
	if v := os.Getenv("SMTP_USER"); v != "" {
		cfg.Email.SMTPUser = v
	}
	if v := viper.GetString("smtp_pass"); v != "" {
		cfg.Email.SMTPPass = v
	}
	if v := os.Getenv("SMTP_FROM"); v != "" {
		cfg.Email.FromEmail = v
	}

	if v := viper.GetString("jwt_secret"); v != "" {
		cfg.Security.JWTSecret = v
	}
	if v := os.Getenv("ADMIN_USERNAME"); v != "" {
		cfg.Security.AdminUsername = v
	}
	if v := os.Getenv("ADMIN_EMAIL"); v != "" {
		cfg.Security.AdminEmail = v
	}
	if v := viper.GetString("admin_password"); v != "" {
		cfg.Security.AdminPassword = v
	}
}

// UnmarshalJSON 自定义 JSON 解析，支持 Duration 字符串。
func (a *AppConfig) UnmarshalJSON(data []byte) error {
	type Alias AppConfig
	aux := &struct {
		SessionTTL       string `json:"session_ttl"`
		ReminderInterval string `json:"reminder_interval"`
		*Alias
	}{
		Alias: (*Alias)(a),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.SessionTTL != "" {
		duration, err := time.ParseDuration(aux.SessionTTL)
		if err != nil {
			return fmt.Errorf("invalid session_ttl format: %w", err)
		}
		a.SessionTTL = duration
	}
	if aux.ReminderInterval != "" {
		duration, err := time.ParseDuration(aux.ReminderInterval)
		if err != nil {
			return fmt.Errorf("invalid reminder_interval format: %w", err)
		}
		a.ReminderInterval = duration
	}

	return nil
}

// MarshalJSON 自定义 JSON 序列化，将 Duration 转为字符串。
func (a AppConfig) MarshalJSON() ([]byte, error) {
	type Alias AppConfig
	return json.Marshal(&struct {
		SessionTTL       string `json:"session_ttl"`
		ReminderInterval string `json:"reminder_interval"`
		*Alias
	}{
		SessionTTL:       a.SessionTTL.String(),
		ReminderInterval: a.ReminderInterval.String(),
		Alias:            (*Alias)(&a),
	})
}
