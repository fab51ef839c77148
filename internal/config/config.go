package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/hustbill/nodejs-api-server-sub001/internal/logger"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Database   DatabaseConfig   `mapstructure:"database"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Queue      QueueConfig      `mapstructure:"queue"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Email      EmailConfig      `mapstructure:"email"`
	Order      OrderConfig      `mapstructure:"order"`
	TaxService TaxServiceConfig `mapstructure:"tax_service"`
	Stripe     StripeConfig     `mapstructure:"stripe"`
	Security   SecurityConfig   `mapstructure:"security"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host                     string `mapstructure:"host"`
	Port                     string `mapstructure:"port"`
	Mode                     string `mapstructure:"mode"` // debug / release
	ReadHeaderTimeoutSeconds int    `mapstructure:"read_header_timeout_seconds"`
}

// ReadHeaderTimeout 请求头读取超时
func (c ServerConfig) ReadHeaderTimeout() time.Duration {
	if c.ReadHeaderTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.ReadHeaderTimeoutSeconds) * time.Second
}

// LogConfig 日志配置
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
	Stdout     bool   `mapstructure:"stdout"`
}

// ToLoggerOptions 转换为日志组件配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
		Stdout:     c.Stdout,
	}
}

// DatabasePoolConfig 数据库连接池配置
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver string             `mapstructure:"driver"` // 数据库驱动（sqlite/postgres）
	DSN    string             `mapstructure:"dsn"`    // 数据库连接串
	Pool   DatabasePoolConfig `mapstructure:"pool"`
}

// JWTConfig 用户令牌配置
type JWTConfig struct {
	SecretKey   string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 异步队列配置
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// EmailConfig 邮件配置
type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	FromName string `mapstructure:"from_name"`
	UseTLS   bool   `mapstructure:"use_tls"`
	UseSSL   bool   `mapstructure:"use_ssl"`
}

// OrderConfig 订单核心配置
type OrderConfig struct {
	CompanyCode           string            `mapstructure:"company_code"`             // 租户编码
	DefaultCurrency       string            `mapstructure:"default_currency"`         // 无法从国家推导时使用的币种
	NumberPrefix          string            `mapstructure:"number_prefix"`            // 订单号前缀
	CommissionVolumeCodes map[string]string `mapstructure:"commission_volume_codes"`  // 业绩类型 -> 佣金编码
	DiscountRoleCodes     []string          `mapstructure:"discount_role_codes"`      // 可享受折扣的角色
	AllowCancelInAssemble bool              `mapstructure:"allow_cancel_in_assemble"` // 允许取消备货中订单（可被偏好设置覆盖）
	FreeTax               FreeTaxConfig     `mapstructure:"free_tax"`
	Validators            ValidatorConfig   `mapstructure:"validators"`
	Renewal               RenewalConfig     `mapstructure:"renewal"`
	SpendLimit            SpendLimitConfig  `mapstructure:"spend_limit"`
}

// FreeTaxConfig 免税国家配置
type FreeTaxConfig struct {
	Countries []string `mapstructure:"countries"` // 基础国家集合（欧盟）
	Exclude   []string `mapstructure:"exclude"`   // 排除
	Include   []string `mapstructure:"include"`   // 始终包含
}

// ValidatorConfig 可选校验器开关
type ValidatorConfig struct {
	SystemKitExclusive   bool `mapstructure:"system_kit_exclusive"`
	PromotionalExclusive bool `mapstructure:"promotional_exclusive"`
}

// RenewalConfig 会员续期配置
type RenewalConfig struct {
	Months    int `mapstructure:"months"`
	CutoffDay int `mapstructure:"cutoff_day"`
}

// SpendLimitConfig 单用户消费限额
type SpendLimitConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Weekly  string `mapstructure:"weekly"`
	Monthly string `mapstructure:"monthly"`
}

// TaxServiceConfig 外部税务服务配置
type TaxServiceConfig struct {
	Enabled             bool     `mapstructure:"enabled"`
	BaseURL             string   `mapstructure:"base_url"`
	APIKey              string   `mapstructure:"api_key"`
	CompanyCode         string   `mapstructure:"company_code"`
	TimeoutMS           int      `mapstructure:"timeout_ms"`
	ExcludedTerritories []string `mapstructure:"excluded_territories"`
}

// Timeout 返回请求超时时间
func (c TaxServiceConfig) Timeout() time.Duration {
	if c.TimeoutMS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// StripeConfig 信用卡网关配置
type StripeConfig struct {
	SecretKey  string `mapstructure:"secret_key"`
	APIBaseURL string `mapstructure:"api_base_url"`
	TimeoutMS  int    `mapstructure:"timeout_ms"`
}

// RateLimitConfig 接口限流配置
type RateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxRequests   int `mapstructure:"max_requests"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	CheckoutRateLimit RateLimitConfig `mapstructure:"checkout_rate_limit"`
}

// TelemetryConfig OpenTelemetry 指标导出配置
type TelemetryConfig struct {
	Enabled               bool   `mapstructure:"enabled"`
	ServiceName           string `mapstructure:"service_name"`
	ServiceVersion        string `mapstructure:"service_version"`
	Environment           string `mapstructure:"environment"`
	OTLPEndpoint          string `mapstructure:"otlp_endpoint"`
	ExportIntervalSeconds int    `mapstructure:"export_interval_seconds"`
}

// ExportInterval 返回指标导出周期
func (c TelemetryConfig) ExportInterval() time.Duration {
	if c.ExportIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.ExportIntervalSeconds) * time.Second
}

var euCountries = []string{
	"AT", "BE", "BG", "HR", "CY", "CZ", "DK", "EE", "FI", "FR", "DE", "GR", "HU", "IE",
	"IT", "LV", "LT", "LU", "MT", "NL", "PL", "PT", "RO", "SK", "SI", "ES", "SE",
}

// Load 加载配置
func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")
	viper.AddConfigPath("./etc")

	setDefaults(viper.GetViper())

	viper.AutomaticEnv()                                   // 自动读取环境变量
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // server.port -> SERVER_PORT

	if err := viper.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", viper.ConfigFileUsed())
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(fmt.Errorf("配置解析失败: %w", err))
	}
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_header_timeout_seconds", 10)
	v.SetDefault("log.dir", "")
	v.SetDefault("log.filename", "order-core.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("log.stdout", false)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./db/orders.db")
	v.SetDefault("database.pool.max_open_conns", 1)
	v.SetDefault("database.pool.max_idle_conns", 1)
	v.SetDefault("database.pool.conn_max_lifetime_seconds", 0)
	v.SetDefault("database.pool.conn_max_idle_time_seconds", 0)
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.expire_hours", 24)
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "oc")
	v.SetDefault("queue.enabled", true)
	v.SetDefault("queue.host", "127.0.0.1")
	v.SetDefault("queue.port", 6379)
	v.SetDefault("queue.password", "")
	v.SetDefault("queue.db", 1)
	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.queues", map[string]int{
		"default":  10,
		"critical": 5,
	})
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{
		"Content-Type",
		"Authorization",
		"X-Request-ID",
		"X-Client-Request-ID",
	})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 600)
	v.SetDefault("email.enabled", false)
	v.SetDefault("email.host", "")
	v.SetDefault("email.port", 587)
	v.SetDefault("email.username", "")
	v.SetDefault("email.password", "")
	v.SetDefault("email.from", "")
	v.SetDefault("email.from_name", "")
	v.SetDefault("email.use_tls", true)
	v.SetDefault("email.use_ssl", false)
	v.SetDefault("order.company_code", "default")
	v.SetDefault("order.default_currency", "USD")
	v.SetDefault("order.number_prefix", "R")
	v.SetDefault("order.commission_volume_codes", map[string]string{
		"dt": "DTV",
		"ft": "FTV",
		"u":  "UV",
		"q":  "QV",
		"r":  "RV",
	})
	v.SetDefault("order.discount_role_codes", []string{"D", "P"})
	v.SetDefault("order.allow_cancel_in_assemble", false)
	v.SetDefault("order.free_tax.countries", euCountries)
	v.SetDefault("order.free_tax.exclude", []string{"LU"})
	v.SetDefault("order.free_tax.include", []string{"GB"})
	v.SetDefault("order.validators.system_kit_exclusive", false)
	v.SetDefault("order.validators.promotional_exclusive", false)
	v.SetDefault("order.renewal.months", 12)
	v.SetDefault("order.renewal.cutoff_day", 15)
	v.SetDefault("order.spend_limit.enabled", false)
	v.SetDefault("order.spend_limit.weekly", "0")
	v.SetDefault("order.spend_limit.monthly", "0")
	v.SetDefault("tax_service.enabled", false)
	v.SetDefault("tax_service.base_url", "")
	v.SetDefault("tax_service.api_key", "")
	v.SetDefault("tax_service.company_code", "")
	v.SetDefault("tax_service.timeout_ms", 5000)
	v.SetDefault("tax_service.excluded_territories", []string{"AS", "GU", "MP", "PR", "VI"})
	v.SetDefault("stripe.secret_key", "")
	v.SetDefault("stripe.api_base_url", "https://api.stripe.com")
	v.SetDefault("stripe.timeout_ms", 10000)
	v.SetDefault("security.checkout_rate_limit.window_seconds", 60)
	v.SetDefault("security.checkout_rate_limit.max_requests", 20)
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "order-core")
	v.SetDefault("telemetry.service_version", "dev")
	v.SetDefault("telemetry.environment", "development")
	v.SetDefault("telemetry.otlp_endpoint", "127.0.0.1:4317")
	v.SetDefault("telemetry.export_interval_seconds", 30)
}
