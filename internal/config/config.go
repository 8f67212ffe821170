package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"shopsec_dev_v1_202608/internal/policy"
)

// ==================== Config 进程配置 ====================

// Config 全部来自环境变量（可配合 .env 文件）
type Config struct {
	// HTTP
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`
	GinMode    string `env:"GIN_MODE" envDefault:"debug"`

	// 数据库
	DatabaseDSN    string `env:"DATABASE_DSN" envDefault:"host=localhost user=shopsec password=shopsec dbname=shopsec port=5432 sslmode=disable"`
	DBMaxIdleConns int    `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBMaxOpenConns int    `env:"DB_MAX_OPEN_CONNS" envDefault:"50"`
	DBLogSQL       bool   `env:"DB_LOG_SQL" envDefault:"false"`

	// JWT
	JWTSecret       string        `env:"JWT_SECRET" envDefault:"shopsec-secret-key-change-in-production"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"2h"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`

	// 策略开关（原始值，true = 严格启用）
	PolicyAuthn          bool `env:"POLICY_AUTHN_STRICT" envDefault:"false"`
	PolicyObjectLevel    bool `env:"POLICY_OBJECT_LEVEL_STRICT" envDefault:"false"`
	PolicyPropertyLevel  bool `env:"POLICY_PROPERTY_LEVEL_STRICT" envDefault:"false"`
	PolicyFunctionLevel  bool `env:"POLICY_FUNCTION_LEVEL_STRICT" envDefault:"false"`
	PolicyBusinessFlow   bool `env:"POLICY_BUSINESS_FLOW_STRICT" envDefault:"false"`
	PolicyResourceLimits bool `env:"POLICY_RESOURCE_LIMITS_STRICT" envDefault:"false"`
	PolicySSRF           bool `env:"POLICY_SSRF_STRICT" envDefault:"false"`

	// 安全模式总闸：取反所有开关的生效值
	SafeMode bool `env:"SAFE_MODE" envDefault:"false"`

	// 支付
	PaymentGatewayURL  string        `env:"PAYMENT_GATEWAY_URL"` // 留空用进程内桩
	PaymentSuccessRate float64       `env:"PAYMENT_SUCCESS_RATE" envDefault:"1.0"`
	PaymentTimeout     time.Duration `env:"PAYMENT_TIMEOUT" envDefault:"5s"`

	// 图片抓取允许的主机（严格 SSRF 策略下生效，逗号分隔）
	ImageFetchAllowHosts []string `env:"IMAGE_FETCH_ALLOW_HOSTS" envSeparator:"," envDefault:"cdn.shopsec.local"`

	// 定时任务
	TasksEnabled       bool `env:"TASKS_ENABLED" envDefault:"true"`
	CartStaleDays      int  `env:"CART_STALE_DAYS" envDefault:"30"`
	EventRetentionDays int  `env:"EVENT_RETENTION_DAYS" envDefault:"90"`
}

// Load 读取 .env（如果存在）并解析环境变量
func Load() (*Config, error) {
	// .env 不存在不算错误，线上一般直接注入环境变量
	if err := godotenv.Load(); err == nil {
		log.Println("已加载 .env 文件")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResolvePolicy 把原始开关交给 policy.Resolve 生成进程级策略快照
func (c *Config) ResolvePolicy() *policy.Config {
	raw := map[string]bool{
		policy.FlagAuthn:          c.PolicyAuthn,
		policy.FlagObjectLevel:    c.PolicyObjectLevel,
		policy.FlagPropertyLevel:  c.PolicyPropertyLevel,
		policy.FlagFunctionLevel:  c.PolicyFunctionLevel,
		policy.FlagBusinessFlow:   c.PolicyBusinessFlow,
		policy.FlagResourceLimits: c.PolicyResourceLimits,
		policy.FlagSSRF:           c.PolicySSRF,
	}
	return policy.Resolve(raw, c.SafeMode)
}
