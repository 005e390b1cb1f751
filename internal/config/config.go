package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"billrecon/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig
	DB      DBConfig
	JWT     JWTConfig
	S3      S3Config
	Log     LogConfig
	CORS    CORSConfig
	Email   EmailConfig
	Recon   ReconConfig
	Sources SourcesConfig
	ERP     ERPConfig
}

// EmailConfig holds run summary delivery settings.
type EmailConfig struct {
	Provider    string   `mapstructure:"provider"`
	Region      string   `mapstructure:"region"`
	FromAddress string   `mapstructure:"from_address"`
	FromName    string   `mapstructure:"from_name"`
	Recipients  []string `mapstructure:"recipients"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`

	MaxLifetime time.Duration `mapstructure:"max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// JWTConfig holds API token signing settings.
type JWTConfig struct {
	Secret      string        `mapstructure:"secret"`
	TokenExpiry time.Duration `mapstructure:"token_expiry"`
	Issuer      string        `mapstructure:"issuer"`
}

// S3Config holds report bucket settings. An empty Bucket disables uploads.
type S3Config struct {
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	PresignExpiry int64  `mapstructure:"presign_expiry"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ReconConfig tunes the reconciliation engine.
type ReconConfig struct {
	MergePolicy      domain.MergePolicy `mapstructure:"merge_policy"`
	Workers          int                `mapstructure:"workers"`
	ExpectedCurrency string             `mapstructure:"expected_currency"`
	OrderItem        string             `mapstructure:"order_item"`
	OrderRef         string             `mapstructure:"order_ref"`
	DryRun           bool               `mapstructure:"dry_run"`
	ReportDir        string             `mapstructure:"report_dir"`
}

// SourcesConfig locates the run inputs on disk. An empty DebtorsPath means
// debtors are read from the ERP.
type SourcesConfig struct {
	CustomersPath string `mapstructure:"customers_path"`
	DebtorsPath   string `mapstructure:"debtors_path"`
	BillingDir    string `mapstructure:"billing_dir"`
}

// ERPConfig holds accounting-system API settings.
type ERPConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	APIToken    string `mapstructure:"api_token"`
	TimeoutSecs int    `mapstructure:"timeout_secs"`
}

// Load reads configuration from environment variables with the BILLRECON_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BILLRECON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.environment", "development")

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "billrecon")
	v.SetDefault("db.password", "billrecon_secret")
	v.SetDefault("db.name", "billrecon_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 10)
	v.SetDefault("db.max_idle", 5)
	v.SetDefault("db.max_lifetime", "30m")

	// JWT defaults
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.token_expiry", "720h")
	v.SetDefault("jwt.issuer", "billrecon")

	// S3 defaults
	v.SetDefault("s3.region", "eu-north-1")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.presign_expiry", 3600)

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Email defaults
	v.SetDefault("email.provider", "noop")
	v.SetDefault("email.region", "eu-north-1")
	v.SetDefault("email.from_address", "noreply@billrecon.local")
	v.SetDefault("email.from_name", "Billing Reconciliation")
	v.SetDefault("email.recipients", "")

	// Reconciliation defaults
	v.SetDefault("recon.merge_policy", string(domain.MergeByItemNameAndPrice))
	v.SetDefault("recon.workers", 4)
	v.SetDefault("recon.expected_currency", "DKK")
	v.SetDefault("recon.order_item", "CFTEST")
	v.SetDefault("recon.order_ref", "API-ORDER-001")
	v.SetDefault("recon.dry_run", true)
	v.SetDefault("recon.report_dir", "reports")

	// Source defaults
	v.SetDefault("sources.customers_path", "data/customers.json")
	v.SetDefault("sources.debtors_path", "")
	v.SetDefault("sources.billing_dir", "data/billing")

	// ERP defaults
	v.SetDefault("erp.base_url", "https://odata.uniconta.com/api/Entities")
	v.SetDefault("erp.api_token", "")
	v.SetDefault("erp.timeout_secs", 60)

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":             "BILLRECON_SERVER_PORT",
		"server.read_timeout":     "BILLRECON_SERVER_READ_TIMEOUT",
		"server.write_timeout":    "BILLRECON_SERVER_WRITE_TIMEOUT",
		"server.environment":      "BILLRECON_SERVER_ENVIRONMENT",
		"db.host":                 "BILLRECON_DB_HOST",
		"db.port":                 "BILLRECON_DB_PORT",
		"db.user":                 "BILLRECON_DB_USER",
		"db.password":             "BILLRECON_DB_PASSWORD",
		"db.name":                 "BILLRECON_DB_NAME",
		"db.sslmode":              "BILLRECON_DB_SSLMODE",
		"db.max_open":             "BILLRECON_DB_MAX_OPEN",
		"db.max_idle":             "BILLRECON_DB_MAX_IDLE",
		"db.max_lifetime":         "BILLRECON_DB_MAX_LIFETIME",
		"jwt.secret":              "BILLRECON_JWT_SECRET",
		"jwt.token_expiry":        "BILLRECON_JWT_TOKEN_EXPIRY",
		"jwt.issuer":              "BILLRECON_JWT_ISSUER",
		"s3.region":               "BILLRECON_S3_REGION",
		"s3.bucket":               "BILLRECON_S3_BUCKET",
		"s3.endpoint":             "BILLRECON_S3_ENDPOINT",
		"s3.access_key":           "BILLRECON_S3_ACCESS_KEY",
		"s3.secret_key":           "BILLRECON_S3_SECRET_KEY",
		"s3.presign_expiry":       "BILLRECON_S3_PRESIGN_EXPIRY",
		"log.level":               "BILLRECON_LOG_LEVEL",
		"log.format":              "BILLRECON_LOG_FORMAT",
		"cors.allowed_origins":    "BILLRECON_CORS_ALLOWED_ORIGINS",
		"email.provider":          "BILLRECON_EMAIL_PROVIDER",
		"email.region":            "BILLRECON_EMAIL_REGION",
		"email.from_address":      "BILLRECON_EMAIL_FROM_ADDRESS",
		"email.from_name":         "BILLRECON_EMAIL_FROM_NAME",
		"email.recipients":        "BILLRECON_EMAIL_RECIPIENTS",
		"recon.merge_policy":      "BILLRECON_RECON_MERGE_POLICY",
		"recon.workers":           "BILLRECON_RECON_WORKERS",
		"recon.expected_currency": "BILLRECON_RECON_EXPECTED_CURRENCY",
		"recon.order_item":        "BILLRECON_RECON_ORDER_ITEM",
		"recon.order_ref":         "BILLRECON_RECON_ORDER_REF",
		"recon.dry_run":           "BILLRECON_RECON_DRY_RUN",
		"recon.report_dir":        "BILLRECON_RECON_REPORT_DIR",
		"sources.customers_path":  "BILLRECON_SOURCES_CUSTOMERS_PATH",
		"sources.debtors_path":    "BILLRECON_SOURCES_DEBTORS_PATH",
		"sources.billing_dir":     "BILLRECON_SOURCES_BILLING_DIR",
		"erp.base_url":            "BILLRECON_ERP_BASE_URL",
		"erp.api_token":           "BILLRECON_ERP_API_TOKEN",
		"erp.timeout_secs":        "BILLRECON_ERP_TIMEOUT_SECS",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Railway/Heroku/Render set a PORT env var. Use it if BILLRECON_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("BILLRECON_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
	}
	cfg.DB = DBConfig{
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),

		MaxLifetime: v.GetDuration("db.max_lifetime"),
	}
	cfg.JWT = JWTConfig{
		Secret:      v.GetString("jwt.secret"),
		TokenExpiry: v.GetDuration("jwt.token_expiry"),
		Issuer:      v.GetString("jwt.issuer"),
	}
	cfg.S3 = S3Config{
		Region:        v.GetString("s3.region"),
		Bucket:        v.GetString("s3.bucket"),
		Endpoint:      v.GetString("s3.endpoint"),
		AccessKey:     v.GetString("s3.access_key"),
		SecretKey:     v.GetString("s3.secret_key"),
		PresignExpiry: v.GetInt64("s3.presign_expiry"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	cfg.CORS = CORSConfig{
		AllowedOrigins: splitList(v.GetString("cors.allowed_origins")),
	}
	cfg.Email = EmailConfig{
		Provider:    v.GetString("email.provider"),
		Region:      v.GetString("email.region"),
		FromAddress: v.GetString("email.from_address"),
		FromName:    v.GetString("email.from_name"),
		Recipients:  splitList(v.GetString("email.recipients")),
	}

	policy, ok := domain.ValidMergePolicies[v.GetString("recon.merge_policy")]
	if !ok {
		return nil, fmt.Errorf("config: invalid recon merge policy %q", v.GetString("recon.merge_policy"))
	}
	cfg.Recon = ReconConfig{
		MergePolicy:      policy,
		Workers:          v.GetInt("recon.workers"),
		ExpectedCurrency: v.GetString("recon.expected_currency"),
		OrderItem:        v.GetString("recon.order_item"),
		OrderRef:         v.GetString("recon.order_ref"),
		DryRun:           v.GetBool("recon.dry_run"),
		ReportDir:        v.GetString("recon.report_dir"),
	}
	cfg.Sources = SourcesConfig{
		CustomersPath: v.GetString("sources.customers_path"),
		DebtorsPath:   v.GetString("sources.debtors_path"),
		BillingDir:    v.GetString("sources.billing_dir"),
	}
	cfg.ERP = ERPConfig{
		BaseURL:     v.GetString("erp.base_url"),
		APIToken:    v.GetString("erp.api_token"),
		TimeoutSecs: v.GetInt("erp.timeout_secs"),
	}

	return cfg, nil
}

// splitList parses a comma-separated env value.
func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
