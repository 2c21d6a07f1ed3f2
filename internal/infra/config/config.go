package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddress   string
	GRPCAddress   string
	HTTPSCertFile string
	HTTPSKeyFile  string

	DatabaseURL   string
	RedisAddress  string
	RedisPassword string
	RedisDB       int

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	Issuer            string
	Audience          string
	AccessTokenTTL    time.Duration
	RefreshTokenTTL   time.Duration
	// RefreshLedgerTTL bounds a refresh token in the ledger, independently
	// of the signed expiry above.
	RefreshLedgerTTL    time.Duration
	RotateRefreshTokens bool

	PasswordHasher string
	BcryptCost     int

	TOTPIssuer    string
	TOTPSkew      uint
	EnrollmentTTL time.Duration

	ResetTokenTTL time.Duration
	ResetURLBase  string
	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	SMTPFrom      string

	GoogleClientID      string
	TelegramBotToken    string
	TelegramInitDataTTL time.Duration

	CookieDomain     string
	CookieSecure     bool
	AllowedOrigins   []string
	AllowCredentials bool

	// per client IP, shared by the HTTP and gRPC listeners
	RateLimitRPS   float64
	RateLimitBurst int

	LogLevel  string
	LogFormat string
}

var required = []string{
	"DATABASE_URL",
	"REDIS_ADDRESS",
	"JWT_PRIVATE_KEY_PATH",
	"JWT_PUBLIC_KEY_PATH",
	"JWT_ISSUER",
	"JWT_AUDIENCE",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDRESS", ":8000")
	v.SetDefault("GRPC_ADDRESS", ":50051")
	v.SetDefault("HTTPS_CERT_FILE", "")
	v.SetDefault("HTTPS_KEY_FILE", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("ACCESS_TOKEN_TTL", "30s")
	v.SetDefault("REFRESH_TOKEN_TTL", "168h")
	v.SetDefault("REFRESH_LEDGER_TTL", "168h")
	v.SetDefault("ROTATE_REFRESH_TOKENS", true)
	v.SetDefault("PASSWORD_HASHER", "bcrypt")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("TOTP_ISSUER", "MoonyAndStarry")
	v.SetDefault("TOTP_SKEW", 1)
	v.SetDefault("ENROLLMENT_TTL", "10m")
	v.SetDefault("RESET_TOKEN_TTL", "1h")
	v.SetDefault("RESET_URL_BASE", "http://localhost:3000/reset")
	v.SetDefault("SMTP_HOST", "localhost")
	v.SetDefault("SMTP_PORT", 1025)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "from@example.com")
	v.SetDefault("GOOGLE_CLIENT_ID", "")
	v.SetDefault("TELEGRAM_BOT_TOKEN", "")
	v.SetDefault("TELEGRAM_INIT_DATA_TTL", "24h")
	v.SetDefault("COOKIE_DOMAIN", "")
	v.SetDefault("COOKIE_SECURE", true)
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("ALLOW_CREDENTIALS", true)
	v.SetDefault("RATE_LIMIT_RPS", 10)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
}

// Load reads ./config.json when present and lets environment variables
// override every key.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")
	setDefaults(v)
	v.AutomaticEnv()
	for _, key := range required {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var missing []string
	for _, key := range required {
		if strings.TrimSpace(v.GetString(key)) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}

	cfg := &Config{
		HTTPAddress:   v.GetString("HTTP_ADDRESS"),
		GRPCAddress:   v.GetString("GRPC_ADDRESS"),
		HTTPSCertFile: v.GetString("HTTPS_CERT_FILE"),
		HTTPSKeyFile:  v.GetString("HTTPS_KEY_FILE"),

		DatabaseURL:   v.GetString("DATABASE_URL"),
		RedisAddress:  v.GetString("REDIS_ADDRESS"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),

		JWTPrivateKeyPath:   v.GetString("JWT_PRIVATE_KEY_PATH"),
		JWTPublicKeyPath:    v.GetString("JWT_PUBLIC_KEY_PATH"),
		Issuer:              v.GetString("JWT_ISSUER"),
		Audience:            v.GetString("JWT_AUDIENCE"),
		AccessTokenTTL:      v.GetDuration("ACCESS_TOKEN_TTL"),
		RefreshTokenTTL:     v.GetDuration("REFRESH_TOKEN_TTL"),
		RefreshLedgerTTL:    v.GetDuration("REFRESH_LEDGER_TTL"),
		RotateRefreshTokens: v.GetBool("ROTATE_REFRESH_TOKENS"),

		PasswordHasher: strings.ToLower(v.GetString("PASSWORD_HASHER")),
		BcryptCost:     v.GetInt("BCRYPT_COST"),

		TOTPIssuer:    v.GetString("TOTP_ISSUER"),
		TOTPSkew:      v.GetUint("TOTP_SKEW"),
		EnrollmentTTL: v.GetDuration("ENROLLMENT_TTL"),

		ResetTokenTTL: v.GetDuration("RESET_TOKEN_TTL"),
		ResetURLBase:  strings.TrimRight(v.GetString("RESET_URL_BASE"), "/"),
		SMTPHost:      v.GetString("SMTP_HOST"),
		SMTPPort:      v.GetInt("SMTP_PORT"),
		SMTPUsername:  v.GetString("SMTP_USERNAME"),
		SMTPPassword:  v.GetString("SMTP_PASSWORD"),
		SMTPFrom:      v.GetString("SMTP_FROM"),

		GoogleClientID:      v.GetString("GOOGLE_CLIENT_ID"),
		TelegramBotToken:    v.GetString("TELEGRAM_BOT_TOKEN"),
		TelegramInitDataTTL: v.GetDuration("TELEGRAM_INIT_DATA_TTL"),

		CookieDomain:     v.GetString("COOKIE_DOMAIN"),
		CookieSecure:     v.GetBool("COOKIE_SECURE"),
		AllowedOrigins:   splitList(v.GetString("ALLOWED_ORIGINS")),
		AllowCredentials: v.GetBool("ALLOW_CREDENTIALS"),

		RateLimitRPS:   v.GetFloat64("RATE_LIMIT_RPS"),
		RateLimitBurst: v.GetInt("RATE_LIMIT_BURST"),

		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 || c.RefreshLedgerTTL <= 0 {
		return fmt.Errorf("token TTLs must be positive")
	}
	if c.TOTPSkew < 1 {
		return fmt.Errorf("TOTP_SKEW must be at least 1")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		return fmt.Errorf("rate limit must be positive")
	}
	switch c.PasswordHasher {
	case "bcrypt", "argon2id":
	default:
		return fmt.Errorf("unknown PASSWORD_HASHER %q", c.PasswordHasher)
	}
	return nil
}

// splitList accepts "a,b" as well as a JSON-ish `["a","b"]`.
func splitList(raw string) []string {
	raw = strings.Trim(strings.TrimSpace(raw), "[]")
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.Trim(strings.TrimSpace(part), `"`)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
