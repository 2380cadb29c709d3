package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Address                   string
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		AuthRateLimit             float64 // requests per second on un-authed auth endpoints
	}

	DatabaseConfig struct {
		Engine        string // postgres | sqlite
		Host          string
		Port          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Name          string
		DisableTLS    bool
		SQLitePath    string
	}

	EmailConfig struct {
		Provider        string // console | brevo | sendgrid
		BrevoAPIKey     string
		BrevoTemplateID int64
		SendgridAPIKey  string
	}

	AIConfig struct {
		APIKey           string
		PlannerModel     string
		WriterModel      string
		ExtractionModel  string
		RequestTimeout   time.Duration
		FailureThreshold uint32
		OpenTimeout      time.Duration
	}

	BillingConfig struct {
		StripeSecretKey     string
		StripeWebhookSecret string
		Prices              map[string]string // tier -> Stripe price ID
	}

	SchedulerConfig struct {
		Enabled      bool
		Spec         string // cron spec
		LockBackend  string // file | redis
		LockPath     string
		LockTimeout  time.Duration
		LockTTL      time.Duration
		RedisAddress string
		RedisDB      int
	}

	Config struct {
		Env                       string
		Build                     string
		Debug                     bool
		TestMode                  bool
		AppName                   string
		SecretKey                 string
		DefaultFromEmail          mail.Address
		FrontendBaseURL           string
		RollbarToken              string
		PasswordResetTimeoutDelta time.Duration

		Server    ServerConfig
		Database  DatabaseConfig
		Email     EmailConfig
		AI        AIConfig
		Billing   BillingConfig
		Scheduler SchedulerConfig
	}
)

// Address returns the "host:port" of the database server.
func (dc DatabaseConfig) Address() string {
	return net.JoinHostPort(dc.Host, dc.Port)
}

// FrontendURL joins the frontend base URL and the given path.
func (c *Config) FrontendURL(path string) string {
	return strings.TrimRight(c.FrontendBaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)

	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Memoraid")
	v.SetDefault("secretKey", "x8$kq2-w!g7vz@1c^n0p(e)r4m+u9t#j_hs5dyb=fa6l3oi")
	v.SetDefault("defaultFromEmail", "Memoraid <no-reply@mynewsletterai.com>")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 30*24*time.Hour)
	v.SetDefault("server.authRateLimit", 5.0)

	v.SetDefault("database.engine", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "memoraid")
	v.SetDefault("database.password", "memoraid")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.name", "memoraid")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.sqlitePath", "newsletter.db")

	v.SetDefault("email.provider", "console")
	v.SetDefault("email.brevoAPIKey", "")
	v.SetDefault("email.brevoTemplateID", int64(0))
	v.SetDefault("email.sendgridAPIKey", "")

	v.SetDefault("ai.apiKey", "")
	v.SetDefault("ai.plannerModel", "gpt-4")
	v.SetDefault("ai.writerModel", "gpt-4")
	v.SetDefault("ai.extractionModel", "gpt-4o")
	v.SetDefault("ai.requestTimeout", 2*time.Minute)
	v.SetDefault("ai.failureThreshold", uint32(5))
	v.SetDefault("ai.openTimeout", time.Minute)

	v.SetDefault("billing.stripeSecretKey", "")
	v.SetDefault("billing.stripeWebhookSecret", "")
	v.SetDefault("billing.prices.plus", "")
	v.SetDefault("billing.prices.pro", "")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.spec", "@every 1m")
	v.SetDefault("scheduler.lockBackend", "file")
	v.SetDefault("scheduler.lockPath", "send_scheduler.lock")
	v.SetDefault("scheduler.lockTimeout", time.Second)
	v.SetDefault("scheduler.lockTTL", 10*time.Minute)
	v.SetDefault("scheduler.redisAddress", "localhost:6379")
	v.SetDefault("scheduler.redisDB", 0)
}

// wellKnownEnv binds provider secrets to their conventional (unprefixed) env names.
var wellKnownEnv = map[string]string{
	"secretKey":                   "SECRET_KEY",
	"rollbarToken":                "ROLLBAR_TOKEN",
	"ai.apiKey":                   "OPENAI_API_KEY",
	"email.brevoAPIKey":           "BREVO_API_KEY",
	"email.brevoTemplateID":       "BREVO_TEMPLATE_ID",
	"email.sendgridAPIKey":        "SENDGRID_API_KEY",
	"billing.stripeSecretKey":     "STRIPE_SECRET_KEY",
	"billing.stripeWebhookSecret": "STRIPE_WEBHOOK_SECRET",
	"billing.prices.plus":         "STRIPE_PRICE_PLUS",
	"billing.prices.pro":          "STRIPE_PRICE_PRO",
}

// NewConfig loads the app configuration: defaults < config/.env.<env> < environment.
// ENV selects the environment: DEV (local; default), TEST, QA, PROD.
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()
	for key, name := range wellKnownEnv {
		_ = v.BindEnv(key, strings.ToUpper(env+"_"+strings.ReplaceAll(key, ".", "_")), name)
	}

	conf, err := configFromViper(v, env)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return conf
}

func configFromViper(v *viper.Viper, env string) (*Config, error) {
	from, err := mail.ParseAddress(v.GetString("defaultFromEmail"))
	if err != nil {
		return nil, fmt.Errorf("parsing defaultFromEmail: %w", err)
	}

	return &Config{
		Env:                       env,
		Build:                     v.GetString("build"),
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		AppName:                   v.GetString("appName"),
		SecretKey:                 v.GetString("secretKey"),
		DefaultFromEmail:          *from,
		FrontendBaseURL:           v.GetString("frontendBaseURL"),
		RollbarToken:              v.GetString("rollbarToken"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		Server: ServerConfig{
			Address:                   v.GetString("server.address"),
			Host:                      v.GetString("server.host"),
			DebugHost:                 v.GetString("server.debugHost"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			AuthRateLimit:             v.GetFloat64("server.authRateLimit"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			Name:          v.GetString("database.name"),
			DisableTLS:    v.GetBool("database.disableTLS"),
			SQLitePath:    v.GetString("database.sqlitePath"),
		},
		Email: EmailConfig{
			Provider:        strings.ToLower(v.GetString("email.provider")),
			BrevoAPIKey:     v.GetString("email.brevoAPIKey"),
			BrevoTemplateID: v.GetInt64("email.brevoTemplateID"),
			SendgridAPIKey:  v.GetString("email.sendgridAPIKey"),
		},
		AI: AIConfig{
			APIKey:           v.GetString("ai.apiKey"),
			PlannerModel:     v.GetString("ai.plannerModel"),
			WriterModel:      v.GetString("ai.writerModel"),
			ExtractionModel:  v.GetString("ai.extractionModel"),
			RequestTimeout:   v.GetDuration("ai.requestTimeout"),
			FailureThreshold: v.GetUint32("ai.failureThreshold"),
			OpenTimeout:      v.GetDuration("ai.openTimeout"),
		},
		Billing: BillingConfig{
			StripeSecretKey:     v.GetString("billing.stripeSecretKey"),
			StripeWebhookSecret: v.GetString("billing.stripeWebhookSecret"),
			Prices: map[string]string{
				"plus": v.GetString("billing.prices.plus"),
				"pro":  v.GetString("billing.prices.pro"),
			},
		},
		Scheduler: SchedulerConfig{
			Enabled:      v.GetBool("scheduler.enabled"),
			Spec:         v.GetString("scheduler.spec"),
			LockBackend:  strings.ToLower(v.GetString("scheduler.lockBackend")),
			LockPath:     v.GetString("scheduler.lockPath"),
			LockTimeout:  v.GetDuration("scheduler.lockTimeout"),
			LockTTL:      v.GetDuration("scheduler.lockTTL"),
			RedisAddress: v.GetString("scheduler.redisAddress"),
			RedisDB:      v.GetInt("scheduler.redisDB"),
		},
	}, nil
}

// NewTestConfig returns the defaults with test mode on, ignoring the environment.
func NewTestConfig() *Config {
	v := viper.New()
	setDefaults(v)
	v.Set("testMode", true)
	v.Set("debug", false)
	v.Set("secretKey", "secret")
	conf, err := configFromViper(v, "TEST")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return conf
}
