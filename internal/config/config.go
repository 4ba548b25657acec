package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

// Config is built once at process start and passed by reference into
// every component that needs it. No other code reads the environment.
type Config struct {
	Port       int           `mapstructure:"PORT"`
	Mode       string        `mapstructure:"MODE"`
	MongoURI   string        `mapstructure:"MONGO_URI"`
	MongoDB    string        `mapstructure:"MONGO_DB"`
	JWTSecret  string        `mapstructure:"JWT_SECRET"`
	JWTExpiry  time.Duration `mapstructure:"JWT_EXPIRY"`
	CORSOrigin string        `mapstructure:"CORS_ORIGIN"`
	NATSURL    string        `mapstructure:"NATS_URL"`

	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom     string `mapstructure:"SMTP_FROM"`
	SMTPSender   string `mapstructure:"SMTP_SENDER_NAME"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set default values
	viper.SetDefault("PORT", 3000)
	viper.SetDefault("MODE", ModeDevelopment)
	viper.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	viper.SetDefault("MONGO_DB", "account_service")
	viper.SetDefault("JWT_SECRET", "your-secret-key")
	viper.SetDefault("JWT_EXPIRY", "168h")
	viper.SetDefault("CORS_ORIGIN", "http://localhost:5173")
	viper.SetDefault("NATS_URL", "")
	viper.SetDefault("SMTP_HOST", "")
	viper.SetDefault("SMTP_PORT", 587)
	viper.SetDefault("SMTP_FROM", "no-reply@localhost")
	viper.SetDefault("SMTP_SENDER_NAME", "Account Service")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// IsProduction controls the cookie Secure flag and whether error detail
// is exposed in responses.
func (c *Config) IsProduction() bool {
	return c.Mode == ModeProduction
}
