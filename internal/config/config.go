package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr            string
		ShutdownTimeout time.Duration
	}
	Log struct {
		Level  string
		Format string
	}
	Database struct {
		Driver          string
		Path            string
		DSN             string
		MaxOpenConns    int
		MaxIdleConns    int
		ConnMaxLifetime time.Duration
	}
	Auth struct {
		Secret          string
		PreviousSecrets []string
		TokenLifetime   time.Duration
		ResetLifetime   time.Duration
		VerifyLifetime  time.Duration
	}
	Upload struct {
		TempDir string
		Tag     string
	}
	Storage struct {
		Provider      string
		Bucket        string
		KeyPrefix     string
		Region        string
		Endpoint      string
		PublicBaseURL string
		AccessKey     string
		SecretKey     string
	}
	ImageKit struct {
		PublicKey    string
		PrivateKey   string
		URLEndpoint  string
		Folder       string
		UploadPrefix string
		APIPrefix    string
	}
	AWS struct {
		Profile string
	}
	CORS struct {
		AllowOrigins []string
	}
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	// .env never overrides variables already present in the environment
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("SNAPFEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "0.0.0.0:8000")
	v.SetDefault("server.shutdowntimeout", 10*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/snapfeed.db")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.maxopenconns", 25)
	v.SetDefault("database.maxidleconns", 25)
	v.SetDefault("database.connmaxlifetime", 5*time.Minute)
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.previoussecrets", []string{})
	v.SetDefault("auth.tokenlifetime", time.Hour)
	v.SetDefault("auth.resetlifetime", time.Hour)
	v.SetDefault("auth.verifylifetime", time.Hour)
	v.SetDefault("upload.tempdir", "")
	v.SetDefault("upload.tag", "backend_upload")
	v.SetDefault("storage.provider", "s3")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.keyprefix", "uploads")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.publicbaseurl", "")
	v.SetDefault("storage.accesskey", "")
	v.SetDefault("storage.secretkey", "")
	v.SetDefault("imagekit.publickey", "")
	v.SetDefault("imagekit.privatekey", "")
	v.SetDefault("imagekit.urlendpoint", "")
	v.SetDefault("imagekit.folder", "")
	v.SetDefault("imagekit.uploadprefix", "")
	v.SetDefault("imagekit.apiprefix", "")
	v.SetDefault("aws.profile", "")
	v.SetDefault("cors.alloworigins", []string{"*"})
}

// Validate checks the settings the process cannot start without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Auth.Secret) == "" {
		return fmt.Errorf("auth secret is required")
	}
	switch c.Database.Driver {
	case "sqlite":
		if strings.TrimSpace(c.Database.Path) == "" {
			return fmt.Errorf("database path is required for sqlite")
		}
	case "postgres":
		if strings.TrimSpace(c.Database.DSN) == "" {
			return fmt.Errorf("database dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Storage.Provider {
	case "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage bucket is required")
		}
	case "imagekit":
		if c.ImageKit.PrivateKey == "" {
			return fmt.Errorf("imagekit private key is required")
		}
	default:
		return fmt.Errorf("unsupported storage provider %q", c.Storage.Provider)
	}
	return nil
}
