package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultServerURL = "http://localhost:8080"
	defaultLogLevel  = "info"
	defaultEnv       = "local"
	defaultConfigDir = ".flocksync"
)

type Config struct {
	Env       string `mapstructure:"app_env"`
	ServerURL string `mapstructure:"server_url"`
	LogLevel  string `mapstructure:"log_level"`
	ConfigDir string `mapstructure:"config_dir"`
	TokenPath string `mapstructure:"token_path"`
	MirrorDSN string `mapstructure:"mirror_dsn"`
}

// MustLoad reads client configuration from the environment, with an optional
// .env file for local development. Panics on invalid configuration; the CLI
// cannot do anything useful without one.
func MustLoad() *Config {
	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		envPath = "../.env"
	}
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			fmt.Printf("could not load .env file: %v\n", err)
		}
	}

	viper.AutomaticEnv()

	viper.SetDefault("APP_ENV", defaultEnv)
	viper.SetDefault("SERVER_URL", defaultServerURL)
	viper.SetDefault("LOG_LEVEL", defaultLogLevel)
	viper.SetDefault("CONFIG_DIR", defaultConfigDir)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	configDir := viper.GetString("CONFIG_DIR")
	if configDir == defaultConfigDir {
		configDir = filepath.Join(homeDir, configDir)
	}
	if err := os.MkdirAll(configDir, 0700); err != nil {
		fmt.Printf("could not create config directory: %v\n", err)
	}

	config := &Config{
		Env:       viper.GetString("APP_ENV"),
		ServerURL: viper.GetString("SERVER_URL"),
		LogLevel:  viper.GetString("LOG_LEVEL"),
		ConfigDir: configDir,
		TokenPath: filepath.Join(configDir, "session.json"),
		MirrorDSN: filepath.Join(configDir, "mirror.db"),
	}

	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("invalid configuration: %v", err))
	}
	return config
}

func (c *Config) validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url must not be empty")
	}
	return nil
}

func (c *Config) IsProd() bool { return c.Env == "prod" }
