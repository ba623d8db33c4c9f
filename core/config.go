package core

import (
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string        `mapstructure:"host"`
		Address                   string        `mapstructure:"address"`
		DebugAddress              string        `mapstructure:"debugaddress"`
		AvatarsDir                string        `mapstructure:"avatarsdir"`
		JWTExpirationDelta        time.Duration `mapstructure:"jwtexpirationdelta"`
		JWTRefreshExpirationDelta time.Duration `mapstructure:"jwtrefreshexpirationdelta"`
		ShutdownTimeout           time.Duration `mapstructure:"shutdowntimeout"`
	}

	DatabaseConfig struct {
		Engine        string `mapstructure:"engine"` // postgres | sqlite3 | inmem
		Host          string `mapstructure:"host"`
		Port          string `mapstructure:"port"`
		Name          string `mapstructure:"name"`
		User          string `mapstructure:"user"`
		Password      string `mapstructure:"password"`
		AdminUser     string `mapstructure:"adminuser"`
		AdminPassword string `mapstructure:"adminpassword"`
		DisableTLS    bool   `mapstructure:"disabletls"`
		Path          string `mapstructure:"path"` // sqlite3 only
	}

	LogConfig struct {
		File       string `mapstructure:"file"`
		MaxSize    int    `mapstructure:"maxsize"` // megabytes
		MaxBackups int    `mapstructure:"maxbackups"`
		MaxAge     int    `mapstructure:"maxage"` // days
	}

	Config struct {
		Env          string         `mapstructure:"env"`
		Build        string         `mapstructure:"build"`
		AppName      string         `mapstructure:"appname"`
		Debug        bool           `mapstructure:"debug"`
		TestMode     bool           `mapstructure:"testmode"`
		SecretKey    string         `mapstructure:"secretkey"`
		RollbarToken string         `mapstructure:"rollbartoken"`
		Server       ServerConfig   `mapstructure:"server"`
		Database     DatabaseConfig `mapstructure:"database"`
		Log          LogConfig      `mapstructure:"log"`
	}
)

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, db.Port)
}

// NewConfig loads the configuration for the current ENV (DEV by default).
// Values come from, in increasing priority: defaults, config/.env.<env>, <ENV>_* environment variables.
func NewConfig() *Config {
	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}

	v := viper.New()
	v.SetTypeByDefaultValue(true)
	setDefaults(v, env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}

	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	conf := new(Config)
	if err := v.Unmarshal(conf); err != nil {
		log.Fatalf("config.Unmarshal: %v", err)
	}
	conf.Env = env
	return conf
}

func setDefaults(v *viper.Viper, env string) {
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Compiti")
	v.SetDefault("debug", env == "DEV")
	v.SetDefault("testMode", env == "TEST")
	v.SetDefault("secretKey", "n0t-s0-s3cr3t!dev-only$k7(h@x2w+e9=p1")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":3001")
	v.SetDefault("server.debugAddress", ":4001")
	v.SetDefault("server.avatarsDir", filepath.Join("assets", "avatars"))
	v.SetDefault("server.jwtExpirationDelta", 24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)

	v.SetDefault("database.engine", "sqlite3")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "compiti")
	v.SetDefault("database.user", "compiti")
	v.SetDefault("database.password", "compiti")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", env == "DEV" || env == "TEST")
	v.SetDefault("database.path", filepath.Join("data", "compiti.sqlite"))

	v.SetDefault("log.file", "")
	v.SetDefault("log.maxSize", 10)
	v.SetDefault("log.maxBackups", 3)
	v.SetDefault("log.maxAge", 28)
}
