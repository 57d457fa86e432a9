package core

import (
	"fmt"
	"log"
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
		Host            string
		Port            int
		DebugHost       string
		ShutdownTimeout time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	// AutomationConfig drives the periodic automation tick and the task hooks.
	AutomationConfig struct {
		TickPeriod        time.Duration
		ReminderTolerance time.Duration
		NoShowDelay       time.Duration
		NoShowTaskDue     time.Duration
		ReviewTaskDueDays int
		DebugHost         string // worker debug & metrics listener
	}

	Config struct {
		Env             string // DEV (local; default), TEST, QA, PROD
		Build           string
		Debug           bool
		TestMode        bool
		AppName         string
		WorkDir         string
		FrontendBaseURL string
		RollbarToken    string
		SendgridApiKey  string

		Server     ServerConfig
		Database   DatabaseConfig
		Automation AutomationConfig

		defaultFromEmail string
	}
)

func (conf *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(conf.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: conf.AppName, Address: "noreply@localhost"}
	}
	if addr.Name == "" {
		addr.Name = conf.AppName
	}
	return *addr
}

func (db DatabaseConfig) Address() string {
	return fmt.Sprintf("%s:%d", db.Host, db.Port)
}

func (srv ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", srv.Host, srv.Port)
}

func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Masomo Admissions")
	v.SetDefault("build", "develop")
	v.SetDefault("frontendBaseURL", "http://localhost:8080")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.debugHost", "0.0.0.0:4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "admissions")
	v.SetDefault("database.user", "admissions")
	v.SetDefault("database.password", "admissions")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("automation.tickPeriod", time.Minute)
	v.SetDefault("automation.reminderTolerance", 5*time.Minute)
	v.SetDefault("automation.noShowDelay", 24*time.Hour)
	v.SetDefault("automation.noShowTaskDue", 24*time.Hour)
	v.SetDefault("automation.reviewTaskDueDays", 2)
	v.SetDefault("automation.debugHost", "0.0.0.0:4001")

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	workDir := Getwd()
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:             env,
		Build:           v.GetString("build"),
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("testMode"),
		AppName:         v.GetString("appName"),
		WorkDir:         workDir,
		FrontendBaseURL: v.GetString("frontendBaseURL"),
		RollbarToken:    v.GetString("rollbarToken"),
		SendgridApiKey:  v.GetString("sendgridApiKey"),
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetInt("server.port"),
			DebugHost:       v.GetString("server.debugHost"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Automation: AutomationConfig{
			TickPeriod:        v.GetDuration("automation.tickPeriod"),
			ReminderTolerance: v.GetDuration("automation.reminderTolerance"),
			NoShowDelay:       v.GetDuration("automation.noShowDelay"),
			NoShowTaskDue:     v.GetDuration("automation.noShowTaskDue"),
			ReviewTaskDueDays: v.GetInt("automation.reviewTaskDueDays"),
			DebugHost:         v.GetString("automation.debugHost"),
		},
		defaultFromEmail: v.GetString("defaultFromEmail"),
	}
}
