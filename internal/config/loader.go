package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/openhistory/journalkit/internal/db"
)

// Server holds the HTTP surface configuration.
type Server struct {
	Addr           string
	MigrationsPath string
	ExportDir      string
	AllowedOrigins []string
}

// DefaultServer returns the default server configuration.
func DefaultServer() Server {
	return Server{
		Addr:           ":8080",
		MigrationsPath: "./migrations",
		AllowedOrigins: []string{"http://localhost:3000"},
	}
}

// Load reads config.yaml from the given path, with environment overrides.
func Load(configPath string) (db.Config, Server, error) {
	dbCfg := db.DefaultConfig()
	srvCfg := DefaultServer()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()     // allow environment overrides
	v.SetEnvPrefix("DB") // map env vars like DB_HOST, DB_PORT

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found? Just log it, use defaults + env
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	if v.IsSet("database.host") {
		dbCfg.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		dbCfg.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		dbCfg.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		dbCfg.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		dbCfg.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		dbCfg.SSLMode = v.GetString("database.sslmode")
	}

	if v.IsSet("server.addr") {
		srvCfg.Addr = v.GetString("server.addr")
	}
	if v.IsSet("server.migrations_path") {
		srvCfg.MigrationsPath = v.GetString("server.migrations_path")
	}
	if v.IsSet("server.export_dir") {
		srvCfg.ExportDir = v.GetString("server.export_dir")
	}
	if v.IsSet("server.allowed_origins") {
		srvCfg.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}

	return dbCfg, srvCfg, nil
}
