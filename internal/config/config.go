package config

import (
	"os"
	"strconv"
	"strings"
)

// Config findata-api（HTTP API）configuration, loaded from environment.
type Config struct {
	HTTP struct {
		Addr string
	}
	Cassandra CassandraConfig
	Redis     struct {
		Enabled  bool
		Addr     string
		Password string
		DB       int
	}
	Nasdaq struct {
		BaseURL string
		APIKey  string
	}
	Log struct {
		Level  string
		Format string
	}
}

// CassandraConfig is the cluster connection block.
type CassandraConfig struct {
	Enabled  bool
	Hosts    []string
	Port     int
	Keyspace string
	Username string
	Password string
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	// Default to true for local dev: when the cluster is unavailable the
	// service falls back to in-memory stores instead of refusing to start.
	cfg.Cassandra.Enabled = getEnv("CASSANDRA_ENABLED", "true") == "true"
	cfg.Cassandra.Hosts = splitHosts(getEnv("CASSANDRA_HOSTS", "localhost"))
	cfg.Cassandra.Port = parseInt(getEnv("CASSANDRA_PORT", "9042"), 9042)
	cfg.Cassandra.Keyspace = getEnv("CASSANDRA_KEYSPACE", "findata")
	cfg.Cassandra.Username = getEnv("CASSANDRA_USERNAME", "")
	cfg.Cassandra.Password = getEnv("CASSANDRA_PASSWORD", "")

	cfg.Redis.Enabled = getEnv("REDIS_ENABLED", "true") == "true"
	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)

	cfg.Nasdaq.BaseURL = getEnv("NASDAQ_BASE_URL", "")
	cfg.Nasdaq.APIKey = getEnv("NASDAQ_DATA_LINK_API_KEY", "")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg
}

func splitHosts(s string) []string {
	parts := strings.Split(s, ",")
	hosts := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			hosts = append(hosts, p)
		}
	}
	return hosts
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
