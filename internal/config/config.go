package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Tracker listener.
	TCPAddr          string
	LoginTimeout     time.Duration
	IdleTimeout      time.Duration
	CommandTimeout   time.Duration
	MaxFramingErrors int
	MinSatellites    int

	// Storage.
	MongoURI      string
	MongoDatabase string
	RedisURL      string

	// Integrations.
	MQTTBroker      string
	MQTTClientID    string
	GeocoderBaseURL string

	// Logging.
	LogLevel  string
	LogFormat string
}

func LoadConfig() *Config {
	return &Config{
		TCPAddr:          getEnv("TCP_ADDR", ":5023"),
		LoginTimeout:     getDuration("LOGIN_TIMEOUT", 30*time.Second),
		IdleTimeout:      getDuration("IDLE_TIMEOUT", 5*time.Minute),
		CommandTimeout:   getDuration("COMMAND_TIMEOUT", 30*time.Second),
		MaxFramingErrors: getInt("MAX_FRAMING_ERRORS", 5),
		MinSatellites:    getInt("MIN_SATELLITES", 3),
		MongoURI:         getEnv("MONGODB_URI", ""),
		MongoDatabase:    getEnv("MONGODB_DATABASE", "fleettrack"),
		RedisURL:         getEnv("REDIS_URL", ""),
		MQTTBroker:       getEnv("MQTT_BROKER", ""),
		MQTTClientID:     getEnv("MQTT_CLIENT_ID", "fleettrack-server"),
		GeocoderBaseURL:  getEnv("GEOCODER_BASE_URL", ""),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "json"),
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return strings.TrimSpace(value)
}

func getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return n
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return d
}
