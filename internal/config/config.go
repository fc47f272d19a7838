// Package config provides environment configuration for the sync daemon.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Realtime transports.
const (
	TransportWebSocket = "websocket"
	TransportNATS      = "nats"
)

// Config holds all configuration for the application.
type Config struct {
	// Local API settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	AllowedOrigins     []string

	// Session settings
	SessionToken string
	JWTSecret    string

	// Backend REST settings
	BackendURL          string
	BackendTimeout      time.Duration
	BackendRateLimit    float64
	BackendBurst        int
	BatchUnreadCounts   bool
	UnreadFetchParallel int

	// Realtime settings
	RealtimeTransport string
	RealtimeURL       string
	ReconnectInitial  time.Duration
	ReconnectMax      time.Duration

	// NATS settings
	NATSURL           string
	NATSCAFile        string
	NATSCertFile      string
	NATSKeyFile       string
	NATSToken         string
	NATSSubjectPrefix string

	// Messaging settings
	PageSize           int
	DedupWindow        time.Duration
	SendTimeout        time.Duration
	MaxAttachmentBytes int64

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	Env      string
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Local API
		ServerPort:         getEnv("PORT", "8090"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 0),
		AllowedOrigins:     getListEnv("ALLOWED_ORIGINS", []string{"http://localhost:*"}),

		// Session
		SessionToken: getEnv("SESSION_TOKEN", ""),
		JWTSecret:    getEnv("JWT_SECRET", "development-secret-change-in-production"),

		// Backend
		BackendURL:          getEnv("BACKEND_URL", "http://localhost:5000/api"),
		BackendTimeout:      getDurationEnv("BACKEND_TIMEOUT", 15*time.Second),
		BackendRateLimit:    getFloatEnv("BACKEND_RATE_LIMIT", 20),
		BackendBurst:        getIntEnv("BACKEND_BURST", 10),
		BatchUnreadCounts:   getBoolEnv("BACKEND_BATCH_UNREAD", false),
		UnreadFetchParallel: getIntEnv("UNREAD_FETCH_PARALLEL", 4),

		// Realtime
		RealtimeTransport: strings.ToLower(getEnv("REALTIME_TRANSPORT", TransportWebSocket)),
		RealtimeURL:       getEnv("REALTIME_URL", "ws://localhost:5000/ws"),
		ReconnectInitial:  getDurationEnv("RECONNECT_INITIAL", 500*time.Millisecond),
		ReconnectMax:      getDurationEnv("RECONNECT_MAX", 30*time.Second),

		// NATS
		NATSURL:           getEnv("NATS_URL", "nats://localhost:4222"),
		NATSCAFile:        getEnv("NATS_CA_FILE", ""),
		NATSCertFile:      getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:       getEnv("NATS_KEY_FILE", ""),
		NATSToken:         getEnv("NATS_TOKEN", ""),
		NATSSubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "chat"),

		// Messaging
		PageSize:           getIntEnv("PAGE_SIZE", 20),
		DedupWindow:        getDurationEnv("DEDUP_WINDOW", 60*time.Second),
		SendTimeout:        getDurationEnv("SEND_TIMEOUT", 2*time.Minute),
		MaxAttachmentBytes: int64(getIntEnv("MAX_ATTACHMENT_BYTES", 5*1024*1024)),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		Env:      getEnv("ENV", "production"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

// Validate checks settings that have no usable default.
func (c *Config) Validate() error {
	if c.SessionToken == "" {
		return fmt.Errorf("SESSION_TOKEN is required")
	}
	switch c.RealtimeTransport {
	case TransportWebSocket, TransportNATS:
	default:
		return fmt.Errorf("unknown REALTIME_TRANSPORT %q", c.RealtimeTransport)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("PAGE_SIZE must be positive")
	}
	if c.MaxAttachmentBytes <= 0 {
		return fmt.Errorf("MAX_ATTACHMENT_BYTES must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
