package gateway

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the gateway's environment-derived settings (spec §6
// "Gateway environment"), in the teacher's getEnv/getEnvInt style
// (cmd/main.go).
type Config struct {
	Host          string
	Port          string
	ConfigVolume  string
	RequestTimeout time.Duration

	OpenIDEnabled            bool
	OpenIDClientID           string
	OpenIDClientSecret       string
	OpenIDIssuerURL          string
	OpenIDScopes             []string
	OpenIDInsecureSkipVerify bool
	AppRootURL               string
	SessionRedisURL          string
	DemoAccount              bool
}

// LoadConfig reads SERVICE_*/OPENID_*/APP_ROOT_URL/SESSION_REDIS_URL/
// DEMO_ACCOUNT from the environment.
func LoadConfig() Config {
	return Config{
		Host:           getEnv("SERVICE_HOST", "127.0.0.1"),
		Port:           getEnv("SERVICE_PORT", "8080"),
		ConfigVolume:   getEnv("SERVICE_CONFIG_VOLUME", "/tmp"),
		RequestTimeout: time.Duration(getEnvInt("SERVICE_REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,

		OpenIDEnabled:      getEnvBool("OPENID_ENABLED", false),
		OpenIDClientID:     os.Getenv("OPENID_CLIENT_ID"),
		OpenIDClientSecret: os.Getenv("OPENID_CLIENT_SECRET"),
		OpenIDIssuerURL:    os.Getenv("OPENID_ISSUER_URL"),
		OpenIDScopes:             getEnvList("OPENID_SCOPES", []string{"openid", "profile", "email"}),
		OpenIDInsecureSkipVerify: getEnvBool("OPENID_INSECURE_SKIP_VERIFY", false),
		AppRootURL:               os.Getenv("APP_ROOT_URL"),
		SessionRedisURL:          os.Getenv("SESSION_REDIS_URL"),
		DemoAccount:              getEnvBool("DEMO_ACCOUNT", false),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
