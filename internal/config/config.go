package config

import (
	"os"
	"strconv"
	"strings"
)

// Default configuration values
const (
	DefaultRedisAddr = "127.0.0.1:6379"
	DefaultNamespace = "local"
	DefaultSTUN      = "stun:stun.l.google.com:19302,stun:stun1.l.google.com:19302"
)

// Config holds application configuration
type Config struct {
	// RedisAddr is the address of the Redis instance backing the signaling store
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Namespace scopes every signaling key to one account so two accounts
	// never collide on the same room code
	Namespace string

	// STUNServers for WebRTC ICE (STUN only, no TURN)
	STUNServers []string

	// OutputDir is where received files are written; empty means cwd
	OutputDir string

	// DeviceName overrides the auto-detected presence name
	DeviceName string
}

// Options for loading config with CLI flag overrides
type Options struct {
	RedisAddr     string
	RedisPassword string
	Namespace     string
	STUNServers   string
	OutputDir     string
	DeviceName    string
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	redisAddr := firstNonEmpty(opts.RedisAddr, os.Getenv("BEAMDROP_REDIS_ADDR"), DefaultRedisAddr)
	redisPassword := firstNonEmpty(opts.RedisPassword, os.Getenv("BEAMDROP_REDIS_PASSWORD"))
	namespace := firstNonEmpty(opts.Namespace, os.Getenv("BEAMDROP_NAMESPACE"), DefaultNamespace)
	stun := firstNonEmpty(opts.STUNServers, os.Getenv("BEAMDROP_STUN_SERVERS"), DefaultSTUN)
	outputDir := firstNonEmpty(opts.OutputDir, os.Getenv("BEAMDROP_OUTPUT_DIR"))
	deviceName := firstNonEmpty(opts.DeviceName, os.Getenv("BEAMDROP_DEVICE_NAME"))

	redisDB := 0
	if v := os.Getenv("BEAMDROP_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			redisDB = n
		}
	}

	return &Config{
		RedisAddr:     redisAddr,
		RedisPassword: redisPassword,
		RedisDB:       redisDB,
		Namespace:     namespace,
		STUNServers:   splitServers(stun),
		OutputDir:     outputDir,
		DeviceName:    deviceName,
	}, nil
}

// GetSTUNServers returns STUN server URLs for the ICE configuration
func (c *Config) GetSTUNServers() []string {
	return c.STUNServers
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func splitServers(s string) []string {
	parts := strings.Split(s, ",")
	servers := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			servers = append(servers, trimmed)
		}
	}
	return servers
}
