package config

import (
	"os"
	"path/filepath"
	"sync"
	"time"
)

type Config struct {
	LogLevel       string
	DataDir        string
	HistoryDBPath  string
	PatternsPath   string
	AttemptTimeout time.Duration
	SettleDelay    time.Duration
	KeystrokeDelay time.Duration
	Cooldown       time.Duration
	BufferCap      int
	EventsAddr     string
}

var (
	cacheTTL   = 10 * time.Second
	nowFunc    = time.Now
	cacheMu    sync.RWMutex
	cachedCfg  Config
	cachedAt   time.Time
	cacheValid bool
)

func LoadConfig() Config {
	cfg := loadFromEnv()
	cacheMu.Lock()
	cachedCfg = cfg
	cachedAt = nowFunc()
	cacheValid = true
	cacheMu.Unlock()
	return cfg
}

func GetConfig() *Config {
	now := nowFunc()
	cacheMu.RLock()
	valid := cacheValid && now.Sub(cachedAt) < cacheTTL
	if valid {
		out := cachedCfg
		cacheMu.RUnlock()
		return &out
	}
	cacheMu.RUnlock()

	cfg := loadFromEnv()
	cacheMu.Lock()
	cachedCfg = cfg
	cachedAt = now
	cacheValid = true
	cacheMu.Unlock()

	out := cfg
	return &out
}

func loadFromEnv() Config {
	level := os.Getenv("HEADLESSRUN_LOG_LEVEL")
	if level == "" {
		level = "info"
	}

	dataDir := os.Getenv("HEADLESSRUN_DATA_DIR")
	if dataDir == "" {
		dataDir = defaultDataDir()
	}

	timeout := durationOrDefault(os.Getenv("HEADLESSRUN_ATTEMPT_TIMEOUT"), 5*time.Minute)
	settle := durationOrDefault(os.Getenv("HEADLESSRUN_SETTLE_DELAY"), 500*time.Millisecond)
	keystroke := durationOrDefault(os.Getenv("HEADLESSRUN_KEYSTROKE_DELAY"), 75*time.Millisecond)
	cooldown := durationOrDefault(os.Getenv("HEADLESSRUN_COOLDOWN"), 750*time.Millisecond)

	bufferCap := atoiOrDefault(os.Getenv("HEADLESSRUN_BUFFER_CAP"), 1000)
	if bufferCap < 1 {
		bufferCap = 1000
	}

	eventsAddr := os.Getenv("HEADLESSRUN_EVENTS_ADDR")

	return Config{
		LogLevel:       level,
		DataDir:        dataDir,
		HistoryDBPath:  filepath.Join(dataDir, "history.db"),
		PatternsPath:   filepath.Join(dataDir, "patterns.toml"),
		AttemptTimeout: timeout,
		SettleDelay:    settle,
		KeystrokeDelay: keystroke,
		Cooldown:       cooldown,
		BufferCap:      bufferCap,
		EventsAddr:     eventsAddr,
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Clean(".headlessrun")
	}
	return filepath.Join(home, ".headlessrun")
}

func durationOrDefault(v string, fallback time.Duration) time.Duration {
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func atoiOrDefault(v string, fallback int) int {
	n := 0
	for i := 0; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			return fallback
		}
		n = n*10 + int(v[i]-'0')
	}
	if n == 0 {
		return fallback
	}
	return n
}
