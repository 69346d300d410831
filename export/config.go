package export

import (
	"os"
	"strconv"
	"time"
)

// Config holds engine and service settings.
type Config struct {
	Host string
	Port string

	// MaxChunkSize is the chunk size fallback when a template is silent.
	MaxChunkSize int
	// MaxMemoryMB is a soft cap that sizes the large-export semaphore.
	MaxMemoryMB int
	// RequestTimeout is the per-job wall-clock deadline.
	RequestTimeout time.Duration

	// RetentionWindow is the TTL applied to new export records.
	RetentionWindow time.Duration
	// KeepRecent is the keep-last-N retention count.
	KeepRecent int
	// SweepInterval is the periodic sweeper cadence.
	SweepInterval time.Duration
	// CleanupOnStartup runs one sweep before accepting requests.
	CleanupOnStartup bool
	// CleanupOnExport runs a sweep ahead of each job.
	CleanupOnExport bool

	// StorageWarningBytes / StorageCleanupBytes are the pressure thresholds.
	StorageWarningBytes int64
	StorageCleanupBytes int64

	// MaxConcurrentExports gates all in-flight jobs; MaxConcurrentLarge
	// gates multi-strategy jobs.
	MaxConcurrentExports int
	MaxConcurrentLarge   int

	DBDriver string
	DBDSN    string
}

// Defaults returns a Config with sensible defaults.
func Defaults() Config {
	return Config{
		Host:                 "0.0.0.0",
		Port:                 "8080",
		MaxChunkSize:         5000,
		RequestTimeout:       3 * time.Minute,
		RetentionWindow:      7 * 24 * time.Hour,
		KeepRecent:           5,
		SweepInterval:        30 * time.Minute,
		CleanupOnStartup:     true,
		CleanupOnExport:      false,
		StorageWarningBytes:  256 << 20,
		StorageCleanupBytes:  512 << 20,
		MaxConcurrentExports: 20,
		MaxConcurrentLarge:   3,
	}
}

// FromEnv applies the recognized environment variables over defaults.
func FromEnv() Config {
	cfg := Defaults()

	if host := os.Getenv("HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}
	if v, ok := envInt("MAX_CHUNK_SIZE"); ok && v > 0 {
		cfg.MaxChunkSize = v
	}
	if v, ok := envInt("MAX_MEMORY_MB"); ok && v > 0 {
		cfg.MaxMemoryMB = v
		cfg.MaxConcurrentLarge = largeSlotsForMemory(v)
	}
	if v, ok := envInt("REQUEST_TIMEOUT"); ok && v > 0 {
		cfg.RequestTimeout = time.Duration(v) * time.Second
	}
	if v, ok := envInt("EXPORT_RETENTION_HOURS"); ok && v > 0 {
		cfg.RetentionWindow = time.Duration(v) * time.Hour
	}
	if v, ok := envInt("CLEANUP_KEEP_N"); ok && v > 0 {
		cfg.KeepRecent = v
	}
	if v, ok := envBool("CLEANUP_ON_STARTUP"); ok {
		cfg.CleanupOnStartup = v
	}
	if v, ok := envBool("CLEANUP_ON_EXPORT"); ok {
		cfg.CleanupOnExport = v
	}
	if v, ok := envInt("STORAGE_WARNING_MB"); ok && v > 0 {
		cfg.StorageWarningBytes = int64(v) << 20
	}
	if v, ok := envInt("STORAGE_CLEANUP_MB"); ok && v > 0 {
		cfg.StorageCleanupBytes = int64(v) << 20
	}
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		cfg.DBDriver = driver
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		cfg.DBDSN = dsn
	}

	return cfg
}

// largeSlotsForMemory budgets roughly half a GB per concurrent large export.
func largeSlotsForMemory(memoryMB int) int {
	slots := memoryMB / 512
	if slots < 1 {
		return 1
	}
	if slots > 8 {
		return 8
	}
	return slots
}

func envInt(name string) (int, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

func envBool(name string) (bool, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return false, false
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return parsed, true
}
