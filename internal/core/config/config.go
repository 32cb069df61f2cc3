package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type InvalidationCfg struct {
	Enabled bool
	Topic   string
	Brokers string
	GroupID string
}

type S3Cfg struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

type Config struct {
	Addr               string
	LogLevel           string
	LogConsole         bool
	LogSampleN         int
	DataSource         string
	DataDir            string
	DataBaseURL        string
	S3                 S3Cfg
	CatalogFile        string
	CityBBox           string
	CityCenter         string
	SubstituteFallback bool
	LoadWorkers        int
	LoadTimeout        time.Duration
	CacheSize          int
	CacheTTL           time.Duration
	RedisAddr          string
	RedisCacheEnabled  bool
	RedisCacheTTL      time.Duration
	RedisOpTimeout     time.Duration
	PrefsStore         string
	H3Res              int
	MetricsEnabled     bool
	ShutdownTimeout    time.Duration
	Invalidation       InvalidationCfg
}

// LoadDotEnv reads the given .env files (or ./.env) into the process env.
// Variables already set win; missing files are ignored.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		_ = godotenv.Load(f)
	}
}

func FromEnv() Config {
	res := getint("H3_RES", 8)
	if res < 5 {
		res = 5
	}
	if res > 10 {
		res = 10
	}

	workers := getint("LOAD_WORKERS", 4)
	if workers < 1 {
		workers = 1
	}

	return Config{
		Addr:               getenv("ADDR", ":8090"),
		LogLevel:           getenv("LOG_LEVEL", "info"),
		LogConsole:         getbool("LOG_CONSOLE", false),
		LogSampleN:         getint("LOG_SAMPLE_N", 0),
		DataSource:         strings.ToLower(getenv("DATA_SOURCE", "file")),
		DataDir:            getenv("DATA_DIR", "./data"),
		DataBaseURL:        getenv("DATA_BASE_URL", ""),
		CatalogFile:        getenv("CATALOG_FILE", ""),
		CityBBox:           getenv("CITY_BBOX", ""),
		CityCenter:         getenv("CITY_CENTER", ""),
		SubstituteFallback: getbool("SUBSTITUTE_FALLBACK", true),
		LoadWorkers:        workers,
		LoadTimeout:        getduration("LOAD_TIMEOUT", 30*time.Second),
		ShutdownTimeout:    getduration("SHUTDOWN_TIMEOUT", 10*time.Second),
		CacheSize:          getint("CACHE_SIZE", 32),
		CacheTTL:           getduration("CACHE_TTL", 10*time.Minute),
		RedisAddr:          getenv("REDIS_ADDR", "localhost:6379"),
		RedisCacheEnabled:  getbool("REDIS_CACHE_ENABLED", false),
		RedisCacheTTL:      getduration("REDIS_CACHE_TTL", 30*time.Minute),
		RedisOpTimeout:     getduration("REDIS_OP_TIMEOUT", 250*time.Millisecond),
		PrefsStore:         strings.ToLower(getenv("PREFS_STORE", "memory")),
		H3Res:              res,
		MetricsEnabled:     getbool("METRICS_ENABLED", true),
		S3: S3Cfg{
			Endpoint:  getenv("S3_ENDPOINT", ""),
			AccessKey: getenv("S3_ACCESS_KEY", ""),
			SecretKey: getenv("S3_SECRET_KEY", ""),
			Bucket:    getenv("S3_BUCKET", "obras-data"),
			Prefix:    getenv("S3_PREFIX", ""),
			UseSSL:    getbool("S3_USE_SSL", false),
		},
		Invalidation: InvalidationCfg{
			Enabled: getbool("INVALIDATION_ENABLED", false),
			Topic:   getenv("DATASET_TOPIC", "dataset-updates"),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			GroupID: getenv("KAFKA_GROUP_ID", "obras-dashboard"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// SplitCSV splits "a, b,,c" into [a b c].
func SplitCSV(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
