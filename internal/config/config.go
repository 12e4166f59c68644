package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"LeadDesk/internal/constants"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverSupabase = "supabase"
)

// Config holds every setting read from the environment.
type Config struct {
	Port      string
	AppEnv    string
	LogLevel  string
	LogFormat string

	StoreDriver  string
	DatabaseURL  string
	AutoMigrate  bool
	StoreTimeout time.Duration

	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseJWTSecret  string

	TelegramToken string
	AdminChatID   int64

	ProgramsFile string
	Programs     []string

	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int

	// Parsed from DATABASE_URL, for log lines only.
	DBHost string
	DBName string
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// LoadConfig reads the environment. Missing optional settings fall back to
// defaults with a warning; only settings the chosen store needs are fatal.
func LoadConfig(log logrus.FieldLogger) (*Config, error) {
	cfg := &Config{
		Port:               getenv("PORT", "8080"),
		AppEnv:             getenv("ENV", "production"),
		LogLevel:           getenv("LOG_LEVEL", "info"),
		LogFormat:          getenv("LOG_FORMAT", "text"),
		StoreDriver:        strings.ToLower(getenv("STORE_DRIVER", StoreDriverPostgres)),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		SupabaseURL:        os.Getenv("SUPABASE_URL"),
		SupabaseServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),
		SupabaseJWTSecret:  os.Getenv("SUPABASE_JWT_SECRET"),
		TelegramToken:      os.Getenv("TELEGRAM_APITOKEN"),
		ProgramsFile:       os.Getenv("PROGRAMS_FILE"),
		StoreTimeout:       constants.DEFAULT_STORE_TIMEOUT,
		RateLimitRPS:       1,
		RateLimitBurst:     5,
		Programs:           constants.DefaultPrograms,
	}

	var err error
	if v := os.Getenv("AUTO_MIGRATE"); v != "" {
		cfg.AutoMigrate, err = strconv.ParseBool(v)
		if err != nil {
			log.Warnf("AUTO_MIGRATE=%q is not a boolean, migrations disabled", v)
			cfg.AutoMigrate = false
		}
	}

	if v := os.Getenv("STORE_TIMEOUT"); v != "" {
		d, errParse := time.ParseDuration(v)
		if errParse != nil || d <= 0 {
			log.Warnf("STORE_TIMEOUT=%q is invalid, using %s", v, constants.DEFAULT_STORE_TIMEOUT)
		} else {
			cfg.StoreTimeout = d
		}
	}

	if v := os.Getenv("ADMIN_CHAT_ID"); v != "" {
		cfg.AdminChatID, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			log.Warnf("ADMIN_CHAT_ID=%q is not a number, admin notifications disabled", v)
			cfg.AdminChatID = 0
		}
	}
	if cfg.TelegramToken == "" || cfg.AdminChatID == 0 {
		log.Warn("TELEGRAM_APITOKEN or ADMIN_CHAT_ID not set, admin notifications disabled")
	}

	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		rps, errParse := strconv.ParseFloat(v, 64)
		if errParse != nil || rps <= 0 {
			log.Warnf("RATE_LIMIT_RPS=%q is invalid, using %.0f", v, cfg.RateLimitRPS)
		} else {
			cfg.RateLimitRPS = rps
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		burst, errParse := strconv.Atoi(v)
		if errParse != nil || burst <= 0 {
			log.Warnf("RATE_LIMIT_BURST=%q is invalid, using %d", v, cfg.RateLimitBurst)
		} else {
			cfg.RateLimitBurst = burst
		}
	}

	cfg.CORSAllowedOrigins = splitList(getenv("CORS_ALLOWED_ORIGINS", "https://*,http://*"))

	if cfg.SupabaseJWTSecret == "" {
		log.Warn("SUPABASE_JWT_SECRET not set, every authenticated request will be rejected")
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for STORE_DRIVER=postgres")
		}
		parsedURL, parseErr := url.Parse(cfg.DatabaseURL)
		if parseErr != nil {
			return nil, fmt.Errorf("parse DATABASE_URL: %w", parseErr)
		}
		cfg.DBHost = parsedURL.Hostname()
		cfg.DBName = strings.TrimPrefix(parsedURL.Path, "/")
	case StoreDriverSupabase:
		if cfg.SupabaseURL == "" || cfg.SupabaseServiceKey == "" {
			return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required for STORE_DRIVER=supabase")
		}
		if cfg.AutoMigrate {
			log.Warn("AUTO_MIGRATE is ignored for STORE_DRIVER=supabase")
			cfg.AutoMigrate = false
		}
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	if cfg.ProgramsFile != "" {
		programs, errLoad := LoadPrograms(cfg.ProgramsFile)
		if errLoad != nil {
			return nil, errLoad
		}
		cfg.Programs = programs
	}

	log.WithFields(logrus.Fields{
		"env":          cfg.AppEnv,
		"store_driver": cfg.StoreDriver,
		"db_host":      cfg.DBHost,
		"programs":     len(cfg.Programs),
	}).Info("configuration loaded")
	return cfg, nil
}

// IsDev reports whether ENV selects development mode.
func (c *Config) IsDev() bool {
	return c.AppEnv == "dev" || c.AppEnv == "development"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

type programsFile struct {
	Programs []string `yaml:"programs"`
}

// LoadPrograms reads the program catalog from a YAML file of the form
// "programs: [a, b]". Blank and duplicate names are dropped.
func LoadPrograms(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read programs file: %w", err)
	}
	var pf programsFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return nil, fmt.Errorf("parse programs file %s: %w", path, err)
	}

	seen := make(map[string]bool, len(pf.Programs))
	var programs []string
	for _, p := range pf.Programs {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		programs = append(programs, p)
	}
	if len(programs) == 0 {
		return nil, fmt.Errorf("programs file %s lists no programs", path)
	}
	return programs, nil
}
