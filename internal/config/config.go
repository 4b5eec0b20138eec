package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
)

// サポートするデータベースドライバ
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	Database DatabaseConfig

	// Identity Provider (Supabase Auth)
	SupabaseURL      string        `env:"SUPABASE_URL,required,notEmpty"`
	SupabaseAnonKey  string        `env:"SUPABASE_ANON_KEY,required,notEmpty"`
	SupabaseTimeout  time.Duration `env:"SUPABASE_TIMEOUT" envDefault:"10s"`
	IdentityCacheTTL time.Duration `env:"IDENTITY_CACHE_TTL" envDefault:"0s"`

	// Rate Limit（req/min/identity、0で無効）
	RateLimitGeneral int `env:"RATE_LIMIT_GENERAL" envDefault:"0"`
	RateLimitWrite   int `env:"RATE_LIMIT_WRITE" envDefault:"0"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Server
	ServerPort  string   `env:"SERVER_PORT" envDefault:"8080"`
	BaseURL     string   `env:"BASE_URL"`
	StaticDir   string   `env:"STATIC_DIR" envDefault:"./static"`
	PublicPaths []string `env:"PUBLIC_PATHS" envSeparator:","`

	// CORS
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN" envDefault:"http://localhost:3000"`
}

// DatabaseConfig はデータベース接続設定を保持する。
// DATABASE_URLが未設定の場合は個別の接続パラメータからDSNを組み立てる。
type DatabaseConfig struct {
	Driver   string `env:"DATABASE_DRIVER" envDefault:"postgres"`
	URL      string `env:"DATABASE_URL"`
	Host     string `env:"DB_HOST"`
	Port     string `env:"DB_PORT"`
	User     string `env:"DB_USER"`
	Password string `env:"DB_PASSWORD"`
	Name     string `env:"DB_NAME"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
}

// Load は.envファイルと環境変数からConfigを読み込む。
// .envファイルが存在しない場合は環境変数のみを使用する。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	dsn, err := cfg.Database.dsn()
	if err != nil {
		return nil, err
	}
	cfg.Database.URL = dsn

	var publicPaths []string
	for _, p := range cfg.PublicPaths {
		if p = strings.TrimSpace(p); p != "" {
			publicPaths = append(publicPaths, p)
		}
	}
	cfg.PublicPaths = publicPaths

	return cfg, nil
}

// MigrationURL はgolang-migrate用のデータベースURLを返す。
// MySQLのDSNにはスキームが含まれないため付与する。
func (d DatabaseConfig) MigrationURL() string {
	if d.Driver == DriverMySQL {
		return "mysql://" + d.URL
	}
	return d.URL
}

// dsn はドライバに応じた接続文字列を返す。
func (d DatabaseConfig) dsn() (string, error) {
	switch d.Driver {
	case DriverPostgres:
		if d.URL != "" {
			return d.URL, nil
		}
		if err := d.requireParams(); err != nil {
			return "", err
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(d.User, d.Password),
			Host:     net.JoinHostPort(d.Host, portOrDefault(d.Port, "5432")),
			Path:     "/" + d.Name,
			RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
		}
		return u.String(), nil

	case DriverMySQL:
		var mc *mysql.Config
		if d.URL != "" {
			parsed, err := mysql.ParseDSN(d.URL)
			if err != nil {
				return "", fmt.Errorf("invalid DATABASE_URL for mysql: %w", err)
			}
			mc = parsed
		} else {
			if err := d.requireParams(); err != nil {
				return "", err
			}
			mc = mysql.NewConfig()
			mc.User = d.User
			mc.Passwd = d.Password
			mc.Net = "tcp"
			mc.Addr = net.JoinHostPort(d.Host, portOrDefault(d.Port, "3306"))
			mc.DBName = d.Name
			// TiDB Cloud等はTLS必須
			if d.SSLMode != "" && d.SSLMode != "disable" {
				mc.TLSConfig = "true"
			}
		}
		// created_atをtime.Timeとして読み取るため必須
		mc.ParseTime = true
		// DATETIMEはタイムゾーンを持たないため、セッションをLoc(UTC)に揃える。
		// 明示的に指定されている場合はそれを優先する。
		if mc.Params == nil {
			mc.Params = map[string]string{}
		}
		if _, ok := mc.Params["time_zone"]; !ok {
			mc.Params["time_zone"] = "'+00:00'"
		}
		return mc.FormatDSN(), nil

	default:
		return "", fmt.Errorf("unsupported DATABASE_DRIVER: %q", d.Driver)
	}
}

// requireParams は個別接続パラメータの必須項目を検証する。
func (d DatabaseConfig) requireParams() error {
	var missing []string
	if d.Host == "" {
		missing = append(missing, "DB_HOST")
	}
	if d.User == "" {
		missing = append(missing, "DB_USER")
	}
	if d.Name == "" {
		missing = append(missing, "DB_NAME")
	}
	if len(missing) > 0 {
		return fmt.Errorf("required environment variables are not set (DATABASE_URL or %v)", missing)
	}
	return nil
}

func portOrDefault(port, defaultVal string) string {
	if port == "" {
		return defaultVal
	}
	return port
}
