package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types

	"github.com/joho/godotenv"

	"github.com/iliyamo/hall-calendar/internal/database"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Redis, cache and rate limit settings have their
// own loaders.
type Config struct {
	Env            string           // application environment (e.g. "dev", "prod")
	Port           string           // HTTP port to listen on
	DB             database.Options // driver and connection settings
	JWTSecret      string           // secret used to sign JWTs
	AccessTTLMin   int              // access token time-to-live in minutes
	RefreshTTLDays int              // refresh token time-to-live in days
	BcryptCost     int              // bcrypt cost for password hashing
	LogLevel       string           // debug, info, warn or error
	LogFormat      string           // json or text
	EventsEnabled  bool             // publish and consume booking events
	RabbitMQURL    string           // AMQP broker URL
}

// Load reads a .env file when one exists, then builds a Config from the
// environment.  Required variables are enforced by must() and missing
// values cause the program to exit with a fatal log message.  When DB_URL
// is set the individual DB_* connection variables become optional.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: ignoring .env: %v", err)
	}

	db := database.Options{
		Driver: getenv("DB_DRIVER", "mysql"),
		URL:    os.Getenv("DB_URL"),
		Pass:   os.Getenv("DB_PASS"), // empty allowed
	}
	if db.URL == "" {
		db.User = must("DB_USER")
		db.Host = must("DB_HOST")
		db.Port = must("DB_PORT")
		db.Name = must("DB_NAME")
	}

	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DB:             db,
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogFormat:      getenv("LOG_FORMAT", "json"),
		EventsEnabled:  envBool("EVENTS_ENABLED", false),
		RabbitMQURL:    getenv("RABBITMQ_URL", os.Getenv("AMQP_URL")),
	}
}

// LoadDB reads only the database settings.  The admin CLI uses it so it
// can run without the HTTP and JWT variables.
func LoadDB() database.Options {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: ignoring .env: %v", err)
	}
	o := database.Options{
		Driver: getenv("DB_DRIVER", "mysql"),
		URL:    os.Getenv("DB_URL"),
		User:   os.Getenv("DB_USER"),
		Pass:   os.Getenv("DB_PASS"),
		Host:   getenv("DB_HOST", "localhost"),
		Port:   os.Getenv("DB_PORT"),
		Name:   os.Getenv("DB_NAME"),
	}
	return o
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
