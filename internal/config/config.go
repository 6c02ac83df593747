// Package config provides functionality for managing configuration options
// for the application using a JSON file, command-line flags and environment
// variables.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"
)

// Options holds the configuration values for the application.
type Options struct {
	// Port defines the server's listening address (ip:port).
	Port string `json:"server_address"`

	// DatabaseDSN holds the PostgreSQL connection string. When empty the
	// server keeps accounts in memory.
	DatabaseDSN string `json:"database_dsn"`

	// MaxOpenConns bounds the database connection pool. Zero is unbounded.
	MaxOpenConns int `json:"max_open_conns"`

	// TLSCertFile and TLSKeyFile enable HTTPS when both are set.
	TLSCertFile string `json:"tls_cert_file"`
	TLSKeyFile  string `json:"tls_key_file"`

	// LogLevel is the zap level name.
	LogLevel string `json:"log_level"`

	// HashAlgorithm is "bcrypt" or "argon2id".
	HashAlgorithm string `json:"hash_algorithm"`

	// BcryptCost is the bcrypt work factor.
	BcryptCost int `json:"bcrypt_cost"`

	// MaxConcurrentHashes bounds simultaneous password hash operations.
	// Zero means one per CPU.
	MaxConcurrentHashes int `json:"max_concurrent_hashes"`

	// LoginIdentifier is "email" or "username".
	LoginIdentifier string `json:"login_identifier"`

	// UsernameCaseSensitive treats usernames differing only in case as
	// distinct.
	UsernameCaseSensitive bool `json:"username_case_sensitive"`

	// HideConflictFields stops registration from telling which of username
	// or email is already taken.
	HideConflictFields bool `json:"hide_conflict_fields"`

	// ValidateIdentity rejects blank usernames and malformed emails.
	ValidateIdentity bool `json:"validate_identity"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout Duration `json:"shutdown_timeout"`

	// Config is the path to the Config file.
	Config string `json:"-"`
}

// Duration is a time.Duration read from JSON as a string such as "10s".
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Default returns the options used when nothing is configured.
func Default() *Options {
	return &Options{
		Port:             "localhost:8080",
		LogLevel:         "info",
		HashAlgorithm:    "bcrypt",
		BcryptCost:       12,
		LoginIdentifier:  "email",
		ValidateIdentity: true,
		ShutdownTimeout:  Duration(10 * time.Second),
		Config:           "config.json",
	}
}

// Parse parses the command-line flags and environment variables to set
// configuration values. It exits the process on invalid configuration.
func Parse() *Options {
	opts, err := Load(os.Args[1:], os.Getenv)
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	return opts
}

// Load builds Options from defaults, then the JSON config file, then
// command-line flags, then environment variables; later sources win.
func Load(args []string, getenv func(string) string) (*Options, error) {
	options := Default()

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.StringVar(&options.Port, "a", options.Port, "run on ip:port server")
	fs.StringVar(&options.DatabaseDSN, "d", options.DatabaseDSN, "db address; empty keeps accounts in memory")
	fs.IntVar(&options.MaxOpenConns, "max-open-conns", options.MaxOpenConns, "database pool size (0 = unbounded)")
	fs.StringVar(&options.Config, "config", options.Config, "path to config file")
	fs.StringVar(&options.Config, "c", options.Config, "path to config file (shorthand)")
	fs.StringVar(&options.TLSCertFile, "tls-cert", options.TLSCertFile, "TLS certificate file")
	fs.StringVar(&options.TLSKeyFile, "tls-key", options.TLSKeyFile, "TLS private key file")
	fs.StringVar(&options.LogLevel, "log-level", options.LogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&options.HashAlgorithm, "hash", options.HashAlgorithm, "password hash algorithm (bcrypt, argon2id)")
	fs.IntVar(&options.BcryptCost, "bcrypt-cost", options.BcryptCost, "bcrypt work factor")
	fs.IntVar(&options.MaxConcurrentHashes, "max-hashes", options.MaxConcurrentHashes, "concurrent password hash limit (0 = one per CPU)")
	fs.StringVar(&options.LoginIdentifier, "login-by", options.LoginIdentifier, "login identifier (email, username)")
	fs.BoolVar(&options.UsernameCaseSensitive, "username-case-sensitive", options.UsernameCaseSensitive, "treat usernames case-sensitively")
	fs.BoolVar(&options.HideConflictFields, "hide-conflicts", options.HideConflictFields, "do not reveal which identifier is taken")
	fs.BoolVar(&options.ValidateIdentity, "validate-identity", options.ValidateIdentity, "reject blank usernames and malformed emails")
	shutdown := fs.Duration("shutdown-timeout", time.Duration(options.ShutdownTimeout), "graceful shutdown timeout")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if configPath := getenv("CONFIG"); configPath != "" {
		options.Config = configPath
	}

	if options.Config != "" {
		if _, err := os.Stat(options.Config); err == nil {
			data, err := os.ReadFile(options.Config)
			if err != nil {
				return nil, fmt.Errorf("error while reading config file: %w", err)
			}
			if err := json.Unmarshal(data, options); err != nil {
				return nil, fmt.Errorf("error while parsing config file: %w", err)
			}
			// Flags given on the command line beat the file.
			*shutdown = time.Duration(options.ShutdownTimeout)
			if err := fs.Parse(args); err != nil {
				return nil, err
			}
		}
	}
	options.ShutdownTimeout = Duration(*shutdown)

	if serverAddress := getenv("SERVER_ADDRESS"); serverAddress != "" {
		options.Port = serverAddress
	}
	if dsn := getenv("DATABASE_DSN"); dsn != "" {
		options.DatabaseDSN = dsn
	}
	if level := getenv("LOG_LEVEL"); level != "" {
		options.LogLevel = level
	}

	if err := options.Validate(); err != nil {
		return nil, err
	}
	return options, nil
}

// Validate checks option values that would otherwise fail late.
func (o *Options) Validate() error {
	var errs []error
	if (o.TLSCertFile == "") != (o.TLSKeyFile == "") {
		errs = append(errs, errors.New("tls cert and key must be set together"))
	}
	switch o.HashAlgorithm {
	case "bcrypt", "argon2id":
	default:
		errs = append(errs, fmt.Errorf("unknown hash algorithm %q", o.HashAlgorithm))
	}
	switch o.LoginIdentifier {
	case "email", "username":
	default:
		errs = append(errs, fmt.Errorf("unknown login identifier %q", o.LoginIdentifier))
	}
	if o.MaxConcurrentHashes < 0 {
		errs = append(errs, errors.New("max concurrent hashes must not be negative"))
	}
	if o.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("shutdown timeout must not be negative"))
	}
	return errors.Join(errs...)
}

// TLSEnabled reports whether the server should listen with TLS.
func (o *Options) TLSEnabled() bool {
	return o.TLSCertFile != "" && o.TLSKeyFile != ""
}
