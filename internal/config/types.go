// Package config resolves the effective PostgreSQL connection configuration
// for pgtool.
//
// Three sources contribute a possibly partial ConnectionConfig: a TOML or
// YAML file, PGTOOL_* environment variables and command-line flags. Resolve
// folds them in that order; a later source overrides only the fields it set
// and option maps merge key by key.
package config

import (
	"log/slog"
	"maps"
	"strconv"
)

// ConnectionConfig holds the parameters needed to open a connection.
// Nil scalar fields are unset. When DSN is set it wins over every discrete
// field.
type ConnectionConfig struct {
	DSN      *string
	Host     *string
	Port     *int
	User     *string
	Password *string
	Database *string

	// Options are extra driver parameters such as sslmode or
	// application_name.
	Options map[string]string
}

// rawConfig is the decoding target shared by every koanf source.
type rawConfig struct {
	DSN      *string           `koanf:"dsn"`
	Host     *string           `koanf:"host"`
	Port     *int              `koanf:"port"`
	User     *string           `koanf:"user"`
	Password *string           `koanf:"password"`
	Database *string           `koanf:"database"`
	DBName   *string           `koanf:"dbname"`
	Options  map[string]string `koanf:"options"`
}

// toConnectionConfig normalizes a decoded source: empty strings and a zero
// port count as unset, and dbname is accepted as an alias of database.
func (r rawConfig) toConnectionConfig() ConnectionConfig {
	database := r.Database
	if nonEmpty(database) == nil {
		database = r.DBName
	}
	cfg := ConnectionConfig{
		DSN:      nonEmpty(r.DSN),
		Host:     nonEmpty(r.Host),
		User:     nonEmpty(r.User),
		Password: nonEmpty(r.Password),
		Database: nonEmpty(database),
		Options:  make(map[string]string, len(r.Options)),
	}
	if r.Port != nil && *r.Port != 0 {
		cfg.Port = r.Port
	}
	for k, v := range r.Options {
		if k != "" {
			cfg.Options[k] = v
		}
	}
	return cfg
}

// HasDSN reports whether a connection string overrides the discrete fields.
func (c ConnectionConfig) HasDSN() bool {
	return c.DSN != nil && *c.DSN != ""
}

// Clone returns a deep copy of c.
func (c ConnectionConfig) Clone() ConnectionConfig {
	out := ConnectionConfig{
		DSN:      clonePtr(c.DSN),
		Host:     clonePtr(c.Host),
		Port:     clonePtr(c.Port),
		User:     clonePtr(c.User),
		Password: clonePtr(c.Password),
		Database: clonePtr(c.Database),
		Options:  make(map[string]string, len(c.Options)),
	}
	maps.Copy(out.Options, c.Options)
	return out
}

// Redacted returns a copy with the password masked. A DSN is masked as a
// whole because it may embed credentials.
func (c ConnectionConfig) Redacted() ConnectionConfig {
	out := c.Clone()
	if out.Password != nil {
		out.Password = String("********")
	}
	if out.HasDSN() {
		out.DSN = String("********")
	}
	if _, ok := out.Options["password"]; ok {
		out.Options["password"] = "********"
	}
	return out
}

// LogValue implements slog.LogValuer. Credentials are never included.
func (c ConnectionConfig) LogValue() slog.Value {
	if c.HasDSN() {
		return slog.GroupValue(slog.Bool("dsn", true))
	}
	attrs := []slog.Attr{
		slog.String("host", deref(c.Host)),
		slog.String("user", deref(c.User)),
		slog.String("database", deref(c.Database)),
	}
	if c.Port != nil {
		attrs = append(attrs, slog.String("port", strconv.Itoa(*c.Port)))
	}
	if len(c.Options) > 0 {
		attrs = append(attrs, slog.Int("options", len(c.Options)))
	}
	return slog.GroupValue(attrs...)
}

// String returns a pointer to s, for building configs in code.
func String(s string) *string { return &s }

// Int returns a pointer to n, for building configs in code.
func Int(n int) *int { return &n }

func nonEmpty(p *string) *string {
	if p == nil || *p == "" {
		return nil
	}
	return p
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
