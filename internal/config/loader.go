package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/leapstack-labs/pgtool/internal/errs"
	"github.com/spf13/pflag"
)

// DefaultEnvPrefix selects the environment variables read by LoadEnv.
const DefaultEnvPrefix = "PGTOOL_"

// envOptionPrefix marks environment variables that populate Options.
const envOptionPrefix = "option_"

// sectionName is the required top-level table of a config file.
const sectionName = "database"

// OptionFlag is the repeatable KEY=VALUE flag folded into Options.
const OptionFlag = "option"

// flagKeys maps connection flag names to config keys. Flags outside this
// map are ignored by LoadFlags.
var flagKeys = map[string]string{
	"dsn":      "dsn",
	"host":     "host",
	"port":     "port",
	"user":     "user",
	"password": "password",
	"database": "database",
	"dbname":   "database",
}

// DefaultSearchPaths returns the config files tried, in order, when no
// explicit path is given.
func DefaultSearchPaths() []string {
	paths := []string{"pgtool.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".pgtool.toml"),
			filepath.Join(home, ".config", "pgtool", "config.toml"),
		)
	}
	return paths
}

// Loader reads the individual configuration sources.
type Loader struct {
	EnvPrefix   string
	SearchPaths []string
	Logger      *slog.Logger

	fileUsed string
}

// NewLoader creates a Loader with the default prefix and search paths.
// If logger is nil, a discard logger is used.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{
		EnvPrefix:   DefaultEnvPrefix,
		SearchPaths: DefaultSearchPaths(),
		Logger:      logger,
	}
}

// Load reads every source and resolves them with precedence
// file < environment < flags.
func (l *Loader) Load(cfgFile string, flags *pflag.FlagSet) (ConnectionConfig, error) {
	fileCfg, err := l.LoadFile(cfgFile)
	if err != nil {
		return ConnectionConfig{}, err
	}
	envCfg, err := l.LoadEnv()
	if err != nil {
		return ConnectionConfig{}, err
	}
	flagCfg, err := l.LoadFlags(flags)
	if err != nil {
		return ConnectionConfig{}, err
	}

	resolved := Resolve(fileCfg, envCfg, flagCfg)
	l.Logger.Debug("resolved connection config",
		slog.String("file", l.fileUsed),
		slog.Any("config", resolved))
	return resolved, nil
}

// FileUsed returns the config file read by the last LoadFile call, if any.
func (l *Loader) FileUsed() string {
	return l.fileUsed
}

// LoadFile reads the [database] section of a config file. An explicit path
// must exist. Without one, the search paths are tried and a miss yields an
// empty config.
func (l *Loader) LoadFile(path string) (ConnectionConfig, error) {
	l.fileUsed = ""

	if path != "" {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			return ConnectionConfig{}, errs.Newf(errs.KindConfig, "config file %s does not exist", path)
		}
	} else {
		path = l.findConfigFile()
		if path == "" {
			return ConnectionConfig{Options: map[string]string{}}, nil
		}
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parserFor(path)); err != nil {
		return ConnectionConfig{}, errs.Wrap(errs.KindConfig, fmt.Sprintf("error reading config file %s", path), err)
	}

	if _, ok := k.Get(sectionName).(map[string]any); !ok {
		return ConnectionConfig{}, errs.Newf(errs.KindConfig, "config file %s is missing the [%s] section", path, sectionName)
	}

	cfg, err := l.decode(k, sectionName, "file")
	if err != nil {
		return ConnectionConfig{}, errs.Wrap(errs.KindConfig, fmt.Sprintf("invalid config file %s", path), err)
	}

	l.fileUsed = path
	l.Logger.Debug("loaded config file", slog.String("path", path))
	return cfg, nil
}

// LoadEnv reads PGTOOL_* variables. PGTOOL_OPTION_<KEY> becomes
// Options[<key>] with the key lower-cased.
func (l *Loader) LoadEnv() (ConnectionConfig, error) {
	prefix := l.EnvPrefix
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}

	k := koanf.New(".")
	if err := k.Load(env.Provider(prefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, prefix))
		if strings.HasPrefix(key, envOptionPrefix) {
			opt := strings.TrimPrefix(key, envOptionPrefix)
			if opt == "" {
				return ""
			}
			return "options." + opt
		}
		return key
	}), nil); err != nil {
		return ConnectionConfig{}, errs.Wrap(errs.KindConfig, "failed to load environment", err)
	}

	cfg, err := l.decode(k, "", "env")
	if err != nil {
		return ConnectionConfig{}, errs.Wrap(errs.KindConfig, "invalid "+prefix+"* environment", err)
	}
	return cfg, nil
}

// LoadFlags reads the connection flags that were explicitly set on the
// command line, plus every --option KEY=VALUE.
func (l *Loader) LoadFlags(flags *pflag.FlagSet) (ConnectionConfig, error) {
	if flags == nil {
		return ConnectionConfig{Options: map[string]string{}}, nil
	}

	k := koanf.New(".")
	if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
		// Only load flags that were explicitly set
		if !f.Changed {
			return "", nil
		}
		key, ok := flagKeys[f.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(flags, f)
	}), nil); err != nil {
		return ConnectionConfig{}, errs.Wrap(errs.KindConfig, "failed to load flags", err)
	}

	if f := flags.Lookup(OptionFlag); f != nil && f.Changed {
		raw, err := flags.GetStringArray(OptionFlag)
		if err != nil {
			return ConnectionConfig{}, errs.Wrap(errs.KindConfig, "failed to read --option", err)
		}
		opts, err := ParseOptions(raw)
		if err != nil {
			return ConnectionConfig{}, err
		}
		if err := k.Load(confmap.Provider(map[string]interface{}{"options": opts}, "."), nil); err != nil {
			return ConnectionConfig{}, errs.Wrap(errs.KindConfig, "failed to load options", err)
		}
	}

	return l.decode(k, "", "flags")
}

// ParseOptions turns KEY=VALUE strings into a map. Keys and values are
// trimmed; a missing '=' or an empty key is a config error.
func ParseOptions(raw []string) (map[string]any, error) {
	opts := make(map[string]any, len(raw))
	for _, item := range raw {
		key, value, ok := strings.Cut(item, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errs.Newf(errs.KindConfig, "option must be in KEY=VALUE format, got %q", item)
		}
		opts[key] = strings.TrimSpace(value)
	}
	return opts, nil
}

func (l *Loader) findConfigFile() string {
	for _, candidate := range l.SearchPaths {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

// decode unmarshals one source with weak typing so "5432" and 5432 both
// decode as a port. Unknown keys are reported, not rejected.
func (l *Loader) decode(k *koanf.Koanf, path, source string) (ConnectionConfig, error) {
	var raw rawConfig
	var md mapstructure.Metadata
	if err := k.UnmarshalWithConf(path, &raw, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Metadata:         &md,
			Result:           &raw,
			TagName:          "koanf",
		},
	}); err != nil {
		return ConnectionConfig{}, err
	}

	if len(md.Unused) > 0 {
		level := slog.LevelDebug
		if source == "file" {
			level = slog.LevelWarn
		}
		l.Logger.Log(context.Background(), level, "ignoring unknown configuration keys",
			slog.String("source", source),
			slog.Any("keys", md.Unused))
	}
	return raw.toConnectionConfig(), nil
}

// parserFor picks the koanf parser by file extension; TOML is the default.
func parserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser()
	default:
		return toml.Parser()
	}
}
