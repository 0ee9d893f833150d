package config

import "maps"

// Resolve folds partial configurations in order, later ones winning.
// The CLI calls it as Resolve(file, env, flags). A field keeps the value of
// the last source that set it; fields no source set stay nil. Options merge
// key by key. The inputs are not modified.
func Resolve(sources ...ConnectionConfig) ConnectionConfig {
	merged := ConnectionConfig{Options: map[string]string{}}
	for _, src := range sources {
		merged = merged.MergedWith(src)
	}
	return merged
}

// MergedWith returns a new config where the fields set in override replace
// the ones in c.
func (c ConnectionConfig) MergedWith(override ConnectionConfig) ConnectionConfig {
	merged := ConnectionConfig{
		DSN:      pick(override.DSN, c.DSN),
		Host:     pick(override.Host, c.Host),
		Port:     pickPort(override.Port, c.Port),
		User:     pick(override.User, c.User),
		Password: pick(override.Password, c.Password),
		Database: pick(override.Database, c.Database),
		Options:  make(map[string]string, len(c.Options)+len(override.Options)),
	}
	maps.Copy(merged.Options, c.Options)
	maps.Copy(merged.Options, override.Options)
	return merged
}

func pick(override, base *string) *string {
	if nonEmpty(override) != nil {
		return clonePtr(override)
	}
	return clonePtr(base)
}

func pickPort(override, base *int) *int {
	if override != nil && *override != 0 {
		return clonePtr(override)
	}
	return clonePtr(base)
}
