package config

import (
	"slices"
	"strconv"
	"strings"
)

// ConnectParams returns the parameters handed to the driver. With a DSN the
// map holds only "dsn"; otherwise it holds the set discrete fields (the
// database under libpq's "dbname" key) plus the options. Unset fields are
// omitted rather than sent empty.
func (c ConnectionConfig) ConnectParams() map[string]string {
	if c.HasDSN() {
		return map[string]string{"dsn": *c.DSN}
	}

	params := make(map[string]string, 5+len(c.Options))
	for k, v := range c.Options {
		params[k] = v
	}
	for _, kv := range c.discrete() {
		params[kv[0]] = kv[1]
	}
	return params
}

// ConnString materializes the config as a connection string for pgx.
// A DSN is returned verbatim. Otherwise a libpq keyword/value string is
// built: host, port, user, password and dbname first, then options sorted by
// key.
func (c ConnectionConfig) ConnString() string {
	if c.HasDSN() {
		return *c.DSN
	}

	var parts []string
	for _, kv := range c.discrete() {
		parts = append(parts, kv[0]+"="+quoteConnValue(kv[1]))
	}

	keys := make([]string, 0, len(c.Options))
	for k := range c.Options {
		switch k {
		case "host", "port", "user", "password", "dbname":
			// discrete fields always win over an option of the same name
			if c.fieldSet(k) {
				continue
			}
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		parts = append(parts, k+"="+quoteConnValue(c.Options[k]))
	}
	return strings.Join(parts, " ")
}

func (c ConnectionConfig) discrete() [][2]string {
	var out [][2]string
	if c.Host != nil {
		out = append(out, [2]string{"host", *c.Host})
	}
	if c.Port != nil {
		out = append(out, [2]string{"port", strconv.Itoa(*c.Port)})
	}
	if c.User != nil {
		out = append(out, [2]string{"user", *c.User})
	}
	if c.Password != nil {
		out = append(out, [2]string{"password", *c.Password})
	}
	if c.Database != nil {
		out = append(out, [2]string{"dbname", *c.Database})
	}
	return out
}

func (c ConnectionConfig) fieldSet(key string) bool {
	for _, kv := range c.discrete() {
		if kv[0] == key {
			return true
		}
	}
	return false
}

// quoteConnValue quotes a keyword/value parameter the way libpq expects:
// empty values and values with spaces, quotes or backslashes are wrapped in
// single quotes with ' and \ escaped.
func quoteConnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, " \t\n'\\") {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}
