// Package config loads tunelo's file configuration: an ini-based file
// with one section per subcommand (socks-server, http-server,
// proxy-chain, proxy-checker, multi-proxy).
//
// Uses a default-backfill-then-save pattern: missing keys are filled
// with defaults and the file is rewritten, so a fresh config file is
// self-documenting. CLI flags always override file values after Load.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
)

const DefaultConfigPath = "config/tunelo.ini"

var defaultSections = map[string]map[string]string{
	"socks-server": {
		"ip":                   "127.0.0.1",
		"port":                 "1080",
		"disable-socks4a":      "false",
		"disable-socks5":       "false",
		"enable-tcp-connect":   "true",
		"enable-tcp-bind":      "false",
		"enable-udp-associate": "false",
		"udp-ports":            "",
		"connection-timeout":   "10s",
	},
	"http-server": {
		"ip":   "127.0.0.1",
		"port": "8118",
	},
	"proxy-chain": {
		"socks-ip":         "127.0.0.1",
		"socks-port":       "1080",
		"http-ip":          "127.0.0.1",
		"http-port":        "8118",
		"proxy-chain-file": "",
		"proxy-chain":      "",
		"disable-socks4a":  "false",
		"disable-socks5":   "false",
		"disable-http":     "false",
	},
	"proxy-checker": {
		"proxy-servers":            "",
		"file":                     "",
		"output-file":              "",
		"probers":                  "10",
		"max-timeout-per-probe-ms": "2000",
	},
	"multi-proxy": {
		"grace-period": "5s",
	},
}

// File is the parsed configuration: one key/value map per section.
type File struct {
	Path     string
	Sections map[string]map[string]string
}

// Load reads path (creating it with defaults if missing), backfilling
// any keys absent from an existing file.
func Load(path string) (*File, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultConfigPath
	}
	if err := ensureParent(path); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, path)
	if err != nil {
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}

	changed := false
	for section, defaults := range defaultSections {
		sec := cfg.Section(section)
		for k, v := range defaults {
			if !sec.HasKey(k) {
				sec.Key(k).SetValue(v)
				changed = true
			}
		}
	}
	if changed {
		if err := cfg.SaveTo(path); err != nil {
			return nil, fmt.Errorf("config: save defaults to %s: %w", path, err)
		}
	}

	f := &File{Path: path, Sections: map[string]map[string]string{}}
	for section := range defaultSections {
		vals := map[string]string{}
		for _, key := range cfg.Section(section).Keys() {
			vals[key.Name()] = key.String()
		}
		f.Sections[section] = vals
	}
	return f, nil
}

// Get returns the value of key in section, or "" if absent.
func (f *File) Get(section, key string) string {
	if f == nil {
		return ""
	}
	return f.Sections[section][key]
}

// Override replaces f's value for key in section with v, modelling the
// CLI-flag-wins-if-set merge rule: callers only call Override for flags
// the user actually set on the command line, leaving file/default
// values intact otherwise.
func (f *File) Override(section, key, v string) {
	if f.Sections[section] == nil {
		f.Sections[section] = map[string]string{}
	}
	f.Sections[section][key] = v
}

func ensureParent(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
