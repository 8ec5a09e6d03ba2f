package chain

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tunelo-project/tunelo/internal/addr"
	"github.com/tunelo-project/tunelo/internal/tunerr"
	"github.com/tunelo-project/tunelo/internal/upstream"
)

// Toggles disables specific upstream kinds at load time, rejecting any
// chain that references a disabled kind (the proxy-chain subcommand's
// --disable-socks4a/5/http flags).
type Toggles struct {
	DisableSocks4a bool
	DisableSocks5  bool
	DisableHTTP    bool
}

func (t Toggles) allows(k upstream.Kind) bool {
	switch k {
	case upstream.Socks4a:
		return !t.DisableSocks4a
	case upstream.Socks5:
		return !t.DisableSocks5
	case upstream.HTTP:
		return !t.DisableHTTP
	default:
		return false
	}
}

// ParseInline parses the CLI's --proxy-chain inline form: a
// comma-separated list of "kind://host:port" entries.
func ParseInline(s string, toggles Toggles) (Chain, error) {
	parts := strings.Split(s, ",")
	hops := make([]upstream.Proxy, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		hop, err := parseLine(p)
		if err != nil {
			return Chain{}, err
		}
		hops = append(hops, hop)
	}
	return buildChecked(hops, toggles)
}

// LoadFile parses a chain file. The line format (kind://host:port, one
// per line, blank lines and '#' comments ignored) is the canonical,
// required format. A ".json" extension additionally dispatches to the
// JSON loader, a convenience — never a replacement for the line
// format.
func LoadFile(path string, toggles Toggles) (Chain, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return loadJSONFile(path, toggles)
	}
	return loadLineFile(path, toggles)
}

func loadLineFile(path string, toggles Toggles) (Chain, error) {
	f, err := os.Open(path)
	if err != nil {
		return Chain{}, &tunerr.ConfigError{Path: path, Err: err}
	}
	defer f.Close()

	var hops []upstream.Proxy
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		hop, err := parseLine(line)
		if err != nil {
			return Chain{}, &tunerr.ConfigError{Path: path, Err: err}
		}
		hops = append(hops, hop)
	}
	if err := scanner.Err(); err != nil {
		return Chain{}, &tunerr.ConfigError{Path: path, Err: err}
	}
	return buildChecked(hops, toggles)
}

func parseLine(line string) (upstream.Proxy, error) {
	scheme, rest, ok := strings.Cut(line, "://")
	if !ok {
		return upstream.Proxy{}, fmt.Errorf("chain: malformed entry %q, want kind://host:port", line)
	}
	kind, err := upstream.ParseKind(scheme)
	if err != nil {
		return upstream.Proxy{}, err
	}
	ep, err := addr.ParseEndpoint(rest)
	if err != nil {
		return upstream.Proxy{}, fmt.Errorf("chain: %q: %w", line, err)
	}
	return upstream.Proxy{Kind: kind, Endpoint: ep}, nil
}

// jsonChain is the JSON chain-file shape:
// {"proxyChain": [{"type": "socks5", "host": "...", "port": N}, ...]}.
// "httpTunnel" is accepted as a synonym for "http".
type jsonChain struct {
	ProxyChain []jsonHop `json:"proxyChain"`
}

type jsonHop struct {
	Type string `json:"type"`
	Host string `json:"host"`
	Port uint16 `json:"port"`
}

func loadJSONFile(path string, toggles Toggles) (Chain, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Chain{}, &tunerr.ConfigError{Path: path, Err: err}
	}
	var doc jsonChain
	if err := json.Unmarshal(data, &doc); err != nil {
		return Chain{}, &tunerr.ConfigError{Path: path, Err: fmt.Errorf("chain: parse json: %w", err)}
	}

	hops := make([]upstream.Proxy, 0, len(doc.ProxyChain))
	for _, h := range doc.ProxyChain {
		kindStr := h.Type
		if kindStr == "httpTunnel" {
			kindStr = "http"
		}
		kind, err := upstream.ParseKind(kindStr)
		if err != nil {
			return Chain{}, &tunerr.ConfigError{Path: path, Err: err}
		}
		host, err := hostAddress(h.Host)
		if err != nil {
			return Chain{}, &tunerr.ConfigError{Path: path, Err: err}
		}
		hops = append(hops, upstream.Proxy{Kind: kind, Endpoint: addr.Endpoint{Host: host, Port: h.Port}})
	}
	return buildChecked(hops, toggles)
}

func hostAddress(host string) (addr.Address, error) {
	ep, err := addr.ParseEndpoint(host + ":0")
	if err != nil {
		return addr.Address{}, err
	}
	return ep.Host, nil
}

func buildChecked(hops []upstream.Proxy, toggles Toggles) (Chain, error) {
	for _, h := range hops {
		if !toggles.allows(h.Kind) {
			return Chain{}, fmt.Errorf("chain: upstream kind %s is disabled", h.Kind)
		}
	}
	return New(hops)
}
