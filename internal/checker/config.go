package checker

import (
	"time"

	"github.com/tunelo-project/tunelo/internal/addr"
	"github.com/tunelo-project/tunelo/internal/transport"
)

// Config controls a proxy-checker run.
type Config struct {
	// Probers is the bounded worker pool size, the -p flag.
	Probers int
	// MaxTimeoutPerProbe bounds every individual probe tier, the
	// --max-timeout-per-probe flag.
	MaxTimeoutPerProbe time.Duration
	// OutputFile is the -o/--output-file path. Empty means stdout table.
	OutputFile string
	// Target is the well-known destination each upstream is asked to
	// reach through its handshake. Defaults to DefaultTarget.
	Target addr.Endpoint
	// Resolver resolves domain-form upstream endpoints before probing.
	// Defaults to a *transport.NetResolver when left nil.
	Resolver transport.Resolver
}

// DefaultTarget is the well-known plain-HTTP destination probed through
// every upstream when Config.Target is unset.
var DefaultTarget = mustEndpoint("example.com:80")

func mustEndpoint(s string) addr.Endpoint {
	ep, err := addr.ParseEndpoint(s)
	if err != nil {
		panic(err)
	}
	return ep
}

// DefaultConfig returns checker defaults: 4 probers, a 5s per-probe
// timeout, stdout table output.
func DefaultConfig() Config {
	return Config{Probers: 4, MaxTimeoutPerProbe: 5 * time.Second, Target: DefaultTarget, Resolver: transport.NewNetResolver()}
}
