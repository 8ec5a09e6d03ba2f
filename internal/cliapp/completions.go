package cliapp

import (
	"fmt"
	"os"
)

// runCompletions implements the `completions <shell>` subcommand:
// static, hand-written completion scripts for bash/zsh/fish.
func runCompletions(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "tunelo: completions requires exactly one shell argument (bash|zsh|fish)")
		return ExitInvalidCLI
	}

	var script string
	switch args[0] {
	case "bash":
		script = bashCompletion
	case "zsh":
		script = zshCompletion
	case "fish":
		script = fishCompletion
	default:
		fmt.Fprintf(os.Stderr, "tunelo: unsupported shell %q (want bash, zsh, or fish)\n", args[0])
		return ExitInvalidCLI
	}

	fmt.Print(script)
	return ExitOK
}

const bashCompletion = `_tunelo() {
    local cur subcommands
    cur="${COMP_WORDS[COMP_CWORD]}"
    subcommands="version completions multi-proxy proxy-chain proxy-checker socks-server http-server help"
    COMPREPLY=($(compgen -W "${subcommands}" -- "${cur}"))
}
complete -F _tunelo tunelo
`

const zshCompletion = `#compdef tunelo

_tunelo() {
    local -a subcommands
    subcommands=(
        'version:Show current version'
        'completions:Print shell completion script'
        'multi-proxy:Run the socks-server and http-server together'
        'proxy-chain:Forward connections through an upstream proxy chain'
        'proxy-checker:Probe upstream proxies for liveness'
        'socks-server:Run the SOCKS4a/SOCKS5 server alone'
        'http-server:Run the HTTP CONNECT/forward proxy alone'
        'help:Show help'
    )
    _describe 'command' subcommands
}
_tunelo
`

const fishCompletion = `complete -c tunelo -f -n '__fish_use_subcommand' -a version -d 'Show current version'
complete -c tunelo -f -n '__fish_use_subcommand' -a completions -d 'Print shell completion script'
complete -c tunelo -f -n '__fish_use_subcommand' -a multi-proxy -d 'Run the socks-server and http-server together'
complete -c tunelo -f -n '__fish_use_subcommand' -a proxy-chain -d 'Forward connections through an upstream proxy chain'
complete -c tunelo -f -n '__fish_use_subcommand' -a proxy-checker -d 'Probe upstream proxies for liveness'
complete -c tunelo -f -n '__fish_use_subcommand' -a socks-server -d 'Run the SOCKS4a/SOCKS5 server alone'
complete -c tunelo -f -n '__fish_use_subcommand' -a http-server -d 'Run the HTTP CONNECT/forward proxy alone'
complete -c tunelo -f -n '__fish_use_subcommand' -a help -d 'Show help'
`
