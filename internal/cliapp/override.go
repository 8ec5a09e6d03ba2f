package cliapp

import (
	"flag"

	"github.com/tunelo-project/tunelo/internal/config"
)

// overrideIfSet copies value into cfgFile[section][key] only when name
// was actually passed on the command line — config.File.Override's
// CLI-flag-wins-if-set contract (internal/config/config.go).
func overrideIfSet(fs *flag.FlagSet, name string, cfgFile *config.File, section, key, value string) {
	wasSet := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			wasSet = true
		}
	})
	if wasSet {
		cfgFile.Override(section, key, value)
	}
}
