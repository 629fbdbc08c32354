package cli

import (
	"os"

	"github.com/varietal/varietal/internal/adapters/envfile"
)

// mergeEnvFile folds an environment.yml's channels and dependencies
// into the CLI's own flag-derived channels/specs, when --file is
// given. The environment file's channels are appended after any
// --channel flags so an explicit flag still takes priority in
// resolveStrings-style precedence if the caller only wants the flag
// value; here both are simply combined since a solve naturally wants
// every named channel searched.
func mergeEnvFile(path string, channels []string, specs []string) ([]string, []string, error) {
	if path == "" {
		return channels, specs, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	doc, err := envfile.Parse(f)
	if err != nil {
		return nil, nil, err
	}
	mergedChannels := append(append([]string{}, channels...), doc.Channels...)
	mergedSpecs := append(append([]string{}, specs...), doc.Dependencies...)
	return mergedChannels, mergedSpecs, nil
}
