// Package envfile parses conda's environment.yml-style spec file: a
// YAML document naming channels and dependency specs, the same shape
// `conda env create -f environment.yml` consumes.
package envfile

import (
	"io"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"
)

// Document is the subset of environment.yml fields varietal
// understands: name is cosmetic, channels and dependencies feed
// directly into a resolve request. Pip-specific sub-maps under
// dependencies are intentionally not modeled — varietal resolves
// conda packages only.
type Document struct {
	Name         string   `yaml:"name"`
	Channels     []string `yaml:"channels"`
	Dependencies []string `yaml:"dependencies"`
}

// Parse reads an environment.yml document.
func Parse(r io.Reader) (Document, error) {
	var doc Document
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&doc); err != nil {
		return Document{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to parse environment file").
			WithCause(err)
	}
	return doc, nil
}
