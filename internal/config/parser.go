package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/gravitational/trace"
	"github.com/kaptinlin/jsonschema"
)

// LoadOrDefault loads the config file at path. A missing file is not an error,
// the defaults are returned instead.
func LoadOrDefault(path string) (*Project, error) {
	p, err := LoadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return p, trace.Wrap(err)
}

// LoadFile parses the config file at path. "-" reads from stdin.
func LoadFile(path string) (*Project, error) {
	var contents []byte
	var err error
	if path == "-" {
		contents, err = io.ReadAll(os.Stdin)
	} else {
		contents, err = os.ReadFile(path)
	}
	if err != nil {
		// Not wrapped with trace so callers can match fs.ErrNotExist.
		return nil, fmt.Errorf("failed to read config file at %q: %w", path, err)
	}

	p, err := Parse(contents)
	if err != nil {
		return nil, trace.Wrap(err, "config file %q is invalid", path)
	}
	return p, nil
}

// Parse parses YAML config contents, validates them against the schema and applies defaults.
func Parse(contents []byte) (*Project, error) {
	p := &Project{}
	if len(strings.TrimSpace(string(contents))) > 0 {
		asJSON, err := yaml.YAMLToJSON(contents)
		if err != nil {
			return nil, trace.Wrap(err, "failed to convert config to JSON")
		}

		if err := validateJSON(asJSON); err != nil {
			return nil, trace.Wrap(err)
		}

		if err := json.Unmarshal(asJSON, p); err != nil {
			return nil, trace.Wrap(err, "failed to unmarshal config")
		}
	}

	p.applyDefaults()
	if err := p.validate(); err != nil {
		return nil, trace.Wrap(err)
	}
	return p, nil
}

// JSONSchema returns the JSON schema for the config file.
func JSONSchema() ([]byte, error) {
	schemaBytes, err := json.MarshalIndent(projectSchema(), "", "    ")
	if err != nil {
		return nil, trace.Wrap(err, "failed to marshal JSON schema")
	}
	return schemaBytes, nil
}

func projectSchema() *jsonschema.Schema {
	opts := jsonschema.DefaultStructTagOptions()
	opts.AllowUntaggedFields = true
	return jsonschema.FromStructWithOptions[Project](opts)
}

func validateJSON(asJSON []byte) error {
	res := projectSchema().ValidateJSON(asJSON)
	if res == nil || res.IsValid() {
		return nil
	}

	problems := make([]string, 0, len(res.Errors))
	for field, err := range res.Errors {
		problems = append(problems, fmt.Sprintf("%s: %s", field, err.Error()))
	}
	sort.Strings(problems)
	return trace.BadParameter("config does not match schema: %s", strings.Join(problems, "; "))
}
