// Package template loads AWS SAM deployment templates and locates function
// resource definitions within them.
package template

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ServerlessFunctionType is the resource type tag identifying a serverless function.
const ServerlessFunctionType = "AWS::Serverless::Function"

// Template is the parsed form of a SAM deployment template.
type Template struct {
	Resources map[string]Resource `yaml:"Resources"`

	// Dir is the directory containing the template file. Relative CodeUri
	// values are resolved against it.
	Dir string `yaml:"-"`
}

type Resource struct {
	Type       string     `yaml:"Type"`
	Properties Properties `yaml:"Properties"`
}

type Properties struct {
	Handler string `yaml:"Handler"`
	Runtime string `yaml:"Runtime"`
	CodeUri string `yaml:"CodeUri"`
}

// FunctionResource is a read-only view over a single function entry of a
// parsed template. It is extracted fresh on every resolve call.
type FunctionResource struct {
	Identifier string
	Runtime    string
	CodeUri    string
	Handler    string
}

// LoaderFunc loads and parses a template from a file path.
type LoaderFunc func(templatePath string) (*Template, error)

// Load reads and parses the SAM template at templatePath.
func Load(templatePath string) (*Template, error) {
	data, err := os.ReadFile(templatePath)
	if err != nil {
		return nil, fmt.Errorf("could not read template '%s': %w", templatePath, err)
	}

	var tpl Template
	if err := yaml.Unmarshal(data, &tpl); err != nil {
		return nil, fmt.Errorf("could not parse template '%s': %w", templatePath, err)
	}

	tpl.Dir = filepath.Dir(templatePath)
	return &tpl, nil
}

var _ LoaderFunc = Load
