package project

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// BuildSpec is the decoded content of a project's build.yaml.
type BuildSpec struct {
	Description string   `yaml:"description" validate:"max=1024"`
	Version     string   `yaml:"version" validate:"omitempty,semver"`
	Tags        []string `yaml:"tags" validate:"dive,required"`
}

// ReadBuildFile decodes and validates the build file at path. A missing
// build file is an empty spec.
func ReadBuildFile(path string, validate *validator.Validate) (*BuildSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &BuildSpec{}, nil
		}
		return nil, fmt.Errorf("failed to read build file %s: %w", path, err)
	}

	var spec BuildSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse build file %s: %w", path, err)
	}
	if err := validate.Struct(spec); err != nil {
		return nil, fmt.Errorf("build file %s validation failed: %w", path, err)
	}
	return &spec, nil
}
