package io

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"

	"github.com/slok/sbxhub/internal/model"
)

// SpecYAMLRepository loads sandbox specs from YAML files.
type SpecYAMLRepository struct {
	fs fs.FS
}

// NewSpecYAMLRepository creates a new YAML spec repository.
func NewSpecYAMLRepository(filesystem fs.FS) *SpecYAMLRepository {
	return &SpecYAMLRepository{fs: filesystem}
}

// GetSpec loads a sandbox spec from a YAML file and returns a validated domain model.
func (r *SpecYAMLRepository) GetSpec(ctx context.Context, path string) (model.SandboxSpec, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		return model.SandboxSpec{}, fmt.Errorf("reading spec file: %w", err)
	}

	if ctx.Err() != nil {
		return model.SandboxSpec{}, ctx.Err()
	}

	var spec SandboxSpec
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return model.SandboxSpec{}, fmt.Errorf("parsing YAML: %w", err)
	}

	if err := spec.validate(); err != nil {
		return model.SandboxSpec{}, fmt.Errorf("invalid spec: %w", err)
	}

	return spec.toModel(), nil
}

// SandboxSpec represents the YAML structure of a sandbox spec.
type SandboxSpec struct {
	Name      string            `yaml:"name"`
	Backend   string            `yaml:"backend"`
	Image     string            `yaml:"image"`
	Command   []string          `yaml:"command"`
	Env       map[string]string `yaml:"env"`
	Ports     []int             `yaml:"ports"`
	Resources ResourcesSpec     `yaml:"resources"`
	Labels    map[string]string `yaml:"labels"`
}

// ResourcesSpec represents the YAML structure for resources.
type ResourcesSpec struct {
	VCPUs    float64 `yaml:"vcpus"`
	MemoryMB int     `yaml:"memory_mb"`
}

func (s SandboxSpec) validate() error {
	if s.Backend == "" {
		return fmt.Errorf("backend is required: %w", model.ErrNotValid)
	}

	// Backend specific required fields.
	switch model.Backend(s.Backend) {
	case model.BackendDocker:
		if s.Image == "" {
			return fmt.Errorf("docker backend image is required: %w", model.ErrNotValid)
		}
	case model.BackendProcess:
		if len(s.Command) == 0 {
			return fmt.Errorf("process backend command is required: %w", model.ErrNotValid)
		}
	}

	spec := s.toModel()
	return spec.Validate()
}

func (s SandboxSpec) toModel() model.SandboxSpec {
	return model.SandboxSpec{
		Name:    s.Name,
		Backend: model.Backend(s.Backend),
		Image:   s.Image,
		Command: s.Command,
		Env:     s.Env,
		Ports:   s.Ports,
		Resources: model.Resources{
			VCPUs:    s.Resources.VCPUs,
			MemoryMB: s.Resources.MemoryMB,
		},
		Labels: s.Labels,
	}
}
