// Package config holds the viewer settings read from a YAML file and the
// command line.
package config

import (
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Window struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type Config struct {
	Model          string `yaml:"model"`
	Texture        string `yaml:"texture"`
	VertexShader   string `yaml:"vertex_shader"`
	FragmentShader string `yaml:"fragment_shader"`

	FramesInFlight int `yaml:"frames_in_flight"`
	// MaxAnisotropy of zero samples with the device maximum.
	MaxAnisotropy float32 `yaml:"max_anisotropy"`
	Validation    bool    `yaml:"validation"`

	Window Window `yaml:"window"`
}

func Default() Config {
	return Config{
		VertexShader:   "shaders/vert.spv",
		FragmentShader: "shaders/frag.spv",
		FramesInFlight: 2,
		Validation:     true,
		Window: Window{
			Width:  800,
			Height: 600,
		},
	}
}

// Parse reads YAML over the defaults, so keys that are left out keep their
// default value.
func Parse(data []byte) (Config, error) {
	config := Default()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, errors.Mark(errors.Wrap(err, "parse config"), ErrInvalidConfig)
	}
	return config, nil
}

func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}

	config, err := Parse(data)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config %s", path)
	}
	return config, nil
}

func (c Config) Validate() error {
	switch {
	case c.Model == "":
		return errors.Mark(errors.New("no model path"), ErrInvalidConfig)
	case c.Texture == "":
		return errors.Mark(errors.New("no texture path"), ErrInvalidConfig)
	case c.VertexShader == "" || c.FragmentShader == "":
		return errors.Mark(errors.New("both shader paths are required"), ErrInvalidConfig)
	case c.FramesInFlight < 1:
		return errors.Mark(errors.Newf("frames_in_flight must be at least 1, got %d", c.FramesInFlight), ErrInvalidConfig)
	case !(c.MaxAnisotropy >= 0):
		return errors.Mark(errors.Newf("max_anisotropy must be a non-negative number, got %g", c.MaxAnisotropy), ErrInvalidConfig)
	case c.Window.Width <= 0 || c.Window.Height <= 0:
		return errors.Mark(errors.Newf("window must have a positive size, got %dx%d", c.Window.Width, c.Window.Height), ErrInvalidConfig)
	}
	return nil
}
