package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
)

func writeConfig(t *testing.T, contents string) string {
	path := filepath.Join(t.TempDir(), "meshview.yml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseKeepsDefaults(t *testing.T) {
	config, err := Parse([]byte("model: viking_room.obj\ntexture: viking_room.png\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if config.Model != "viking_room.obj" || config.Texture != "viking_room.png" {
		t.Errorf("paths = %q, %q", config.Model, config.Texture)
	}
	if config.FramesInFlight != 2 {
		t.Errorf("FramesInFlight = %d, want 2", config.FramesInFlight)
	}
	if !config.Validation {
		t.Errorf("Validation should default to true")
	}
	if config.Window.Width != 800 || config.Window.Height != 600 {
		t.Errorf("window = %dx%d, want 800x600", config.Window.Width, config.Window.Height)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestParseOverrides(t *testing.T) {
	config, err := Parse([]byte(`
model: a.obj
texture: a.png
frames_in_flight: 3
max_anisotropy: 4
validation: false
window:
  width: 1024
  height: 768
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if config.FramesInFlight != 3 || config.MaxAnisotropy != 4 || config.Validation {
		t.Errorf("config = %+v", config)
	}
	if config.Window.Width != 1024 || config.Window.Height != 768 {
		t.Errorf("window = %dx%d, want 1024x768", config.Window.Width, config.Window.Height)
	}
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("frames_in_flight: [one"))
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.Model = "m.obj"
	valid.Texture = "t.png"

	testCases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "no model", mutate: func(c *Config) { c.Model = "" }},
		{name: "no texture", mutate: func(c *Config) { c.Texture = "" }},
		{name: "no vertex shader", mutate: func(c *Config) { c.VertexShader = "" }},
		{name: "zero frames", mutate: func(c *Config) { c.FramesInFlight = 0 }},
		{name: "negative anisotropy", mutate: func(c *Config) { c.MaxAnisotropy = -2 }},
		{name: "NaN anisotropy", mutate: func(c *Config) { c.MaxAnisotropy = float32(math.NaN()) }},
		{name: "empty window", mutate: func(c *Config) { c.Window.Height = 0 }},
	}

	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			config := valid
			testCase.mutate(&config)

			if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestParseArgs(t *testing.T) {
	path := writeConfig(t, "model: file.obj\ntexture: file.png\nframes_in_flight: 3\n")

	config, err := ParseArgs([]string{"--model", "flag.obj", "--config", path, "--no-validation", "--anisotropy", "8"})
	if err != nil {
		t.Fatalf("parse args: %v", err)
	}

	if config.Model != "flag.obj" {
		t.Errorf("Model = %q, want the flag to win over the file", config.Model)
	}
	if config.Texture != "file.png" || config.FramesInFlight != 3 {
		t.Errorf("file settings lost: %+v", config)
	}
	if config.Validation {
		t.Errorf("--no-validation ignored")
	}
	if config.MaxAnisotropy != 8 {
		t.Errorf("MaxAnisotropy = %v, want 8", config.MaxAnisotropy)
	}
}

func TestParseArgsErrors(t *testing.T) {
	testCases := []struct {
		name string
		args []string
		want error
	}{
		{name: "help", args: []string{"--help"}, want: ErrHelp},
		{name: "short help", args: []string{"--model", "a.obj", "-h"}, want: ErrHelp},
		{name: "unknown", args: []string{"--save-images"}, want: ErrUnknownOption},
		{name: "missing value", args: []string{"--model"}, want: ErrInvalidConfig},
		{name: "bad frames", args: []string{"--frames", "two"}, want: ErrInvalidConfig},
		{name: "missing config value", args: []string{"--config"}, want: ErrInvalidConfig},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := ParseArgs(testCase.args)
			if !errors.Is(err, testCase.want) {
				t.Errorf("err = %v, want %v", err, testCase.want)
			}
		})
	}
}

func TestParseArgsMissingConfigFile(t *testing.T) {
	_, err := ParseArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yml")})
	if err == nil {
		t.Fatalf("missing config file accepted")
	}
}

func TestNaNAnisotropyFlagRejected(t *testing.T) {
	config, err := ParseArgs([]string{"--model", "m.obj", "--texture", "t.png", "--anisotropy", "NaN"})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}

	if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
}
