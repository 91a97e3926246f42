package config

import (
	"strconv"

	"github.com/cockroachdb/errors"
)

var (
	// ErrHelp is returned by ParseArgs when --help or -h was given.
	ErrHelp          = errors.New("help requested")
	ErrUnknownOption = errors.New("unrecognized option")
)

const Usage = `Options
	--config <file>
		Read settings from a YAML file. Other options override it.
	--model <file>
		Model to display.
	--texture <file>
		Image to texture the model with.
	--frames <n>
		Frames in flight.
	--anisotropy <n>
		Maximum sampler anisotropy, 0 for the device maximum.
	--no-validation
		Do not enable the Khronos validation layer.
	--help, -h
		Print this message.
`

// ParseArgs builds a Config from command line arguments, not including the
// program name. A --config file is applied first wherever it appears.
func ParseArgs(args []string) (Config, error) {
	config := Default()

	for i := 0; i < len(args); i++ {
		if args[i] != "--config" {
			continue
		}
		if i+1 >= len(args) {
			return Config{}, errors.Mark(errors.New("--config needs a value"), ErrInvalidConfig)
		}

		var err error
		config, err = Load(args[i+1])
		if err != nil {
			return Config{}, err
		}
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		value := func() (string, error) {
			if i+1 >= len(args) {
				return "", errors.Mark(errors.Newf("%s needs a value", arg), ErrInvalidConfig)
			}
			i++
			return args[i], nil
		}

		switch arg {
		case "--help", "-h":
			return Config{}, ErrHelp
		case "--no-validation":
			config.Validation = false
		case "--config":
			i++
		case "--model", "--texture", "--frames", "--anisotropy":
			v, err := value()
			if err != nil {
				return Config{}, err
			}
			err = config.set(arg, v)
			if err != nil {
				return Config{}, err
			}
		default:
			return Config{}, errors.Mark(errors.Newf("unrecognized option: %s", arg), ErrUnknownOption)
		}
	}

	return config, nil
}

func (c *Config) set(option, value string) error {
	switch option {
	case "--model":
		c.Model = value
	case "--texture":
		c.Texture = value
	case "--frames":
		frames, err := strconv.Atoi(value)
		if err != nil {
			return errors.Mark(errors.Wrapf(err, "%s", option), ErrInvalidConfig)
		}
		c.FramesInFlight = frames
	case "--anisotropy":
		anisotropy, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return errors.Mark(errors.Wrapf(err, "%s", option), ErrInvalidConfig)
		}
		c.MaxAnisotropy = float32(anisotropy)
	}
	return nil
}
