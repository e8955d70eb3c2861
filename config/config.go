package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/pattyshack/assembly/object"
	"github.com/pattyshack/assembly/optimizer"
	"github.com/pattyshack/assembly/platform"
	"github.com/pattyshack/assembly/platform/flat"
	"github.com/pattyshack/assembly/platform/listing"
	"github.com/pattyshack/assembly/platform/mips"
	"github.com/pattyshack/assembly/platform/x86"
)

var (
	architectures = map[platform.ArchitectureName]func() platform.Architecture{
		platform.X86:  x86.NewArchitecture,
		platform.Mips: mips.NewArchitecture,
	}

	formats = map[platform.FormatName]func() platform.Format{
		platform.Flat:    flat.NewFormat,
		platform.Listing: listing.NewFormat,
	}
)

type Config struct {
	Architecture platform.ArchitectureName `yaml:"architecture"`
	Format       platform.FormatName       `yaml:"format"`

	Optimizer optimizer.Config `yaml:"optimizer"`
}

func Default() Config {
	return Config{
		Architecture: platform.X86,
		Format:       platform.Flat,
	}
}

// Load decodes a yaml configuration.  Unspecified fields keep their default
// values.  Unknown fields are errors.
func Load(reader io.Reader) (Config, error) {
	config := Default()

	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)

	err := decoder.Decode(&config)
	if err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return config, config.Validate()
}

func LoadFile(fileName string) (Config, error) {
	content, err := os.ReadFile(fileName)
	if err != nil {
		return Config{}, err
	}

	config, err := Load(bytes.NewReader(content))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", fileName, err)
	}
	return config, nil
}

func names[T ~string, V any](registry map[T]V) []T {
	keys := lo.Keys(registry)
	slices.Sort(keys)
	return keys
}

func (config Config) Validate() error {
	_, ok := architectures[config.Architecture]
	if !ok {
		return fmt.Errorf(
			"unsupported architecture (%s), expected one of %v",
			config.Architecture,
			names(architectures))
	}

	_, ok = formats[config.Format]
	if !ok {
		return fmt.Errorf(
			"unsupported format (%s), expected one of %v",
			config.Format,
			names(formats))
	}

	if config.Optimizer.MaxIterations < 0 {
		return fmt.Errorf(
			"invalid optimizer max_iterations (%d)",
			config.Optimizer.MaxIterations)
	}

	return nil
}

// NewObject creates an empty object bound to the configured architecture
// and format modules.
func (config Config) NewObject(name string) (*object.Object, error) {
	err := config.Validate()
	if err != nil {
		return nil, err
	}

	return object.NewObject(
		name,
		architectures[config.Architecture](),
		formats[config.Format]()), nil
}
