package config

import (
	"strings"
	"testing"

	"github.com/pattyshack/assembly/platform"
)

func TestLoad(t *testing.T) {
	config, err := Load(strings.NewReader(`
architecture: mips
format: listing
optimizer:
  max_iterations: 20
  parallel_resize: true
`))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if config.Architecture != platform.Mips ||
		config.Format != platform.Listing ||
		config.Optimizer.MaxIterations != 20 ||
		!config.Optimizer.ParallelResize {

		t.Errorf("unexpected config: %+v", config)
	}

	obj, err := config.NewObject("test")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if obj.Architecture.Name() != platform.Mips ||
		obj.Format.Name() != platform.Listing {

		t.Errorf("unexpected modules: %s %s",
			obj.Architecture.Name(),
			obj.Format.Name())
	}
}

func TestLoad_defaults(t *testing.T) {
	config, err := Load(strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if config != Default() {
		t.Errorf("unexpected config: %+v", config)
	}

	config, err = Load(strings.NewReader("format: listing\n"))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if config.Architecture != platform.X86 || config.Format != platform.Listing {
		t.Errorf("unexpected config: %+v", config)
	}
}

func TestLoad_errors(t *testing.T) {
	for idx, input := range []string{
		"architecture: z80\n",
		"format: elf\n",
		"optimizer:\n  max_iterations: -1\n",
		"unknown_field: 1\n",
		"optimizer:\n  bogus: true\n",
	} {
		_, err := Load(strings.NewReader(input))
		if err == nil {
			t.Errorf("%s/%03d: expected error for %q", t.Name(), idx, input)
		}
	}
}
