package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/k0kubun/pp/v3"

	"github.com/pattyshack/assembly/asmerr"
	"github.com/pattyshack/assembly/assembler"
	"github.com/pattyshack/assembly/config"
	"github.com/pattyshack/assembly/description"
	"github.com/pattyshack/assembly/object"
)

var (
	configFile = flag.String("config", "", "yaml configuration file")
	output     = flag.String("o", "", "output file (defaults to stdout)")
	dump       = flag.Bool("dump", false, "dump the resolved object layout")
	stats      = flag.Bool("stats", false, "print optimizer statistics")
)

var exitCodes = map[asmerr.Kind]int{
	asmerr.DuplicateDefinition:    2,
	asmerr.UndefinedSymbol:        3,
	asmerr.OptimizationDivergence: 4,
	asmerr.ValueOverflow:          5,
	asmerr.UnsupportedRelocation:  6,
	asmerr.Semantic:               7,
	asmerr.Module:                 8,
}

func main() {
	flag.Parse()
	defer glog.Flush()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: asmresolve [flags] <object description>")
		os.Exit(1)
	}

	err := run(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		glog.Flush()
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	kind, ok := asmerr.KindOf(err)
	if !ok {
		return 1
	}
	return exitCodes[kind]
}

func run(fileName string) error {
	cfg := config.Default()
	if *configFile != "" {
		var err error
		cfg, err = config.LoadFile(*configFile)
		if err != nil {
			return err
		}
	}

	obj, err := description.LoadFile(fileName, cfg)
	if err != nil {
		return err
	}

	glog.V(1).Infof(
		"assembling %s (%s / %s)",
		obj.Name,
		cfg.Architecture,
		cfg.Format)

	buffer := &bytes.Buffer{}
	result, err := assembler.AssembleTo(buffer, obj, cfg.Optimizer)
	if err != nil {
		return err
	}

	if *dump {
		fmt.Fprintln(os.Stderr, object.DumpString(obj))
	}

	if *stats {
		pp.Fprintln(os.Stderr, result.Stats)
	}

	if *output == "" {
		_, err = os.Stdout.Write(buffer.Bytes())
		return err
	}

	return os.WriteFile(*output, buffer.Bytes(), 0644)
}
