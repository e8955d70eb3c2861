package optimizer

import (
	"github.com/golang/glog"

	"github.com/pattyshack/gt/parseutil"

	"github.com/pattyshack/assembly/asmerr"
	"github.com/pattyshack/assembly/object"
)

const (
	// The automatic iteration bound is
	//   baseIterations + iterationsPerVariable * (# of variable bytecodes)
	//
	// Every productive iteration grows at least one bytecode, and well
	// behaved modules only have a handful of encodings per bytecode, hence
	// the bound is proportional to the number of size-variable bytecodes.
	baseIterations        = 8
	iterationsPerVariable = 4
)

type Config struct {
	// Zero selects the automatic bound.
	MaxIterations int `yaml:"max_iterations"`

	// Resize independent sections concurrently.  Offset assignment, symbol
	// resolution and the convergence check remain object wide.
	ParallelResize bool `yaml:"parallel_resize"`
}

type Stats struct {
	Iterations int

	// Total number of times any bytecode grew.
	Expansions int

	// Number of size-variable bytecodes.
	Variable int
}

// Optimizer drives the object's layout to a fixed point.  Offsets and
// lengths are mutated in place.
type Optimizer struct {
	object *object.Object
	config Config

	emitter *parseutil.Emitter

	offsets *offsetAssigner
	symbols *symbolResolver
	resizer *resizer

	seeded bool
	stats  Stats
}

func New(obj *object.Object, config Config) *Optimizer {
	emitter := &parseutil.Emitter{}
	return &Optimizer{
		object:  obj,
		config:  config,
		emitter: emitter,
		offsets: &offsetAssigner{},
		symbols: &symbolResolver{emitter: emitter},
		resizer: newResizer(config.ParallelResize, emitter),
	}
}

func Optimize(obj *object.Object, config Config) (Stats, error) {
	return New(obj, config).Run()
}

// MaxIterations returns the divergence bound.
func (opt *Optimizer) MaxIterations() int {
	if opt.config.MaxIterations > 0 {
		return opt.config.MaxIterations
	}
	return baseIterations + iterationsPerVariable*opt.resizer.numVariable()
}

// Seed assigns every bytecode its tentative length.  Sections are placed
// (with empty contents) beforehand so that tentative lengths may depend on
// section placement.
func (opt *Optimizer) Seed() error {
	if opt.seeded {
		return nil
	}
	opt.seeded = true

	runPasses(
		opt.object,
		[][]Pass{{opt.offsets}, {opt.symbols}},
		opt.emitter.HasErrors)
	if opt.emitter.HasErrors() {
		return asmerr.First(opt.emitter)
	}

	for _, section := range opt.object.Sections {
		for _, bc := range section.Bytecodes() {
			_, ok := bc.Content.(object.Padding)
			if ok {
				continue
			}

			length, err := bc.Content.TentativeLength(
				object.NewLengthContext(bc))
			if err != nil {
				return asmerr.Wrap(
					err,
					"failed to compute tentative length of %s",
					bc)
			}

			if length < 0 {
				return asmerr.New(
					asmerr.Module,
					bc.Loc(),
					"negative tentative length (%d) for %s",
					length,
					bc)
			}

			bc.Length = length
			if bc.Content.IsVariable() {
				opt.resizer.add(bc)
			}
		}
	}

	opt.stats.Variable = opt.resizer.numVariable()
	glog.V(1).Infof(
		"object %s: seeded %d bytecodes (%d variable)",
		opt.object.Name,
		opt.object.NumBytecodes(),
		opt.stats.Variable)
	return nil
}

// Iterate runs one round of offset assignment, symbol resolution and
// resizing.  It returns true if any bytecode's length changed.
func (opt *Optimizer) Iterate() (bool, error) {
	err := opt.Seed()
	if err != nil {
		return false, err
	}

	passes := [][]Pass{
		{opt.offsets},
		{opt.symbols},
		{opt.resizer},
	}

	runPasses(opt.object, passes, opt.emitter.HasErrors)
	if opt.emitter.HasErrors() {
		return false, asmerr.First(opt.emitter)
	}

	opt.stats.Iterations++
	opt.stats.Expansions += opt.resizer.expanded

	glog.V(1).Infof(
		"object %s: iteration %d expanded %d bytecodes",
		opt.object.Name,
		opt.stats.Iterations,
		opt.resizer.expanded)

	return opt.resizer.expanded > 0, nil
}

// Run iterates until the layout is stable, or fails with
// OptimizationDivergence once the iteration bound is exceeded.
func (opt *Optimizer) Run() (Stats, error) {
	err := opt.Seed()
	if err != nil {
		return opt.stats, err
	}

	bound := opt.MaxIterations()
	for i := 0; i < bound; i++ {
		changed, err := opt.Iterate()
		if err != nil {
			return opt.stats, err
		}

		if !changed {
			glog.V(1).Infof(
				"object %s: converged after %d iterations (%d expansions)",
				opt.object.Name,
				opt.stats.Iterations,
				opt.stats.Expansions)
			return opt.stats, nil
		}
	}

	loc := parseutil.Location{}
	culprit := "unknown"
	if opt.resizer.lastExpanded != nil {
		loc = opt.resizer.lastExpanded.Loc()
		culprit = opt.resizer.lastExpanded.String()
	}

	return opt.stats, asmerr.New(
		asmerr.OptimizationDivergence,
		loc,
		"layout did not converge after %d iterations (%s still growing)",
		bound,
		culprit)
}

// Assigns section addresses and bytecode offsets, and recomputes padding
// lengths.
type offsetAssigner struct{}

func (offsetAssigner) Name() string {
	return "offset assignment"
}

func (offsetAssigner) Process(obj *object.Object) {
	next := int64(0)
	for _, section := range obj.Sections {
		switch {
		case section.HasStart:
			section.Address = section.Start
			section.Placed = true
		case obj.Format.PlacesSections():
			section.Address = object.AlignUp(next, section.Alignment())
			section.Placed = true
		default:
			section.Address = 0
			section.Placed = false
		}

		offset := int64(0)
		for _, bc := range section.Bytecodes() {
			bc.Offset = offset

			padding, ok := bc.Content.(object.Padding)
			if ok {
				address := offset
				if section.Placed {
					address += section.Address
				}
				bc.Length = padding.PaddingLength(address, offset)
			}

			offset += bc.Length
		}
		section.Size = offset

		if section.Placed {
			next = section.Address + section.Size
		}
	}
}

type symbolResolver struct {
	emitter *parseutil.Emitter
}

func (*symbolResolver) Name() string {
	return "symbol resolution"
}

func (resolver *symbolResolver) Process(obj *object.Object) {
	numResolved, err := obj.Symbols.ResolvePass(obj)
	if err != nil {
		resolver.emitter.EmitErrors(err)
		return
	}

	glog.V(2).Infof(
		"object %s: %d symbols resolved",
		obj.Name,
		numResolved)
}
