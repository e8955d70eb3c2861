package optimizer

import (
	"github.com/golang/glog"
	"github.com/samber/lo"

	"github.com/pattyshack/gt/parseutil"

	"github.com/pattyshack/assembly/asmerr"
	"github.com/pattyshack/assembly/object"
)

type sectionResize struct {
	variable []*object.Bytecode

	expanded     int
	lastExpanded *object.Bytecode
	errs         []error
}

// Recomputes the length of every size-variable bytecode.  Lengths never
// shrink within one optimization run: a module returning a smaller length
// than before is clamped to the previous length.
type resizer struct {
	parallel bool
	emitter  *parseutil.Emitter

	sections []*object.Section
	resizes  map[*object.Section]*sectionResize

	// Results of the latest pass.
	expanded     int
	lastExpanded *object.Bytecode
}

func newResizer(parallel bool, emitter *parseutil.Emitter) *resizer {
	return &resizer{
		parallel: parallel,
		emitter:  emitter,
		resizes:  map[*object.Section]*sectionResize{},
	}
}

func (r *resizer) add(bc *object.Bytecode) {
	resize, ok := r.resizes[bc.Section]
	if !ok {
		resize = &sectionResize{}
		r.resizes[bc.Section] = resize
		r.sections = append(r.sections, bc.Section)
	}
	resize.variable = append(resize.variable, bc)
}

func (r *resizer) numVariable() int {
	return lo.SumBy(
		lo.Values(r.resizes),
		func(resize *sectionResize) int {
			return len(resize.variable)
		})
}

func (*resizer) Name() string {
	return "resize"
}

func (r *resizer) Process(obj *object.Object) {
	for _, resize := range r.resizes {
		resize.expanded = 0
		resize.lastExpanded = nil
		resize.errs = nil
	}

	if r.parallel && len(r.sections) > 1 {
		forEachSection(r.sections, r.resizeSection)
	} else {
		for _, section := range r.sections {
			r.resizeSection(section)
		}
	}

	// Merge in section order for deterministic reporting.
	r.expanded = 0
	r.lastExpanded = nil
	for _, section := range r.sections {
		resize := r.resizes[section]
		r.expanded += resize.expanded
		if resize.lastExpanded != nil {
			r.lastExpanded = resize.lastExpanded
		}
		r.emitter.EmitErrors(resize.errs...)
	}
}

// Only mutates the section's own bytecodes' lengths, which are not read by
// any other section's resize.
func (r *resizer) resizeSection(section *object.Section) {
	resize := r.resizes[section]
	for _, bc := range resize.variable {
		length, err := bc.Content.ResolveLength(object.NewLengthContext(bc))
		if err != nil {
			resize.errs = append(
				resize.errs,
				asmerr.Wrap(err, "failed to resize %s", bc))
			return
		}

		if length < bc.Length {
			glog.V(2).Infof(
				"%s: clamped length %d to previous length %d",
				bc,
				length,
				bc.Length)
			continue
		}

		if length == bc.Length {
			continue
		}

		glog.V(2).Infof("%s: expanded from %d to %d", bc, bc.Length, length)
		bc.Length = length
		bc.Expansions++
		resize.expanded++
		resize.lastExpanded = bc
	}
}
