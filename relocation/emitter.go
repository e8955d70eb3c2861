package relocation

import (
	"iter"
	"slices"

	"github.com/pattyshack/assembly/platform"
)

// Emitter accumulates the relocations produced by the final encoding pass.
// Relocations are grouped by section and ordered by offset; relocations at
// the same offset keep their emission order.
type Emitter struct {
	sections map[string][]platform.Relocation

	// Sections in order of first emission.
	order []string

	count int
}

func NewEmitter() *Emitter {
	return &Emitter{
		sections: map[string][]platform.Relocation{},
	}
}

func (emitter *Emitter) Emit(reloc platform.Relocation) {
	relocs, ok := emitter.sections[reloc.Section]
	if !ok {
		emitter.order = append(emitter.order, reloc.Section)
	}

	// Encoding walks each section in order, hence this is usually an append.
	idx := len(relocs)
	for idx > 0 && relocs[idx-1].Offset > reloc.Offset {
		idx--
	}

	emitter.sections[reloc.Section] = slices.Insert(relocs, idx, reloc)
	emitter.count++
}

func (emitter *Emitter) Len() int {
	return emitter.count
}

// Section returns the named section's relocations, sorted by offset.
func (emitter *Emitter) Section(name string) []platform.Relocation {
	return emitter.sections[name]
}

// Sections returns the names of all sections with relocations.
func (emitter *Emitter) Sections() []string {
	return emitter.order
}

// All returns every relocation, grouped by section in order of first
// emission.
func (emitter *Emitter) All() iter.Seq[platform.Relocation] {
	return func(yield func(platform.Relocation) bool) {
		for _, name := range emitter.order {
			for _, reloc := range emitter.sections[name] {
				if !yield(reloc) {
					return
				}
			}
		}
	}
}
