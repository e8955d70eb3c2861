package assembler

import (
	"bytes"
	"io"

	"github.com/golang/glog"

	"github.com/pattyshack/assembly/asmerr"
	"github.com/pattyshack/assembly/expression"
	"github.com/pattyshack/assembly/object"
	"github.com/pattyshack/assembly/optimizer"
	"github.com/pattyshack/assembly/platform"
	"github.com/pattyshack/assembly/relocation"
	"github.com/pattyshack/assembly/resolver"
	"github.com/pattyshack/assembly/symbol"
)

type Result struct {
	Output      *platform.Output
	Relocations *relocation.Emitter
	Stats       optimizer.Stats
}

// Assemble runs the whole resolution pipeline on a fully constructed
// object: layout optimization, symbol finalization, value resolution /
// encoding and relocation emission.  No output is produced on failure.
func Assemble(obj *object.Object, config optimizer.Config) (*Result, error) {
	stats, err := optimizer.Optimize(obj, config)
	if err != nil {
		return nil, err
	}

	err = obj.Symbols.Finalize()
	if err != nil {
		return nil, err
	}

	relocations := relocation.NewEmitter()
	valueResolver := resolver.NewResolver(obj, relocations)
	for _, section := range obj.Sections {
		for _, bc := range section.All() {
			err := valueResolver.Encode(bc)
			if err != nil {
				return nil, err
			}
		}
	}

	glog.V(1).Infof(
		"object %s: encoded %d bytecodes, emitted %d relocations",
		obj.Name,
		obj.NumBytecodes(),
		relocations.Len())

	output, err := newOutput(obj, relocations)
	if err != nil {
		return nil, err
	}

	return &Result{
		Output:      output,
		Relocations: relocations,
		Stats:       stats,
	}, nil
}

// AssembleTo assembles the object and serializes the result with the
// object's format.
func AssembleTo(
	writer io.Writer,
	obj *object.Object,
	config optimizer.Config,
) (
	*Result,
	error,
) {
	result, err := Assemble(obj, config)
	if err != nil {
		return nil, err
	}

	buffer := &bytes.Buffer{}
	err = obj.Format.Serialize(buffer, result.Output)
	if err != nil {
		return nil, asmerr.Wrap(
			err,
			"failed to serialize %s as %s",
			obj.Name,
			obj.Format.Name())
	}

	_, err = writer.Write(buffer.Bytes())
	if err != nil {
		return nil, err
	}

	return result, nil
}

func newOutput(
	obj *object.Object,
	relocations *relocation.Emitter,
) (
	*platform.Output,
	error,
) {
	output := &platform.Output{
		Architecture: obj.Architecture.Name(),
		AddressSize:  obj.Architecture.AddressSize(),
	}

	for _, section := range obj.Sections {
		var content []byte
		if !section.NoBits {
			content = make([]byte, 0, section.Size)
			for _, bc := range section.All() {
				content = append(content, bc.Bytes...)
			}
		}

		output.Sections = append(
			output.Sections,
			&platform.OutputSection{
				Name:        section.Name,
				Align:       section.Alignment(),
				Code:        section.Code,
				NoBits:      section.NoBits,
				Address:     section.Address,
				Placed:      section.Placed,
				Size:        section.Size,
				Bytes:       content,
				Relocations: relocations.Section(section.Name),
			})
	}

	for _, sym := range obj.Symbols.Symbols() {
		outSym, ok, err := newOutputSymbol(obj, sym)
		if err != nil {
			return nil, err
		}

		if ok {
			output.Symbols = append(output.Symbols, outSym)
		}
	}

	return output, nil
}

func newOutputSymbol(
	obj *object.Object,
	sym *symbol.Symbol,
) (
	platform.OutputSymbol,
	bool,
	error,
) {
	outSym := platform.OutputSymbol{
		Name:   sym.Name,
		Global: sym.Visibility == symbol.Global,
		Status: string(sym.Status),
	}

	switch sym.Status {
	case symbol.Undefined:
		// Unreferenced local declaration.
		return outSym, false, nil
	case symbol.External:
		return outSym, true, nil
	case symbol.Common:
		result, err := expression.Substitute(sym.Expr, obj.Environment())
		if err != nil {
			return outSym, false, err
		}

		size, ok := result.Int()
		if !ok || size < 0 {
			return outSym, false, asmerr.New(
				asmerr.Semantic,
				sym.DefinedAt,
				"common symbol %s has invalid size (%s)",
				sym.Name,
				result)
		}

		outSym.Value = size
		return outSym, true, nil
	}

	switch sym.Value.State {
	case expression.Resolved:
		value, ok := sym.Value.Int()
		if !ok {
			// Floating point equates have no object representation.
			return outSym, false, nil
		}

		outSym.Value = value
		if sym.Status == symbol.DefinedRelocatable {
			section, _ := obj.LookupSection(sym.Section)
			outSym.Section = section.Name
			outSym.Value -= section.Address
		}
		return outSym, true, nil
	case expression.PartiallyResolved:
		linear, err := expression.Linearize(sym.Value.Expr)
		if err == nil &&
			len(linear.Terms) == 1 &&
			linear.Terms[0].Coefficient == 1 {

			base, ok := linear.Terms[0].Base.(*expression.SectionBase)
			if ok {
				outSym.Status = string(symbol.DefinedRelocatable)
				outSym.Section = base.Section
				outSym.Value = linear.Constant
				return outSym, true, nil
			}
		}
	}

	if outSym.Global {
		return outSym, false, asmerr.New(
			asmerr.UnsupportedRelocation,
			sym.DefinedAt,
			"global symbol %s value (%s) has no object representation",
			sym.Name,
			sym.Value)
	}

	glog.V(1).Infof("dropping local symbol %s (%s)", sym.Name, sym.Value)
	return outSym, false, nil
}
