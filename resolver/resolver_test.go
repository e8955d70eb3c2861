package resolver

import (
	"errors"
	"testing"

	"github.com/pattyshack/gt/parseutil"

	"github.com/pattyshack/assembly/asmerr"
	"github.com/pattyshack/assembly/expression"
	"github.com/pattyshack/assembly/object"
	"github.com/pattyshack/assembly/optimizer"
	"github.com/pattyshack/assembly/platform"
	"github.com/pattyshack/assembly/platform/flat"
	"github.com/pattyshack/assembly/platform/listing"
	"github.com/pattyshack/assembly/platform/x86"
	"github.com/pattyshack/assembly/relocation"
)

type testObject struct {
	*object.Object

	t *testing.T

	text *object.Section
}

func newTestObject(t *testing.T, format platform.Format) *testObject {
	obj := object.NewObject("test", x86.NewArchitecture(), format)
	text, err := obj.OpenSection(
		"text",
		object.SectionAttributes{Code: true},
		parseutil.Location{})
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", t.Name(), err)
	}

	return &testObject{
		Object: obj,
		t:      t,
		text:   text,
	}
}

func (obj *testObject) label(name string) {
	_, err := obj.DefineLabel(name, obj.text, parseutil.Location{})
	if err != nil {
		obj.t.Fatalf("%s: unexpected error: %v", obj.t.Name(), err)
	}
}

func (obj *testObject) append(content object.Content) *object.Bytecode {
	bc, err := obj.AppendBytecode(obj.text, content, parseutil.StartEndPos{})
	if err != nil {
		obj.t.Fatalf("%s: unexpected error: %v", obj.t.Name(), err)
	}
	return bc
}

func (obj *testObject) insn(
	mnemonic string,
	operands ...expression.Expr,
) *object.Bytecode {
	content, err := obj.NewInstruction(mnemonic, operands...)
	if err != nil {
		obj.t.Fatalf("%s: unexpected error: %v", obj.t.Name(), err)
	}
	return obj.append(content)
}

func (obj *testObject) build(
	op expression.Operator,
	operands ...expression.Expr,
) expression.Expr {
	expr, err := expression.Build(op, operands...)
	if err != nil {
		obj.t.Fatalf("%s: unexpected error: %v", obj.t.Name(), err)
	}
	return expr
}

// encode lays out the object and encodes every bytecode.
func (obj *testObject) encode() (*relocation.Emitter, error) {
	_, err := optimizer.Optimize(obj.Object, optimizer.Config{})
	if err != nil {
		obj.t.Fatalf("%s: unexpected error: %v", obj.t.Name(), err)
	}

	relocations := relocation.NewEmitter()
	resolver := NewResolver(obj.Object, relocations)
	for _, section := range obj.Sections {
		for _, bc := range section.All() {
			err := resolver.Encode(bc)
			if err != nil {
				return relocations, err
			}
		}
	}
	return relocations, nil
}

func sym(name string) expression.Expr {
	return expression.NewSymbolRef(name)
}

func num(value int64) expression.Expr {
	return expression.NewInt(value)
}

func TestResolve_externalPlusConstant(t *testing.T) {
	obj := newTestObject(t, listing.NewFormat())
	_, err := obj.DefineExternal("extern_sym", parseutil.Location{})
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", t.Name(), err)
	}

	obj.insn("nop")
	bc := obj.append(
		object.NewValues(
			4,
			platform.Either,
			obj.build(expression.Add, sym("extern_sym"), num(4))))

	relocations, err := obj.encode()
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", t.Name(), err)
	}

	relocs := relocations.Section("text")
	if len(relocs) != 1 {
		t.Fatalf("%s: expected 1 relocation, found %v", t.Name(), relocs)
	}

	reloc := relocs[0]
	if reloc.Kind != platform.AbsoluteRelocation ||
		reloc.Symbol != "extern_sym" ||
		reloc.SymbolIsSection ||
		reloc.Addend != 4 ||
		reloc.Offset != 1 ||
		reloc.Size != 4 {
		t.Errorf("%s: unexpected relocation %s", t.Name(), reloc)
	}

	for idx, b := range bc.Bytes {
		if b != 0 {
			t.Errorf("%s: expected zero field, byte %d is %x", t.Name(), idx, b)
		}
	}
}

func TestResolve_unsupportedByFlat(t *testing.T) {
	obj := newTestObject(t, flat.NewFormat())
	_, err := obj.DefineExternal("extern_sym", parseutil.Location{})
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", t.Name(), err)
	}

	obj.append(object.NewValues(4, platform.Either, sym("extern_sym")))

	relocations, err := obj.encode()
	if !errors.Is(err, asmerr.UnsupportedRelocation) {
		t.Fatalf("%s: expected unsupported relocation, found %v", t.Name(), err)
	}

	if relocations.Len() != 0 {
		t.Errorf("%s: expected no relocation, found %d", t.Name(), relocations.Len())
	}
}

func TestResolve_constants(t *testing.T) {
	obj := newTestObject(t, flat.NewFormat())
	obj.label("start")
	obj.insn("nop")
	obj.insn("nop")
	obj.label("end")
	bc := obj.append(
		object.NewValues(
			2,
			platform.Either,
			obj.build(expression.Sub, sym("end"), sym("start")),
			sym("end"),
			obj.build(expression.Neg, num(1))))

	relocations, err := obj.encode()
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", t.Name(), err)
	}

	if relocations.Len() != 0 {
		t.Errorf("%s: unexpected relocations", t.Name())
	}

	expected := []byte{0x02, 0x00, 0x02, 0x00, 0xff, 0xff}
	if string(bc.Bytes) != string(expected) {
		t.Errorf("%s: expected %x, found %x", t.Name(), expected, bc.Bytes)
	}
}

func TestResolve_relocatableDifference(t *testing.T) {
	obj := newTestObject(t, listing.NewFormat())
	obj.label("start")
	obj.insn("nop")
	obj.label("end")
	bc := obj.append(
		object.NewValues(
			1,
			platform.Either,
			obj.build(expression.Sub, sym("end"), sym("start"))))

	relocations, err := obj.encode()
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", t.Name(), err)
	}

	if relocations.Len() != 0 || len(bc.Bytes) != 1 || bc.Bytes[0] != 1 {
		t.Errorf(
			"%s: expected constant 1, found %x (%d relocations)",
			t.Name(),
			bc.Bytes,
			relocations.Len())
	}
}

func TestResolve_classification(t *testing.T) {
	obj := newTestObject(t, listing.NewFormat())
	data, err := obj.OpenSection(
		"data",
		object.SectionAttributes{},
		parseutil.Location{})
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", t.Name(), err)
	}

	_, err = obj.DefineExternal("ext", parseutil.Location{})
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", t.Name(), err)
	}

	_, err = obj.DefineLabel("table", data, parseutil.Location{})
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", t.Name(), err)
	}

	obj.label("start")
	obj.insn("call", sym("ext"))
	obj.label("here")
	obj.append(
		object.NewValues(
			8,
			platform.Either,
			obj.build(expression.Sub, sym("ext"), sym("here")),
			obj.build(expression.Sub, sym("table"), sym("ext")),
			obj.build(expression.Add, sym("table"), num(8))))
	obj.append(
		object.NewValues(
			2,
			platform.Unsigned,
			obj.build(expression.SegmentOf, sym("start"))))

	relocations, err := obj.encode()
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", t.Name(), err)
	}

	expected := []platform.Relocation{
		{
			Kind:   platform.RelativeRelocation,
			Offset: 1,
			Symbol: "ext",
			Addend: -4,
			Size:   4,
		},
		{
			Kind:   platform.RelativeRelocation,
			Offset: 5,
			Symbol: "ext",
			Addend: 0,
			Size:   8,
		},
		{
			Kind:            platform.DifferenceRelocation,
			Offset:          13,
			Symbol:          "data",
			SymbolIsSection: true,
			Subtrahend:      "ext",
			Addend:          0,
			Size:            8,
		},
		{
			Kind:            platform.AbsoluteRelocation,
			Offset:          21,
			Symbol:          "data",
			SymbolIsSection: true,
			Addend:          8,
			Size:            8,
		},
		{
			Kind:            platform.SegmentRelocation,
			Offset:          29,
			Symbol:          "text",
			SymbolIsSection: true,
			Size:            2,
		},
	}

	relocs := relocations.Section("text")
	if len(relocs) != len(expected) {
		t.Fatalf(
			"%s: expected %d relocations, found %v",
			t.Name(),
			len(expected),
			relocs)
	}

	for idx, reloc := range relocs {
		exp := expected[idx]
		if reloc.Kind != exp.Kind ||
			reloc.Offset != exp.Offset ||
			reloc.Symbol != exp.Symbol ||
			reloc.SymbolIsSection != exp.SymbolIsSection ||
			reloc.Subtrahend != exp.Subtrahend ||
			reloc.Addend != exp.Addend ||
			reloc.Size != exp.Size {
			t.Errorf(
				"%s/%03d: expected %s, found %s",
				t.Name(),
				idx,
				exp,
				reloc)
		}
	}
}

func TestResolve_errors(t *testing.T) {
	type testCase struct {
		values   []expression.Expr
		size     int
		expected asmerr.Kind
	}

	cases := []testCase{
		{[]expression.Expr{num(300)}, 1, asmerr.ValueOverflow},
		{[]expression.Expr{num(-70000)}, 2, asmerr.ValueOverflow},
		{[]expression.Expr{sym("missing")}, 4, asmerr.UndefinedSymbol},
		{
			[]expression.Expr{expression.NewRegisterRef("rax")},
			8,
			asmerr.Semantic,
		},
		{
			[]expression.Expr{
				&expression.Operation{
					Op:       expression.Mul,
					Operands: []expression.Expr{sym("ext"), num(2)},
				},
			},
			8,
			asmerr.UnsupportedRelocation,
		},
	}

	for idx, tc := range cases {
		obj := newTestObject(t, listing.NewFormat())
		_, err := obj.DefineExternal("ext", parseutil.Location{})
		if err != nil {
			t.Fatalf("%s/%03d: unexpected error: %v", t.Name(), idx, err)
		}

		obj.append(object.NewValues(tc.size, platform.Either, tc.values...))

		_, err = obj.encode()
		if !errors.Is(err, tc.expected) {
			t.Errorf(
				"%s/%03d: expected %s, found %v",
				t.Name(),
				idx,
				tc.expected,
				err)
		}
	}
}

func TestResolve_overflowLocation(t *testing.T) {
	obj := newTestObject(t, flat.NewFormat())

	value := expression.NewInt(1000)
	loc := parseutil.Location{FileName: "test.s", Line: 3, Column: 7}
	value.StartEndPos = parseutil.NewStartEndPos(loc, loc)
	obj.append(object.NewValues(1, platform.Signed, value))

	_, err := obj.encode()

	var asmErr *asmerr.Error
	if !errors.As(err, &asmErr) ||
		asmErr.Kind != asmerr.ValueOverflow ||
		asmErr.Loc != loc {
		t.Errorf("%s: expected located value overflow, found %v", t.Name(), err)
	}
}
