package object

import (
	"errors"
	"regexp"
	"testing"

	"github.com/pattyshack/gt/parseutil"
	"github.com/renstrom/dedent"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/pattyshack/assembly/asmerr"
	"github.com/pattyshack/assembly/expression"
	"github.com/pattyshack/assembly/platform"
	"github.com/pattyshack/assembly/platform/flat"
	"github.com/pattyshack/assembly/platform/x86"
)

var reNL = regexp.MustCompile(`(?m)^`)

func diff(l, r string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(l, r, false)
	pretty := dmp.DiffPrettyText(diffs)
	return reNL.ReplaceAllLiteralString(pretty, "\t")
}

func newTestObject() *Object {
	return NewObject("test", x86.NewArchitecture(), flat.NewFormat())
}

func TestOpenSection(t *testing.T) {
	obj := newTestObject()
	loc := parseutil.Location{}

	text, err := obj.OpenSection("text", SectionAttributes{Align: 4}, loc)
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", t.Name(), err)
	}

	reopened, err := obj.OpenSection("text", SectionAttributes{Align: 16}, loc)
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", t.Name(), err)
	}

	if reopened != text || text.Alignment() != 16 || text.Index != 0 {
		t.Errorf("%s: expected reopened section with raised alignment", t.Name())
	}

	_, err = obj.OpenSection("text", SectionAttributes{Align: 2}, loc)
	if err != nil || text.Alignment() != 16 {
		t.Errorf("%s: alignment must never be lowered (%v)", t.Name(), err)
	}

	type testrow struct {
		Name  string
		Attrs SectionAttributes
	}

	data := []testrow{
		{"text", SectionAttributes{HasStart: true, Start: 0x1000}},
		{"text", SectionAttributes{NoBits: true}},
		{"data", SectionAttributes{Align: 3}},
		{"data", SectionAttributes{Align: -4}},
	}

	for i, row := range data {
		_, err := obj.OpenSection(row.Name, row.Attrs, loc)
		if !errors.Is(err, asmerr.Semantic) {
			t.Errorf(
				"%s/%03d: expected semantic error, found %v",
				t.Name(),
				i,
				err)
		}
	}

	if len(obj.Sections) != 1 {
		t.Errorf("%s: failed opens must not create sections", t.Name())
	}
}

func TestAppendBytecode(t *testing.T) {
	obj := newTestObject()
	loc := parseutil.Location{}

	bss, err := obj.OpenSection("bss", SectionAttributes{NoBits: true}, loc)
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", t.Name(), err)
	}

	_, err = obj.AppendBytecode(
		bss,
		NewReserve(expression.NewInt(4), 8),
		parseutil.StartEndPos{})
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", t.Name(), err)
	}

	_, err = obj.AppendBytecode(
		bss,
		NewAlign(32, nil, 0),
		parseutil.StartEndPos{})
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", t.Name(), err)
	}

	if bss.Alignment() != 32 {
		t.Errorf("%s: expected align content to raise section alignment", t.Name())
	}

	for _, boundary := range []int64{0, 3, 48, -8} {
		_, err = obj.AppendBytecode(
			bss,
			NewAlign(boundary, nil, 0),
			parseutil.StartEndPos{})
		if !errors.Is(err, asmerr.Semantic) {
			t.Errorf(
				"%s: expected semantic error for boundary %d, found %v",
				t.Name(),
				boundary,
				err)
		}
	}

	if bss.Alignment() != 32 {
		t.Errorf(
			"%s: rejected boundary changed section alignment to %d",
			t.Name(),
			bss.Alignment())
	}

	_, err = obj.AppendBytecode(
		bss,
		NewValues(4, platform.Either, expression.NewInt(1)),
		parseutil.StartEndPos{})
	if !errors.Is(err, asmerr.Semantic) {
		t.Errorf("%s: expected semantic error, found %v", t.Name(), err)
	}

	_, err = obj.AppendBytecode(
		bss,
		NewReserve(expression.NewRegisterRef("r99"), 1),
		parseutil.StartEndPos{})
	if !errors.Is(err, asmerr.Semantic) {
		t.Errorf("%s: expected unknown register error, found %v", t.Name(), err)
	}

	other := newTestObject()
	foreign, _ := other.OpenSection("bss", SectionAttributes{}, loc)
	_, err = obj.AppendBytecode(foreign, NewGap(1), parseutil.StartEndPos{})
	if !errors.Is(err, asmerr.Semantic) {
		t.Errorf("%s: expected foreign section error, found %v", t.Name(), err)
	}

	if bss.Len() != 2 || bss.Bytecode(1).Index != 1 {
		t.Errorf("%s: unexpected bytecodes %v", t.Name(), bss.Bytecodes())
	}
}

func TestAppendBytecode_registersReferences(t *testing.T) {
	obj := newTestObject()
	text, _ := obj.OpenSection("text", SectionAttributes{}, parseutil.Location{})

	_, err := obj.AppendBytecode(
		text,
		NewValues(
			8,
			platform.Either,
			expression.Difference(
				expression.NewSymbolRef("end"),
				expression.NewSymbolRef("start"))),
		parseutil.StartEndPos{})
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", t.Name(), err)
	}

	for _, name := range []string{"end", "start"} {
		sym, ok := obj.Symbols.Lookup(name)
		if !ok || sym.IsDefined() || !sym.Referenced {
			t.Errorf("%s: expected referenced undefined %s", t.Name(), name)
		}
	}
}

func TestOffsetOf(t *testing.T) {
	obj := newTestObject()
	text, _ := obj.OpenSection("text", SectionAttributes{}, parseutil.Location{})

	for _, size := range []int64{3, 5} {
		bc, err := obj.AppendBytecode(text, NewGap(size), parseutil.StartEndPos{})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", t.Name(), err)
		}
		bc.Offset = text.Size
		bc.Length = size
		text.Size += size
	}

	expected := []int64{0, 3, 8}
	for idx, offset := range expected {
		actual, err := text.OffsetOf(idx)
		if err != nil || actual != offset {
			t.Errorf(
				"%s/%03d: expected %d, found %d (%v)",
				t.Name(),
				idx,
				offset,
				actual,
				err)
		}
	}

	_, err := text.OffsetOf(3)
	if err == nil {
		t.Errorf("%s: expected out of range error", t.Name())
	}

	value, err := obj.LabelValue("text", 1)
	if err != nil || value.String() != "([text] + 3)" {
		t.Errorf("%s: unexpected relocatable label value %v (%v)", t.Name(), value, err)
	}

	text.Placed = true
	text.Address = 0x100
	value, err = obj.LabelValue("text", 2)
	if err != nil || value.String() != "264" {
		t.Errorf("%s: unexpected placed label value %v (%v)", t.Name(), value, err)
	}
}

func TestAlignUp(t *testing.T) {
	type testrow struct {
		Value    int64
		Boundary int64
		Expected int64
	}

	data := []testrow{
		{0, 16, 0},
		{1, 16, 16},
		{16, 16, 16},
		{17, 8, 24},
		{5, 1, 5},
		{5, 0, 5},
		{-3, 4, 0},
	}

	for i, row := range data {
		actual := AlignUp(row.Value, row.Boundary)
		if actual != row.Expected {
			t.Errorf(
				"%s/%03d: AlignUp(%d, %d) expected %d, found %d",
				t.Name(),
				i,
				row.Value,
				row.Boundary,
				row.Expected,
				actual)
		}
	}
}

func TestPaddingLength(t *testing.T) {
	align := NewAlign(16, nil, 0)
	if align.PaddingLength(0x1003, 3) != 13 {
		t.Errorf("%s: align pads by address", t.Name())
	}

	skip := NewAlign(16, nil, 4)
	if skip.PaddingLength(3, 3) != 0 || skip.PaddingLength(13, 13) != 3 {
		t.Errorf("%s: unexpected max skip behavior", t.Name())
	}

	org := NewOrg(0x40, 0)
	if org.PaddingLength(0x1010, 0x10) != 0x30 {
		t.Errorf("%s: org pads by section offset", t.Name())
	}

	if org.PaddingLength(0x1050, 0x50) != 0 {
		t.Errorf("%s: org behind position must not pad", t.Name())
	}
}

func TestDump(t *testing.T) {
	obj := newTestObject()
	text, _ := obj.OpenSection(
		"text",
		SectionAttributes{Code: true},
		parseutil.Location{})
	_, _ = obj.OpenSection("empty", SectionAttributes{}, parseutil.Location{})

	_, err := obj.DefineLabel("start", text, parseutil.Location{})
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", t.Name(), err)
	}

	nop, err := obj.NewInstruction("nop")
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", t.Name(), err)
	}

	for _, content := range []Content{
		nop,
		NewValues(2, platform.Either, expression.NewSymbolRef("start")),
		NewAlign(8, nil, 0),
	} {
		_, err := obj.AppendBytecode(text, content, parseutil.StartEndPos{})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", t.Name(), err)
		}
	}

	expected := dedent.Dedent(`
		[Object: Name=test Architecture=x86 Format=flat
		  Section0=[Section: Name=text Address=(relocatable) Align=8 Size=0 Code
		    Bytecode0=[instruction: Offset=0x0 Length=0 Content=(nop)]
		    Bytecode1=[data: Offset=0x0 Length=0 Content=(data start:2)]
		    Bytecode2=[align: Offset=0x0 Length=0 Content=(align 8)]
		  ]
		  Section1=[Section: Name=empty Address=(relocatable) Align=1 Size=0]
		  Symbol0=[Symbol: start (defined-relocatable, local, text#0) Value=unresolved()]
		]
	`)[1:]

	actual := DumpString(obj)
	if actual != expected {
		t.Errorf("%s: unexpected dump:\n%s", t.Name(), diff(expected, actual))
	}
}
