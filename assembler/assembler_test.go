package assembler

import (
	"bytes"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/renstrom/dedent"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/pattyshack/assembly/asmerr"
	"github.com/pattyshack/assembly/config"
	"github.com/pattyshack/assembly/description"
	"github.com/pattyshack/assembly/platform"
)

var reNL = regexp.MustCompile(`(?m)^`)

func diff(l, r string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(l, r, false)
	pretty := dmp.DiffPrettyText(diffs)
	return reNL.ReplaceAllLiteralString(pretty, "\t")
}

func assemble(
	arch platform.ArchitectureName,
	format platform.FormatName,
	desc string,
) (
	[]byte,
	*Result,
	error,
) {
	cfg := config.Default()
	cfg.Architecture = arch
	cfg.Format = format

	obj, err := description.Load(
		"test.yaml",
		strings.NewReader(dedent.Dedent(desc)),
		cfg)
	if err != nil {
		return nil, nil, err
	}

	buffer := &bytes.Buffer{}
	result, err := AssembleTo(buffer, obj, cfg.Optimizer)
	return buffer.Bytes(), result, err
}

func TestAssemble_flat(t *testing.T) {
	type testrow struct {
		Arch     platform.ArchitectureName
		Input    string
		Expected []byte
	}

	data := []testrow{
		{
			Arch: platform.X86,
			Input: `
				sections:
				  - name: text
				    code: true
				    contents:
				      - label: start
				      - insn: jmp
				        operands: [done]
				      - insn: mov
				        operands: ["%rax", 60]
				      - insn: push
				        operands: ["%r12"]
				      - insn: syscall
				      - label: done
				      - insn: ret
			`,
			Expected: []byte{
				0xeb, 0x0b,                               // jmp done
				0x48, 0xc7, 0xc0, 0x3c, 0x00, 0x00, 0x00, // mov rax, 60
				0x41, 0x54,                               // push r12
				0x0f, 0x05,                               // syscall
				0xc3,                                     // ret
			},
		},
		{
			Arch: platform.X86,
			Input: `
				sections:
				  - name: text
				    code: true
				    contents:
				      - insn: call
				        operands: [func]
				      - insn: hlt
				      - align: {boundary: 16, fill: 0xcc}
				      - label: func
				      - insn: ret
				  - name: data
				    align: 8
				    contents:
				      - data: {size: 8, values: [func]}
				      - data: {size: 2, signed: true, values: [{neg: 2}, "ok"]}
			`,
			Expected: []byte{
				0xe8, 0x0b, 0x00, 0x00, 0x00, // call func
				0xf4,                         // hlt
				0xcc, 0xcc, 0xcc, 0xcc, 0xcc, 0xcc, 0xcc, 0xcc, 0xcc, 0xcc,
				0xc3,                                           // func: ret
				0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,       // section gap
				0x10, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // func
				0xfe, 0xff,                                     // -2
				'o', 'k',
			},
		},
		{
			Arch: platform.Mips,
			Input: `
				sections:
				  - name: text
				    start: 0x400000
				    code: true
				    contents:
				      - label: loop
				      - insn: addiu
				        operands: ["%r8", "%r8", -1]
				      - insn: bne
				        operands: ["%r8", "%r0", loop]
				      - insn: nop
				      - insn: j
				        operands: [loop]
				      - insn: lui
				        operands: ["%r9", {shr: [0x12345678, 16]}]
				      - insn: sll
				        operands: ["%r2", "%r3", 4]
			`,
			Expected: []byte{
				0xff, 0xff, 0x08, 0x25, // addiu r8, r8, -1
				0xfe, 0xff, 0x00, 0x15, // bne r8, r0, loop
				0x00, 0x00, 0x00, 0x00, // nop
				0x00, 0x00, 0x10, 0x08, // j loop
				0x34, 0x12, 0x09, 0x3c, // lui r9, 0x1234
				0x00, 0x11, 0x03, 0x00, // sll r2, r3, 4
			},
		},
		{
			Arch: platform.X86,
			Input: `
				equates:
				  - name: pi
				    value: 1.5
				  - name: twice
				    value: {mul: [pi, 2]}
				sections:
				  - name: data
				    contents:
				      - data: {size: 4, values: [pi, 2]}
				      - data: {size: 8, values: [twice]}
			`,
			Expected: []byte{
				0x00, 0x00, 0xc0, 0x3f,                         // pi
				0x02, 0x00, 0x00, 0x00,                         // 2
				0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x08, 0x40, // twice
			},
		},
	}

	for i, row := range data {
		actual, _, err := assemble(row.Arch, platform.Flat, row.Input)
		if err != nil {
			t.Errorf("%s/%03d: error: %v", t.Name(), i, err)
			continue
		}

		if !bytes.Equal(actual, row.Expected) {
			t.Errorf(
				"%s/%03d: wrong output:\n\texpected: %x\n\tactual:   %x",
				t.Name(),
				i,
				row.Expected,
				actual)
		}
	}
}

func TestAssemble_listing(t *testing.T) {
	input := `
		name: listing
		globals: [main]
		externs: [puts]
		sections:
		  - name: text
		    code: true
		    contents:
		      - label: main
		      - insn: call
		        operands: [puts]
		      - insn: mov
		        operands: ["%rdi", message]
		      - insn: ret
		  - name: rodata
		    contents:
		      - label: message
		      - string: "hi\n"
		      - data: {size: 1, values: [0]}
		      - label: message_end
		equates:
		  - name: message_len
		    value: {sub: [message_end, message]}
	`

	expected := `
		architecture: x86
		address_size: 64
		sections:
		  - name: text
		    align: 1
		    code: true
		    size: 16
		    bytes: "e80000000048bf0000000000000000c3"
		    relocations:
		      - offset: 1
		        kind: relative
		        size: 4
		        symbol: puts
		        addend: -4
		      - offset: 7
		        kind: absolute
		        size: 8
		        symbol: '[rodata]'
		        addend: 0
		  - name: rodata
		    align: 1
		    size: 4
		    bytes: "68690a00"
		symbols:
		  - name: main
		    binding: global
		    status: defined-relocatable
		    section: text
		    value: 0
		  - name: puts
		    binding: global
		    status: external
		    value: 0
		  - name: message_end
		    binding: local
		    status: defined-relocatable
		    section: rodata
		    value: 4
		  - name: message
		    binding: local
		    status: defined-relocatable
		    section: rodata
		    value: 0
		  - name: message_len
		    binding: local
		    status: defined-absolute
		    value: 4
	`

	actual, result, err := assemble(platform.X86, platform.Listing, input)
	if err != nil {
		t.Fatalf("%s: error: %v", t.Name(), err)
	}

	expected = dedent.Dedent(expected)[1:]
	if string(actual) != expected {
		t.Errorf(
			"%s: wrong output:\n%s",
			t.Name(),
			diff(expected, string(actual)))
	}

	if result.Relocations.Len() != 2 || result.Stats.Expansions != 1 {
		t.Errorf(
			"%s: unexpected result (%d relocations, %+v)",
			t.Name(),
			result.Relocations.Len(),
			result.Stats)
	}
}

func TestAssemble_errors(t *testing.T) {
	type testrow struct {
		Arch     platform.ArchitectureName
		Format   platform.FormatName
		Input    string
		Expected asmerr.Kind
	}

	data := []testrow{
		{
			Arch:   platform.X86,
			Format: platform.Flat,
			Input: `
				sections:
				  - name: text
				    contents:
				      - label: start
				      - label: start
			`,
			Expected: asmerr.DuplicateDefinition,
		},
		{
			Arch:   platform.X86,
			Format: platform.Flat,
			Input: `
				sections:
				  - name: text
				    contents:
				      - insn: jmp
				        operands: [nowhere]
			`,
			Expected: asmerr.UndefinedSymbol,
		},
		{
			Arch:   platform.X86,
			Format: platform.Flat,
			Input: `
				externs: [puts]
				sections:
				  - name: text
				    contents:
				      - insn: call
				        operands: [puts]
			`,
			Expected: asmerr.UnsupportedRelocation,
		},
		{
			Arch:   platform.X86,
			Format: platform.Flat,
			Input: `
				sections:
				  - name: data
				    contents:
				      - data: {size: 1, values: [256]}
			`,
			Expected: asmerr.ValueOverflow,
		},
		{
			Arch:   platform.Mips,
			Format: platform.Flat,
			Input: `
				sections:
				  - name: text
				    contents:
				      - insn: beq
				        operands: ["%r1", "%r2", far]
				      - gap: 0x40000
				      - label: far
			`,
			Expected: asmerr.ValueOverflow,
		},
		{
			Arch:   platform.Mips,
			Format: platform.Flat,
			Input: `
				sections:
				  - name: text
				    contents:
				      - insn: add
				        operands: ["%r1", "%r2", "%rax"]
			`,
			Expected: asmerr.Semantic,
		},
		{
			Arch:   platform.X86,
			Format: platform.Flat,
			Input: `
				sections:
				  - name: bss
				    nobits: true
				    contents:
				      - data: {size: 4, values: [1]}
			`,
			Expected: asmerr.Semantic,
		},
		{
			Arch:   platform.X86,
			Format: platform.Listing,
			Input: `
				sections:
				  - name: text
				    contents:
				      - label: start
				      - data: {size: 4, values: [{mul: [start, 2]}]}
			`,
			Expected: asmerr.UnsupportedRelocation,
		},
	}

	for i, row := range data {
		_, _, err := assemble(row.Arch, row.Format, row.Input)
		if !errors.Is(err, row.Expected) {
			t.Errorf(
				"%s/%03d: expected %s, found %v",
				t.Name(),
				i,
				row.Expected,
				err)
		}
	}
}

func TestAssemble_noBits(t *testing.T) {
	actual, result, err := assemble(
		platform.X86,
		platform.Listing,
		`
		sections:
		  - name: bss
		    nobits: true
		    align: 16
		    contents:
		      - reserve: {count: 3, size: 8}
		      - align: {boundary: 16}
		      - label: end
		`)
	if err != nil {
		t.Fatalf("%s: error: %v", t.Name(), err)
	}

	section := result.Output.Sections[0]
	if section.Size != 32 || section.Bytes != nil {
		t.Errorf(
			"%s: unexpected bss section (size %d, %d bytes)",
			t.Name(),
			section.Size,
			len(section.Bytes))
	}

	if bytes.Contains(actual, []byte("bytes:")) {
		t.Errorf("%s: nobits section serialized with content", t.Name())
	}
}
