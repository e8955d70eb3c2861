package object

import (
	"bytes"
	"fmt"
	"io"
)

const (
	indent = "  "
)

func DumpString(obj *Object) string {
	buffer := &bytes.Buffer{}
	_ = Dump(buffer, obj)
	return buffer.String()
}

// Dump writes the object's current layout (sections, bytecodes and symbol
// values) as an indented tree.
func Dump(output io.Writer, obj *Object) error {
	printer := &dumpPrinter{
		writer: output,
	}
	printer.object(obj)
	return printer.err
}

type dumpPrinter struct {
	indent string
	writer io.Writer
	err    error
}

func (printer *dumpPrinter) write(format string, args ...interface{}) {
	if printer.err != nil {
		return
	}

	if len(args) == 0 {
		_, printer.err = printer.writer.Write([]byte(format))
	} else {
		_, printer.err = fmt.Fprintf(printer.writer, format, args...)
	}
}

func (printer *dumpPrinter) line(format string, args ...interface{}) {
	printer.write("\n")
	printer.write(printer.indent)
	printer.write(format, args...)
}

func (printer *dumpPrinter) push() {
	printer.indent += indent
}

func (printer *dumpPrinter) pop() {
	printer.indent = printer.indent[:len(printer.indent)-len(indent)]
	printer.line("]")
}

func (printer *dumpPrinter) object(obj *Object) {
	printer.write(
		"[Object: Name=%s Architecture=%s Format=%s",
		obj.Name,
		obj.Architecture.Name(),
		obj.Format.Name())
	printer.push()

	for idx, section := range obj.Sections {
		printer.line("Section%d=", idx)
		printer.section(section)
	}

	for idx, sym := range obj.Symbols.Symbols() {
		printer.line("Symbol%d=[Symbol: %s", idx, sym)
		if sym.IsDefined() {
			printer.write(" Value=%s", sym.Value)
		}
		printer.write("]")
	}

	printer.pop()
	printer.write("\n")
}

func (printer *dumpPrinter) section(section *Section) {
	printer.write("[Section: Name=%s", section.Name)
	if section.Placed {
		printer.write(" Address=0x%x", section.Address)
	} else {
		printer.write(" Address=(relocatable)")
	}
	printer.write(" Align=%d Size=%d", section.Alignment(), section.Size)
	if section.Code {
		printer.write(" Code")
	}
	if section.NoBits {
		printer.write(" NoBits")
	}

	if section.Len() == 0 {
		printer.write("]")
		return
	}

	printer.push()
	for idx, bc := range section.All() {
		printer.line(
			"Bytecode%d=[%s: Offset=0x%x Length=%d",
			idx,
			bc.Content.Kind(),
			bc.Offset,
			bc.Length)
		if bc.Expansions > 0 {
			printer.write(" Expansions=%d", bc.Expansions)
		}
		printer.write(" Content=(%s)]", bc.Content)
	}
	printer.pop()
}
