// Package description loads objects from yaml object descriptions.  A
// description is the structural equivalent of an assembly source file:
//
//	name: hello
//	sections:
//	  - name: text
//	    code: true
//	    contents:
//	      - label: start
//	      - insn: jmp
//	        operands: [done]
//	      - data: {size: 4, values: [{add: [extern_sym, 4]}]}
//	      - label: done
//
// Expressions are integer / float scalars, symbol names, register names
// (prefixed by %), "$" for the current position, or single-key mappings from
// an operator to its operand(s).
package description

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pattyshack/gt/parseutil"

	"github.com/pattyshack/assembly/asmerr"
	"github.com/pattyshack/assembly/config"
	"github.com/pattyshack/assembly/expression"
	"github.com/pattyshack/assembly/object"
	"github.com/pattyshack/assembly/platform"
	"github.com/pattyshack/assembly/symbol"
)

const currentPosition = "$"

type Document struct {
	Name     string    `yaml:"name"`
	Globals  []string  `yaml:"globals"`
	Externs  []string  `yaml:"externs"`
	Equates  []Equate  `yaml:"equates"`
	Sections []Section `yaml:"sections"`
}

type Equate struct {
	Name  string    `yaml:"name"`
	Value yaml.Node `yaml:"value"`
}

type Common struct {
	Name string    `yaml:"name"`
	Size yaml.Node `yaml:"size"`
}

type Section struct {
	Name   string `yaml:"name"`
	Align  int64  `yaml:"align"`
	Start  *int64 `yaml:"start"`
	Code   bool   `yaml:"code"`
	NoBits bool   `yaml:"nobits"`

	Contents []Entry `yaml:"contents"`

	loc parseutil.Location
}

func (section *Section) UnmarshalYAML(node *yaml.Node) error {
	type plain Section
	err := node.Decode((*plain)(section))
	section.loc = parseutil.Location{Line: node.Line, Column: node.Column}
	return err
}

type Data struct {
	Size   int         `yaml:"size"`
	Signed bool        `yaml:"signed"`
	Values []yaml.Node `yaml:"values"`
}

type Reserve struct {
	Count yaml.Node `yaml:"count"`
	Size  int64     `yaml:"size"`
}

type Align struct {
	Boundary int64 `yaml:"boundary"`
	Fill     *byte `yaml:"fill"`
	MaxSkip  int64 `yaml:"maxskip"`
}

type Org struct {
	Target int64 `yaml:"target"`
	Fill   byte  `yaml:"fill"`
}

// Entry is one source construct.  Exactly one field is set.
type Entry struct {
	Label  string  `yaml:"label"`
	Global string  `yaml:"global"`
	Extern string  `yaml:"extern"`
	Equ    *Equate `yaml:"equ"`
	Common *Common `yaml:"common"`

	Insn     string      `yaml:"insn"`
	Operands []yaml.Node `yaml:"operands"`

	Data    *Data    `yaml:"data"`
	String  *string  `yaml:"string"`
	Reserve *Reserve `yaml:"reserve"`
	Align   *Align   `yaml:"align"`
	Org     *Org     `yaml:"org"`
	Gap     *int64   `yaml:"gap"`

	loc parseutil.Location
}

func (entry *Entry) UnmarshalYAML(node *yaml.Node) error {
	type plain Entry
	err := node.Decode((*plain)(entry))
	entry.loc = parseutil.Location{Line: node.Line, Column: node.Column}
	return err
}

func Parse(reader io.Reader) (*Document, error) {
	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)

	doc := &Document{}
	err := decoder.Decode(doc)
	if err != nil {
		return nil, fmt.Errorf("invalid object description: %w", err)
	}
	return doc, nil
}

// Load parses the description and builds the object using the configured
// modules.
func Load(
	fileName string,
	reader io.Reader,
	cfg config.Config,
) (
	*object.Object,
	error,
) {
	doc, err := Parse(reader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fileName, err)
	}

	name := doc.Name
	if name == "" {
		name = fileName
	}

	obj, err := cfg.NewObject(name)
	if err != nil {
		return nil, err
	}

	err = Build(obj, fileName, doc)
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func LoadFile(fileName string, cfg config.Config) (*object.Object, error) {
	content, err := os.ReadFile(fileName)
	if err != nil {
		return nil, err
	}
	return Load(fileName, bytes.NewReader(content), cfg)
}

// Build populates obj with the document's sections and symbols.  Errors
// are collected across constructs, and are all returned at the end.
func Build(obj *object.Object, fileName string, doc *Document) error {
	b := &builder{
		fileName: fileName,
		object:   obj,
		emitter:  &parseutil.Emitter{},
	}

	for _, name := range doc.Globals {
		obj.DeclareSymbol(name, symbol.Global, b.loc(parseutil.Location{}))
	}

	for _, name := range doc.Externs {
		_, err := obj.DefineExternal(name, b.loc(parseutil.Location{}))
		b.emit(err)
	}

	for _, equ := range doc.Equates {
		b.equate(nil, equ)
	}

	for _, section := range doc.Sections {
		b.section(section)
	}

	return asmerr.Join(b.emitter)
}

type builder struct {
	fileName string
	object   *object.Object
	emitter  *parseutil.Emitter

	// The hidden label marking the current position, if any.
	position string
}

func (b *builder) emit(err error) {
	if err != nil {
		b.emitter.EmitErrors(err)
	}
}

func (b *builder) loc(loc parseutil.Location) parseutil.Location {
	loc.FileName = b.fileName
	return loc
}

func (b *builder) nodeLoc(node *yaml.Node) parseutil.Location {
	return b.loc(parseutil.Location{Line: node.Line, Column: node.Column})
}

func (b *builder) section(desc Section) {
	attrs := object.SectionAttributes{
		Align:  desc.Align,
		Code:   desc.Code,
		NoBits: desc.NoBits,
	}
	if desc.Start != nil {
		attrs.HasStart = true
		attrs.Start = *desc.Start
	}

	section, err := b.object.OpenSection(desc.Name, attrs, b.loc(desc.loc))
	if err != nil {
		b.emit(err)
		return
	}

	for _, entry := range desc.Contents {
		b.position = ""
		b.entry(section, entry)
	}
}

func (b *builder) entry(section *object.Section, entry Entry) {
	loc := b.loc(entry.loc)
	pos := parseutil.NewStartEndPos(loc, loc)

	var content object.Content
	var err error
	switch {
	case entry.Label != "":
		_, err = b.object.DefineLabel(entry.Label, section, loc)
	case entry.Global != "":
		b.object.DeclareSymbol(entry.Global, symbol.Global, loc)
	case entry.Extern != "":
		_, err = b.object.DefineExternal(entry.Extern, loc)
	case entry.Equ != nil:
		b.equate(section, *entry.Equ)
	case entry.Common != nil:
		var size expression.Expr
		size, err = b.expr(section, &entry.Common.Size)
		if err == nil {
			_, err = b.object.DefineCommon(entry.Common.Name, size, loc)
		}
	case entry.Insn != "":
		var operands []expression.Expr
		operands, err = b.exprs(section, entry.Operands)
		if err == nil {
			content, err = b.object.NewInstruction(entry.Insn, operands...)
		}
	case entry.Data != nil:
		content, err = b.data(section, entry.Data)
	case entry.String != nil:
		content = object.NewData(object.DataItem{Bytes: []byte(*entry.String)})
	case entry.Reserve != nil:
		var count expression.Expr
		count, err = b.expr(section, &entry.Reserve.Count)
		if err == nil {
			size := entry.Reserve.Size
			if size == 0 {
				size = 1
			}
			content = object.NewReserve(count, size)
		}
	case entry.Align != nil:
		if entry.Align.Boundary <= 0 ||
			entry.Align.Boundary&(entry.Align.Boundary-1) != 0 {

			err = asmerr.New(
				asmerr.Semantic,
				loc,
				"alignment (%d) is not a power of two",
				entry.Align.Boundary)
		} else {
			content = object.NewAlign(
				entry.Align.Boundary,
				entry.Align.Fill,
				entry.Align.MaxSkip)
		}
	case entry.Org != nil:
		content = object.NewOrg(entry.Org.Target, entry.Org.Fill)
	case entry.Gap != nil:
		content = object.NewGap(*entry.Gap)
	default:
		err = asmerr.New(asmerr.Semantic, loc, "empty section entry")
	}

	if err != nil {
		b.emit(err)
		return
	}

	if content != nil {
		_, err = b.object.AppendBytecode(section, content, pos)
		b.emit(err)
	}
}

func (b *builder) equate(section *object.Section, equ Equate) {
	value, err := b.expr(section, &equ.Value)
	if err != nil {
		b.emit(err)
		return
	}

	_, err = b.object.DefineSymbol(equ.Name, value, b.nodeLoc(&equ.Value))
	b.emit(err)
}

func (b *builder) data(
	section *object.Section,
	desc *Data,
) (
	object.Content,
	error,
) {
	signedness := platform.Either
	if desc.Signed {
		signedness = platform.Signed
	}

	items := []object.DataItem{}
	for idx := range desc.Values {
		node := &desc.Values[idx]
		if node.Kind == yaml.ScalarNode &&
			node.Tag == "!!str" &&
			node.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) != 0 {

			items = append(items, object.DataItem{Bytes: []byte(node.Value)})
			continue
		}

		value, err := b.expr(section, node)
		if err != nil {
			return nil, err
		}

		items = append(
			items,
			object.DataItem{
				Expr:       value,
				Size:       desc.Size,
				Signedness: signedness,
			})
	}

	return object.NewData(items...), nil
}

func (b *builder) exprs(
	section *object.Section,
	nodes []yaml.Node,
) (
	[]expression.Expr,
	error,
) {
	result := make([]expression.Expr, 0, len(nodes))
	for idx := range nodes {
		expr, err := b.expr(section, &nodes[idx])
		if err != nil {
			return nil, err
		}
		result = append(result, expr)
	}
	return result, nil
}

func (b *builder) expr(
	section *object.Section,
	node *yaml.Node,
) (
	expression.Expr,
	error,
) {
	loc := b.nodeLoc(node)
	pos := parseutil.NewStartEndPos(loc, loc)

	switch node.Kind {
	case yaml.ScalarNode:
		return b.scalar(section, node, pos)
	case yaml.MappingNode:
		if len(node.Content) != 2 {
			return nil, asmerr.New(
				asmerr.Semantic,
				loc,
				"expected a single operator per expression mapping")
		}

		op := expression.Operator(node.Content[0].Value)
		operandsNode := node.Content[1]

		var operands []expression.Expr
		var err error
		if operandsNode.Kind == yaml.SequenceNode {
			operands, err = b.exprs(section, nodeValues(operandsNode))
		} else {
			var operand expression.Expr
			operand, err = b.expr(section, operandsNode)
			operands = []expression.Expr{operand}
		}
		if err != nil {
			return nil, err
		}

		return expression.BuildAt(pos, op, operands...)
	case yaml.AliasNode:
		return b.expr(section, node.Alias)
	}

	return nil, asmerr.New(
		asmerr.Semantic,
		loc,
		"invalid expression (%s)",
		node.Tag)
}

func nodeValues(node *yaml.Node) []yaml.Node {
	values := make([]yaml.Node, 0, len(node.Content))
	for _, child := range node.Content {
		values = append(values, *child)
	}
	return values
}

func (b *builder) scalar(
	section *object.Section,
	node *yaml.Node,
	pos parseutil.StartEndPos,
) (
	expression.Expr,
	error,
) {
	switch node.ShortTag() {
	case "!!int":
		value, err := strconv.ParseInt(
			strings.ReplaceAll(node.Value, "_", ""),
			0,
			64)
		if err != nil {
			return nil, asmerr.New(
				asmerr.Semantic,
				pos.Loc(),
				"invalid integer (%s): %s",
				node.Value,
				err)
		}
		c := expression.NewInt(value)
		c.StartEndPos = pos
		return c, nil
	case "!!float":
		value, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			return nil, asmerr.New(
				asmerr.Semantic,
				pos.Loc(),
				"invalid float (%s): %s",
				node.Value,
				err)
		}
		c := expression.NewFloat(value)
		c.StartEndPos = pos
		return c, nil
	case "!!str":
	default:
		return nil, asmerr.New(
			asmerr.Semantic,
			pos.Loc(),
			"invalid expression (%s)",
			node.Value)
	}

	name := node.Value
	if strings.HasPrefix(name, "%") {
		ref := expression.NewRegisterRef(name[1:])
		ref.StartEndPos = pos
		return ref, nil
	}

	if name == currentPosition {
		if section == nil {
			return nil, asmerr.New(
				asmerr.Semantic,
				pos.Loc(),
				"%s used outside of any section",
				currentPosition)
		}

		if b.position == "" {
			b.position = fmt.Sprintf(".$%s.%d", section.Name, section.Len())
			_, err := b.object.DefineLabel(b.position, section, pos.Loc())
			if err != nil {
				return nil, err
			}
		}
		name = b.position
	}

	ref := expression.NewSymbolRef(name)
	ref.StartEndPos = pos
	return ref, nil
}
