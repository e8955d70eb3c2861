package object

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pattyshack/assembly/asmerr"
	"github.com/pattyshack/assembly/expression"
	"github.com/pattyshack/assembly/platform"
)

// A single data value.  Exactly one of Expr / Bytes is set.
type DataItem struct {
	Expr expression.Expr

	// Size of the encoded Expr value in bytes.
	Size       int
	Signedness platform.Signedness

	// Raw bytes (e.g., string literals).
	Bytes []byte
}

func (item DataItem) length() int64 {
	if item.Expr == nil {
		return int64(len(item.Bytes))
	}
	return int64(item.Size)
}

// Data fields accept floats.  Whether the value is a float is only known
// once symbols are substituted (e.g., a float equate).
func (item DataItem) field(offset int) platform.Field {
	return platform.Field{
		Offset:     offset,
		Size:       item.Size,
		Signedness: item.Signedness,
		Float:      true,
	}
}

// Raw data (db / dw / dd / dq / string literals).  Data has fixed length.
type DataContent struct {
	contentBase

	Items []DataItem
}

var _ Content = &DataContent{}

func NewData(items ...DataItem) *DataContent {
	return &DataContent{Items: items}
}

// NewValues returns data content holding one size-byte field per value.
func NewValues(
	size int,
	signedness platform.Signedness,
	values ...expression.Expr,
) *DataContent {
	items := make([]DataItem, 0, len(values))
	for _, value := range values {
		items = append(
			items,
			DataItem{
				Expr:       value,
				Size:       size,
				Signedness: signedness,
			})
	}
	return NewData(items...)
}

func (DataContent) Kind() Kind {
	return DataKind
}

func (data *DataContent) Expressions() []expression.Expr {
	result := []expression.Expr{}
	for _, item := range data.Items {
		if item.Expr != nil {
			result = append(result, item.Expr)
		}
	}
	return result
}

func (DataContent) IsVariable() bool {
	return false
}

func (data *DataContent) TentativeLength(
	platform.LengthContext,
) (
	int64,
	error,
) {
	total := int64(0)
	for _, item := range data.Items {
		if item.Expr != nil {
			switch item.Size {
			case 1, 2, 4, 8:
			default:
				return 0, asmerr.New(
					asmerr.Semantic,
					item.Expr.Loc(),
					"invalid data size (%d)",
					item.Size)
			}
		}
		total += item.length()
	}
	return total, nil
}

func (data *DataContent) ResolveLength(
	ctx platform.LengthContext,
) (
	int64,
	error,
) {
	return data.TentativeLength(ctx)
}

func (data *DataContent) Encode(ctx platform.EncodeContext) ([]byte, error) {
	buf := make([]byte, ctx.Length())
	offset := 0
	for _, item := range data.Items {
		if item.Expr == nil {
			copy(buf[offset:], item.Bytes)
		} else {
			err := ctx.OutputValue(buf, item.Expr, item.field(offset))
			if err != nil {
				return nil, err
			}
		}
		offset += int(item.length())
	}
	return buf, nil
}

func (data *DataContent) String() string {
	values := []string{}
	for _, item := range data.Items {
		if item.Expr == nil {
			values = append(values, fmt.Sprintf("%q", item.Bytes))
		} else {
			values = append(
				values,
				fmt.Sprintf("%s:%d", item.Expr, item.Size))
		}
	}
	return "data " + strings.Join(values, ", ")
}

// Uninitialized space (resb / resw / .space).  The count may be a label
// difference, in which case the length is recomputed in every resize pass.
type ReserveContent struct {
	contentBase

	Count    expression.Expr
	ItemSize int64
}

var _ Content = &ReserveContent{}

func NewReserve(count expression.Expr, itemSize int64) *ReserveContent {
	return &ReserveContent{
		Count:    count,
		ItemSize: itemSize,
	}
}

func (ReserveContent) Kind() Kind {
	return ReserveKind
}

func (reserve *ReserveContent) Expressions() []expression.Expr {
	return []expression.Expr{reserve.Count}
}

func (reserve *ReserveContent) IsVariable() bool {
	_, ok := expression.Simplify(reserve.Count).(*expression.IntConst)
	return !ok
}

func (reserve *ReserveContent) length(
	ctx platform.LengthContext,
) (
	int64,
	bool,
	error,
) {
	result, err := ctx.Evaluate(reserve.Count)
	if err != nil {
		return 0, false, err
	}

	if result.State == expression.Unresolved {
		return 0, false, nil
	}

	count, ok := result.Int()
	if !ok {
		return 0, false, asmerr.New(
			asmerr.Semantic,
			reserve.Count.Loc(),
			"reserve count (%s) is not an absolute integer",
			result)
	}

	if count < 0 {
		return 0, false, asmerr.New(
			asmerr.Semantic,
			reserve.Count.Loc(),
			"negative reserve count (%d)",
			count)
	}

	return count * reserve.ItemSize, true, nil
}

// TentativeLength is zero for counts that depend on positions, since the
// count is only meaningful once positions are known.
func (reserve *ReserveContent) TentativeLength(
	ctx platform.LengthContext,
) (
	int64,
	error,
) {
	if reserve.IsVariable() {
		return 0, nil
	}

	length, _, err := reserve.length(ctx)
	return length, err
}

func (reserve *ReserveContent) ResolveLength(
	ctx platform.LengthContext,
) (
	int64,
	error,
) {
	length, ok, err := reserve.length(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return ctx.Length(), nil
	}
	return length, nil
}

func (reserve *ReserveContent) Encode(
	ctx platform.EncodeContext,
) (
	[]byte,
	error,
) {
	length, ok, err := reserve.length(ctx)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, asmerr.New(
			asmerr.Semantic,
			reserve.Count.Loc(),
			"reserve count (%s) cannot be resolved",
			reserve.Count)
	}

	if length != ctx.Length() {
		return nil, asmerr.New(
			asmerr.Semantic,
			reserve.Count.Loc(),
			"reserve count (%s) depends on its own length",
			reserve.Count)
	}

	return make([]byte, length), nil
}

func (reserve *ReserveContent) String() string {
	return fmt.Sprintf("reserve %s x %d", reserve.Count, reserve.ItemSize)
}

// An architecture-specific instruction.
type InstructionContent struct {
	contentBase

	Instruction platform.Instruction
}

var _ Content = &InstructionContent{}

func NewInstruction(insn platform.Instruction) *InstructionContent {
	return &InstructionContent{Instruction: insn}
}

func (InstructionContent) Kind() Kind {
	return InstructionKind
}

func (content *InstructionContent) Expressions() []expression.Expr {
	return content.Instruction.Operands()
}

func (content *InstructionContent) IsVariable() bool {
	return content.architecture().IsVariable(content.Instruction)
}

func (content *InstructionContent) TentativeLength(
	ctx platform.LengthContext,
) (
	int64,
	error,
) {
	return content.architecture().TentativeLength(content.Instruction, ctx)
}

func (content *InstructionContent) ResolveLength(
	ctx platform.LengthContext,
) (
	int64,
	error,
) {
	return content.architecture().ResolveLength(content.Instruction, ctx)
}

func (content *InstructionContent) Encode(
	ctx platform.EncodeContext,
) (
	[]byte,
	error,
) {
	return content.architecture().Encode(content.Instruction, ctx)
}

func (content *InstructionContent) String() string {
	operands := []string{}
	for _, operand := range content.Instruction.Operands() {
		operands = append(operands, operand.String())
	}

	if len(operands) == 0 {
		return content.Instruction.Mnemonic()
	}
	return content.Instruction.Mnemonic() + " " + strings.Join(operands, ", ")
}

// Pads to the next multiple of Boundary.
type AlignContent struct {
	contentBase

	// Power of two.
	Boundary int64

	// Explicit fill byte.  When nil, code sections are padded with the
	// architecture's fill pattern and other sections with zeros.
	Fill *byte

	// When positive, the alignment is skipped entirely if it requires more
	// than MaxSkip bytes of padding.
	MaxSkip int64
}

var _ Padding = &AlignContent{}

func NewAlign(boundary int64, fill *byte, maxSkip int64) *AlignContent {
	return &AlignContent{
		Boundary: boundary,
		Fill:     fill,
		MaxSkip:  maxSkip,
	}
}

func (AlignContent) Kind() Kind {
	return AlignKind
}

func (AlignContent) Expressions() []expression.Expr {
	return nil
}

func (AlignContent) IsVariable() bool {
	return false
}

func (align *AlignContent) PaddingLength(address int64, offset int64) int64 {
	padding := AlignUp(address, align.Boundary) - address
	if align.MaxSkip > 0 && padding > align.MaxSkip {
		return 0
	}
	return padding
}

func (AlignContent) TentativeLength(platform.LengthContext) (int64, error) {
	return 0, nil
}

func (AlignContent) ResolveLength(
	ctx platform.LengthContext,
) (
	int64,
	error,
) {
	return ctx.Length(), nil
}

func (align *AlignContent) Encode(ctx platform.EncodeContext) ([]byte, error) {
	length := ctx.Length()
	if align.Fill != nil {
		return bytes.Repeat([]byte{*align.Fill}, int(length)), nil
	}

	if length > 0 && align.section().Code {
		return align.architecture().Fill(length)
	}

	return make([]byte, length), nil
}

func (align *AlignContent) String() string {
	result := fmt.Sprintf("align %d", align.Boundary)
	if align.Fill != nil {
		result += fmt.Sprintf(" fill=0x%02x", *align.Fill)
	}
	if align.MaxSkip > 0 {
		result += fmt.Sprintf(" maxskip=%d", align.MaxSkip)
	}
	return result
}

// Pads to the section relative offset Target.
type OrgContent struct {
	contentBase

	Target int64
	Fill   byte
}

var _ Padding = &OrgContent{}

func NewOrg(target int64, fill byte) *OrgContent {
	return &OrgContent{
		Target: target,
		Fill:   fill,
	}
}

func (OrgContent) Kind() Kind {
	return OrgKind
}

func (OrgContent) Expressions() []expression.Expr {
	return nil
}

func (OrgContent) IsVariable() bool {
	return false
}

func (org *OrgContent) PaddingLength(address int64, offset int64) int64 {
	if offset >= org.Target {
		return 0
	}
	return org.Target - offset
}

func (OrgContent) TentativeLength(platform.LengthContext) (int64, error) {
	return 0, nil
}

func (OrgContent) ResolveLength(ctx platform.LengthContext) (int64, error) {
	return ctx.Length(), nil
}

func (org *OrgContent) Encode(ctx platform.EncodeContext) ([]byte, error) {
	if ctx.Offset() > org.Target {
		return nil, asmerr.New(
			asmerr.Semantic,
			org.bytecode.Loc(),
			"org target (0x%x) is behind the current position (0x%x)",
			org.Target,
			ctx.Offset())
	}

	return bytes.Repeat([]byte{org.Fill}, int(ctx.Length())), nil
}

func (org *OrgContent) String() string {
	return fmt.Sprintf("org 0x%x", org.Target)
}

// A gap of uninitialized bytes (e.g., an included file's skipped region).
type GapContent struct {
	contentBase

	Size int64
}

var _ Content = &GapContent{}

func NewGap(size int64) *GapContent {
	return &GapContent{Size: size}
}

func (GapContent) Kind() Kind {
	return GapKind
}

func (GapContent) Expressions() []expression.Expr {
	return nil
}

func (GapContent) IsVariable() bool {
	return false
}

func (gap *GapContent) TentativeLength(platform.LengthContext) (int64, error) {
	if gap.Size < 0 {
		return 0, asmerr.New(
			asmerr.Semantic,
			gap.bytecode.Loc(),
			"negative gap size (%d)",
			gap.Size)
	}
	return gap.Size, nil
}

func (gap *GapContent) ResolveLength(
	ctx platform.LengthContext,
) (
	int64,
	error,
) {
	return gap.TentativeLength(ctx)
}

func (gap *GapContent) Encode(ctx platform.EncodeContext) ([]byte, error) {
	return make([]byte, ctx.Length()), nil
}

func (gap *GapContent) String() string {
	return fmt.Sprintf("gap %d", gap.Size)
}
