package listing

import (
	"encoding/hex"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/pattyshack/assembly/platform"
)

// Format is a relocatable object listing serialized as yaml.  Sections
// without an explicit start address are left for the linker to place, and
// references to them are emitted as relocations.
type Format struct{}

var _ platform.Format = Format{}

func NewFormat() platform.Format {
	return Format{}
}

func (Format) Name() platform.FormatName {
	return platform.Listing
}

func (Format) PlacesSections() bool {
	return false
}

func (Format) SupportsRelocation(reloc platform.Relocation) bool {
	switch reloc.Size {
	case 1, 2, 4, 8:
	default:
		return false
	}

	isBitField := reloc.Shift != 0 ||
		(reloc.Bits != 0 && reloc.Bits != reloc.Size*8)

	switch reloc.Kind {
	case platform.AbsoluteRelocation, platform.RelativeRelocation:
		return true
	case platform.DifferenceRelocation:
		return !isBitField
	case platform.SegmentRelocation:
		return !isBitField && reloc.Size == 2
	default:
		return false
	}
}

type hexBytes []byte

func (b hexBytes) MarshalYAML() (interface{}, error) {
	return &yaml.Node{
		Kind:  yaml.ScalarNode,
		Tag:   "!!str",
		Style: yaml.DoubleQuotedStyle,
		Value: hex.EncodeToString(b),
	}, nil
}

func (b *hexBytes) UnmarshalYAML(node *yaml.Node) error {
	decoded, err := hex.DecodeString(node.Value)
	if err != nil {
		return err
	}
	*b = decoded
	return nil
}

type Document struct {
	Architecture string    `yaml:"architecture"`
	AddressSize  int       `yaml:"address_size"`
	Sections     []Section `yaml:"sections"`
	Symbols      []Symbol  `yaml:"symbols,omitempty"`
}

type Section struct {
	Name        string       `yaml:"name"`
	Address     *int64       `yaml:"address,omitempty"`
	Align       int64        `yaml:"align"`
	Code        bool         `yaml:"code,omitempty"`
	NoBits      bool         `yaml:"nobits,omitempty"`
	Size        int64        `yaml:"size"`
	Bytes       hexBytes     `yaml:"bytes,omitempty"`
	Relocations []Relocation `yaml:"relocations,omitempty"`
}

type Relocation struct {
	Offset     int64  `yaml:"offset"`
	Kind       string `yaml:"kind"`
	Size       int    `yaml:"size"`
	Bits       int    `yaml:"bits,omitempty"`
	Shift      uint   `yaml:"shift,omitempty"`
	Symbol     string `yaml:"symbol"`
	Subtrahend string `yaml:"subtrahend,omitempty"`
	Addend     int64  `yaml:"addend"`
}

type Symbol struct {
	Name    string `yaml:"name"`
	Binding string `yaml:"binding"`
	Status  string `yaml:"status"`
	Section string `yaml:"section,omitempty"`
	Value   int64  `yaml:"value"`
}

func sectionName(name string, isSection bool) string {
	if isSection {
		return "[" + name + "]"
	}
	return name
}

func NewDocument(out *platform.Output) *Document {
	doc := &Document{
		Architecture: string(out.Architecture),
		AddressSize:  out.AddressSize,
	}

	for _, section := range out.Sections {
		entry := Section{
			Name:   section.Name,
			Align:  section.Align,
			Code:   section.Code,
			NoBits: section.NoBits,
			Size:   section.Size,
			Bytes:  section.Bytes,
		}

		if section.Placed {
			address := section.Address
			entry.Address = &address
		}

		for _, reloc := range section.Relocations {
			subtrahend := ""
			if reloc.Kind == platform.DifferenceRelocation {
				subtrahend = sectionName(
					reloc.Subtrahend,
					reloc.SubtrahendIsSection)
			}

			entry.Relocations = append(
				entry.Relocations,
				Relocation{
					Offset:     reloc.Offset,
					Kind:       string(reloc.Kind),
					Size:       reloc.Size,
					Bits:       reloc.Bits,
					Shift:      reloc.Shift,
					Symbol:     sectionName(reloc.Symbol, reloc.SymbolIsSection),
					Subtrahend: subtrahend,
					Addend:     reloc.Addend,
				})
		}

		doc.Sections = append(doc.Sections, entry)
	}

	for _, sym := range out.Symbols {
		binding := "local"
		if sym.Global {
			binding = "global"
		}

		doc.Symbols = append(
			doc.Symbols,
			Symbol{
				Name:    sym.Name,
				Binding: binding,
				Status:  sym.Status,
				Section: sym.Section,
				Value:   sym.Value,
			})
	}

	return doc
}

func (Format) Serialize(output io.Writer, out *platform.Output) error {
	encoder := yaml.NewEncoder(output)
	encoder.SetIndent(2)

	err := encoder.Encode(NewDocument(out))
	if err != nil {
		return err
	}

	return encoder.Close()
}
