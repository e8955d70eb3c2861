package flat

import (
	"bytes"
	"io"
	"slices"

	"github.com/samber/lo"

	"github.com/pattyshack/gt/parseutil"

	"github.com/pattyshack/assembly/asmerr"
	"github.com/pattyshack/assembly/platform"
)

// Format is the flat binary format.  Every section is placed at a fixed
// address, and the image is the concatenation of the sections' bytes in
// address order (gaps between sections are zero filled).  Nothing is left
// for a linker, hence no relocation is supported.
type Format struct{}

var _ platform.Format = Format{}

func NewFormat() platform.Format {
	return Format{}
}

func (Format) Name() platform.FormatName {
	return platform.Flat
}

func (Format) PlacesSections() bool {
	return true
}

func (Format) SupportsRelocation(platform.Relocation) bool {
	return false
}

func (Format) Serialize(output io.Writer, out *platform.Output) error {
	sections := lo.Filter(
		out.Sections,
		func(section *platform.OutputSection, _ int) bool {
			return !section.NoBits && section.Size > 0
		})

	slices.SortStableFunc(
		sections,
		func(a *platform.OutputSection, b *platform.OutputSection) int {
			switch {
			case a.Address < b.Address:
				return -1
			case a.Address > b.Address:
				return 1
			default:
				return 0
			}
		})

	buffer := &bytes.Buffer{}
	var position int64
	for idx, section := range sections {
		if !section.Placed {
			return asmerr.New(
				asmerr.Module,
				parseutil.Location{},
				"section %s has no address",
				section.Name)
		}

		if idx == 0 {
			position = section.Address
		}

		if section.Address < position {
			return asmerr.New(
				asmerr.Semantic,
				parseutil.Location{},
				"section %s (0x%x) overlaps section %s",
				section.Name,
				section.Address,
				sections[idx-1].Name)
		}

		buffer.Write(make([]byte, section.Address-position))
		buffer.Write(section.Bytes)
		position = section.Address + section.Size
	}

	_, err := output.Write(buffer.Bytes())
	return err
}
