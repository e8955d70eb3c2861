package flat

import (
	"bytes"
	"errors"
	"testing"

	"github.com/pattyshack/assembly/asmerr"
	"github.com/pattyshack/assembly/platform"
)

func section(
	name string,
	address int64,
	content ...byte,
) *platform.OutputSection {
	return &platform.OutputSection{
		Name:    name,
		Address: address,
		Placed:  true,
		Size:    int64(len(content)),
		Bytes:   content,
	}
}

func TestSerialize(t *testing.T) {
	bss := section("bss", 0x2, 0, 0, 0, 0)
	bss.NoBits = true
	bss.Bytes = nil

	out := &platform.Output{
		Sections: []*platform.OutputSection{
			section("data", 0x108, 0xaa, 0xbb),
			section("empty", 0x100),
			section("text", 0x100, 0x90, 0xc3),
			bss,
		},
	}

	buffer := &bytes.Buffer{}
	err := Format{}.Serialize(buffer, out)
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", t.Name(), err)
	}

	expected := []byte{0x90, 0xc3, 0, 0, 0, 0, 0, 0, 0xaa, 0xbb}
	if !bytes.Equal(buffer.Bytes(), expected) {
		t.Errorf("%s: expected %x, found %x", t.Name(), expected, buffer.Bytes())
	}
}

func TestSerialize_errors(t *testing.T) {
	unplaced := section("text", 0, 0x90)
	unplaced.Placed = false

	type testrow struct {
		Sections []*platform.OutputSection
		Expected asmerr.Kind
	}

	data := []testrow{
		{
			Sections: []*platform.OutputSection{
				section("a", 0x10, 1, 2, 3, 4),
				section("b", 0x12, 5),
			},
			Expected: asmerr.Semantic,
		},
		{
			Sections: []*platform.OutputSection{unplaced},
			Expected: asmerr.Module,
		},
	}

	for i, row := range data {
		err := Format{}.Serialize(
			&bytes.Buffer{},
			&platform.Output{Sections: row.Sections})
		if !errors.Is(err, row.Expected) {
			t.Errorf("%s/%03d: expected %s, found %v", t.Name(), i, row.Expected, err)
		}
	}
}

func TestSupportsRelocation(t *testing.T) {
	reloc := platform.Relocation{
		Kind:   platform.AbsoluteRelocation,
		Symbol: "printf",
		Size:   8,
	}
	if (Format{}).SupportsRelocation(reloc) {
		t.Errorf("%s: flat binaries cannot carry relocations", t.Name())
	}
}
