package x86

// Recommended multi-byte nop forms, indexed by length.
//
// https://www.felixcloutier.com/x86/nop
var nops = [][]byte{
	nil,
	{0x90},
	{0x66, 0x90},
	{0x0f, 0x1f, 0x00},
	{0x0f, 0x1f, 0x40, 0x00},
	{0x0f, 0x1f, 0x44, 0x00, 0x00},
	{0x66, 0x0f, 0x1f, 0x44, 0x00, 0x00},
	{0x0f, 0x1f, 0x80, 0x00, 0x00, 0x00, 0x00},
	{0x0f, 0x1f, 0x84, 0x00, 0x00, 0x00, 0x00, 0x00},
	{0x66, 0x0f, 0x1f, 0x84, 0x00, 0x00, 0x00, 0x00, 0x00},
}

// nop returns length bytes of padding using the fewest instructions.
func nop(length int) []byte {
	longest := len(nops) - 1

	result := make([]byte, 0, length)
	for length > longest {
		result = append(result, nops[longest]...)
		length -= longest
	}

	if length > 0 {
		result = append(result, nops[length]...)
	}
	return result
}
