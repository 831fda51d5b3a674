package vm

import "github.com/zurustar/awvm/pkg/opcode"

// NumVariables is the size of the variable store.
const NumVariables = 256

// Variables is the VM variable store.
type Variables [NumVariables]int16

// Get returns variable i.
func (v *Variables) Get(i byte) int16 { return v[i] }

// Set stores variable i.
func (v *Variables) Set(i byte, value int16) { v[i] = value }

// bringUpValues are written at reset when compatibility hacks are on. The
// game checks some of them during its copy-protection sequence.
var bringUpValues = [...]struct {
	index byte
	value int16
}{
	{0x54, 0x81},
	{0xBC, 0x10},
	{0xC6, 0x80},
	{0xF2, 4000},
	{0xDC, 33},
}

// Reset zeroes every variable and seeds the random generator variable.
func (v *Variables) Reset(seed int16, compatHacks bool) {
	*v = Variables{}
	v[opcode.VarRandomSeed] = seed
	if compatHacks {
		for _, b := range bringUpValues {
			v[b.index] = b.value
		}
	}
}
