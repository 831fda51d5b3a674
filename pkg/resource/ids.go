package resource

// Part resource ids. The load opcode switches chapter when given one of these.
const (
	FirstPartID = 0x3E80
	NumParts    = 10
)

// PartIndex maps a part resource id to its bank number.
func PartIndex(resNum uint16) (int, bool) {
	if resNum < FirstPartID || resNum >= FirstPartID+NumParts {
		return 0, false
	}
	return int(resNum - FirstPartID), true
}

// IsPartID reports whether resNum lies in the part id range or above it.
// Ids past the last part are still routed to the part switch and rejected
// there.
func IsPartID(resNum uint16) bool {
	return resNum >= FirstPartID
}

// sampleIDs lists sound resource ids in storage order; slot i of the
// samples region holds sampleIDs[i].
var sampleIDs = [...]uint8{
	0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
	0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10,
	0x2c, 0x2d, 0x2e, 0x2f, 0x30, 0x31, 0x32, 0x33,
	0x35, 0x36, 0x37, 0x38, 0x39, 0x3a, 0x3b, 0x3c,
	0x3d, 0x3e, 0x3f, 0x40, 0x41, 0x42, 0x4a, 0x4b,
	0x4c, 0x4d, 0x4e, 0x4f, 0x50, 0x51, 0x52, 0x54,
	0x55, 0x56, 0x57, 0x58, 0x59, 0x5a, 0x5b, 0x5c,
	0x5d, 0x5e, 0x5f, 0x60, 0x61, 0x62, 0x63, 0x64,
	0x65, 0x66, 0x67, 0x68, 0x69, 0x6a, 0x6b, 0x6c,
	0x6d, 0x6e, 0x6f, 0x70, 0x71, 0x72, 0x73, 0x74,
	0x75, 0x76, 0x77, 0x78, 0x79, 0x7a, 0x7b, 0x7c,
	0x80, 0x81, 0x82, 0x83, 0x84, 0x88, 0x89, 0x8a,
	0x8b, 0x8c, 0x8d, 0x8e,
}

// screenIDs lists bitmap resource ids in storage order.
var screenIDs = [...]uint8{
	0x12, 0x13, 0x43, 0x44, 0x45, 0x46, 0x47, 0x48, 0x49, 0x53, 0x90, 0x91,
}

var (
	sampleSlots = indexTable(sampleIDs[:])
	screenSlots = indexTable(screenIDs[:])
)

func indexTable(ids []uint8) map[uint16]int {
	m := make(map[uint16]int, len(ids))
	for i, id := range ids {
		m[uint16(id)] = i
	}
	return m
}

// SampleIndex maps a sound resource id to its dense storage slot.
func SampleIndex(resNum uint16) (int, bool) {
	i, ok := sampleSlots[resNum]
	return i, ok
}

// ScreenIndex maps a bitmap resource id to its slot in the screens region.
func ScreenIndex(resNum uint16) (int, bool) {
	i, ok := screenSlots[resNum]
	return i, ok
}

// IsScreenID reports whether resNum names a bitmap resource.
func IsScreenID(resNum uint16) bool {
	_, ok := screenSlots[resNum]
	return ok
}

// NumSampleSlots is the number of sound resources in the samples region.
const NumSampleSlots = len(sampleIDs)
