// Package resource loads the ROM regions of an Another World dump and
// exposes the banked views the VM, renderer and sound hardware read from.
package resource

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/zurustar/awvm/pkg/fileutil"
)

var (
	// ErrCorrupt marks resource data that violates the binary format
	// (odd point count, period out of range, truncated header...).
	ErrCorrupt = errors.New("corrupt resource data")

	// ErrUnknownResource is returned for resource ids outside the lookup tables.
	ErrUnknownResource = errors.New("unknown resource")

	// ErrMissingROM is returned when a required region file is absent.
	ErrMissingROM = errors.New("missing ROM region")
)

// Bank geometry of the ROM regions.
const (
	BytecodeBankSize  = 0x10000
	CinematicBankSize = 0x10000
	PaletteBankSize   = 0x800
	SampleSlotSize    = 0x10000
	ScreenSize        = 0x8000
	Video2Size        = 0x8000

	// StringIndexOffset is where str_index.rom sits inside the strings region.
	StringIndexOffset = 0x1000
	stringsRegionSize = 0x1800
)

// Region names a ROM region.
type Region string

const (
	RegionBytecode  Region = "bytecode"
	RegionPalettes  Region = "palettes"
	RegionCinematic Region = "cinematic"
	RegionVideo2    Region = "video2"
	RegionScreens   Region = "screens"
	RegionChargen   Region = "chargen"
	RegionStrings   Region = "strings"
	RegionSamples   Region = "samples"
)

// regionFiles lists candidate file names per region, first match wins.
var regionFiles = map[Region][]string{
	RegionBytecode:  {"bytecode.rom"},
	RegionPalettes:  {"palettes.rom"},
	RegionCinematic: {"cinematic.rom"},
	RegionVideo2:    {"video2.rom"},
	RegionScreens:   {"screens.rom"},
	RegionChargen:   {"anotherworld_chargen.rom", "chargen.rom"},
	RegionSamples:   {"samples.rom"},
}

var requiredRegions = []Region{RegionBytecode, RegionPalettes, RegionCinematic}

var optionalRegions = []Region{RegionVideo2, RegionScreens, RegionChargen, RegionStrings, RegionSamples}

// Set holds every ROM region of one game dump.
type Set struct {
	bytecode  []byte
	palettes  []byte
	cinematic []byte
	video2    []byte
	screens   []byte
	chargen   []byte
	strings   []byte
	samples   []byte

	// Missing lists optional regions that were not found.
	Missing []Region
}

// Load reads a ROM set from dir inside fsys. File names are matched
// case-insensitively.
func Load(fsys fs.FS, dir string) (*Set, error) {
	s := &Set{}
	for _, r := range requiredRegions {
		data, err := readRegion(fsys, dir, r)
		if err != nil {
			return nil, err
		}
		s.assign(r, data)
	}
	for _, r := range optionalRegions {
		data, err := readRegion(fsys, dir, r)
		if err != nil {
			if errors.Is(err, ErrMissingROM) {
				s.Missing = append(s.Missing, r)
				continue
			}
			return nil, err
		}
		s.assign(r, data)
	}
	return s, nil
}

// NewSet builds a Set from in-memory regions. Regions absent from the map
// stay empty.
func NewSet(regions map[Region][]byte) *Set {
	s := &Set{}
	for r, data := range regions {
		s.assign(r, data)
	}
	return s
}

func readRegion(fsys fs.FS, dir string, r Region) ([]byte, error) {
	if r == RegionStrings {
		return readStrings(fsys, dir)
	}
	for _, name := range regionFiles[r] {
		data, err := fileutil.ReadFileCaseInsensitive(fsys, joinPath(dir, name))
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s region: %w", r, err)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrMissingROM, r)
}

// readStrings concatenates str_data.rom and str_index.rom into one region.
func readStrings(fsys fs.FS, dir string) ([]byte, error) {
	text, err := fileutil.ReadFileCaseInsensitive(fsys, joinPath(dir, "str_data.rom"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingROM, RegionStrings)
	}
	index, err := fileutil.ReadFileCaseInsensitive(fsys, joinPath(dir, "str_index.rom"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingROM, RegionStrings)
	}
	region := make([]byte, stringsRegionSize)
	copy(region[:StringIndexOffset], text)
	copy(region[StringIndexOffset:], index)
	return region, nil
}

func joinPath(dir, name string) string {
	if dir == "" || dir == "." {
		return name
	}
	return dir + "/" + name
}

func (s *Set) assign(r Region, data []byte) {
	switch r {
	case RegionBytecode:
		s.bytecode = data
	case RegionPalettes:
		s.palettes = data
	case RegionCinematic:
		s.cinematic = data
	case RegionVideo2:
		s.video2 = data
	case RegionScreens:
		s.screens = data
	case RegionChargen:
		s.chargen = data
	case RegionStrings:
		s.strings = data
	case RegionSamples:
		s.samples = data
	}
}

// bank returns the stride-sized window n of data, truncated at the end of
// the region. An out-of-range bank is empty.
func bank(data []byte, n, stride int) []byte {
	start := n * stride
	if n < 0 || start >= len(data) {
		return nil
	}
	end := start + stride
	if end > len(data) {
		end = len(data)
	}
	return data[start:end]
}

// Bytecode returns the bytecode segment of part (0-based).
func (s *Set) Bytecode(part int) []byte { return bank(s.bytecode, part, BytecodeBankSize) }

// Cinematic returns the cinematic polygon segment of part.
func (s *Set) Cinematic(part int) []byte { return bank(s.cinematic, part, CinematicBankSize) }

// Palettes returns the palette bank of part.
func (s *Set) Palettes(part int) []byte { return bank(s.palettes, part, PaletteBankSize) }

// Video2 returns the shared secondary polygon segment.
func (s *Set) Video2() []byte { return s.video2 }

// Chargen returns the 8x8 font, one 8-byte glyph per character from ' '.
func (s *Set) Chargen() []byte { return s.chargen }

// Strings returns the strings region (text at 0, index at StringIndexOffset).
func (s *Set) Strings() []byte { return s.strings }

// Screen returns the planar bitmap for a screen resource id.
func (s *Set) Screen(resNum uint16) ([]byte, error) {
	idx, ok := ScreenIndex(resNum)
	if !ok {
		return nil, fmt.Errorf("%w: screen 0x%02X", ErrUnknownResource, resNum)
	}
	data := bank(s.screens, idx, ScreenSize)
	if len(data) < ScreenSize {
		return nil, fmt.Errorf("%w: screen 0x%02X truncated (%d bytes)", ErrCorrupt, resNum, len(data))
	}
	return data, nil
}

// Sample returns the storage slot of a sample or music resource.
func (s *Set) Sample(resNum uint16) ([]byte, error) {
	idx, ok := SampleIndex(resNum)
	if !ok {
		return nil, fmt.Errorf("%w: sound 0x%02X", ErrUnknownResource, resNum)
	}
	data := bank(s.samples, idx, SampleSlotSize)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: sound 0x%02X not present in samples region", ErrCorrupt, resNum)
	}
	return data, nil
}
