// This file is part of NSFRender.
//
// NSFRender is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// NSFRender is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with NSFRender.  If not, see <https://www.gnu.org/licenses/>.

package nsf

import (
	"fmt"
	"strings"

	"github.com/jetsetilly/nsfrender/curated"
)

// Format distinguishes the container the module bytes arrived in. After
// parsing, the distinction is informational only; the Module fields are the
// same whichever container was used.
type Format int

// List of valid Format values.
const (
	FormatNSF Format = iota
	FormatNSFe
	FormatNSF2
)

func (f Format) String() string {
	switch f {
	case FormatNSF:
		return "NSF"
	case FormatNSFe:
		return "NSFe"
	case FormatNSF2:
		return "NSF2"
	}
	return "unknown"
}

// Chip identifies one of the sound chips a module can use. The set is closed:
// the NSF format has six expansion bits and there will never be more.
type Chip int

// List of valid Chip values. Chip2A03 is the console's own APU and is present
// in every module.
const (
	Chip2A03 Chip = iota
	ChipVRC6
	ChipVRC7
	ChipFDS
	ChipMMC5
	ChipN163
	ChipS5B
)

func (c Chip) String() string {
	switch c {
	case Chip2A03:
		return "2A03"
	case ChipVRC6:
		return "VRC6"
	case ChipVRC7:
		return "VRC7"
	case ChipFDS:
		return "FDS"
	case ChipMMC5:
		return "MMC5"
	case ChipN163:
		return "N163"
	case ChipS5B:
		return "S5B"
	}
	return "unknown"
}

// Channels returns the channel names for the chip, in their conventional
// order. The names double as keys for channel configuration.
func (c Chip) Channels() []string {
	switch c {
	case Chip2A03:
		return []string{"Pulse 1", "Pulse 2", "Triangle", "Noise", "DMC"}
	case ChipVRC6:
		return []string{"Pulse 1", "Pulse 2", "Sawtooth"}
	case ChipVRC7:
		return []string{"FM 1", "FM 2", "FM 3", "FM 4", "FM 5", "FM 6"}
	case ChipFDS:
		return []string{"FDS"}
	case ChipMMC5:
		return []string{"Pulse 1", "Pulse 2", "PCM"}
	case ChipN163:
		return []string{"NAMCO 1", "NAMCO 2", "NAMCO 3", "NAMCO 4", "NAMCO 5", "NAMCO 6", "NAMCO 7", "NAMCO 8"}
	case ChipS5B:
		return []string{"A", "B", "C"}
	}
	return nil
}

// ChipSet is the set of chips a module uses. Chip2A03 is always a member.
type ChipSet uint8

// Contains returns true if the chip is a member of the set.
func (cs ChipSet) Contains(c Chip) bool {
	return cs&(1<<uint(c)) != 0
}

// List returns the member chips in Chip order.
func (cs ChipSet) List() []Chip {
	l := make([]Chip, 0, 7)
	for c := Chip2A03; c <= ChipS5B; c++ {
		if cs.Contains(c) {
			l = append(l, c)
		}
	}
	return l
}

func (cs ChipSet) String() string {
	s := make([]string, 0, 7)
	for _, c := range cs.List() {
		s = append(s, c.String())
	}
	return strings.Join(s, ", ")
}

// DriverType identifies the music driver the module was exported with. Loop
// detection is only meaningful for recognised FamiTracker-family drivers,
// whose machine state is stable enough frame-over-frame for fingerprint
// comparison.
type DriverType int

// List of valid DriverType values.
const (
	DriverUnknown DriverType = iota
	DriverFTClassic
	DriverFT0CC
	DriverFTDn
)

func (d DriverType) String() string {
	switch d {
	case DriverFTClassic:
		return "classic FamiTracker"
	case DriverFT0CC:
		return "0CC-FamiTracker"
	case DriverFTDn:
		return "Dn-FamiTracker"
	}
	return "unknown"
}

// Track holds per-track metadata. The fields are only populated from NSFe or
// NSF2 extension chunks; plain NSF modules have no per-track metadata.
//
// DurationMs and FadeoutMs are negative when the module declares no value for
// the track.
type Track struct {
	Title      string
	Artist     string
	DurationMs int
	FadeoutMs  int
}

// VRC7PatchSize is the size of one VRC7 patch record in bytes.
const VRC7PatchSize = 8

// VRC7PatchCount is the number of patch records in a custom patch table. The
// table covers patches 1 to 15; patch 0 is always the channel's own custom
// patch and is not part of the table.
const VRC7PatchCount = 15

// Module is the structured representation of an NSF family module. It is
// immutable once parsed and is shared by reference across a render.
type Module struct {
	Format  Format
	Version byte

	TrackCount    int
	StartingTrack int

	LoadAddr uint16
	InitAddr uint16
	PlayAddr uint16

	// global metadata. from the fixed 32 byte header fields, overridden by
	// the auth chunk when present
	Title     string
	Artist    string
	Copyright string
	Ripper    string
	Text      string

	Chips  ChipSet
	Driver DriverType

	// play speeds in microseconds per frame, as declared by the header
	PlaySpeedNTSC uint16
	PlaySpeedPAL  uint16

	// PAL/NTSC bits from the header
	TVSystem byte

	BankInit [8]byte

	// program data. the image loaded into emulated memory
	Image []byte

	// per-track metadata indexed 0 to TrackCount-1. use the Track() function
	// for 1-based access
	tracks []Track

	// playlist from the plst chunk, 1-based track indices. informational
	Playlist []int

	// custom VRC7 patch table from the VRC7 chunk, or nil
	VRC7Patches []byte

	// NSF2 feature bits
	IRQSupport       bool
	NonReturningInit bool
	NoPlaySubroutine bool
	MetadataAppended bool
}

// Track returns the metadata for the 1-based track index.
func (mod *Module) Track(num int) (Track, error) {
	if num < 1 || num > mod.TrackCount {
		return Track{}, curated.Errorf(TrackRangeError, num, mod.TrackCount)
	}
	return mod.tracks[num-1], nil
}

// LoopDetectionEligible returns true if the module's export signature
// declares a driver with detectable loops.
func (mod *Module) LoopDetectionEligible() bool {
	return mod.Driver != DriverUnknown
}

// DeclaredDurationMs returns the declared duration of the 1-based track
// index, in milliseconds. The second return value is false if the module
// declares no duration for the track.
func (mod *Module) DeclaredDurationMs(num int) (int, bool) {
	t, err := mod.Track(num)
	if err != nil || t.DurationMs < 0 {
		return 0, false
	}
	return t.DurationMs, true
}

// DeclaredFadeoutMs returns the declared fadeout of the 1-based track index,
// in milliseconds. The second return value is false if the module declares no
// fadeout for the track.
func (mod *Module) DeclaredFadeoutMs(num int) (int, bool) {
	t, err := mod.Track(num)
	if err != nil || t.FadeoutMs < 0 {
		return 0, false
	}
	return t.FadeoutMs, true
}

// TrackTitle returns the best title for the 1-based track index: the track's
// own label if the module has one, the module title otherwise.
func (mod *Module) TrackTitle(num int) string {
	if t, err := mod.Track(num); err == nil && t.Title != "" {
		return t.Title
	}
	return mod.Title
}

// TrackArtist returns the best artist for the 1-based track index: the
// track's own author if the module has one, the module artist otherwise.
func (mod *Module) TrackArtist(num int) string {
	if t, err := mod.Track(num); err == nil && t.Artist != "" {
		return t.Artist
	}
	return mod.Artist
}

func (mod *Module) String() string {
	s := strings.Builder{}
	s.WriteString(fmt.Sprintf("%s v%d: %s", mod.Format, mod.Version, mod.Title))
	s.WriteString(fmt.Sprintf(" (%d tracks)", mod.TrackCount))
	s.WriteString(fmt.Sprintf(" [%s]", mod.Chips))
	return s.String()
}
