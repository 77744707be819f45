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
	"bytes"
	"unicode/utf8"

	"github.com/jetsetilly/nsfrender/curated"
	"golang.org/x/text/encoding/japanese"
)

// Curated error patterns raised by the parser.
const (
	// FormatError indicates module bytes that cannot be decoded: bad magic,
	// truncated header, malformed chunk framing. Not retryable.
	FormatError = "nsf: format error: %v"

	// UnsupportedFeatureError indicates a well-formed module that declares a
	// feature the pipeline cannot honour.
	UnsupportedFeatureError = "nsf: unsupported feature: %v"

	// TrackRangeError indicates a 1-based track index outside the module's
	// track count.
	TrackRangeError = "nsf: track %d out of range (1 to %d)"
)

// NSF header layout. offsets into the 128 byte baseline header.
const (
	idxVersion    = 0x05
	idxSongs      = 0x06
	idxStart      = 0x07
	idxLoadAddr   = 0x08
	idxInitAddr   = 0x0a
	idxPlayAddr   = 0x0c
	idxTitle      = 0x0e
	idxArtist     = 0x2e
	idxCopyright  = 0x4e
	idxSpeedNTSC  = 0x6e
	idxBankInit   = 0x70
	idxSpeedPAL   = 0x78
	idxTVSystem   = 0x7a
	idxExpansion  = 0x7b
	idxNSF2Flags  = 0x7c
	idxProgramLen = 0x7d
	headerSize    = 0x80
)

// fixed metadata fields are 32 bytes, NUL terminated.
const fixedFieldLen = 0x20

var magicNSF = []byte("NESM\x1a")
var magicNSFe = []byte("NSFE")

// expansion chip bits at idxExpansion. bits 6 and 7 are reserved.
const (
	expVRC6 = 0x01
	expVRC7 = 0x02
	expFDS  = 0x04
	expMMC5 = 0x08
	expN163 = 0x10
	expS5B  = 0x20
)

// NSF2 feature bits at idxNSF2Flags.
const (
	nsf2IRQ              = 0x10
	nsf2NonReturningInit = 0x20
	nsf2NoPlaySubroutine = 0x40
	nsf2HasMetadata      = 0x80
)

// ParseModule decodes NSF, NSFe or NSF2 bytes into a Module. The data slice
// is copied; the caller is free to reuse the buffer.
//
// Parsing is deterministic and has no side effects. Errors are FormatError
// or UnsupportedFeatureError.
func ParseModule(data []byte) (*Module, error) {
	if len(data) < len(magicNSFe) {
		return nil, curated.Errorf(FormatError, "too short to hold a magic number")
	}

	mod := &Module{Format: FormatNSF}

	// NSFe containers are reassembled into the NSF2 layout before decoding.
	// the rest of the function then has only one representation to deal with
	if bytes.Equal(data[:len(magicNSFe)], magicNSFe) {
		var err error
		data, err = nsfeToNSF2(data)
		if err != nil {
			return nil, err
		}
		mod.Format = FormatNSFe
	} else {
		d := make([]byte, len(data))
		copy(d, data)
		data = d
	}

	if len(data) < headerSize {
		return nil, curated.Errorf(FormatError, "truncated header")
	}
	if !bytes.Equal(data[:len(magicNSF)], magicNSF) {
		return nil, curated.Errorf(FormatError, "unrecognised magic number")
	}

	mod.Version = data[idxVersion]
	if mod.Format == FormatNSF && mod.Version >= 2 {
		mod.Format = FormatNSF2
	}

	mod.TrackCount = int(data[idxSongs])
	mod.StartingTrack = int(data[idxStart])
	if mod.TrackCount < 1 {
		return nil, curated.Errorf(FormatError, "module declares no tracks")
	}

	mod.LoadAddr = uint16(data[idxLoadAddr]) | uint16(data[idxLoadAddr+1])<<8
	mod.InitAddr = uint16(data[idxInitAddr]) | uint16(data[idxInitAddr+1])<<8
	mod.PlayAddr = uint16(data[idxPlayAddr]) | uint16(data[idxPlayAddr+1])<<8

	mod.Title = decodeText(data[idxTitle : idxTitle+fixedFieldLen])
	mod.Artist = decodeText(data[idxArtist : idxArtist+fixedFieldLen])
	mod.Copyright = decodeText(data[idxCopyright : idxCopyright+fixedFieldLen])

	mod.PlaySpeedNTSC = uint16(data[idxSpeedNTSC]) | uint16(data[idxSpeedNTSC+1])<<8
	mod.PlaySpeedPAL = uint16(data[idxSpeedPAL]) | uint16(data[idxSpeedPAL+1])<<8
	mod.TVSystem = data[idxTVSystem]
	copy(mod.BankInit[:], data[idxBankInit:idxBankInit+8])

	exp := data[idxExpansion]
	if exp&^byte(expVRC6|expVRC7|expFDS|expMMC5|expN163|expS5B) != 0 {
		return nil, curated.Errorf(UnsupportedFeatureError, "unknown expansion chip bits")
	}
	mod.Chips = 1 << uint(Chip2A03)
	for b, c := range map[byte]Chip{
		expVRC6: ChipVRC6, expVRC7: ChipVRC7, expFDS: ChipFDS,
		expMMC5: ChipMMC5, expN163: ChipN163, expS5B: ChipS5B,
	} {
		if exp&b != 0 {
			mod.Chips |= 1 << uint(c)
		}
	}

	flags := data[idxNSF2Flags]
	if mod.Version >= 2 {
		mod.IRQSupport = flags&nsf2IRQ != 0
		mod.NonReturningInit = flags&nsf2NonReturningInit != 0
		mod.NoPlaySubroutine = flags&nsf2NoPlaySubroutine != 0
		mod.MetadataAppended = flags&nsf2HasMetadata != 0
	}

	// program length is a 24 bit value and only meaningful for version 2
	// modules. zero means "everything to end of file"
	programLen := int(data[idxProgramLen]) | int(data[idxProgramLen+1])<<8 | int(data[idxProgramLen+2])<<16

	imageEnd := len(data)
	if mod.Version >= 2 && programLen > 0 {
		imageEnd = headerSize + programLen
		if imageEnd > len(data) {
			return nil, curated.Errorf(FormatError, "program data shorter than declared length")
		}
	}
	mod.Image = make([]byte, imageEnd-headerSize)
	copy(mod.Image, data[headerSize:imageEnd])

	mod.Driver = scanDriverType(data)

	mod.tracks = make([]Track, mod.TrackCount)
	for i := range mod.tracks {
		mod.tracks[i].DurationMs = -1
		mod.tracks[i].FadeoutMs = -1
	}

	if mod.Version >= 2 && mod.MetadataAppended && imageEnd < len(data) {
		if err := applyMetadataChunks(mod, data[imageEnd:]); err != nil {
			return nil, err
		}
	}

	return mod, nil
}

// scanDriverType looks for the export signatures left in the program image by
// the FamiTracker family of trackers.
func scanDriverType(data []byte) DriverType {
	switch {
	case bytes.Contains(data, []byte("FTDRV")):
		return DriverFTClassic
	case bytes.Contains(data, []byte("0CCFT")):
		return DriverFT0CC
	case bytes.Contains(data, []byte("DN-FT")), bytes.Contains(data, []byte("Dn-FT")):
		return DriverFTDn
	}
	return DriverUnknown
}

// decodeText converts a NUL terminated byte field to a string. Fields that
// are not valid UTF-8 are tried as Shift-JIS, which is how most
// Japanese-authored modules of the NSF vintage encode their metadata.
func decodeText(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	if len(b) == 0 {
		return ""
	}
	if utf8.Valid(b) {
		return string(b)
	}
	if d, err := japanese.ShiftJIS.NewDecoder().Bytes(b); err == nil {
		return string(d)
	}
	return string(bytes.ToValidUTF8(b, []byte("?")))
}
