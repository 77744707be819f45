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
	"encoding/binary"

	"github.com/jetsetilly/nsfrender/curated"
	"github.com/jetsetilly/nsfrender/logger"
)

// a chunk is one [length][fourcc][data] record from an NSFe container or an
// NSF2 metadata block.
type chunk struct {
	fourcc string
	data   []byte
}

// extractChunks splits a chunk block into its records. Extraction is purely
// structural; interpretation (including stopping at NEND) happens in the
// caller.
func extractChunks(data []byte) ([]chunk, error) {
	var result []chunk

	for len(data) > 0 {
		if len(data) < 8 {
			return nil, curated.Errorf(FormatError, "not enough data left for next chunk")
		}

		length := int(binary.LittleEndian.Uint32(data[:4]))
		fourcc := string(data[4:8])
		data = data[8:]

		if length > len(data) {
			return nil, curated.Errorf(FormatError, "chunk is too short")
		}

		result = append(result, chunk{fourcc: fourcc, data: data[:length]})
		data = data[length:]
	}

	return result, nil
}

// default values for the header play speeds, in microseconds per frame. used
// when an NSFe container has no RATE chunk.
const (
	defaultSpeedNTSC = 16639
	defaultSpeedPAL  = 19997
)

// nsfeToNSF2 reassembles an NSFe container into the NSF2 layout: baseline
// header, program data, then the metadata chunks that are not part of the
// baseline.
func nsfeToNSF2(data []byte) ([]byte, error) {
	if !bytes.Equal(data[:len(magicNSFe)], magicNSFe) {
		return nil, curated.Errorf(FormatError, "malformed NSFe header")
	}

	chunks, err := extractChunks(data[len(magicNSFe):])
	if err != nil {
		return nil, err
	}

	var info, rom, bankInit []byte
	var rates []uint16
	var nsf2Flags byte
	var auth [][]byte

	for _, c := range chunks {
		switch c.fourcc {
		case "INFO":
			info = c.data
		case "DATA":
			rom = c.data
		case "BANK":
			bankInit = c.data
		case "RATE":
			if len(c.data)%2 != 0 {
				return nil, curated.Errorf(FormatError, "RATE chunk has invalid length")
			}
			for i := 0; i+1 < len(c.data); i += 2 {
				rates = append(rates, binary.LittleEndian.Uint16(c.data[i:]))
			}
		case "NSF2":
			if len(c.data) > 0 {
				nsf2Flags = c.data[0]
			}
		case "auth":
			auth = bytes.Split(c.data, []byte{0})
		}
	}

	if info == nil {
		return nil, curated.Errorf(FormatError, "missing INFO chunk")
	}
	if len(info) < 9 {
		return nil, curated.Errorf(FormatError, "INFO chunk is too short")
	}
	if rom == nil {
		return nil, curated.Errorf(FormatError, "missing DATA chunk")
	}

	bank := make([]byte, 8)
	copy(bank, bankInit)

	authField := func(i int) []byte {
		if i < len(auth) && len(auth[i]) > 0 {
			f := auth[i]
			if len(f) > fixedFieldLen-1 {
				f = f[:fixedFieldLen-1]
			}
			return f
		}
		return []byte("<?>")
	}

	rate := func(i int, def uint16) uint16 {
		if i < len(rates) {
			return rates[i]
		}
		return def
	}

	startingSong := byte(1)
	if len(info) > 9 {
		// NSFe starting song is 0-based
		startingSong = info[9] + 1
	}

	result := &bytes.Buffer{}
	result.Write(magicNSF)
	result.WriteByte(2)       // version
	result.WriteByte(info[8]) // total songs
	result.WriteByte(startingSong)
	result.Write(info[0:6]) // load/init/play addresses

	for i := 0; i < 3; i++ {
		f := make([]byte, fixedFieldLen)
		copy(f, authField(i))
		result.Write(f)
	}

	binary.Write(result, binary.LittleEndian, rate(0, defaultSpeedNTSC))
	result.Write(bank)
	binary.Write(result, binary.LittleEndian, rate(1, defaultSpeedPAL))
	result.WriteByte(info[6])            // PAL/NTSC bits
	result.WriteByte(info[7])            // expansion audio bits
	result.WriteByte(nsf2Flags | 0x80)   // metadata always appended
	var programLen [4]byte
	binary.LittleEndian.PutUint32(programLen[:], uint32(len(rom)))
	result.Write(programLen[:3])

	result.Write(rom)

	// re-emit the remaining chunks as the NSF2 metadata block
	for _, c := range chunks {
		switch c.fourcc {
		case "INFO", "DATA", "BANK", "NSF2":
			continue
		}
		var length [4]byte
		binary.LittleEndian.PutUint32(length[:], uint32(len(c.data)))
		result.Write(length[:])
		result.WriteString(c.fourcc)
		result.Write(c.data)
	}

	return result.Bytes(), nil
}

// applyMetadataChunks decodes the metadata block of an NSF2 module (or a
// reassembled NSFe container) onto the Module. Unknown chunks are logged and
// skipped.
func applyMetadataChunks(mod *Module, data []byte) error {
	chunks, err := extractChunks(data)
	if err != nil {
		return err
	}

	for _, c := range chunks {
		switch c.fourcc {
		case "NEND":
			return nil

		case "plst":
			mod.Playlist = make([]int, len(c.data))
			for i, t := range c.data {
				mod.Playlist[i] = int(t) + 1
			}

		case "time":
			times, err := chunkInt32s(c.data)
			if err != nil {
				return err
			}
			for i, ms := range times {
				if i < len(mod.tracks) {
					mod.tracks[i].DurationMs = ms
				}
			}

		case "fade":
			fades, err := chunkInt32s(c.data)
			if err != nil {
				return err
			}
			for i, ms := range fades {
				if i < len(mod.tracks) {
					mod.tracks[i].FadeoutMs = ms
				}
			}

		case "tlbl":
			for i, s := range chunkStrings(c.data) {
				if i < len(mod.tracks) {
					mod.tracks[i].Title = s
				}
			}

		case "taut":
			for i, s := range chunkStrings(c.data) {
				if i < len(mod.tracks) {
					mod.tracks[i].Artist = s
				}
			}

		case "auth":
			s := chunkStrings(c.data)
			if len(s) > 0 && s[0] != "" {
				mod.Title = s[0]
			}
			if len(s) > 1 && s[1] != "" {
				mod.Artist = s[1]
			}
			if len(s) > 2 && s[2] != "" {
				mod.Copyright = s[2]
			}
			if len(s) > 3 {
				mod.Ripper = s[3]
			}

		case "text":
			s := chunkStrings(c.data)
			if len(s) > 0 {
				mod.Text = s[0]
			}

		case "RATE":
			if len(c.data) >= 2 {
				mod.PlaySpeedNTSC = binary.LittleEndian.Uint16(c.data)
			}
			if len(c.data) >= 4 {
				mod.PlaySpeedPAL = binary.LittleEndian.Uint16(c.data[2:])
			}

		case "VRC7":
			if err := applyVRC7Chunk(mod, c.data); err != nil {
				return err
			}

		case "psfx", "INFO", "DATA", "BANK", "NSF2":
			// structural chunks with no metadata meaning here

		default:
			logger.Logf("nsf", "skipping unknown chunk %q", c.fourcc)
		}
	}

	return nil
}

// applyVRC7Chunk validates and stores the custom patch table. The chunk is a
// YM2413 flag byte, 8 reserved bytes, 15 patch records and (in YM2413 mode
// only) 3 rhythm records.
func applyVRC7Chunk(mod *Module, data []byte) error {
	if len(data) < 1 {
		return curated.Errorf(FormatError, "VRC7 chunk missing YM2413 flag")
	}
	ym2413 := data[0] != 0

	const patchTableEnd = 9 + VRC7PatchSize*VRC7PatchCount // 129

	switch {
	case len(data) == 1:
		// flag only. nothing more to store
	case len(data) == patchTableEnd:
		mod.VRC7Patches = make([]byte, VRC7PatchSize*VRC7PatchCount)
		copy(mod.VRC7Patches, data[9:patchTableEnd])
	case len(data) == patchTableEnd+VRC7PatchSize*3:
		if !ym2413 {
			return curated.Errorf(FormatError, "VRC7 chunk specifies rhythm instruments in non-YM2413 mode")
		}
		mod.VRC7Patches = make([]byte, VRC7PatchSize*VRC7PatchCount)
		copy(mod.VRC7Patches, data[9:patchTableEnd])
	default:
		return curated.Errorf(FormatError, "VRC7 chunk has invalid length")
	}

	if ym2413 {
		// the table is stored but the chip mode itself is beyond us
		logger.Log("nsf", "YM2413 mode is not supported; patches stored, rhythm section ignored")
	}

	return nil
}

func chunkInt32s(data []byte) ([]int, error) {
	if len(data)%4 != 0 {
		return nil, curated.Errorf(FormatError, "i32 array chunk has invalid length")
	}
	result := make([]int, 0, len(data)/4)
	for i := 0; i+3 < len(data); i += 4 {
		result = append(result, int(int32(binary.LittleEndian.Uint32(data[i:]))))
	}
	return result, nil
}

func chunkStrings(data []byte) []string {
	parts := bytes.Split(data, []byte{0})
	result := make([]string, len(parts))
	for i, p := range parts {
		result[i] = decodeText(p)
	}
	return result
}
