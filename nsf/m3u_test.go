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

package nsf_test

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/jetsetilly/nsfrender/nsf"
	"github.com/jetsetilly/nsfrender/test"
)

// load a module from a temporary directory containing the module bytes and,
// optionally, an m3u playlist.
func loadWithSidecar(t *testing.T, module []byte, m3u string) *nsf.Module {
	t.Helper()

	dir := t.TempDir()
	modPath := filepath.Join(dir, "song.nsf")
	err := os.WriteFile(modPath, module, 0o644)
	test.ExpectedSuccess(t, err)

	if m3u != "" {
		err = os.WriteFile(filepath.Join(dir, "song.m3u"), []byte(m3u), 0o644)
		test.ExpectedSuccess(t, err)
	}

	loader := nsf.NewLoader(modPath)
	mod, err := loader.Load()
	test.ExpectedSuccess(t, err)

	return mod
}

func TestM3USidecar(t *testing.T) {
	module := buildNSF(3, "A Tune", 0x00, []byte{0xa9, 0x00, 0x60}, nil)

	m3u := "# comment line\n" +
		"SONG.NSF::NSF,1,Title One,1:30\n" +
		"song.nsf::NSF,2,Title\\, Two,45\n" +
		"other.nsf::NSF,3,Someone Else's Track,2:00\n"

	mod := loadWithSidecar(t, module, m3u)

	test.Equate(t, mod.TrackTitle(1), "Title One")
	ms, ok := mod.DeclaredDurationMs(1)
	test.Equate(t, ok, true)
	test.Equate(t, ms, 90000)

	// escaped comma belongs to the title, not the field separator
	test.Equate(t, mod.TrackTitle(2), "Title, Two")
	ms, ok = mod.DeclaredDurationMs(2)
	test.Equate(t, ok, true)
	test.Equate(t, ms, 45000)

	// the playlist line for a different module is ignored. the track falls
	// back to the module title
	test.Equate(t, mod.TrackTitle(3), "A Tune")
	_, ok = mod.DeclaredDurationMs(3)
	test.Equate(t, ok, false)
}

func TestM3USidecarDoesNotOverrideModule(t *testing.T) {
	// a module that declares its own duration for track 1
	var times [4]byte
	binary.LittleEndian.PutUint32(times[:], 5000)
	chunks := appendChunk(nil, "time", times[:])
	chunks = appendChunk(chunks, "NEND", nil)
	module := buildNSF(1, "A Tune", 0x00, []byte{0xa9, 0x00, 0x60}, chunks)

	m3u := "song.nsf::NSF,1,Playlist Title,1:30\n"

	mod := loadWithSidecar(t, module, m3u)

	// the module's own duration wins; the playlist only fills the gaps
	ms, ok := mod.DeclaredDurationMs(1)
	test.Equate(t, ok, true)
	test.Equate(t, ms, 5000)
	test.Equate(t, mod.TrackTitle(1), "Playlist Title")
}

func TestM3UAbsent(t *testing.T) {
	module := buildNSF(2, "A Tune", 0x00, []byte{0xa9, 0x00, 0x60}, nil)
	mod := loadWithSidecar(t, module, "")

	test.Equate(t, mod.TrackTitle(1), "A Tune")
	_, ok := mod.DeclaredDurationMs(1)
	test.Equate(t, ok, false)
}
