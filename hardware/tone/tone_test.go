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

package tone_test

import (
	"testing"

	"github.com/jetsetilly/nsfrender/hardware"
	"github.com/jetsetilly/nsfrender/hardware/tone"
	"github.com/jetsetilly/nsfrender/loopdetect"
	"github.com/jetsetilly/nsfrender/nsf"
	"github.com/jetsetilly/nsfrender/test"
)

func testModule() *nsf.Module {
	return &nsf.Module{
		TrackCount:    1,
		StartingTrack: 1,
		Chips:         1 << uint(nsf.Chip2A03),
		Image:         []byte{0xa9, 0x00, 0x8d, 0x15, 0x40, 0x60},
	}
}

// run a tone core for the given number of frames, collecting the per-frame
// fingerprints and a deep copy of each frame's channel snapshot.
func runTone(t *testing.T, numFrames int) ([]hardware.Fingerprint, [][]hardware.ChannelState) {
	t.Helper()

	drv := hardware.NewDriver(tone.NewCore())
	err := drv.Initialize(testModule(), 1, hardware.Flags{})
	test.ExpectedSuccess(t, err)

	fingerprints := make([]hardware.Fingerprint, numFrames)
	states := make([][]hardware.ChannelState, numFrames)

	for f := 0; f < numFrames; f++ {
		fs, err := drv.StepFrame()
		test.ExpectedSuccess(t, err)
		fingerprints[f] = fs.Fingerprint
		states[f] = append([]hardware.ChannelState(nil), fs.Channels...)
	}

	return fingerprints, states
}

// the tone pattern is a 12 frame intro followed by a 96 frame body that
// repeats forever. the fingerprints must reveal exactly that shape to a loop
// detector.
func TestToneLoopShape(t *testing.T) {
	fingerprints, _ := runTone(t, 240)

	det := loopdetect.NewDetector()
	for f, fp := range fingerprints {
		det.Observe(f, fp)
	}

	loop, ok := det.Result()
	test.Equate(t, ok, true)
	test.Equate(t, loop.Start, 12)
	test.Equate(t, loop.Length, 96)
}

// frames with equal fingerprints must have equal futures. in particular, no
// intro frame may share a fingerprint with a body frame.
func TestToneFingerprintFutures(t *testing.T) {
	fingerprints, states := runTone(t, 240)

	// every frame before the first body repeat is a distinct machine state
	for i := 0; i < 108; i++ {
		for j := i + 1; j < 108; j++ {
			test.Equate(t, fingerprints[i] == fingerprints[j], false)
		}
	}

	// the body repeat: matching fingerprints and matching futures
	for k := 0; k < 96; k++ {
		test.Equate(t, fingerprints[12+k] == fingerprints[108+k], true)

		a := states[12+k]
		b := states[108+k]
		test.Equate(t, len(a), len(b))
		for c := range a {
			test.Equate(t, a[c] == b[c], true)
		}
	}
}
