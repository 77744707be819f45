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

package mixer_test

import (
	"math"
	"testing"

	"github.com/jetsetilly/nsfrender/hardware"
	"github.com/jetsetilly/nsfrender/mixer"
	"github.com/jetsetilly/nsfrender/test"
)

// nativeFrame returns one frame's worth of native samples using the same
// cumulative accounting the cores use.
func nativeFrame(frame int, rate int, fill float32) []float32 {
	next := math.Round(float64(frame+1) * float64(rate) / hardware.FrameRateNTSC)
	prev := math.Round(float64(frame) * float64(rate) / hardware.FrameRateNTSC)
	buf := make([]float32, int(next-prev))
	for i := range buf {
		buf[i] = fill
	}
	return buf
}

func TestCumulativeSampleAccounting(t *testing.T) {
	for _, outputRate := range []int{44100, 48000} {
		mix := mixer.NewMixer(88200, outputRate, hardware.FrameRateNTSC, false)

		const numFrames = 120

		total := 0
		for f := 0; f < numFrames; f++ {
			audio := [][]float32{nativeFrame(f, 88200, 0.1)}
			out := mix.Frame(nil, audio, 1.0)
			total += len(out)
		}

		expected := int(math.Round(numFrames * float64(outputRate) / hardware.FrameRateNTSC))
		test.Equate(t, total, expected)
	}
}

func TestDCLevel(t *testing.T) {
	for _, hq := range []bool{false, true} {
		mix := mixer.NewMixer(88200, 44100, hardware.FrameRateNTSC, hq)

		var out []int16
		for f := 0; f < 10; f++ {
			audio := [][]float32{nativeFrame(f, 88200, 0.5)}
			out = append(out, mix.Frame(nil, audio, 1.0)...)
		}

		// a constant input must come out constant, apart from the first few
		// samples where the history window is still filling
		expected := int16(math.Round(0.5 * 32767))
		for _, v := range out[20:] {
			if v < expected-1 || v > expected+1 {
				t.Fatalf("DC level drifted: %d (hq=%v)", v, hq)
			}
		}
	}
}

func TestMutedChannelsExcluded(t *testing.T) {
	channels := []hardware.ChannelState{
		{Chip: 0, Name: "Pulse 1"},
		{Chip: 0, Name: "Pulse 2", Muted: true},
	}

	mixA := mixer.NewMixer(44100, 44100, hardware.FrameRateNTSC, false)
	mixB := mixer.NewMixer(44100, 44100, hardware.FrameRateNTSC, false)

	for f := 0; f < 5; f++ {
		quiet := nativeFrame(f, 44100, 0.25)
		loud := nativeFrame(f, 44100, 0.9)
		silent := nativeFrame(f, 44100, 0)

		a := mixA.Frame(channels, [][]float32{quiet, loud}, 1.0)
		b := mixB.Frame(channels, [][]float32{quiet, silent}, 1.0)

		for i := range a {
			test.Equate(t, a[i] == b[i], true)
		}
	}
}

func TestFadeGain(t *testing.T) {
	test.Equate(t, mixer.FadeGain(0, 100, 60) == 1, true)
	test.Equate(t, mixer.FadeGain(99, 100, 60) == 1, true)

	// the ramp is linear and reaches silence when the fade ends
	test.Equate(t, mixer.FadeGain(100, 100, 60) < 1, true)
	test.Equate(t, mixer.FadeGain(159, 100, 60) == 0, true)
	test.Equate(t, mixer.FadeGain(500, 100, 60) == 0, true)

	// no fade declared
	test.Equate(t, mixer.FadeGain(500, 100, 0) == 1, true)
}
