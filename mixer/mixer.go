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

// Package mixer folds the per-channel audio of a frame into a single mono
// PCM stream at the requested output rate.
//
// Sample accounting is cumulative. The number of output samples for frame n
// is round((n+1)*rate/framerate) - round(n*rate/framerate), so however long a
// render runs the audio stream never drifts from video time by more than a
// fraction of a sample.
package mixer

import (
	"math"

	"github.com/jetsetilly/nsfrender/hardware"
)

// number of taps used by the high quality resampler
const sincTaps = 8

// Mixer resamples and downmixes frame audio. One Mixer serves one render;
// not safe for concurrent use.
type Mixer struct {
	nativeRate  int
	outputRate  int
	frameRate   float64
	highQuality bool

	frame    int
	outCount int64

	// sliding window over the native rate stream. base is the global stream
	// index of window[0]
	window []float32
	base   int64

	mix []float32
	out []int16
}

// NewMixer is the preferred method of initialisation for the Mixer type.
// The native rate is the rate the core synthesises at; the output rate is the
// rate of the finished stream. The high quality flag selects windowed sinc
// resampling over linear interpolation.
func NewMixer(nativeRate int, outputRate int, frameRate float64, highQuality bool) *Mixer {
	return &Mixer{
		nativeRate:  nativeRate,
		outputRate:  outputRate,
		frameRate:   frameRate,
		highQuality: highQuality,
	}
}

// OutputRate of the finished stream.
func (mix *Mixer) OutputRate() int {
	return mix.outputRate
}

// Frame mixes one frame's audio. The audio slices correspond to the channel
// snapshots; muted channels are left out of the mix. The gain is applied to
// the whole frame and is how fadeout is expressed.
//
// The returned slice is reused on the next call.
func (mix *Mixer) Frame(channels []hardware.ChannelState, audio [][]float32, gain float32) []int16 {
	mix.downmix(channels, audio, gain)

	// keep a few samples of history so interpolation is continuous across
	// the frame boundary
	if len(mix.window) > sincTaps {
		drop := len(mix.window) - sincTaps
		mix.window = append(mix.window[:0], mix.window[drop:]...)
		mix.base += int64(drop)
	}
	mix.window = append(mix.window, mix.mix...)

	return mix.resample()
}

// downmix sums the unmuted channels into the mix buffer, scaled for headroom
// and clamped to the sample range.
func (mix *Mixer) downmix(channels []hardware.ChannelState, audio [][]float32, gain float32) {
	numSamples := 0
	for i := range audio {
		if len(audio[i]) > numSamples {
			numSamples = len(audio[i])
		}
	}

	if cap(mix.mix) < numSamples {
		mix.mix = make([]float32, numSamples)
	}
	mix.mix = mix.mix[:numSamples]

	// uncorrelated channels rarely peak together so full 1/N attenuation
	// would leave the mix very quiet. scale by the square root instead and
	// clamp the rare overshoot
	scale := gain / float32(math.Sqrt(float64(max(1, len(audio)))))

	for s := range mix.mix {
		var sum float32
		for i := range audio {
			if i < len(channels) && channels[i].Muted {
				continue
			}
			if s < len(audio[i]) {
				sum += audio[i][s]
			}
		}
		mix.mix[s] = clamp(sum * scale)
	}
}

func clamp(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// resample produces this frame's output samples from the native window.
func (mix *Mixer) resample() []int16 {
	want := mix.frameOutputCount()
	if cap(mix.out) < want {
		mix.out = make([]int16, want)
	}
	mix.out = mix.out[:want]

	ratio := float64(mix.nativeRate) / float64(mix.outputRate)

	for i := range mix.out {
		pos := float64(mix.outCount+int64(i)) * ratio

		var v float32
		if mix.highQuality {
			v = mix.sincInterpolate(pos)
		} else {
			v = mix.linearInterpolate(pos)
		}

		mix.out[i] = int16(clamp(v) * 32767)
	}

	mix.frame++
	mix.outCount += int64(want)

	return mix.out
}

func (mix *Mixer) frameOutputCount() int {
	next := math.Round(float64(mix.frame+1) * float64(mix.outputRate) / mix.frameRate)
	prev := math.Round(float64(mix.frame) * float64(mix.outputRate) / mix.frameRate)
	return int(next - prev)
}

// sample fetches a native stream sample by global index, clamping at the
// edges of the window. The window always covers the span the resampler needs
// except for the handful of taps that reach past the ends of the stream.
func (mix *Mixer) sample(idx int64) float32 {
	i := idx - mix.base
	if i < 0 {
		i = 0
	}
	if i >= int64(len(mix.window)) {
		i = int64(len(mix.window)) - 1
	}
	if i < 0 {
		return 0
	}
	return mix.window[i]
}

func (mix *Mixer) linearInterpolate(pos float64) float32 {
	i0 := int64(math.Floor(pos))
	frac := float32(pos - float64(i0))
	return mix.sample(i0)*(1-frac) + mix.sample(i0+1)*frac
}

// sincInterpolate is a Hann windowed sinc over sincTaps neighbouring
// samples. Coefficients are normalised so that DC passes at unity.
func (mix *Mixer) sincInterpolate(pos float64) float32 {
	i0 := int64(math.Floor(pos))

	var sum float64
	var norm float64

	for t := int64(-sincTaps/2 + 1); t <= sincTaps/2; t++ {
		x := float64(i0+t) - pos
		c := sinc(x) * (0.5 + 0.5*math.Cos(math.Pi*x/float64(sincTaps/2)))
		sum += c * float64(mix.sample(i0+t))
		norm += c
	}

	if norm == 0 {
		return 0
	}
	return float32(sum / norm)
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	return math.Sin(math.Pi*x) / (math.Pi * x)
}

// FadeGain returns the gain to apply to a frame during fadeout. The ramp is
// linear, reaching silence on the frame after the fade ends. Frames before
// the fade starts are at unity.
func FadeGain(frame int, fadeStart int, fadeFrames int) float32 {
	if fadeFrames <= 0 || frame < fadeStart {
		return 1
	}
	g := 1 - float32(frame-fadeStart+1)/float32(fadeFrames)
	if g < 0 {
		return 0
	}
	return g
}
