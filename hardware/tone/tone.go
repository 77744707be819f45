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

// Package tone is a deterministic stand-in for a cycle accurate chip
// emulation. It satisfies the hardware.Core interface but it does not execute
// 6502 code. Instead it derives a repeating note pattern from a digest of the
// module image and the selected track, so that the same module and track
// always produce the same channel activity, the same audio and the same
// machine state fingerprints.
//
// The pattern has a short intro followed by a body that repeats indefinitely,
// which makes renders driven by a tone core loop detectable.
//
// The package exists for tests and for previewing the render pipeline when no
// real core is available.
package tone

import (
	"crypto/sha1"
	"encoding/binary"
	"math"

	"github.com/jetsetilly/nsfrender/curated"
	"github.com/jetsetilly/nsfrender/hardware"
	"github.com/jetsetilly/nsfrender/nsf"
)

// the pattern shape. the body must be at least as long as the minimum loop
// distance or renders of tone cores would never report a loop
const (
	introFrames   = 12
	bodyFrames    = 96
	framesPerStep = 6
)

// SampleRate is the rate audio is synthesised at. Deliberately not a common
// output rate so that the mixer's resampling path is always exercised.
const SampleRate = 88200

type channel struct {
	state hardware.ChannelState

	// sequence of steps making up the repeating body, derived from the seed
	// at initialisation
	steps []step

	// waveform phase. free running and therefore not part of RegisterState()
	phase float64

	// noise shift register. also free running
	lfsr uint16
}

type step struct {
	playing bool
	note    int
	volume  float32
	lfsr    int
	timbre  int
}

// Core is a deterministic hardware.Core implementation. Use NewCore to
// create, or let the zero value be initialised by the Driver.
type Core struct {
	mod   *nsf.Module
	flags hardware.Flags

	channels []channel
	snapshot []hardware.ChannelState
	audio    [][]float32

	frame int
}

// NewCore is the preferred method of initialisation for the Core type.
func NewCore() *Core {
	return &Core{}
}

// Initialize implements the hardware.Core interface.
func (cor *Core) Initialize(mod *nsf.Module, track int, flags hardware.Flags) error {
	if len(mod.Image) == 0 {
		return curated.Errorf("tone: module has no program data")
	}

	cor.mod = mod
	cor.flags = flags
	cor.frame = 0

	seed := sha1.New()
	seed.Write(mod.Image)
	seed.Write([]byte{byte(track)})
	rnd := newSeqRand(seed.Sum(nil))

	cor.channels = cor.channels[:0]
	for _, chip := range mod.Chips.List() {
		for _, name := range chip.Channels() {
			cor.channels = append(cor.channels, newChannel(chip, name, rnd))
		}
	}

	cor.snapshot = make([]hardware.ChannelState, len(cor.channels))
	cor.audio = make([][]float32, len(cor.channels))

	return nil
}

func newChannel(chip nsf.Chip, name string, rnd *seqRand) channel {
	ch := channel{
		state: hardware.ChannelState{
			Chip: chip,
			Name: name,
			Kind: channelKind(chip, name),
		},
		lfsr:  1,
		steps: make([]step, bodyFrames/framesPerStep),
	}

	switch ch.state.Kind {
	case hardware.RateLFSR:
		ch.state.LFSRMax = 15
		ch.state.TimbreMax = 2
	default:
		ch.state.TimbreMax = channelTimbreMax(chip, name)
	}

	base := 24 + rnd.intn(24)
	for i := range ch.steps {
		ch.steps[i] = step{
			playing: rnd.intn(4) != 0,
			note:    base + rnd.intn(25) - 12,
			volume:  float32(4+rnd.intn(12)) / 15.0,
			lfsr:    rnd.intn(16),
			timbre:  rnd.intn(ch.state.TimbreMax + 1),
		}
	}

	// sampling channels only speak occasionally
	if ch.state.Kind == hardware.RateSample {
		for i := range ch.steps {
			ch.steps[i].playing = i%8 == 0
		}
	}

	return ch
}

func channelKind(chip nsf.Chip, name string) hardware.RateKind {
	switch {
	case chip == nsf.Chip2A03 && name == "Noise":
		return hardware.RateLFSR
	case chip == nsf.Chip2A03 && name == "DMC":
		return hardware.RateSample
	case chip == nsf.ChipMMC5 && name == "PCM":
		return hardware.RateSample
	}
	return hardware.RateFrequency
}

func channelTimbreMax(chip nsf.Chip, name string) int {
	switch chip {
	case nsf.Chip2A03, nsf.ChipMMC5:
		if name == "Pulse 1" || name == "Pulse 2" {
			return 3
		}
	case nsf.ChipVRC6:
		if name != "Sawtooth" {
			return 7
		}
	case nsf.ChipVRC7:
		return 15
	}
	return 0
}

// StepFrame implements the hardware.Core interface.
func (cor *Core) StepFrame() error {
	if cor.mod == nil {
		return curated.Errorf("tone: step before initialization")
	}

	st := patternStep(cor.frame)
	numSamples := frameSampleCount(cor.frame)

	for i := range cor.channels {
		ch := &cor.channels[i]
		s := ch.steps[st]

		ch.state.Playing = s.playing
		ch.state.Volume = s.volume
		ch.state.TimbreIndex = s.timbre
		switch ch.state.Kind {
		case hardware.RateLFSR:
			ch.state.LFSRIndex = s.lfsr
		default:
			ch.state.Frequency = noteFrequency(s.note)
		}
		if !s.playing {
			ch.state.Volume = 0
		}

		cor.synthesise(i, numSamples)
		cor.snapshot[i] = ch.state
	}

	cor.frame++
	return nil
}

// patternStep maps a frame onto the note pattern. the intro plays the first
// step for longer, after which the body repeats
func patternStep(frame int) int {
	if frame < introFrames {
		return 0
	}
	return ((frame - introFrames) % bodyFrames) / framesPerStep
}

// patternPosition maps a frame onto the repeating schedule. every intro frame
// is its own position; body frames repeat with the body period. two frames
// with the same position always have the same audible future, which is the
// property RegisterState() must preserve
func patternPosition(frame int) int {
	if frame < introFrames {
		return frame
	}
	return introFrames + (frame-introFrames)%bodyFrames
}

// frameSampleCount uses cumulative accounting so that sample production never
// drifts from real time by more than a fraction of a sample, no matter how
// long the render runs.
func frameSampleCount(frame int) int {
	next := math.Round(float64(frame+1) * SampleRate / hardware.FrameRateNTSC)
	prev := math.Round(float64(frame) * SampleRate / hardware.FrameRateNTSC)
	return int(next - prev)
}

func noteFrequency(note int) float32 {
	return float32(55.0 * math.Pow(2, float64(note)/12.0))
}

func (cor *Core) synthesise(i int, numSamples int) {
	ch := &cor.channels[i]

	if cap(cor.audio[i]) < numSamples {
		cor.audio[i] = make([]float32, numSamples)
	}
	buf := cor.audio[i][:numSamples]
	cor.audio[i] = buf

	if !ch.state.Playing {
		for s := range buf {
			buf[s] = 0
		}
		return
	}

	vol := ch.state.Volume * 0.25

	switch ch.state.Kind {
	case hardware.RateLFSR:
		// LFSR clocked at a rate derived from the period index, in the
		// manner of the console's noise channel
		clock := float64(uint(1) << uint(15-ch.state.LFSRIndex))
		inc := clock / SampleRate
		for s := range buf {
			ch.phase += inc
			for ch.phase >= 1 {
				ch.phase--
				feedback := (ch.lfsr ^ (ch.lfsr >> 1)) & 0x01
				ch.lfsr = (ch.lfsr >> 1) | (feedback << 14)
			}
			if ch.lfsr&0x01 == 0 {
				buf[s] = vol
			} else {
				buf[s] = -vol
			}
		}

	case hardware.RateSample:
		// idealised sample playback. a low rumble is enough to register in
		// the mix
		inc := 120.0 / SampleRate
		for s := range buf {
			ch.phase += inc
			if ch.phase >= 1 {
				ch.phase--
			}
			buf[s] = vol * float32(1-2*ch.phase)
		}

	default:
		inc := float64(ch.state.Frequency) / SampleRate
		duty := 0.5
		if ch.state.TimbreMax > 0 {
			duty = float64(ch.state.TimbreIndex+1) / float64(ch.state.TimbreMax+2)
		}
		for s := range buf {
			ch.phase += inc
			if ch.phase >= 1 {
				ch.phase--
			}
			if ch.phase < duty {
				buf[s] = vol
			} else {
				buf[s] = -vol
			}
		}
	}
}

// Channels implements the hardware.Core interface.
func (cor *Core) Channels() []hardware.ChannelState {
	return cor.snapshot
}

// Audio implements the hardware.Core interface.
func (cor *Core) Audio() [][]float32 {
	return cor.audio
}

// NativeRate implements the hardware.Core interface.
func (cor *Core) NativeRate() int {
	return SampleRate
}

// RegisterState implements the hardware.Core interface. The serialisation
// covers the schedule position and every derived channel register. Waveform
// phase and the noise shift register are free running and are deliberately
// excluded.
func (cor *Core) RegisterState() []byte {
	b := make([]byte, 0, 2+len(cor.channels)*8)

	// the most recently completed frame's position within the repeating
	// schedule. an intro frame must never serialise the same as a body frame
	// or two fingerprint-identical frames could have different futures
	pos := 0
	if cor.frame > 0 {
		pos = patternPosition(cor.frame - 1)
	}
	b = binary.LittleEndian.AppendUint16(b, uint16(pos))

	for i := range cor.channels {
		ch := &cor.channels[i]
		if ch.state.Playing {
			b = append(b, 1)
		} else {
			b = append(b, 0)
		}
		b = append(b, byte(ch.state.Volume*255))
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(ch.state.Frequency))
		b = append(b, byte(ch.state.LFSRIndex), byte(ch.state.TimbreIndex))
	}

	return b
}

// seqRand is a tiny deterministic byte sequence expander. It is not a good
// random number generator and does not need to be; it only has to spread the
// seed digest over the pattern tables the same way every time.
type seqRand struct {
	state [sha1.Size]byte
	idx   int
}

func newSeqRand(seed []byte) *seqRand {
	r := &seqRand{}
	copy(r.state[:], seed)
	return r
}

func (r *seqRand) next() byte {
	if r.idx == len(r.state) {
		r.state = sha1.Sum(r.state[:])
		r.idx = 0
	}
	b := r.state[r.idx]
	r.idx++
	return b
}

func (r *seqRand) intn(n int) int {
	return int(r.next()) % n
}
