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

package hardware

import (
	"github.com/jetsetilly/nsfrender/nsf"
)

// NTSC timing. the emulation advances in units of one frame at this rate,
// whatever the output video frame rate is.
const (
	ClockNTSC          = 1789772.7272727
	CyclesPerFrameNTSC = 29780.5
	FrameRateNTSC      = ClockNTSC / CyclesPerFrameNTSC
)

// PAL timing. carried for completeness of the module model; the render
// pipeline is NTSC only.
const (
	ClockPAL          = 1662607.0
	CyclesPerFramePAL = 33247.5
	FrameRatePAL      = ClockPAL / CyclesPerFramePAL
)

// Flags select emulation behaviour that must be fixed before stepping
// begins.
type Flags struct {
	// simulate the Famicom's filter chain rather than the NES'
	Famicom bool

	// higher order filtering. slower but cleaner
	HighQuality bool

	// sample time-shared channels (eg. N163) at the hardware's true
	// time-sliced resolution rather than idealising each virtual channel
	Multiplexing bool
}

// RateKind says how a channel's pitch is expressed.
type RateKind int

// List of valid RateKind values.
const (
	// a fundamental frequency in Hz
	RateFrequency RateKind = iota

	// an LFSR period index. noise channels
	RateLFSR

	// a sample playback rate. PCM channels
	RateSample
)

// ChannelState is the per-channel part of a FrameState snapshot. It is a
// value type; downstream stages can hold it without aliasing machine state.
type ChannelState struct {
	Chip nsf.Chip
	Name string

	// the channel is producing sound this frame
	Playing bool

	// the channel has been muted by channel configuration. muted channels
	// still appear in the snapshot so that the visualization can decide how
	// to treat them
	Muted bool

	// amplitude in the range 0 to 1
	Volume float32

	Kind RateKind

	// valid when Kind is RateFrequency or RateSample
	Frequency float32

	// valid when Kind is RateLFSR
	LFSRIndex int
	LFSRMax   int

	// timbre selection: duty cycle, LFSR mode, FM patch. TimbreMax of zero
	// means the channel has no timbre variation
	TimbreIndex int
	TimbreMax   int
}

// Core is the contract with the cycle accurate chip emulation. The emulation
// itself is an external concern; implementations wrap whatever core is in
// use. The tone package provides a deterministic stand-in for tests and
// previews.
//
// A Core is used by exactly one Driver and is never called concurrently.
type Core interface {
	// load the module image and prepare the selected 1-based track. flags
	// are fixed for the lifetime of the initialisation
	Initialize(mod *nsf.Module, track int, flags Flags) error

	// advance emulated time by exactly one frame period (1/FrameRateNTSC
	// seconds of emulated cycles)
	StepFrame() error

	// snapshot of every channel after the most recent StepFrame()
	Channels() []ChannelState

	// per-channel audio produced during the most recent StepFrame(), at
	// NativeRate(). indices correspond to Channels()
	Audio() [][]float32

	// the sample rate of the buffers returned by Audio()
	NativeRate() int

	// serialisation of the audible machine state after the most recent
	// StepFrame(). implementations must exclude free-running counters and
	// anything else that advances without affecting audible output, so that
	// two frames that sound the same serialise the same
	RegisterState() []byte
}
