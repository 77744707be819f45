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
	"crypto/sha1"
	"fmt"

	"github.com/jetsetilly/nsfrender/curated"
	"github.com/jetsetilly/nsfrender/nsf"
)

// Curated error patterns raised by the driver.
const (
	// InvalidTrackError indicates a track selection outside the module's
	// 1-based track range. raised before any frame stepping.
	InvalidTrackError = "hardware: invalid track: %v"

	// EmulationFault indicates a fault inside the chip core. the driver is
	// Halted and the machine state is no longer trustworthy; a render must
	// treat this as terminal.
	EmulationFault = "hardware: emulation fault: %v"
)

// State records where the Driver is in its lifecycle.
type State int

// List of valid State values.
const (
	Uninitialized State = iota
	Initialized
	Running
	Halted
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case Running:
		return "running"
	case Halted:
		return "halted"
	}
	return "unknown"
}

// Fingerprint is the machine state digest used for loop detection. It is a
// digest of the core's register state alone: two frames in which the machine
// is in identical audible state produce identical fingerprints, which is
// exactly the property loop detection needs.
type Fingerprint [sha1.Size]byte

func (f Fingerprint) String() string {
	return fmt.Sprintf("%x", f[:])
}

// FrameState is the per-frame snapshot handed to the downstream pipeline
// stages. Values are produced once per frame and discarded; nothing in a
// FrameState aliases driver or core state.
type FrameState struct {
	// frame index, counting from zero
	Frame int

	Channels []ChannelState

	// per-channel audio at Driver.NativeRate(), indices corresponding to
	// Channels
	Audio [][]float32

	Fingerprint Fingerprint
}

// Driver owns one Core and is its sole user. Not safe for concurrent use; a
// Driver belongs to exactly one render at a time.
type Driver struct {
	core  Core
	mod   *nsf.Module
	track int

	state State
	frame int

	// channels muted by configuration, keyed chip/name
	muted map[string]bool
}

// NewDriver is the preferred method of initialisation for the Driver type.
func NewDriver(core Core) *Driver {
	return &Driver{
		core:  core,
		state: Uninitialized,
		muted: make(map[string]bool),
	}
}

// State the Driver is currently in.
func (drv *Driver) State() State {
	return drv.state
}

// Frame returns the index of the most recently completed frame. Meaningless
// before the first StepFrame().
func (drv *Driver) Frame() int {
	return drv.frame - 1
}

// NativeRate returns the sample rate of the audio buffers in FrameState.
func (drv *Driver) NativeRate() int {
	return drv.core.NativeRate()
}

// Mute marks a channel as muted by configuration. Muted channels still
// appear in FrameState snapshots. Must be called before stepping begins.
func (drv *Driver) Mute(chip nsf.Chip, channel string) {
	drv.muted[muteKey(chip, channel)] = true
}

func muteKey(chip nsf.Chip, channel string) string {
	return chip.String() + "/" + channel
}

// Initialize loads the module image into the core and prepares the selected
// 1-based track. The flags are fixed until the next Initialize.
//
// Fails with InvalidTrackError if the index is outside the module's track
// range.
func (drv *Driver) Initialize(mod *nsf.Module, track int, flags Flags) (rerr error) {
	if track < 1 || track > mod.TrackCount {
		return curated.Errorf(InvalidTrackError, fmt.Sprintf("track %d of %d", track, mod.TrackCount))
	}

	defer drv.recoverFault(&rerr)

	if err := drv.core.Initialize(mod, track, flags); err != nil {
		drv.state = Halted
		return curated.Errorf(EmulationFault, err)
	}

	drv.mod = mod
	drv.track = track
	drv.frame = 0
	drv.state = Initialized

	return nil
}

// StepFrame advances emulated time by exactly one frame period and returns
// the resulting snapshot.
//
// A fault inside the core, including a panic, halts the driver permanently
// and is reported as EmulationFault.
func (drv *Driver) StepFrame() (_ FrameState, rerr error) {
	switch drv.state {
	case Uninitialized:
		return FrameState{}, curated.Errorf(EmulationFault, "step before initialization")
	case Halted:
		return FrameState{}, curated.Errorf(EmulationFault, "driver is halted")
	}

	defer drv.recoverFault(&rerr)

	if err := drv.core.StepFrame(); err != nil {
		drv.state = Halted
		return FrameState{}, curated.Errorf(EmulationFault, err)
	}
	drv.state = Running

	channels := drv.core.Channels()
	for i := range channels {
		if drv.muted[muteKey(channels[i].Chip, channels[i].Name)] {
			channels[i].Muted = true
		}
	}

	state := FrameState{
		Frame:       drv.frame,
		Channels:    channels,
		Audio:       drv.core.Audio(),
		Fingerprint: sha1.Sum(drv.core.RegisterState()),
	}

	drv.frame++

	return state, nil
}

// recoverFault converts a core panic into an EmulationFault. runaway driver
// code in the emulated machine can wander anywhere; we must not let it take
// the process down.
func (drv *Driver) recoverFault(rerr *error) {
	if r := recover(); r != nil {
		drv.state = Halted
		*rerr = curated.Errorf(EmulationFault, fmt.Sprintf("core panic: %v", r))
	}
}
