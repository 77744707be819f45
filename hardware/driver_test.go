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

package hardware_test

import (
	"fmt"
	"testing"

	"github.com/jetsetilly/nsfrender/curated"
	"github.com/jetsetilly/nsfrender/hardware"
	"github.com/jetsetilly/nsfrender/nsf"
	"github.com/jetsetilly/nsfrender/test"
)

// stubCore is the smallest possible hardware.Core. The register state is a
// counter with a short period so fingerprints repeat predictably.
type stubCore struct {
	frame    int
	initErr  error
	stepErr  error
	panicOn  int
	channels []hardware.ChannelState
}

func newStubCore() *stubCore {
	return &stubCore{
		panicOn: -1,
		channels: []hardware.ChannelState{
			{Chip: nsf.Chip2A03, Name: "Pulse 1", Playing: true, Volume: 0.5},
			{Chip: nsf.Chip2A03, Name: "Noise", Kind: hardware.RateLFSR},
		},
	}
}

func (c *stubCore) Initialize(mod *nsf.Module, track int, flags hardware.Flags) error {
	c.frame = 0
	return c.initErr
}

func (c *stubCore) StepFrame() error {
	if c.frame == c.panicOn {
		panic(fmt.Sprintf("frame %d", c.frame))
	}
	c.frame++
	return c.stepErr
}

func (c *stubCore) Channels() []hardware.ChannelState {
	s := make([]hardware.ChannelState, len(c.channels))
	copy(s, c.channels)
	return s
}

func (c *stubCore) Audio() [][]float32 {
	return [][]float32{make([]float32, 10), make([]float32, 10)}
}

func (c *stubCore) NativeRate() int {
	return 44100
}

func (c *stubCore) RegisterState() []byte {
	return []byte{byte((c.frame - 1) % 4)}
}

func testModule(t *testing.T) *nsf.Module {
	t.Helper()
	mod, err := nsf.ParseModule(minimalNSF())
	test.ExpectedSuccess(t, err)
	return mod
}

func minimalNSF() []byte {
	d := make([]byte, 0x80)
	copy(d, "NESM\x1a")
	d[0x05] = 0x01
	d[0x06] = 0x03 // tracks
	d[0x07] = 0x01 // starting track
	d[0x08] = 0x00
	d[0x09] = 0x80 // load $8000
	d[0x0a] = 0x00
	d[0x0b] = 0x80
	d[0x0c] = 0x03
	d[0x0d] = 0x80
	copy(d[0x0e:], "test")
	d[0x6e] = 0xff
	d[0x6f] = 0x40 // NTSC speed
	return append(d, 0x4c, 0x00, 0x80)
}

func TestDriverStates(t *testing.T) {
	drv := hardware.NewDriver(newStubCore())
	test.Equate(t, drv.State() == hardware.Uninitialized, true)

	_, err := drv.StepFrame()
	test.ExpectedFailure(t, err)
	test.Equate(t, curated.Is(err, hardware.EmulationFault), true)

	err = drv.Initialize(testModule(t), 1, hardware.Flags{})
	test.ExpectedSuccess(t, err)
	test.Equate(t, drv.State() == hardware.Initialized, true)

	_, err = drv.StepFrame()
	test.ExpectedSuccess(t, err)
	test.Equate(t, drv.State() == hardware.Running, true)
	test.Equate(t, drv.Frame(), 0)

	_, err = drv.StepFrame()
	test.ExpectedSuccess(t, err)
	test.Equate(t, drv.Frame(), 1)
}

func TestDriverInvalidTrack(t *testing.T) {
	mod := testModule(t)

	drv := hardware.NewDriver(newStubCore())
	err := drv.Initialize(mod, 0, hardware.Flags{})
	test.ExpectedFailure(t, err)
	test.Equate(t, curated.Is(err, hardware.InvalidTrackError), true)

	err = drv.Initialize(mod, 4, hardware.Flags{})
	test.ExpectedFailure(t, err)
	test.Equate(t, curated.Is(err, hardware.InvalidTrackError), true)

	err = drv.Initialize(mod, 3, hardware.Flags{})
	test.ExpectedSuccess(t, err)
}

func TestDriverFaultHalts(t *testing.T) {
	core := newStubCore()
	core.panicOn = 2

	drv := hardware.NewDriver(core)
	err := drv.Initialize(testModule(t), 1, hardware.Flags{})
	test.ExpectedSuccess(t, err)

	for i := 0; i < 2; i++ {
		_, err = drv.StepFrame()
		test.ExpectedSuccess(t, err)
	}

	_, err = drv.StepFrame()
	test.ExpectedFailure(t, err)
	test.Equate(t, curated.Is(err, hardware.EmulationFault), true)
	test.Equate(t, drv.State() == hardware.Halted, true)

	// halted drivers stay halted
	_, err = drv.StepFrame()
	test.ExpectedFailure(t, err)
	test.Equate(t, curated.Is(err, hardware.EmulationFault), true)
}

func TestDriverFingerprints(t *testing.T) {
	step := func(drv *hardware.Driver, n int) []hardware.Fingerprint {
		f := make([]hardware.Fingerprint, n)
		for i := 0; i < n; i++ {
			state, err := drv.StepFrame()
			test.ExpectedSuccess(t, err)
			f[i] = state.Fingerprint
		}
		return f
	}

	drvA := hardware.NewDriver(newStubCore())
	test.ExpectedSuccess(t, drvA.Initialize(testModule(t), 1, hardware.Flags{}))
	a := step(drvA, 8)

	drvB := hardware.NewDriver(newStubCore())
	test.ExpectedSuccess(t, drvB.Initialize(testModule(t), 1, hardware.Flags{}))
	b := step(drvB, 8)

	for i := range a {
		test.Equate(t, a[i] == b[i], true)
	}

	// the stub's register state has a period of four frames so fingerprints
	// separated by four frames match and neighbouring fingerprints do not
	test.Equate(t, a[0] == a[4], true)
	test.Equate(t, a[1] == a[5], true)
	test.Equate(t, a[0] == a[1], false)
}

func TestDriverMute(t *testing.T) {
	drv := hardware.NewDriver(newStubCore())
	drv.Mute(nsf.Chip2A03, "Noise")
	test.ExpectedSuccess(t, drv.Initialize(testModule(t), 1, hardware.Flags{}))

	state, err := drv.StepFrame()
	test.ExpectedSuccess(t, err)
	test.Equate(t, state.Channels[0].Muted, false)
	test.Equate(t, state.Channels[1].Muted, true)
}
