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

package render

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/jetsetilly/nsfrender/curated"
	"github.com/jetsetilly/nsfrender/hardware"
)

// RequestError is returned for a render request that can be rejected before
// any emulation happens.
const RequestError = "render: bad request: %v"

// DurationKind tags a DurationSpec.
type DurationKind int

// List of valid DurationKind values.
const (
	// play for a wall clock time
	DurationSeconds DurationKind = iota

	// play an exact number of frames
	DurationFrames

	// detect the track's loop and play it a number of times
	DurationLoops

	// use the duration the module itself declares
	DurationDeclared
)

// DurationSpec says how long the main pass of a render should be. It does not
// cover fadeout, which is always appended after the resolved duration.
type DurationSpec struct {
	Kind DurationKind

	// valid when Kind is DurationSeconds
	Seconds float64

	// valid when Kind is DurationFrames
	Frames int

	// valid when Kind is DurationLoops
	Loops int
}

func (spec DurationSpec) String() string {
	switch spec.Kind {
	case DurationSeconds:
		return fmt.Sprintf("time:%g", spec.Seconds)
	case DurationFrames:
		return fmt.Sprintf("frames:%d", spec.Frames)
	case DurationLoops:
		return fmt.Sprintf("loops:%d", spec.Loops)
	case DurationDeclared:
		return "time:ext"
	}
	return "unknown"
}

// ParseDurationSpec parses the duration grammar used on the command line:
//
//	time:<seconds>
//	frames:<count>
//	loops:<count>
//	time:ext
//
// "time:nsfe" is an accepted historical alias for "time:ext".
func ParseDurationSpec(s string) (DurationSpec, error) {
	kind, value, ok := strings.Cut(s, ":")
	if !ok {
		return DurationSpec{}, curated.Errorf(RequestError, fmt.Sprintf("duration %q is not of the form kind:value", s))
	}

	switch kind {
	case "time":
		if value == "ext" || value == "nsfe" {
			return DurationSpec{Kind: DurationDeclared}, nil
		}
		seconds, err := strconv.ParseFloat(value, 64)
		if err != nil || seconds <= 0 {
			return DurationSpec{}, curated.Errorf(RequestError, fmt.Sprintf("duration %q needs a positive number of seconds", s))
		}
		return DurationSpec{Kind: DurationSeconds, Seconds: seconds}, nil

	case "frames":
		frames, err := strconv.Atoi(value)
		if err != nil || frames <= 0 {
			return DurationSpec{}, curated.Errorf(RequestError, fmt.Sprintf("duration %q needs a positive number of frames", s))
		}
		return DurationSpec{Kind: DurationFrames, Frames: frames}, nil

	case "loops":
		loops, err := strconv.Atoi(value)
		if err != nil || loops <= 0 {
			return DurationSpec{}, curated.Errorf(RequestError, fmt.Sprintf("duration %q needs a positive number of loops", s))
		}
		return DurationSpec{Kind: DurationLoops, Loops: loops}, nil
	}

	return DurationSpec{}, curated.Errorf(RequestError, fmt.Sprintf("unknown duration kind %q", kind))
}

// ChannelConfig is the per channel part of a Request. The map key is the
// chip qualified channel name, "2A03/Noise" for example.
type ChannelConfig struct {
	// hidden channels are left out of the visualization entirely
	Hidden bool

	// muted channels are left out of the audio mix but still drawn, in
	// grey, by the visualization
	Muted bool

	// overrides the default palette colour
	Color *color.RGBA
}

// Request is the immutable input to one render. A Request value is consumed
// by one Session and is not modified by it.
type Request struct {
	Track    int
	Duration DurationSpec

	// frames of fadeout appended after the main duration. negative means
	// use the fadeout the module declares, or none
	FadeoutFrames int

	// output canvas. both dimensions must be positive and even, for the
	// benefit of chroma subsampled encoders
	Width  int
	Height int

	// output sample rate. zero means 44100
	SampleRate int

	Flags hardware.Flags

	// ask video sinks for an alpha capable codec so the output can be
	// composited elsewhere
	Alpha bool

	// optional path to a png or jpeg backdrop
	BackgroundPath string

	// per channel overrides, keyed by chip qualified channel name
	Channels map[string]ChannelConfig
}

func (req Request) validate() error {
	if req.Width <= 0 || req.Height <= 0 {
		return curated.Errorf(RequestError, "resolution must be positive")
	}
	if req.Width%2 != 0 || req.Height%2 != 0 {
		return curated.Errorf(RequestError, "resolution must be even")
	}
	if req.SampleRate < 0 {
		return curated.Errorf(RequestError, "sample rate must be positive")
	}
	return nil
}

// sampleRate applies the default output rate.
func (req Request) sampleRate() int {
	if req.SampleRate == 0 {
		return 44100
	}
	return req.SampleRate
}
