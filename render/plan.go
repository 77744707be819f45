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
	"math"

	"github.com/jetsetilly/nsfrender/curated"
	"github.com/jetsetilly/nsfrender/hardware"
	"github.com/jetsetilly/nsfrender/loopdetect"
)

// Error patterns for duration resolution. Both surface before the main pass;
// a render never fails over its duration once frames have started streaming.
const (
	LoopUnsupportedError             = "render: loop duration unsupported: %v"
	DeclaredDurationUnavailableError = "render: module declares no duration: %v"
)

// Plan is the resolved shape of a render, computed before streaming begins.
type Plan struct {
	// the main duration and the fadeout appended to it
	MainFrames int
	FadeFrames int

	// MainFrames + FadeFrames
	TotalFrames int

	Width  int
	Height int

	// output sample rate
	SampleRate int
}

// Resolve turns a duration spec into frame counts. It is a pure function
// over already known facts: the loop, if one was detected, and the module's
// declared duration and fadeout in milliseconds (negative when absent).
//
// fadeoutFrames is the requested fadeout; negative means fall back to the
// declared fadeout.
func Resolve(spec DurationSpec, loop *loopdetect.Loop, declaredMs int, declaredFadeMs int, fadeoutFrames int) (Plan, error) {
	plan := Plan{}

	switch spec.Kind {
	case DurationSeconds:
		plan.MainFrames = int(math.Ceil(spec.Seconds * hardware.FrameRateNTSC))

	case DurationFrames:
		plan.MainFrames = spec.Frames

	case DurationLoops:
		if loop == nil {
			return Plan{}, curated.Errorf(LoopUnsupportedError, "no loop found")
		}
		plan.MainFrames = loop.Start + spec.Loops*loop.Length

	case DurationDeclared:
		if declaredMs < 0 {
			return Plan{}, curated.Errorf(DeclaredDurationUnavailableError, spec)
		}
		plan.MainFrames = int(math.Round(float64(declaredMs) * hardware.FrameRateNTSC / 1000))

	default:
		return Plan{}, curated.Errorf(RequestError, fmt.Sprintf("unknown duration kind %d", spec.Kind))
	}

	if fadeoutFrames < 0 {
		fadeoutFrames = 0
		if declaredFadeMs > 0 {
			fadeoutFrames = int(math.Round(float64(declaredFadeMs) * hardware.FrameRateNTSC / 1000))
		}
	}
	plan.FadeFrames = fadeoutFrames
	plan.TotalFrames = plan.MainFrames + plan.FadeFrames

	return plan, nil
}
