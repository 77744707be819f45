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

// Package loopdetect finds the point at which a track starts repeating. It
// works purely on the machine state fingerprints produced by the hardware
// package: when a fingerprint recurs the machine is in a state it has been in
// before and, because playback is deterministic, everything after it will
// replay exactly.
//
// The detector itself is mechanical and knows nothing about modules. Whether
// fingerprints are trustworthy for a given module is decided by
// nsf.Module.LoopDetectionEligible(); feeding the detector frames from an
// ineligible module produces meaningless results.
package loopdetect

import (
	"github.com/jetsetilly/nsfrender/hardware"
)

// MinLoopFrames is the smallest distance between two matching fingerprints
// that is treated as a loop. Matches closer together than this are assumed to
// be incidental, a silent passage or a held note for example, rather than the
// track repeating.
const MinLoopFrames = 60

// Loop describes a detected repeat. The track plays frames 0 to Start-1 as an
// intro and then repeats the range Start to Start+Length-1 forever.
type Loop struct {
	Start  int
	Length int
}

// Detector watches a stream of frame fingerprints for a repeat. Not safe for
// concurrent use.
type Detector struct {
	seen  map[hardware.Fingerprint]int
	loop  Loop
	found bool
}

// NewDetector is the preferred method of initialisation for the Detector
// type.
func NewDetector() *Detector {
	return &Detector{
		seen: make(map[hardware.Fingerprint]int),
	}
}

// Observe the fingerprint for the given frame. Frames must be observed in
// order, starting at zero. Returns true the first time a loop is found; after
// that the detector is inert and Observe does nothing.
func (det *Detector) Observe(frame int, fingerprint hardware.Fingerprint) bool {
	if det.found {
		return false
	}

	first, ok := det.seen[fingerprint]
	if !ok {
		det.seen[fingerprint] = frame
		return false
	}

	// matches record only the first frame a fingerprint was seen, so the
	// reported loop is always the earliest possible
	if frame-first < MinLoopFrames {
		return false
	}

	det.loop = Loop{Start: first, Length: frame - first}
	det.found = true
	det.seen = nil

	return true
}

// Result returns the detected loop. The boolean is false if no loop has been
// found yet.
func (det *Detector) Result() (Loop, bool) {
	return det.loop, det.found
}
