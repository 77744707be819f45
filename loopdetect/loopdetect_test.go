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

package loopdetect_test

import (
	"testing"

	"github.com/jetsetilly/nsfrender/hardware"
	"github.com/jetsetilly/nsfrender/loopdetect"
	"github.com/jetsetilly/nsfrender/test"
)

func fingerprint(v int) hardware.Fingerprint {
	var f hardware.Fingerprint
	f[0] = byte(v)
	f[1] = byte(v >> 8)
	return f
}

func TestNoLoop(t *testing.T) {
	det := loopdetect.NewDetector()
	for i := 0; i < 1000; i++ {
		test.Equate(t, det.Observe(i, fingerprint(i)), false)
	}
	_, ok := det.Result()
	test.Equate(t, ok, false)
}

func TestShortPeriodIsIgnoredUntilMinimumDistance(t *testing.T) {
	// a four frame period repeats immediately but the match is not reported
	// until the two occurrences are far enough apart
	det := loopdetect.NewDetector()

	for i := 0; i < 60; i++ {
		test.Equate(t, det.Observe(i, fingerprint(i%4)), false)
	}

	// frame 60 matches frame 0 at exactly the minimum distance
	test.Equate(t, det.Observe(60, fingerprint(0)), true)

	loop, ok := det.Result()
	test.Equate(t, ok, true)
	test.Equate(t, loop.Start, 0)
	test.Equate(t, loop.Length, 60)
}

func TestIntroThenLoop(t *testing.T) {
	det := loopdetect.NewDetector()

	frame := 0
	for ; frame < 100; frame++ {
		test.Equate(t, det.Observe(frame, fingerprint(1000+frame)), false)
	}

	// body of 75 frames, repeating
	reported := -1
	for ; frame < 400; frame++ {
		if det.Observe(frame, fingerprint(100+(frame-100)%75)) {
			reported = frame
			break
		}
	}

	test.Equate(t, reported, 175)

	loop, ok := det.Result()
	test.Equate(t, ok, true)
	test.Equate(t, loop.Start, 100)
	test.Equate(t, loop.Length, 75)
}

func TestInertAfterFirstReport(t *testing.T) {
	det := loopdetect.NewDetector()

	for i := 0; i < 60; i++ {
		det.Observe(i, fingerprint(i%4))
	}
	test.Equate(t, det.Observe(60, fingerprint(0)), true)

	// further observations change nothing
	for i := 61; i < 200; i++ {
		test.Equate(t, det.Observe(i, fingerprint(i%4)), false)
	}

	loop, ok := det.Result()
	test.Equate(t, ok, true)
	test.Equate(t, loop.Start, 0)
	test.Equate(t, loop.Length, 60)
}
