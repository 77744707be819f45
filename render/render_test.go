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

package render_test

import (
	"context"
	"image"
	"math"
	"testing"

	"github.com/jetsetilly/nsfrender/curated"
	"github.com/jetsetilly/nsfrender/hardware"
	"github.com/jetsetilly/nsfrender/hardware/tone"
	"github.com/jetsetilly/nsfrender/loopdetect"
	"github.com/jetsetilly/nsfrender/nsf"
	"github.com/jetsetilly/nsfrender/render"
	"github.com/jetsetilly/nsfrender/test"
)

// buildNSF returns a plain two track NSF. The driver signature is embedded
// when asked for, making the module loop detection eligible.
func buildNSF(t *testing.T, signature bool) *nsf.Module {
	t.Helper()

	d := make([]byte, 0x80)
	copy(d, "NESM\x1a")
	d[0x05] = 0x01
	d[0x06] = 0x02
	d[0x07] = 0x01
	d[0x09] = 0x80
	d[0x0b] = 0x80
	d[0x0d] = 0x80
	copy(d[0x0e:], "test title")
	copy(d[0x2e:], "test artist")
	d[0x6e] = 0xff
	d[0x6f] = 0x40

	d = append(d, 0xa9, 0x00, 0x8d, 0x15, 0x40)
	if signature {
		d = append(d, []byte("FTDRV")...)
	}

	mod, err := nsf.ParseModule(d)
	test.ExpectedSuccess(t, err)
	return mod
}

// captureSink records everything a render streams to it. Cancel support for
// the cancellation scenario: cancelling from inside Frame() is the tightest
// boundary a caller can manage.
type captureSink struct {
	spec    render.StreamSpec
	started bool

	frames  int
	samples int

	finished bool
	aborted  bool

	cancelAfter int
	cancel      context.CancelFunc
}

func (snk *captureSink) Start(spec render.StreamSpec) error {
	snk.spec = spec
	snk.started = true
	return nil
}

func (snk *captureSink) Frame(pixels *image.RGBA, pcm []int16) error {
	snk.frames++
	snk.samples += len(pcm)
	if snk.cancel != nil && snk.frames == snk.cancelAfter {
		snk.cancel()
	}
	return nil
}

func (snk *captureSink) Finish() error {
	snk.finished = true
	return nil
}

func (snk *captureSink) Abort() {
	snk.aborted = true
}

func testRequest(duration render.DurationSpec) render.Request {
	return render.Request{
		Track:    1,
		Duration: duration,
		Width:    64,
		Height:   64,
	}
}

func TestDurationGrammar(t *testing.T) {
	spec, err := render.ParseDurationSpec("time:90.5")
	test.ExpectedSuccess(t, err)
	test.Equate(t, spec.Kind == render.DurationSeconds, true)
	test.Equate(t, spec.Seconds, 90.5)

	spec, err = render.ParseDurationSpec("frames:120")
	test.ExpectedSuccess(t, err)
	test.Equate(t, spec.Kind == render.DurationFrames, true)
	test.Equate(t, spec.Frames, 120)

	spec, err = render.ParseDurationSpec("loops:2")
	test.ExpectedSuccess(t, err)
	test.Equate(t, spec.Kind == render.DurationLoops, true)
	test.Equate(t, spec.Loops, 2)

	spec, err = render.ParseDurationSpec("time:ext")
	test.ExpectedSuccess(t, err)
	test.Equate(t, spec.Kind == render.DurationDeclared, true)

	// historical alias
	spec, err = render.ParseDurationSpec("time:nsfe")
	test.ExpectedSuccess(t, err)
	test.Equate(t, spec.Kind == render.DurationDeclared, true)

	for _, s := range []string{"", "time", "time:", "time:-4", "frames:0", "loops:x", "beats:4"} {
		_, err = render.ParseDurationSpec(s)
		test.ExpectedFailure(t, err)
		test.Equate(t, curated.Is(err, render.RequestError), true)
	}
}

func TestResolve(t *testing.T) {
	// an exact frame count resolves to itself whatever else is known
	plan, err := render.Resolve(render.DurationSpec{Kind: render.DurationFrames, Frames: 120}, nil, -1, -1, 0)
	test.ExpectedSuccess(t, err)
	test.Equate(t, plan.MainFrames, 120)
	test.Equate(t, plan.TotalFrames, 120)

	// seconds round up to whole frames
	plan, err = render.Resolve(render.DurationSpec{Kind: render.DurationSeconds, Seconds: 2}, nil, -1, -1, 0)
	test.ExpectedSuccess(t, err)
	test.Equate(t, plan.MainFrames, int(math.Ceil(2*hardware.FrameRateNTSC)))

	// loops need a detected loop
	loop := &loopdetect.Loop{Start: 100, Length: 900}
	plan, err = render.Resolve(render.DurationSpec{Kind: render.DurationLoops, Loops: 2}, loop, -1, -1, 0)
	test.ExpectedSuccess(t, err)
	test.Equate(t, plan.MainFrames, 1900)

	_, err = render.Resolve(render.DurationSpec{Kind: render.DurationLoops, Loops: 2}, nil, -1, -1, 0)
	test.ExpectedFailure(t, err)
	test.Equate(t, curated.Is(err, render.LoopUnsupportedError), true)

	// declared duration converts from milliseconds
	plan, err = render.Resolve(render.DurationSpec{Kind: render.DurationDeclared}, nil, 10000, -1, 0)
	test.ExpectedSuccess(t, err)
	test.Equate(t, plan.MainFrames, int(math.Round(10*hardware.FrameRateNTSC)))

	_, err = render.Resolve(render.DurationSpec{Kind: render.DurationDeclared}, nil, -1, -1, 0)
	test.ExpectedFailure(t, err)
	test.Equate(t, curated.Is(err, render.DeclaredDurationUnavailableError), true)

	// fadeout is appended after the main duration, never inside it
	plan, err = render.Resolve(render.DurationSpec{Kind: render.DurationFrames, Frames: 120}, nil, -1, -1, 60)
	test.ExpectedSuccess(t, err)
	test.Equate(t, plan.MainFrames, 120)
	test.Equate(t, plan.FadeFrames, 60)
	test.Equate(t, plan.TotalFrames, 180)

	// a negative fadeout request falls back to the declared fadeout
	plan, err = render.Resolve(render.DurationSpec{Kind: render.DurationFrames, Frames: 120}, nil, -1, 1000, -1)
	test.ExpectedSuccess(t, err)
	test.Equate(t, plan.FadeFrames, int(math.Round(hardware.FrameRateNTSC)))
}

func TestRenderEndToEnd(t *testing.T) {
	mod := buildNSF(t, false)
	snk := &captureSink{}

	ses, err := render.NewSession(mod, tone.NewCore(), snk, testRequest(render.DurationSpec{Kind: render.DurationFrames, Frames: 120}))
	test.ExpectedSuccess(t, err)

	plan, err := ses.Render(context.Background())
	test.ExpectedSuccess(t, err)

	test.Equate(t, plan.TotalFrames, 120)
	test.Equate(t, snk.frames, 120)
	test.Equate(t, snk.finished, true)
	test.Equate(t, snk.aborted, false)

	test.Equate(t, snk.spec.Width, 64)
	test.Equate(t, snk.spec.Height, 64)
	test.Equate(t, snk.spec.TotalFrames, 120)
	test.Equate(t, snk.spec.SampleRate, 44100)
	test.Equate(t, snk.spec.Metadata.Title, "test title")
	test.Equate(t, snk.spec.Metadata.Artist, "test artist")

	// accumulated audio matches accumulated video within a sample
	expected := math.Round(120 * 44100 / hardware.FrameRateNTSC)
	test.Equate(t, math.Abs(float64(snk.samples)-expected) <= 1, true)
}

func TestRenderSampleRate(t *testing.T) {
	mod := buildNSF(t, false)
	snk := &captureSink{}

	req := testRequest(render.DurationSpec{Kind: render.DurationFrames, Frames: 60})
	req.SampleRate = 48000

	ses, err := render.NewSession(mod, tone.NewCore(), snk, req)
	test.ExpectedSuccess(t, err)

	_, err = ses.Render(context.Background())
	test.ExpectedSuccess(t, err)

	test.Equate(t, snk.spec.SampleRate, 48000)

	expected := math.Round(60 * 48000 / hardware.FrameRateNTSC)
	test.Equate(t, math.Abs(float64(snk.samples)-expected) <= 1, true)
}

func TestRenderCancel(t *testing.T) {
	const cancelAfter = 30

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mod := buildNSF(t, false)
	snk := &captureSink{cancelAfter: cancelAfter, cancel: cancel}

	ses, err := render.NewSession(mod, tone.NewCore(), snk, testRequest(render.DurationSpec{Kind: render.DurationFrames, Frames: 600}))
	test.ExpectedSuccess(t, err)

	_, err = ses.Render(ctx)
	test.ExpectedFailure(t, err)

	// no frame beyond the cancellation point reaches the sink and the
	// partial output is discarded
	test.Equate(t, snk.frames, cancelAfter)
	test.Equate(t, snk.aborted, true)
	test.Equate(t, snk.finished, false)
}

func TestLoopDurationNeedsEligibleModule(t *testing.T) {
	mod := buildNSF(t, false)
	snk := &captureSink{}

	ses, err := render.NewSession(mod, tone.NewCore(), snk, testRequest(render.DurationSpec{Kind: render.DurationLoops, Loops: 2}))
	test.ExpectedSuccess(t, err)

	_, err = ses.Render(context.Background())
	test.ExpectedFailure(t, err)
	test.Equate(t, curated.Is(err, render.LoopUnsupportedError), true)

	// the failure happens before the sink hears anything
	test.Equate(t, snk.started, false)
	test.Equate(t, snk.frames, 0)
}

func TestLoopDurationRender(t *testing.T) {
	mod := buildNSF(t, true)
	snk := &captureSink{}

	ses, err := render.NewSession(mod, tone.NewCore(), snk, testRequest(render.DurationSpec{Kind: render.DurationLoops, Loops: 1}))
	test.ExpectedSuccess(t, err)

	plan, err := ses.Render(context.Background())
	test.ExpectedSuccess(t, err)

	test.Equate(t, plan.MainFrames >= loopdetect.MinLoopFrames, true)
	test.Equate(t, snk.frames, plan.TotalFrames)
	test.Equate(t, snk.finished, true)
}

func TestRequestValidation(t *testing.T) {
	mod := buildNSF(t, false)

	req := testRequest(render.DurationSpec{Kind: render.DurationFrames, Frames: 10})
	req.Width = 63
	_, err := render.NewSession(mod, tone.NewCore(), &captureSink{}, req)
	test.ExpectedFailure(t, err)
	test.Equate(t, curated.Is(err, render.RequestError), true)

	req = testRequest(render.DurationSpec{Kind: render.DurationFrames, Frames: 10})
	req.Channels = map[string]render.ChannelConfig{"2A03/Nose": {Muted: true}}
	_, err = render.NewSession(mod, tone.NewCore(), &captureSink{}, req)
	test.ExpectedFailure(t, err)

	// a bad track number fails before the sink is started
	snk := &captureSink{}
	req = testRequest(render.DurationSpec{Kind: render.DurationFrames, Frames: 10})
	req.Track = 3
	ses, err := render.NewSession(mod, tone.NewCore(), snk, req)
	test.ExpectedSuccess(t, err)

	_, err = ses.Render(context.Background())
	test.ExpectedFailure(t, err)
	test.Equate(t, curated.Is(err, hardware.InvalidTrackError), true)
	test.Equate(t, snk.started, false)
}

func TestDeclaredDurationUnavailable(t *testing.T) {
	// a plain NSF declares no durations
	mod := buildNSF(t, false)
	snk := &captureSink{}

	ses, err := render.NewSession(mod, tone.NewCore(), snk, testRequest(render.DurationSpec{Kind: render.DurationDeclared}))
	test.ExpectedSuccess(t, err)

	_, err = ses.Render(context.Background())
	test.ExpectedFailure(t, err)
	test.Equate(t, curated.Is(err, render.DeclaredDurationUnavailableError), true)
	test.Equate(t, snk.started, false)
}
