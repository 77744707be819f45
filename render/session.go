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
	"context"
	"fmt"
	"image"
	"image/color"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/jetsetilly/nsfrender/curated"
	"github.com/jetsetilly/nsfrender/hardware"
	"github.com/jetsetilly/nsfrender/logger"
	"github.com/jetsetilly/nsfrender/loopdetect"
	"github.com/jetsetilly/nsfrender/mixer"
	"github.com/jetsetilly/nsfrender/nsf"
	"github.com/jetsetilly/nsfrender/pianoroll"

	// backdrop formats
	_ "image/jpeg"
	_ "image/png"
)

// depth of the queue between the driver and the frame consumer. the driver
// can run this many frames ahead of the sink before backpressure stops it
const queueDepth = 8

// prePassFrameBudget caps the loop detection pre-pass. thirty minutes of
// track time; a track that has not looped by then is treated as loopless
const prePassFrameBudget = 108180

// Session owns one render from request to finished stream. It has exclusive
// use of its driver and sink for its lifetime; a Session renders once and is
// then done.
type Session struct {
	req  Request
	mod  *nsf.Module
	drv  *hardware.Driver
	sink Sink

	handler func(Progress)
}

// NewSession is the preferred method of initialisation for the Session type.
// The core is taken over by the session's driver and must not be used by
// anything else while the session lives.
func NewSession(mod *nsf.Module, core hardware.Core, sink Sink, req Request) (*Session, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	ses := &Session{
		req:  req,
		mod:  mod,
		drv:  hardware.NewDriver(core),
		sink: sink,
	}

	for key, cfg := range req.Channels {
		if cfg.Muted {
			chip, name, err := parseChannelKey(key)
			if err != nil {
				return nil, err
			}
			ses.drv.Mute(chip, name)
		}
	}

	return ses, nil
}

// SetProgressHandler registers the progress observer. Must be called before
// Render. The handler is called from its own goroutine; slow handlers miss
// snapshots, they do not slow the render.
func (ses *Session) SetProgressHandler(handler func(Progress)) {
	ses.handler = handler
}

// parseChannelKey splits a chip qualified channel name, "2A03/Noise" for
// example, and checks the channel exists.
func parseChannelKey(key string) (nsf.Chip, string, error) {
	for chip := nsf.Chip2A03; chip <= nsf.ChipS5B; chip++ {
		for _, name := range chip.Channels() {
			if key == pianoroll.SettingsKey(chip, name) {
				return chip, name, nil
			}
		}
	}
	return 0, "", curated.Errorf(RequestError, fmt.Sprintf("no such channel %q", key))
}

// queuedFrame is one frame in flight between the driver and the consumer.
// The driver reuses its buffers every frame so the snapshot is deep copied
// before queueing.
type queuedFrame struct {
	frame    int
	channels []hardware.ChannelState
	audio    [][]float32
}

func copyFrame(state hardware.FrameState) queuedFrame {
	qf := queuedFrame{
		frame:    state.Frame,
		channels: make([]hardware.ChannelState, len(state.Channels)),
		audio:    make([][]float32, len(state.Audio)),
	}
	copy(qf.channels, state.Channels)
	for i := range state.Audio {
		qf.audio[i] = make([]float32, len(state.Audio[i]))
		copy(qf.audio[i], state.Audio[i])
	}
	return qf
}

// Render runs the whole render: the loop detection pre-pass when the
// duration needs one, duration resolution, and the main pass streaming
// frame pairs to the sink.
//
// The context is checked once per frame. On cancellation or any fatal error
// the sink is told to Abort and the partial output is discarded; the sink's
// Finish is only called after a complete stream.
func (ses *Session) Render(ctx context.Context) (Plan, error) {
	notifier := startProgressNotifier(ses.handler)
	defer notifier.stop()

	plan, err := ses.render(ctx, notifier)
	if err != nil {
		notifier.post(Progress{FramesTotal: plan.TotalFrames, Status: "failed", Err: err})
	}
	return plan, err
}

func (ses *Session) render(ctx context.Context, notifier *progressNotifier) (Plan, error) {
	// initialize before anything else so that a bad track number is caught
	// before any work is done
	if err := ses.drv.Initialize(ses.mod, ses.req.Track, ses.req.Flags); err != nil {
		return Plan{}, err
	}

	var loop *loopdetect.Loop
	if ses.req.Duration.Kind == DurationLoops {
		if !ses.mod.LoopDetectionEligible() {
			return Plan{}, curated.Errorf(LoopUnsupportedError, fmt.Sprintf("driver is %s", ses.mod.Driver))
		}

		l, err := ses.prePass(ctx, notifier)
		if err != nil {
			return Plan{}, err
		}
		loop = l

		// the pre-pass consumed the driver's state. start again
		if err := ses.drv.Initialize(ses.mod, ses.req.Track, ses.req.Flags); err != nil {
			return Plan{}, err
		}
	}

	declaredMs := -1
	if ms, ok := ses.mod.DeclaredDurationMs(ses.req.Track); ok {
		declaredMs = ms
	}
	declaredFadeMs := -1
	if ms, ok := ses.mod.DeclaredFadeoutMs(ses.req.Track); ok {
		declaredFadeMs = ms
	}

	plan, err := Resolve(ses.req.Duration, loop, declaredMs, declaredFadeMs, ses.req.FadeoutFrames)
	if err != nil {
		return Plan{}, err
	}
	plan.Width = ses.req.Width
	plan.Height = ses.req.Height
	plan.SampleRate = ses.req.sampleRate()

	logger.Logf("render", "track %d: %d frames main, %d frames fade", ses.req.Track, plan.MainFrames, plan.FadeFrames)

	roll, err := ses.buildPianoRoll()
	if err != nil {
		return plan, err
	}

	mix := mixer.NewMixer(ses.drv.NativeRate(), plan.SampleRate, hardware.FrameRateNTSC, ses.req.Flags.HighQuality)

	codec := CodecH264AAC
	if ses.req.Alpha {
		codec = CodecAlpha
	}

	spec := StreamSpec{
		Width:       plan.Width,
		Height:      plan.Height,
		FrameRate:   hardware.FrameRateNTSC,
		SampleRate:  plan.SampleRate,
		TotalFrames: plan.TotalFrames,
		Codec:       codec,
		Metadata: Metadata{
			Title:     ses.mod.TrackTitle(ses.req.Track),
			Artist:    ses.mod.TrackArtist(ses.req.Track),
			Copyright: ses.mod.Copyright,
			Track:     ses.req.Track,
		},
	}

	if err := ses.sink.Start(spec); err != nil {
		ses.sink.Abort()
		return plan, curated.Errorf(SinkError, err)
	}

	if err := ses.stream(ctx, notifier, plan, roll, mix); err != nil {
		ses.sink.Abort()
		return plan, err
	}

	if err := ses.sink.Finish(); err != nil {
		ses.sink.Abort()
		return plan, curated.Errorf(SinkError, err)
	}

	notifier.post(Progress{FramesDone: plan.TotalFrames, FramesTotal: plan.TotalFrames, Status: "finished"})

	return plan, nil
}

// prePass steps the driver looking for the track's loop, emitting nothing.
func (ses *Session) prePass(ctx context.Context, notifier *progressNotifier) (*loopdetect.Loop, error) {
	det := loopdetect.NewDetector()

	for f := 0; f < prePassFrameBudget; f++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		state, err := ses.drv.StepFrame()
		if err != nil {
			return nil, err
		}

		if det.Observe(state.Frame, state.Fingerprint) {
			loop, _ := det.Result()
			logger.Logf("render", "loop found: starts frame %d, %d frames long", loop.Start, loop.Length)
			return &loop, nil
		}

		if f%512 == 0 {
			notifier.post(Progress{FramesDone: f, Status: "detecting loop"})
		}
	}

	return nil, curated.Errorf(LoopUnsupportedError, fmt.Sprintf("no loop within %d frames", prePassFrameBudget))
}

func (ses *Session) buildPianoRoll() (*pianoroll.Renderer, error) {
	spec := pianoroll.DefaultSettings(ses.mod, ses.req.Width, ses.req.Height)
	spec.Transparent = ses.req.Alpha

	for key, cfg := range ses.req.Channels {
		if _, _, err := parseChannelKey(key); err != nil {
			return nil, err
		}
		s := spec.Channels[key]
		s.Hidden = cfg.Hidden
		if cfg.Color != nil {
			s.Colors = []color.RGBA{*cfg.Color}
		}
		spec.Channels[key] = s
	}

	if ses.req.BackgroundPath != "" {
		f, err := os.Open(ses.req.BackgroundPath)
		if err != nil {
			return nil, curated.Errorf(RequestError, err)
		}
		defer f.Close()

		img, _, err := image.Decode(f)
		if err != nil {
			return nil, curated.Errorf(RequestError, fmt.Sprintf("background: %v", err))
		}
		spec.Background = img
	}

	return pianoroll.NewRenderer(spec)
}

// stream is the main pass. The driver produces into a bounded queue; the
// consumer visualizes, mixes and hands frame pairs to the sink in order.
func (ses *Session) stream(ctx context.Context, notifier *progressNotifier, plan Plan, roll *pianoroll.Renderer, mix *mixer.Mixer) error {
	grp, grpCtx := errgroup.WithContext(ctx)
	queue := make(chan queuedFrame, queueDepth)

	grp.Go(func() error {
		defer close(queue)
		for f := 0; f < plan.TotalFrames; f++ {
			if err := grpCtx.Err(); err != nil {
				return err
			}

			state, err := ses.drv.StepFrame()
			if err != nil {
				return err
			}

			select {
			case queue <- copyFrame(state):
			case <-grpCtx.Done():
				return grpCtx.Err()
			}
		}
		return nil
	})

	grp.Go(func() error {
		for {
			select {
			case <-grpCtx.Done():
				return grpCtx.Err()
			case qf, ok := <-queue:
				if !ok {
					return nil
				}

				// cancellation raised during the previous sink call must
				// stop the stream before another frame goes out
				if err := grpCtx.Err(); err != nil {
					return err
				}

				gain := mixer.FadeGain(qf.frame, plan.MainFrames, plan.FadeFrames)
				pixels := roll.Frame(qf.channels)
				pcm := mix.Frame(qf.channels, qf.audio, gain)

				if err := ses.sink.Frame(pixels, pcm); err != nil {
					return curated.Errorf(SinkError, err)
				}

				notifier.post(Progress{FramesDone: qf.frame + 1, FramesTotal: plan.TotalFrames, Status: "rendering"})
			}
		}
	})

	return grp.Wait()
}
