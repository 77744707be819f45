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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jetsetilly/nsfrender/hardware"
	"github.com/jetsetilly/nsfrender/hardware/tone"
	"github.com/jetsetilly/nsfrender/logger"
	"github.com/jetsetilly/nsfrender/modalflag"
	"github.com/jetsetilly/nsfrender/nsf"
	"github.com/jetsetilly/nsfrender/render"
	"github.com/jetsetilly/nsfrender/statsview"
	"github.com/jetsetilly/nsfrender/version"
	"github.com/jetsetilly/nsfrender/videowriter"
	"github.com/jetsetilly/nsfrender/wavwriter"
)

func main() {
	md := &modalflag.Modes{Output: os.Stdout}
	md.NewArgs(os.Args[1:])
	md.AddSubModes("RENDER", "INFO", "VERSION")

	p, err := md.Parse()
	switch p {
	case modalflag.ParseHelp:
		os.Exit(0)
	case modalflag.ParseError:
		fmt.Printf("* error: %v\n", err)
		os.Exit(10)
	}

	switch md.Mode() {
	case "RENDER":
		err = renderMode(md)

	case "INFO":
		err = info(md)

	case "VERSION":
		vers, rev, release := version.Version()
		fmt.Printf("%s %s\n", version.ApplicationName, vers)
		if !release {
			fmt.Printf("  %s\n", rev)
		}
	}

	if err != nil {
		fmt.Printf("* error in %s mode: %v\n", md.String(), err)
		os.Exit(20)
	}
}

// parseResolution splits a WxH string.
func parseResolution(s string) (int, int, error) {
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("resolution %q is not of the form WxH", s)
	}
	width, werr := strconv.Atoi(w)
	height, herr := strconv.Atoi(h)
	if werr != nil || herr != nil {
		return 0, 0, fmt.Errorf("resolution %q is not of the form WxH", s)
	}
	return width, height, nil
}

func renderMode(md *modalflag.Modes) error {
	md.NewMode()

	track := md.AddInt("track", 0, "1-based track to render. 0 means the module's starting track")
	duration := md.AddString("duration", "time:ext", "stop condition: time:<seconds>, frames:<n>, loops:<n> or time:ext")
	fadeout := md.AddInt("fadeout", -1, "fadeout frames appended after the stop condition. -1 uses the module's declared fadeout")
	resolution := md.AddString("resolution", "1920x1080", "output resolution, WxH. both dimensions must be even")
	samplerate := md.AddInt("samplerate", 44100, "output audio sample rate in Hz")
	output := md.AddString("output", "", "output file. .mp4, .mkv or .mov for video; .wav for audio only")
	famicom := md.AddBool("famicom", false, "simulate the Famicom's filter chain rather than the NES'")
	lowQuality := md.AddBool("lq", false, "lower quality audio filtering. faster")
	multiplexing := md.AddBool("multiplexing", false, "sample time-shared channels at true hardware resolution")
	alpha := md.AddBool("alpha", false, "transparent export with an alpha capable codec")
	background := md.AddString("background", "", "backdrop image (png or jpeg)")
	hide := md.AddStringSlice("hide", "hide a channel, eg. 2A03/Noise. repeatable")
	mute := md.AddStringSlice("mute", "mute a channel, eg. 2A03/DMC. repeatable")
	stats := md.AddBool("stats", false, "launch system statistics server")
	echoLog := md.AddBool("log", false, "echo log to stderr")

	p, err := md.Parse()
	if err != nil || p != modalflag.ParseContinue {
		return err
	}

	if *echoLog {
		logger.SetEcho(os.Stderr)
	}

	if *stats {
		if statsview.Available() {
			statsview.Launch(md.Output)
		} else {
			fmt.Println("* stats server not available in this build")
		}
	}

	switch len(md.RemainingArgs()) {
	case 0:
		return fmt.Errorf("NSF file required for %s mode", md)
	case 1:
		// fallthrough to the rest of the function
	default:
		return fmt.Errorf("too many arguments for %s mode", md)
	}

	loader := nsf.NewLoader(md.GetArg(0))
	mod, err := loader.Load()
	if err != nil {
		return err
	}

	width, height, err := parseResolution(*resolution)
	if err != nil {
		return err
	}

	durationSpec, err := render.ParseDurationSpec(*duration)
	if err != nil {
		return err
	}

	req := render.Request{
		Track:         *track,
		Duration:      durationSpec,
		FadeoutFrames: *fadeout,
		Width:         width,
		Height:        height,
		SampleRate:    *samplerate,
		Flags: hardware.Flags{
			Famicom:      *famicom,
			HighQuality:  !*lowQuality,
			Multiplexing: *multiplexing,
		},
		Alpha:          *alpha,
		BackgroundPath: *background,
		Channels:       make(map[string]render.ChannelConfig),
	}

	if req.Track == 0 {
		req.Track = mod.StartingTrack
	}

	for _, key := range *hide {
		cfg := req.Channels[key]
		cfg.Hidden = true
		req.Channels[key] = cfg
	}
	for _, key := range *mute {
		cfg := req.Channels[key]
		cfg.Muted = true
		req.Channels[key] = cfg
	}

	filename := *output
	if filename == "" {
		filename = strings.TrimSuffix(loader.Filename, filepath.Ext(loader.Filename)) + ".mp4"
	}

	var sink render.Sink
	switch {
	case strings.HasSuffix(strings.ToLower(filename), ".wav"):
		sink = wavwriter.NewWavWriter(filename)
	case videowriter.SupportedOutput(filename):
		sink = videowriter.NewVideoWriter(filename)
	default:
		return fmt.Errorf("unsupported output type %q", filename)
	}

	ses, err := render.NewSession(mod, tone.NewCore(), sink, req)
	if err != nil {
		return err
	}

	// progress echo. coalesced updates on one line
	start := time.Now()
	ses.SetProgressHandler(func(pr render.Progress) {
		if pr.FramesTotal == 0 {
			fmt.Printf("\r%s: frame %d", pr.Status, pr.FramesDone)
			return
		}
		elapsed := time.Since(start).Seconds()
		fps := 0.0
		if elapsed > 0 {
			fps = float64(pr.FramesDone) / elapsed
		}
		fmt.Printf("\r%s: %d/%d (%.0f%%) %.0f fps",
			pr.Status, pr.FramesDone, pr.FramesTotal,
			100*float64(pr.FramesDone)/float64(pr.FramesTotal), fps)
	})

	// #ctrlc cancels the render. the sink discards the partial output
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	plan, err := ses.Render(ctx)
	fmt.Println()
	if err != nil {
		return err
	}

	fmt.Printf("%d frames to %s\n", plan.TotalFrames, filename)

	return nil
}

func info(md *modalflag.Modes) error {
	md.NewMode()

	p, err := md.Parse()
	if err != nil || p != modalflag.ParseContinue {
		return err
	}

	if len(md.RemainingArgs()) != 1 {
		return fmt.Errorf("NSF file required for %s mode", md)
	}

	loader := nsf.NewLoader(md.GetArg(0))
	mod, err := loader.Load()
	if err != nil {
		return err
	}

	fmt.Println(mod.String())
	fmt.Printf("  chips: %s\n", mod.Chips)
	fmt.Printf("  driver: %s\n", mod.Driver)
	fmt.Printf("  tracks: %d (starting %d)\n", mod.TrackCount, mod.StartingTrack)

	for i := 1; i <= mod.TrackCount; i++ {
		line := fmt.Sprintf("  %2d. %s", i, mod.TrackTitle(i))
		if ms, ok := mod.DeclaredDurationMs(i); ok {
			line = fmt.Sprintf("%s (%d:%02d)", line, ms/60000, (ms/1000)%60)
		}
		fmt.Println(line)
	}

	return nil
}
