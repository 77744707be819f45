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

// Package videowriter encodes the render stream through an external ffmpeg
// process. Raw RGBA frames go down the process's stdin and raw PCM down an
// extra pipe; ffmpeg does the encoding and muxing.
//
// The normal output is H.264 with AAC audio in whatever container the
// output filename implies. Transparent exports use ProRes 4444, which keeps
// the alpha channel.
//
// On Abort the encoder is killed and the partial output file removed. A
// file produced by this package is either complete or absent.
package videowriter

import (
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/jetsetilly/nsfrender/curated"
	"github.com/jetsetilly/nsfrender/logger"
	"github.com/jetsetilly/nsfrender/render"
)

// EncoderError is the pattern for all failures in this package.
const EncoderError = "videowriter: %v"

// VideoWriter implements the render.Sink interface.
type VideoWriter struct {
	filename string

	// the encoder binary. "ffmpeg" unless overridden before Start
	FFmpeg string

	spec  render.StreamSpec
	cmd   *exec.Cmd
	video io.WriteCloser
	audio *os.File

	// audio is written from its own goroutine so that a momentary stall on
	// one pipe cannot deadlock against the other
	audioQueue chan []byte
	audioDone  chan error

	started bool
}

// NewVideoWriter is the preferred method of initialisation for the
// VideoWriter type.
func NewVideoWriter(filename string) *VideoWriter {
	return &VideoWriter{
		filename: filename,
		FFmpeg:   "ffmpeg",
	}
}

// Start implements the render.Sink interface. The encoder process is
// launched here; a missing ffmpeg binary is reported now rather than at the
// first frame.
func (wrt *VideoWriter) Start(spec render.StreamSpec) error {
	if wrt.started {
		return curated.Errorf(EncoderError, "already started")
	}
	wrt.spec = spec

	audioRead, audioWrite, err := os.Pipe()
	if err != nil {
		return curated.Errorf(EncoderError, err)
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",

		// video on stdin
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", spec.Width, spec.Height),
		"-r", fmt.Sprintf("%f", spec.FrameRate),
		"-i", "pipe:0",

		// audio on the extra pipe
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", spec.SampleRate),
		"-ac", "1",
		"-i", "pipe:3",
	}

	switch spec.Codec {
	case render.CodecAlpha:
		args = append(args,
			"-c:v", "prores_ks",
			"-profile:v", "4444",
			"-pix_fmt", "yuva444p10le",
			"-c:a", "aac",
		)
	default:
		args = append(args,
			"-c:v", "libx264",
			"-pix_fmt", "yuv420p",
			"-c:a", "aac",
			"-movflags", "+faststart",
		)
	}

	args = append(args, metadataArgs(spec.Metadata)...)
	args = append(args, "-y", wrt.filename)

	cmd := exec.Command(wrt.FFmpeg, args...)
	cmd.ExtraFiles = []*os.File{audioRead}
	cmd.Stderr = os.Stderr

	video, err := cmd.StdinPipe()
	if err != nil {
		_ = audioRead.Close()
		_ = audioWrite.Close()
		return curated.Errorf(EncoderError, err)
	}

	if err := cmd.Start(); err != nil {
		_ = audioRead.Close()
		_ = audioWrite.Close()
		return curated.Errorf(EncoderError, err)
	}

	// the child has its own copy of the read end now
	_ = audioRead.Close()

	wrt.cmd = cmd
	wrt.video = video
	wrt.audio = audioWrite
	wrt.audioQueue = make(chan []byte, 32)
	wrt.audioDone = make(chan error, 1)
	wrt.started = true

	go func() {
		for b := range wrt.audioQueue {
			if _, err := wrt.audio.Write(b); err != nil {
				wrt.audioDone <- err
				return
			}
		}
		wrt.audioDone <- wrt.audio.Close()
	}()

	logger.Logf("videowriter", "encoding to %s", wrt.filename)

	return nil
}

func metadataArgs(meta render.Metadata) []string {
	args := []string{}
	if meta.Title != "" {
		args = append(args, "-metadata", "title="+meta.Title)
	}
	if meta.Artist != "" {
		args = append(args, "-metadata", "artist="+meta.Artist)
	}
	if meta.Copyright != "" {
		args = append(args, "-metadata", "copyright="+meta.Copyright)
	}
	args = append(args, "-metadata", fmt.Sprintf("track=%d", meta.Track))
	return args
}

// Frame implements the render.Sink interface. Blocks while the encoder
// catches up, which is the backpressure the render pipeline expects.
func (wrt *VideoWriter) Frame(pixels *image.RGBA, pcm []int16) error {
	if !wrt.started {
		return curated.Errorf(EncoderError, "frame before start")
	}

	pcmBytes := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		pcmBytes[i*2] = byte(s)
		pcmBytes[i*2+1] = byte(s >> 8)
	}

	select {
	case err := <-wrt.audioDone:
		return curated.Errorf(EncoderError, fmt.Sprintf("audio pipe: %v", err))
	case wrt.audioQueue <- pcmBytes:
	}

	if _, err := wrt.video.Write(pixels.Pix); err != nil {
		return curated.Errorf(EncoderError, err)
	}

	return nil
}

// Finish implements the render.Sink interface. Closes the streams and waits
// for the encoder to exit; a failed encode removes the output file.
func (wrt *VideoWriter) Finish() error {
	if !wrt.started {
		return curated.Errorf(EncoderError, "finish without start")
	}
	wrt.started = false

	_ = wrt.video.Close()
	close(wrt.audioQueue)

	if err := <-wrt.audioDone; err != nil {
		_ = wrt.cmd.Process.Kill()
		_ = wrt.cmd.Wait()
		_ = os.Remove(wrt.filename)
		return curated.Errorf(EncoderError, fmt.Sprintf("audio pipe: %v", err))
	}

	if err := wrt.cmd.Wait(); err != nil {
		_ = os.Remove(wrt.filename)
		return curated.Errorf(EncoderError, err)
	}

	logger.Logf("videowriter", "finished %s", wrt.filename)

	return nil
}

// Abort implements the render.Sink interface. The encoder is killed and the
// partial output removed.
func (wrt *VideoWriter) Abort() {
	if !wrt.started {
		return
	}
	wrt.started = false

	_ = wrt.video.Close()
	_ = wrt.audio.Close()
	close(wrt.audioQueue)
	<-wrt.audioDone

	_ = wrt.cmd.Process.Kill()
	_ = wrt.cmd.Wait()
	_ = os.Remove(wrt.filename)
}

// OutputExtensions are the video container types ffmpeg is asked to mux
// into, chosen by the output filename.
var OutputExtensions = []string{".mp4", ".mkv", ".mov"}

// SupportedOutput returns true if the filename implies a container this
// package can produce.
func SupportedOutput(filename string) bool {
	for _, ext := range OutputExtensions {
		if strings.HasSuffix(strings.ToLower(filename), ext) {
			return true
		}
	}
	return false
}
