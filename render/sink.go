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
	"image"
)

// SinkError is the pattern for failures in the encoding sink. Disk full and
// encoder rejection for example. Always fatal to the render.
const SinkError = "render: sink: %v"

// Codec is the requested encoding for video sinks.
type Codec int

// List of valid Codec values.
const (
	// H.264 video with AAC audio. the normal case
	CodecH264AAC Codec = iota

	// an alpha capable codec for transparent exports
	CodecAlpha
)

// Metadata is embedded in the output file where the container supports it.
type Metadata struct {
	Title     string
	Artist    string
	Copyright string
	Track     int
}

// StreamSpec tells a Sink what is about to be streamed to it.
type StreamSpec struct {
	Width  int
	Height int

	// frames per second of the pixel stream
	FrameRate float64

	// sample rate of the mono PCM stream
	SampleRate int

	// the exact number of Frame() calls to expect if the render runs to
	// completion
	TotalFrames int

	Codec    Codec
	Metadata Metadata
}

// Sink receives the rendered frame stream. Frames arrive in strict order
// with no gaps; a blocking Frame() call is how the sink applies backpressure
// to the whole pipeline.
//
// A render ends with exactly one of Finish or Abort. After Abort no partial
// output may be left looking complete.
//
// The pixel and pcm buffers passed to Frame are reused; a Sink must be done
// with them when Frame returns.
type Sink interface {
	Start(spec StreamSpec) error
	Frame(pixels *image.RGBA, pcm []int16) error
	Finish() error
	Abort()
}
