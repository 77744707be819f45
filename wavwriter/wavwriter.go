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

// Package wavwriter is an audio only render sink. Pixel buffers are
// accepted and discarded; the PCM stream is buffered in memory and written
// as a 16bit mono WAV file on Finish.
//
// Useful for listening tests and for renders where only the audio is
// wanted.
package wavwriter

import (
	"image"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/jetsetilly/nsfrender/curated"
	"github.com/jetsetilly/nsfrender/render"
)

// WavWriter implements the render.Sink interface.
type WavWriter struct {
	filename string
	spec     render.StreamSpec
	started  bool
	pcm      []int
}

// NewWavWriter is the preferred method of initialisation for the WavWriter
// type.
func NewWavWriter(filename string) *WavWriter {
	return &WavWriter{
		filename: filename,
	}
}

// Start implements the render.Sink interface.
func (wrt *WavWriter) Start(spec render.StreamSpec) error {
	if wrt.started {
		return curated.Errorf("wavwriter: already started")
	}
	wrt.spec = spec
	wrt.started = true
	return nil
}

// Frame implements the render.Sink interface. The pixel buffer is ignored.
func (wrt *WavWriter) Frame(_ *image.RGBA, pcm []int16) error {
	for _, s := range pcm {
		wrt.pcm = append(wrt.pcm, int(s))
	}
	return nil
}

// Finish implements the render.Sink interface. Nothing is on disk until
// Finish returns successfully.
func (wrt *WavWriter) Finish() error {
	if !wrt.started {
		return curated.Errorf("wavwriter: finish without start")
	}

	f, err := os.Create(wrt.filename)
	if err != nil {
		return curated.Errorf("wavwriter: %v", err)
	}

	enc := wav.NewEncoder(f, wrt.spec.SampleRate, 16, 1, 1)

	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  wrt.spec.SampleRate,
		},
		Data:           wrt.pcm,
		SourceBitDepth: 16,
	}

	if err := enc.Write(buf); err != nil {
		_ = enc.Close()
		_ = f.Close()
		_ = os.Remove(wrt.filename)
		return curated.Errorf("wavwriter: %v", err)
	}

	if err := enc.Close(); err != nil {
		_ = f.Close()
		_ = os.Remove(wrt.filename)
		return curated.Errorf("wavwriter: %v", err)
	}

	if err := f.Close(); err != nil {
		return curated.Errorf("wavwriter: %v", err)
	}

	return nil
}

// Abort implements the render.Sink interface. The buffered audio is
// discarded; no file is created.
func (wrt *WavWriter) Abort() {
	wrt.pcm = nil
	wrt.started = false
}
