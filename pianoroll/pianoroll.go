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

// Package pianoroll draws the scrolling note visualization. Each frame the
// trail scrolls left and a new slice is drawn at the right edge: one segment
// per audible channel, placed by pitch, sized by amplitude and coloured by
// channel and timbre.
//
// Pitch placement is logarithmic so that octaves are evenly spaced. Noise
// channels have no pitch; they are placed on one of sixteen strings
// corresponding to the noise period index.
//
// Rendering is fully deterministic. The same sequence of channel snapshots
// always produces the same sequence of pixels.
package pianoroll

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/jetsetilly/nsfrender/curated"
	"github.com/jetsetilly/nsfrender/hardware"
	"github.com/jetsetilly/nsfrender/nsf"

	xdraw "golang.org/x/image/draw"
)

// InvalidSpecError is returned when a Spec cannot be rendered.
const InvalidSpecError = "pianoroll: invalid spec: %v"

// the sixteen noise period strings
const numNoiseStrings = 16

// the widest a segment can get at full volume, in pixels
const maxThickness = 6

// ChannelSettings controls how one channel is drawn.
type ChannelSettings struct {
	// hidden channels are not drawn at all
	Hidden bool

	// colours indexed by the channel's timbre: duty cycle for pulse
	// channels, LFSR mode for noise, patch for FM. single-colour lists are
	// flat
	Colors []color.RGBA
}

// Spec describes the canvas. The zero value is not usable; fill in at least
// Width and Height and take DefaultSettings() for the rest.
type Spec struct {
	Width  int
	Height int

	// pixels the trail moves left every frame
	Scroll int

	// the pitch range mapped onto the canvas height
	LowHz  float64
	HighHz float64

	// per channel settings keyed by SettingsKey(). channels with no entry
	// use a neutral colour
	Channels map[string]ChannelSettings

	// optional backdrop. scaled to the canvas once, at initialisation
	Background image.Image

	// leave the backdrop transparent rather than black. for alpha exports.
	// ignored when Background is set
	Transparent bool
}

// SettingsKey is the Spec.Channels key for a channel.
func SettingsKey(chip nsf.Chip, channel string) string {
	return chip.String() + "/" + channel
}

// mutedColor is the colour of segments from channels muted by configuration.
var mutedColor = color.RGBA{R: 32, G: 32, B: 32, A: 255}

// neutralColor is used for channels with no settings entry.
var neutralColor = color.RGBA{R: 160, G: 160, B: 160, A: 255}

// DefaultSettings returns a Spec for the module's chip set with the
// conventional channel colours.
func DefaultSettings(mod *nsf.Module, width int, height int) Spec {
	spec := Spec{
		Width:    width,
		Height:   height,
		Scroll:   2,
		LowHz:    27.5,
		HighHz:   4434.92,
		Channels: make(map[string]ChannelSettings),
	}

	for _, chip := range mod.Chips.List() {
		for _, name := range chip.Channels() {
			spec.Channels[SettingsKey(chip, name)] = ChannelSettings{
				Colors: channelColors(chip, name),
			}
		}
	}

	return spec
}

func rgb(r uint8, g uint8, b uint8) color.RGBA {
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// channelColors is the conventional palette for a channel: one colour per
// timbre. Pulse channels shift hue with the duty cycle, the noise channel
// distinguishes its two LFSR modes, VRC6 pulses darken as the duty widens.
func channelColors(chip nsf.Chip, name string) []color.RGBA {
	switch chip {
	case nsf.Chip2A03:
		switch name {
		case "Pulse 1":
			return []color.RGBA{
				rgb(0xff, 0xa0, 0xa0), // 12.5
				rgb(0xff, 0x40, 0xff), // 25
				rgb(0xff, 0x40, 0x40), // 50
				rgb(0xff, 0x40, 0xff), // 75 (same as 25)
			}
		case "Pulse 2":
			return []color.RGBA{
				rgb(0xff, 0xe0, 0xa0), // 12.5
				rgb(0xff, 0xc0, 0x40), // 25
				rgb(0xff, 0xff, 0x40), // 50
				rgb(0xff, 0xc0, 0x40), // 75 (same as 25)
			}
		case "Triangle":
			return []color.RGBA{rgb(0x40, 0xff, 0x40)}
		case "Noise":
			return []color.RGBA{rgb(192, 192, 192), rgb(128, 240, 255)}
		case "DMC":
			return []color.RGBA{rgb(96, 32, 192)}
		}

	case nsf.ChipVRC6:
		switch name {
		case "Pulse 1":
			return []color.RGBA{
				rgb(0xf2, 0xbb, 0xd8), // 6.25%
				rgb(0xdb, 0xa0, 0xbf), // 12.5%
				rgb(0xc4, 0x86, 0xa6), // 18.75%
				rgb(0xad, 0x6c, 0x8d), // 25%
				rgb(0x97, 0x51, 0x74), // 31.25%
				rgb(0x80, 0x37, 0x5b), // 37.5%
				rgb(0x69, 0x1d, 0x42), // 43.75%
				rgb(0x53, 0x03, 0x2a), // 50%
			}
		case "Pulse 2":
			return []color.RGBA{
				rgb(0xe8, 0xa7, 0xe7), // 6.25%
				rgb(0xd2, 0x8f, 0xd1), // 12.5%
				rgb(0xbd, 0x78, 0xbb), // 18.75%
				rgb(0xa7, 0x60, 0xa6), // 25%
				rgb(0x92, 0x49, 0x90), // 31.25%
				rgb(0x7c, 0x31, 0x7b), // 37.5%
				rgb(0x67, 0x1a, 0x65), // 43.75%
				rgb(0x52, 0x03, 0x50), // 50%
			}
		case "Sawtooth":
			return []color.RGBA{
				rgb(0x07, 0x7d, 0x5a), // normal
				rgb(0x9f, 0xb8, 0xed), // distortion
			}
		}

	case nsf.ChipVRC7:
		return []color.RGBA{rgb(0xff, 0xd0, 0xd0)}

	case nsf.ChipFDS:
		return []color.RGBA{rgb(0x42, 0xa5, 0xf5)}

	case nsf.ChipMMC5:
		switch name {
		case "Pulse 1", "Pulse 2":
			return []color.RGBA{
				rgb(0xcc, 0x00, 0x29),
				rgb(0xdf, 0x48, 0x67),
				rgb(0xf2, 0x91, 0xa5),
				rgb(0xdf, 0x48, 0x67),
			}
		case "PCM":
			return []color.RGBA{rgb(224, 24, 64)}
		}

	case nsf.ChipN163:
		return []color.RGBA{rgb(0x66, 0x0e, 0x0e), rgb(0xc9, 0x9c, 0x9c)}

	case nsf.ChipS5B:
		switch name {
		case "A":
			return []color.RGBA{rgb(32, 144, 204)}
		case "B":
			return []color.RGBA{rgb(24, 104, 228)}
		case "C":
			return []color.RGBA{rgb(16, 64, 248)}
		}
	}

	return []color.RGBA{neutralColor}
}

// Renderer draws the piano roll. One Renderer serves one render; not safe
// for concurrent use.
type Renderer struct {
	spec Spec

	trail   *image.RGBA
	scratch *image.RGBA
	out     *image.RGBA

	// spec background scaled to the canvas, or nil
	background *image.RGBA
}

// NewRenderer is the preferred method of initialisation for the Renderer
// type.
func NewRenderer(spec Spec) (*Renderer, error) {
	if spec.Width <= 0 || spec.Height <= 0 {
		return nil, curated.Errorf(InvalidSpecError, "canvas size must be positive")
	}
	if spec.Scroll <= 0 {
		spec.Scroll = 2
	}
	if spec.LowHz <= 0 || spec.HighHz <= spec.LowHz {
		return nil, curated.Errorf(InvalidSpecError, "pitch range is empty")
	}

	bounds := image.Rect(0, 0, spec.Width, spec.Height)

	ren := &Renderer{
		spec:    spec,
		trail:   image.NewRGBA(bounds),
		scratch: image.NewRGBA(bounds),
		out:     image.NewRGBA(bounds),
	}

	if spec.Background != nil {
		ren.background = image.NewRGBA(bounds)
		xdraw.ApproxBiLinear.Scale(ren.background, bounds, spec.Background, spec.Background.Bounds(), xdraw.Src, nil)
	}

	return ren, nil
}

// Frame draws the next frame of the visualization. The returned image is
// reused on the next call; downstream must finish with it before stepping
// again.
func (ren *Renderer) Frame(channels []hardware.ChannelState) *image.RGBA {
	ren.scroll()

	for i := range channels {
		ren.drawChannel(&channels[i])
	}

	return ren.compose()
}

// scroll moves the trail left and clears the vacated columns.
func (ren *Renderer) scroll() {
	bounds := ren.trail.Bounds()

	draw.Draw(ren.scratch, bounds, ren.trail, image.Point{X: ren.spec.Scroll}, draw.Src)
	ren.trail, ren.scratch = ren.scratch, ren.trail

	vacated := image.Rect(ren.spec.Width-ren.spec.Scroll, 0, ren.spec.Width, ren.spec.Height)
	draw.Draw(ren.trail, vacated, image.Transparent, image.Point{}, draw.Src)
}

func (ren *Renderer) drawChannel(ch *hardware.ChannelState) {
	settings := ren.spec.Channels[SettingsKey(ch.Chip, ch.Name)]

	if settings.Hidden || !ch.Playing || ch.Volume <= 0 {
		return
	}

	y, ok := ren.channelY(ch)
	if !ok {
		return
	}

	col := neutralColor
	if len(settings.Colors) > 0 {
		col = settings.Colors[ch.TimbreIndex%len(settings.Colors)]
	}
	if ch.Muted {
		col = mutedColor
	}

	thickness := 1 + int(ch.Volume*maxThickness)
	top := y - thickness/2
	seg := image.Rect(ren.spec.Width-ren.spec.Scroll, top, ren.spec.Width, top+thickness)

	draw.Draw(ren.trail, seg, image.NewUniform(col), image.Point{}, draw.Src)
}

// channelY places a channel vertically. Pitched channels map log frequency
// onto the canvas; noise channels sit on one of sixteen evenly spaced
// strings.
func (ren *Renderer) channelY(ch *hardware.ChannelState) (int, bool) {
	var pos float64

	switch ch.Kind {
	case hardware.RateLFSR:
		pos = (float64(ch.LFSRIndex) + 0.5) / numNoiseStrings

	default:
		f := float64(ch.Frequency)
		if f <= 0 {
			return 0, false
		}
		pos = (math.Log(f) - math.Log(ren.spec.LowHz)) / (math.Log(ren.spec.HighHz) - math.Log(ren.spec.LowHz))
	}

	y := int((1 - pos) * float64(ren.spec.Height-1))
	if y < 0 {
		y = 0
	}
	if y > ren.spec.Height-1 {
		y = ren.spec.Height - 1
	}

	return y, true
}

// compose lays the trail over the backdrop.
func (ren *Renderer) compose() *image.RGBA {
	bounds := ren.out.Bounds()

	switch {
	case ren.background != nil:
		draw.Draw(ren.out, bounds, ren.background, image.Point{}, draw.Src)
	case ren.spec.Transparent:
		draw.Draw(ren.out, bounds, image.Transparent, image.Point{}, draw.Src)
	default:
		draw.Draw(ren.out, bounds, image.Black, image.Point{}, draw.Src)
	}
	draw.Draw(ren.out, bounds, ren.trail, image.Point{}, draw.Over)

	return ren.out
}
