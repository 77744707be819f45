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

// Package nsf decodes modules in the NSF family of formats (NSF, NSFe and
// NSF2) into the Module type. Parsing is a pure function over the byte
// buffer: no emulation is performed and the buffer is never aliased by the
// returned Module.
//
// The three formats are treated as one. NSF is the baseline: a 128 byte
// header followed by program data. NSF2 is the same baseline plus an optional
// block of fourcc chunks after the program data. NSFe rearranges everything
// into chunks; the parser reassembles an NSFe container into the NSF2 form
// before decoding so that the rest of the pipeline only ever sees one
// representation.
//
// Unknown extension chunks are logged and skipped. Malformed chunk framing,
// bad magic numbers and truncated headers are FormatError. Features the
// pipeline cannot honour (unknown expansion bits, YM2413 mode) are
// UnsupportedFeatureError.
package nsf
