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

// Package modalflag is a wrapper for the spf13/pflag package. It provides a
// convenient method of handling program modes (and sub-modes) and allows
// different flags for each mode.
//
// Flags are added and parsed per mode. A mode is a special command line
// argument that puts the program into a different mode of operation, with
// its own flags and expected arguments. For example:
//
//	md := Modes{Output: os.Stdout}
//	md.NewArgs(os.Args[1:])
//	md.AddSubModes("render", "info")
//	_, _ = md.Parse()
//
//	switch md.Mode() {
//	case "RENDER":
//		md.NewMode()
//		duration := md.AddString("duration", "time:ext", "stop condition")
//		_, _ = md.Parse()
//		doRender(*duration, md.GetArg(0))
//	case "INFO":
//		doInfo(md.GetArg(0))
//	}
//
// The first sub-mode in the AddSubModes() list is the default, used when the
// first non-flag argument matches no sub-mode. Sub-mode comparisons are case
// insensitive. Non-flag arguments left after parsing are available through
// RemainingArgs() and GetArg().
package modalflag
