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

// Package hardware drives a sound chip emulation one output frame at a time.
//
// The cycle accurate emulation itself lives behind the Core interface; this
// package owns the Core exclusively, sequences it, and snapshots its output
// into the ephemeral FrameState values the rest of the pipeline consumes.
// Nothing outside this package ever touches mutable machine state.
//
// The Driver is a state machine: Uninitialized -> Initialized -> Running,
// with Halted as the terminal state for any fault raised (or panicked) by
// the Core. Once Halted the machine state is no longer trustworthy and the
// Driver refuses further stepping.
package hardware
