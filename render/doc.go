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

// Package render turns a module and a request into a stream of frame pairs,
// one pixel buffer and one PCM block per frame, delivered to a Sink.
//
// A Session owns one render end to end. The driver is strictly sequential,
// frame N is complete before frame N+1 begins, but the consumer stages run
// concurrently with it behind a bounded queue. Backpressure from the sink
// stalls the driver rather than dropping frames, so the sink sees every
// frame exactly once and in order.
//
// Duration is resolved before any frame is streamed. Requests that cannot be
// satisfied, a loop count on a module without a recognised driver signature
// for example, fail before the sink sees anything.
package render
