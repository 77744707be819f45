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

// Package curated is a helper package for the plain Go language error type.
// Curated errors implement the error interface.
//
// Curated errors are created with the Errorf() function. This is similar to
// the Errorf() function in the fmt package. It takes a formatting pattern,
// placeholder values and returns an error.
//
// The Is() function can be used to check whether an error was created from a
// specific pattern. Packages that raise categorised errors export their
// patterns as constants so that callers can classify without string
// comparison of the formatted message. For example:
//
//	err := hardware.Driver.StepFrame()
//	if curated.Is(err, hardware.EmulationFault) {
//		// machine state is no longer trustworthy. halt the render
//	}
//
// The Has() function is similar but checks if a pattern occurs somewhere in
// the error chain. This is useful at the render loop where errors from the
// parser or the driver will have been wrapped by the orchestrator:
//
//	if curated.Has(err, nsf.FormatError) {
//		// bad module bytes. not retryable
//	}
//
// The IsAny() function answers whether the error was created by
// curated.Errorf(). Put another way, it returns true if the error is
// 'curated' and false if the error is 'uncurated'. Alternatively, we can
// think of the difference as being 'expected' and 'unexpected' depending on
// how we choose to handle the result of the function call.
//
// The Error() function implementation for curated errors ensures that the
// error chain is normalised. Specifically, that the chain does not contain
// duplicate adjacent parts.
package curated
