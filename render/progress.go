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

// Progress is a snapshot of how far a render has gone. Delivery is best
// effort; consecutive snapshots are coalesced rather than queued so the
// render is never blocked by a slow observer.
type Progress struct {
	FramesDone  int
	FramesTotal int

	// human readable stage description
	Status string

	// non-nil only on the final snapshot of a failed render
	Err error
}

// progressNotifier fans Progress values out to an observer function without
// ever blocking the sender. The channel holds one pending value; a new value
// replaces an undelivered one.
type progressNotifier struct {
	handler func(Progress)
	ch      chan Progress
	done    chan struct{}
}

func startProgressNotifier(handler func(Progress)) *progressNotifier {
	not := &progressNotifier{
		handler: handler,
		ch:      make(chan Progress, 1),
		done:    make(chan struct{}),
	}

	go func() {
		defer close(not.done)
		for p := range not.ch {
			if not.handler != nil {
				not.handler(p)
			}
		}
	}()

	return not
}

// post a snapshot, replacing any undelivered one.
func (not *progressNotifier) post(p Progress) {
	for {
		select {
		case not.ch <- p:
			return
		default:
		}
		select {
		case <-not.ch:
		default:
		}
	}
}

// stop delivers any pending snapshot and waits for the observer to return.
func (not *progressNotifier) stop() {
	close(not.ch)
	<-not.done
}
