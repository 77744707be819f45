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

package nsf

import (
	"crypto/sha1"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/jetsetilly/nsfrender/curated"
	"github.com/jetsetilly/nsfrender/logger"
)

// Loader is used to specify the module to load into a render session.
type Loader struct {
	// filename of module to load
	Filename string

	// hash of the loaded data. empty until Load() has been called
	Hash string

	// copy of the loaded data. subsequent calls to Load() will return the
	// same data
	Data []byte
}

// NewLoader is the preferred method of initialisation for the Loader type.
func NewLoader(filename string) Loader {
	return Loader{Filename: filename}
}

// FileExtensions is the list of file extensions that are recognised as NSF
// family modules.
var FileExtensions = [...]string{".NSF", ".NSFE", ".NSF2"}

// ShortName returns a shortened version of the Loader filename.
func (ld Loader) ShortName() string {
	shortName := path.Base(ld.Filename)
	return strings.TrimSuffix(shortName, path.Ext(ld.Filename))
}

// HasLoaded returns true if Load() has been successfully called.
func (ld Loader) HasLoaded() bool {
	return len(ld.Data) > 0
}

// Load the module data from disk and parse it. The returned Module is
// independent of the Loader.
func (ld *Loader) Load() (*Module, error) {
	if !ld.HasLoaded() {
		data, err := os.ReadFile(ld.Filename)
		if err != nil {
			return nil, curated.Errorf("nsf: loader: %v", err)
		}
		ld.Data = data
		ld.Hash = fmt.Sprintf("%x", sha1.Sum(data))
	}

	mod, err := ParseModule(ld.Data)
	if err != nil {
		return nil, err
	}

	// playlists beside the module can supply track titles and durations the
	// module does not declare itself
	if entries, err := searchM3U(ld.Filename); err != nil {
		logger.Logf("nsf", "%v", err)
	} else if len(entries) > 0 {
		applyM3U(mod, entries)
	}

	logger.Logf("nsf", "%s loaded (%s)", ld.ShortName(), ld.Hash)

	return mod, nil
}
