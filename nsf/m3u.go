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
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jetsetilly/nsfrender/curated"
	"github.com/jetsetilly/nsfrender/logger"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
)

// the longest track title taken from a playlist. longer titles are truncated
// with an ellipsis
const maxM3UTitleLen = 60

// per-track metadata from an m3u playlist found alongside the module file
type m3uEntry struct {
	title      string
	durationMs int
}

// searchM3U looks for m3u playlists in the module file's directory and
// collects the entries that reference the module. The returned map is keyed
// by 1-based track number.
func searchM3U(filename string) (map[int]m3uEntry, error) {
	dir := filepath.Dir(filename)
	listing, err := os.ReadDir(dir)
	if err != nil {
		return nil, curated.Errorf("nsf: m3u: %v", err)
	}

	target := strings.ToLower(filepath.Base(filename)) + "::nsf"

	entries := make(map[int]m3uEntry)
	for _, e := range listing {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".m3u") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, curated.Errorf("nsf: m3u: %v", err)
		}

		logger.Logf("nsf", "discovered m3u file: %s", e.Name())
		parseM3U(decodeM3U(data), target, entries)
	}

	return entries, nil
}

// playlists of this vintage are most often CP-1252 or Shift-JIS. UTF-8 is the
// last resort, with invalid sequences replaced.
func decodeM3U(data []byte) string {
	if s, err := charmap.Windows1252.NewDecoder().Bytes(data); err == nil && !bytes.ContainsRune(s, utf8.RuneError) {
		return string(s)
	}
	if s, err := japanese.ShiftJIS.NewDecoder().Bytes(data); err == nil && !bytes.ContainsRune(s, utf8.RuneError) {
		return string(s)
	}
	return string(bytes.ToValidUTF8(data, []byte("?")))
}

// parseM3U scans playlist lines of the form
//
//	filename::NSF,track,title,duration,...
//
// keeping the lines whose filename field matches the target. Track numbers
// are 1-based. Durations are colon separated, so "1:30" is ninety seconds.
func parseM3U(text string, target string, entries map[int]m3uEntry) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := splitM3ULine(line)
		if len(fields) < 3 {
			continue
		}
		if !strings.EqualFold(fields[0], target) {
			continue
		}

		num, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil || num < 1 {
			continue
		}

		title := fields[2]
		if title == "" {
			continue
		}
		if utf8.RuneCountInString(title) > maxM3UTitleLen {
			runes := []rune(title)
			title = string(runes[:maxM3UTitleLen-3]) + "..."
		}

		durationMs := 0
		if len(fields) > 3 {
			secs := 0.0
			for _, comp := range strings.Split(fields[3], ":") {
				v, _ := strconv.ParseFloat(comp, 64)
				secs = secs*60 + v
			}
			if secs > 0 {
				durationMs = int(secs * 1000)
			}
		}

		entries[num] = m3uEntry{title: title, durationMs: durationMs}
	}
}

// splitM3ULine splits on commas. a comma inside a field is escaped with a
// backslash and a literal backslash is doubled.
func splitM3ULine(line string) []string {
	fields := []string{}
	var cur strings.Builder
	escaped := false
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == ',':
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	fields = append(fields, cur.String())
	return fields
}

// applyM3U fills in per-track metadata the module itself does not declare.
// Values from the module's own chunks always win.
func applyM3U(mod *Module, entries map[int]m3uEntry) {
	for num, e := range entries {
		if num < 1 || num > mod.TrackCount {
			continue
		}
		t := &mod.tracks[num-1]
		if t.Title == "" {
			t.Title = e.title
		}
		if t.DurationMs < 0 && e.durationMs > 0 {
			t.DurationMs = e.durationMs
		}
	}
}
