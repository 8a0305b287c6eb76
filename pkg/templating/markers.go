package templating

import "strings"

const (
	markerOpen  = "<%="
	markerClose = "%>"
)

// Match is one embedded expression found in a template: the byte offsets of the
// whole marker in the template text and the raw expression source between the
// delimiters.
type Match struct {
	Start  int
	End    int
	Source string
}

// FindMarkers scans text left to right for <%= ... %> markers. An expression ends
// at the first closing delimiter after its opening one; an opening delimiter
// without a closing one is left as literal text. Matches never overlap.
func FindMarkers(text string) []Match {
	var matches []Match
	i := 0
	for i < len(text) {
		open := strings.Index(text[i:], markerOpen)
		if open < 0 {
			break
		}
		start := i + open
		body := start + len(markerOpen)
		closing := strings.Index(text[body:], markerClose)
		if closing < 0 {
			break
		}
		end := body + closing + len(markerClose)
		matches = append(matches, Match{Start: start, End: end, Source: text[body : body+closing]})
		i = end
	}
	return matches
}
