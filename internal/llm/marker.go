package llm

import (
	"regexp"
	"strconv"
	"strings"
)

var questionMarker = regexp.MustCompile(`\[QUESTION_ID:\s*(\d+)\]`)

// ExtractQuestionMarker strips every [QUESTION_ID:n] marker from the model
// output and returns the first id found.
func ExtractQuestionMarker(text string) (string, *int) {
	var id *int
	if m := questionMarker.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			id = &n
		}
	}
	cleaned := questionMarker.ReplaceAllString(text, "")
	return strings.TrimSpace(cleaned), id
}
