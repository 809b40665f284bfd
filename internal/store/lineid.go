package store

import (
	"strconv"
	"strings"
)

// LineIDParts is what a corpus line id encodes
type LineIDParts struct {
	ScoreID     string
	LineNumber  int
	MusicalForm string
}

// ParseLineID splits a line id of the form <score_id>_<line>_<a>_<b>,
// where the score id itself is "<composer>_<form>_...". Ids that do not
// follow the convention are their own score with line 0 and no form.
func ParseLineID(id string) LineIDParts {
	parts := strings.Split(id, "_")
	if len(parts) < 4 {
		return LineIDParts{ScoreID: id}
	}

	line, err := strconv.Atoi(parts[len(parts)-3])
	if err != nil {
		return LineIDParts{ScoreID: id}
	}

	scoreParts := parts[:len(parts)-3]
	p := LineIDParts{
		ScoreID:    strings.Join(scoreParts, "_"),
		LineNumber: line,
	}
	if len(scoreParts) > 1 {
		p.MusicalForm = scoreParts[1]
	}
	return p
}
