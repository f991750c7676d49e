package dsid

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/xerrors"

	"github.com/lledit/lledit/internal/rangealg"
)

var charRangeClosed = regexp.MustCompile(`^(\d+)\.\.(\d+)$`)
var charRangeOpen = regexp.MustCompile(`^(\d+)\.\.\.$`)
var indexPattern = regexp.MustCompile(`^\d+$`)

// ParseError reports a syntactically malformed dsid component.
type ParseError struct {
	Component string
	Reason    string
}

func (e *ParseError) Error() string {
	return xerrors.Errorf("invalid dsid component %q: %s", e.Component, e.Reason).Error()
}

// Parse decodes the textual form of spec.md §6 into a Dsid. A leading "/"
// marks the dsid as anchored at the session root; since every dsid the core
// resolves is already root-anchored, the leading slash is accepted and
// discarded.
func Parse(s string) (Dsid, error) {
	s = strings.TrimPrefix(s, "/")
	if s == "" {
		return Dsid{}, nil
	}

	components, err := splitComponents(s)
	if err != nil {
		return nil, err
	}

	out := make(Dsid, 0, len(components))
	for i, c := range components {
		key, err := parseComponent(c, i == 0)
		if err != nil {
			return nil, err
		}
		out = append(out, key)
	}
	return out, nil
}

// splitComponents splits on "/", then rejoins pieces whose quote count is
// odd with their neighbours, so that a "/" inside a quoted string does not
// split the component.
func splitComponents(s string) ([]string, error) {
	raw := strings.Split(s, "/")

	var out []string
	var pending string
	pendingQuotes := 0

	for _, piece := range raw {
		if pendingQuotes%2 == 1 {
			pending += "/" + piece
		} else {
			pending = piece
		}
		pendingQuotes += strings.Count(piece, `"`)
		if pendingQuotes%2 == 0 {
			out = append(out, pending)
			pending = ""
			pendingQuotes = 0
		}
	}
	if pendingQuotes%2 != 0 {
		return nil, &ParseError{Component: pending, Reason: "unterminated quoted string"}
	}
	return out, nil
}

func parseComponent(c string, first bool) (Key, error) {
	switch {
	case strings.EqualFold(c, "stat"):
		return Stat{}, nil
	case c == "..":
		return Parent{}, nil
	case c == "~" && first:
		return Name("~"), nil
	case strings.HasPrefix(c, `"`):
		return parseQuoted(c)
	case strings.HasPrefix(c, "?"):
		return TypeMarker(c[1:]), nil
	case indexPattern.MatchString(c):
		n, err := strconv.ParseInt(c, 10, 64)
		if err != nil {
			return nil, &ParseError{Component: c, Reason: "index out of range"}
		}
		return Index(n), nil
	case charRangeOpen.MatchString(c):
		m := charRangeOpen.FindStringSubmatch(c)
		start, _ := strconv.ParseInt(m[1], 10, 64)
		return CharRange{Start: start, End: rangealg.End}, nil
	case charRangeClosed.MatchString(c):
		m := charRangeClosed.FindStringSubmatch(c)
		start, _ := strconv.ParseInt(m[1], 10, 64)
		end, _ := strconv.ParseInt(m[2], 10, 64)
		if end < start {
			return nil, &ParseError{Component: c, Reason: "range end before start"}
		}
		return CharRange{Start: start, End: end}, nil
	default:
		return Name(c), nil
	}
}

func parseQuoted(c string) (Key, error) {
	if !strings.HasSuffix(c, `"`) || len(c) < 2 {
		return nil, &ParseError{Component: c, Reason: "unterminated quoted string"}
	}
	body := c[1 : len(c)-1]
	body = strings.ReplaceAll(body, `""`, `"`)
	return Name(body), nil
}
