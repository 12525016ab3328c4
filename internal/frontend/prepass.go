package frontend

import (
	"bytes"
	"regexp"
	"strings"
)

// markerComment is the form a marker takes after the pre-pass.
var markerComment = regexp.MustCompile(`^/\*@([A-Za-z_]\w*)\*/$`)

var structDecl = regexp.MustCompile(`\bstruct(\s+)([A-Za-z_$][\w$]*)`)

// insertion records that the pre-pass widened a line: columns at or past
// end (in rewritten coordinates) sit delta bytes right of the original.
type insertion struct {
	end   int
	delta int
}

// prepared is ArkTS source rewritten into something the TypeScript grammar
// accepts, plus what is needed to report original positions.
type prepared struct {
	src     []byte
	shifts  map[int][]insertion
	structs map[string]bool
}

// prepare rewrites `@name` for every marker name into `/*@name*/` so
// markers may sit in positions TypeScript has no decorator syntax for, and
// parses `struct` declarations as classes.
func prepare(src []byte, markers []string) *prepared {
	p := &prepared{
		shifts:  make(map[int][]insertion),
		structs: make(map[string]bool),
	}
	var re *regexp.Regexp
	if len(markers) > 0 {
		quoted := make([]string, len(markers))
		for i, m := range markers {
			quoted[i] = regexp.QuoteMeta(m)
		}
		re = regexp.MustCompile(`(^|[^\w.$@])@(` + strings.Join(quoted, "|") + `)\b`)
	}

	lines := bytes.Split(src, []byte("\n"))
	out := make([][]byte, len(lines))
	for row, line := range lines {
		line = structDecl.ReplaceAllFunc(line, func(m []byte) []byte {
			sub := structDecl.FindSubmatch(m)
			p.structs[string(sub[2])] = true
			// Same width so columns are untouched.
			return append([]byte("class "), m[len("struct"):]...)
		})
		if re != nil {
			line = p.rewriteMarkers(re, row, line)
		}
		out[row] = line
	}
	p.src = bytes.Join(out, []byte("\n"))
	return p
}

func (p *prepared) rewriteMarkers(re *regexp.Regexp, row int, line []byte) []byte {
	matches := re.FindAllSubmatchIndex(line, -1)
	if len(matches) == 0 {
		return line
	}
	var buf bytes.Buffer
	last, added := 0, 0
	for _, m := range matches {
		at := m[3] // end of the leading context group, where '@' sits
		name := line[m[4]:m[5]]
		buf.Write(line[last:at])
		buf.WriteString("/*@")
		buf.Write(name)
		buf.WriteString("*/")
		last = m[5]
		added += len("/**/")
		p.shifts[row] = append(p.shifts[row], insertion{end: buf.Len(), delta: added})
	}
	buf.Write(line[last:])
	return buf.Bytes()
}

// column maps a column of the rewritten source back to the original.
func (p *prepared) column(row, col int) int {
	delta := 0
	for _, in := range p.shifts[row] {
		if col < in.end {
			break
		}
		delta = in.delta
	}
	return col - delta
}

// markerName extracts the marker from a rewritten comment.
func markerName(comment string) (string, bool) {
	m := markerComment.FindStringSubmatch(comment)
	if m == nil {
		return "", false
	}
	return m[1], true
}
