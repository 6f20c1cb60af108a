package studio

import (
	"strconv"
	"strings"
)

// pathSegment is one step in a traversal: either a property name or an array
// index. Keeping segments typed until display avoids ambiguity between a
// property literally named "[0]" and an actual index.
type pathSegment struct {
	name    string
	index   int
	indexed bool
}

func propSegment(name string) pathSegment { return pathSegment{name: name} }

func indexSegment(i int) pathSegment { return pathSegment{index: i, indexed: true} }

// valuePath is the ordered list of segments from the root of the value to the
// current position. It is carried through recursion and rendered to a string
// only when a diagnostic is constructed.
type valuePath []pathSegment

func (p valuePath) child(name string) valuePath {
	next := make(valuePath, len(p), len(p)+1)
	copy(next, p)
	return append(next, propSegment(name))
}

func (p valuePath) element(i int) valuePath {
	next := make(valuePath, len(p), len(p)+1)
	copy(next, p)
	return append(next, indexSegment(i))
}

// String renders the path in the dotted/bracketed display form, e.g.
// "user.tags[2]". The empty path renders as "root".
func (p valuePath) String() string {
	if len(p) == 0 {
		return "root"
	}

	var b strings.Builder
	for i, seg := range p {
		if seg.indexed {
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(seg.index))
			b.WriteByte(']')
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(seg.name)
	}
	return b.String()
}
