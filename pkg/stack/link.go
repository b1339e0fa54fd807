package stack

import "fmt"

// LinkKind tells what the caller link of a header points at.
type LinkKind uint8

const (
	// CallerLink points directly at the calling frame.
	CallerLink LinkKind = iota

	// EntryLink points at an entry sentinel, whose own CallerLink leads to
	// the calling frame. Unwinders stop at entry links they do not own.
	EntryLink
)

// Link is a tagged back-link stored in the first word of a header. A target
// of -1 means there is no caller.
type Link struct {
	Kind   LinkKind
	Target int
}

func (l Link) encode() uint64 {
	return uint64(l.Target+1)<<1 | uint64(l.Kind&1)
}

func decodeLink(w uint64) Link {
	return Link{Kind: LinkKind(w & 1), Target: int(w>>1) - 1}
}

func (k LinkKind) String() string {
	switch k {
	case CallerLink:
		return "caller"
	case EntryLink:
		return "entry"
	default:
		return fmt.Sprintf("LinkKind(%d)", uint8(k))
	}
}

func (l Link) String() string {
	if l.Target < 0 {
		return l.Kind.String() + "->none"
	}
	return fmt.Sprintf("%s->%d", l.Kind, l.Target)
}
