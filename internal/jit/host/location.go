package host

import "strconv"

// SourceLocation is the opaque source-position payload an opcode may
// carry (spec §3). The core never interprets it beyond passing it
// through to debug output; rbjit's own SourceLocation is likewise a
// stub (see original_source/rbjit/include/rbjit/opcode.h).
type SourceLocation struct {
	Line, Col int
	Valid     bool
}

func (l SourceLocation) String() string {
	if !l.Valid {
		return "?"
	}
	return strconv.Itoa(l.Line) + ":" + strconv.Itoa(l.Col)
}
