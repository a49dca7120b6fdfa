package cell

import (
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"

	"tern/internal/mem"
)

// decodeText turns byte storage into host text. Storage flagged unicode-safe
// carries the invariant that its bytes are valid UTF-8; finding otherwise is
// a corruption of the core's own bookkeeping, so it panics instead of
// reporting a caller error. All other storage decodes lossily.
func decodeText(b []byte, unicodeSafe bool, origin string) string {
	if unicodeSafe {
		if !utf8.Valid(b) {
			panic(&mem.Violation{
				Code:    mem.ViolationTextCorrupt,
				Message: fmt.Sprintf("unicode-safe slice %s holds invalid UTF-8", origin),
			})
		}
		return string(b)
	}
	out, _, err := transform.Bytes(runes.ReplaceIllFormed(), b)
	if err != nil {
		return string(b)
	}
	return string(out)
}

func badText(s *mem.Slice) *mem.Fault {
	return &mem.Fault{
		Code:    mem.FaultBadText,
		Message: "byte storage is not valid UTF-8",
		Origin:  s.Origin(),
		Stored:  s.Elem().String(),
	}
}
