package summary

import "unicode/utf8"

// FallbackTag marks summaries produced by the template fallback instead of
// a generation backend.
const FallbackTag = "fallback"

const fallbackAbstractLimit = 500

// Fallback builds a deterministic template summary from the item's own
// metadata. It never fails; this is the floor the pipeline degrades to when
// the backend is unavailable or exhausted its retries.
func Fallback(title, abstract string) string {
	truncated := abstract
	if len(truncated) > fallbackAbstractLimit {
		// Back up to a rune boundary so the cut never leaves invalid UTF-8.
		cut := fallbackAbstractLimit
		for cut > 0 && !utf8.RuneStart(truncated[cut]) {
			cut--
		}
		truncated = truncated[:cut] + "..."
	}
	return "📄 " + title + "\n\n" + truncated
}
