// Package language detects the original language of message text so the
// aggregate can fill translation.originalLanguage at append time.
package language

import "github.com/abadojack/whatlanggo"

// Detect returns the ISO 639-1 code of the text's language, or empty when
// the detection is not reliable enough to store.
func Detect(text string) string {
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6391()
}
