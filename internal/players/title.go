package players

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Tokens that mark the start of release junk in a filename. Everything from
// the first match onward is dropped.
var releaseTokens = map[string]struct{}{
	"1080p": {}, "2160p": {}, "720p": {}, "480p": {},
	"bluray": {}, "brrip": {}, "webrip": {}, "webdl": {}, "web": {},
	"hdtv": {}, "x264": {}, "x265": {}, "h264": {}, "h265": {}, "hevc": {},
	"remux": {}, "proper": {}, "repack": {},
}

// DeriveTitle produces a human-readable title from a player-reported media
// title or file path.
func DeriveTitle(raw string) string {
	if raw == "" {
		return ""
	}
	base := filepath.Base(raw)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	cleaned := strings.Builder{}
	prevSpace := false
	for _, r := range base {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r) || r == '\'':
			cleaned.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.' || r == '[' || r == ']' || r == '(' || r == ')':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		}
	}

	words := strings.Fields(cleaned.String())
	kept := words[:0]
	for _, word := range words {
		if _, junk := releaseTokens[strings.ToLower(word)]; junk {
			break
		}
		kept = append(kept, word)
	}
	title := strings.Join(kept, " ")
	if title == "" {
		title = strings.TrimSpace(cleaned.String())
	}
	if title == "" {
		return ""
	}
	return cases.Title(language.Und, cases.NoLower).String(title)
}
