package language

import (
	"strings"

	xlanguage "golang.org/x/text/language"
)

// bibliographic maps ISO 639-2/B codes that container tags often carry to
// their ISO 639-1 form.
var bibliographic = map[string]string{
	"alb": "sq",
	"arm": "hy",
	"baq": "eu",
	"chi": "zh",
	"cze": "cs",
	"dut": "nl",
	"fre": "fr",
	"geo": "ka",
	"ger": "de",
	"gre": "el",
	"ice": "is",
	"mac": "mk",
	"may": "ms",
	"per": "fa",
	"rum": "ro",
	"slo": "sk",
	"wel": "cy",
}

// tagKeys are the stream tag keys checked, in order.
var tagKeys = []string{"language", "LANGUAGE", "Language", "language_ietf", "lang", "LANG"}

// Normalize converts a 2- or 3-letter code, or a BCP 47 tag such as en-US,
// to its ISO 639-1 base when one exists. Unknown and undetermined input
// returns "".
func Normalize(code string) string {
	code = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(code, "\u0000", "")))
	if code == "" || code == "und" {
		return ""
	}
	if mapped, ok := bibliographic[code]; ok {
		return mapped
	}
	tag, err := xlanguage.Parse(code)
	if err != nil {
		return ""
	}
	base, confidence := tag.Base()
	if confidence == xlanguage.No || base.String() == "und" {
		return ""
	}
	return base.String()
}

// FromTags returns the normalized language of a stream from its metadata
// tags, or "" when none is recognizable.
func FromTags(tags map[string]string) string {
	for _, key := range tagKeys {
		if value, ok := tags[key]; ok {
			if lang := Normalize(value); lang != "" {
				return lang
			}
		}
	}
	return ""
}
