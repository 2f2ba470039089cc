// Package i18n exposes the locales the platform ships message catalogs for.
package i18n

import (
	"strings"

	"golang.org/x/text/language"

	"github.com/louisbranch/ensemble.live/internal/platform/i18n/catalog"
)

var (
	defaultTag    = language.MustParse(catalog.BaseLocale)
	supportedTags = loadSupportedTags()
	matcher       = language.NewMatcher(supportedTags)
)

// SupportedTags returns the language tags with embedded catalogs.
// The default tag is always first.
func SupportedTags() []language.Tag {
	out := make([]language.Tag, len(supportedTags))
	copy(out, supportedTags)
	return out
}

// DefaultTag returns the base language tag.
func DefaultTag() language.Tag {
	return defaultTag
}

// ParseTag parses value and reports whether it resolves to a supported tag.
func ParseTag(value string) (language.Tag, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return defaultTag, false
	}
	parsed, err := language.Parse(trimmed)
	if err != nil {
		return defaultTag, false
	}
	_, index, confidence := matcher.Match(parsed)
	if confidence == language.No {
		return defaultTag, false
	}
	return supportedTags[index], true
}

// MatchTags returns the best supported tag for the given preferences.
func MatchTags(preferences []language.Tag) language.Tag {
	if len(preferences) == 0 {
		return defaultTag
	}
	_, index, confidence := matcher.Match(preferences...)
	if confidence == language.No {
		return defaultTag
	}
	return supportedTags[index]
}

func loadSupportedTags() []language.Tag {
	tags := []language.Tag{defaultTag}
	for _, locale := range catalog.Default().Locales() {
		if locale == catalog.BaseLocale {
			continue
		}
		tag, err := language.Parse(locale)
		if err != nil {
			continue
		}
		tags = append(tags, tag)
	}
	return tags
}
