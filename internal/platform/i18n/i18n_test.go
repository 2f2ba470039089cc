package i18n

import (
	"testing"

	"golang.org/x/text/language"
)

func TestSupportedTagsDefaultFirst(t *testing.T) {
	tags := SupportedTags()
	if len(tags) < 2 {
		t.Fatalf("len(tags) = %d, want at least 2", len(tags))
	}
	if tags[0] != DefaultTag() {
		t.Fatalf("tags[0] = %v, want %v", tags[0], DefaultTag())
	}
}

func TestParseTag(t *testing.T) {
	tests := []struct {
		value string
		want  language.Tag
		ok    bool
	}{
		{"ja-JP", language.MustParse("ja-JP"), true},
		{"ja", language.MustParse("ja-JP"), true},
		{"en-US", language.MustParse("en-US"), true},
		{"", DefaultTag(), false},
		{"zz-bogus!", DefaultTag(), false},
	}
	for _, tt := range tests {
		got, ok := ParseTag(tt.value)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("ParseTag(%q) = %v, %v, want %v, %v", tt.value, got, ok, tt.want, tt.ok)
		}
	}
}

func TestMatchTagsPrefersRequested(t *testing.T) {
	got := MatchTags([]language.Tag{language.Japanese, language.AmericanEnglish})
	if got != language.MustParse("ja-JP") {
		t.Fatalf("MatchTags = %v, want ja-JP", got)
	}
}

func TestMatchTagsFallsBackToDefault(t *testing.T) {
	if got := MatchTags(nil); got != DefaultTag() {
		t.Fatalf("MatchTags(nil) = %v, want default", got)
	}
	if got := MatchTags([]language.Tag{language.French}); got != DefaultTag() {
		t.Fatalf("MatchTags(fr) = %v, want default", got)
	}
}
