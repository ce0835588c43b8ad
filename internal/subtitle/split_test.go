package subtitle

import (
	"errors"
	"reflect"
	"testing"
)

func TestParsePolicy(t *testing.T) {
	for _, in := range []string{"word", "Comma", " SENTENCE ", "none"} {
		if _, err := ParsePolicy(in); err != nil {
			t.Errorf("ParsePolicy(%q) unexpected error: %v", in, err)
		}
	}
	if _, err := ParsePolicy("paragraph"); !errors.Is(err, ErrUnsupportedPolicy) {
		t.Errorf("ParsePolicy(paragraph) error = %v, want ErrUnsupportedPolicy", err)
	}
}

func TestCollapseLines(t *testing.T) {
	got := CollapseLines("  hello \n\n world \n")
	if got != "hello world" {
		t.Errorf("CollapseLines = %q, want %q", got, "hello world")
	}
	if CollapseLines("  \n  ") != "" {
		t.Errorf("expected empty result for whitespace-only input")
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		policy Policy
		want   []string
	}{
		{"word", "the quick  brown", PolicyWord, []string{"the", "quick", "brown"}},
		{"comma", "one, two,three", PolicyComma, []string{"one", "two", "three"}},
		{"comma fullwidth", "一，二，三", PolicyComma, []string{"一", "二", "三"}},
		{"comma runs collapse", "a,,b", PolicyComma, []string{"a", "b"}},
		{"sentence", "Done. Next one! Really?", PolicySentence, []string{"Done.", "Next one!", "Really?"}},
		{"sentence cjk", "好。再见！", PolicySentence, []string{"好。", "再见！"}},
		{"sentence trailing text", "First. then more", PolicySentence, []string{"First.", "then more"}},
		{"none", "keep it  whole", PolicyNone, []string{"keep it  whole"}},
		{"none multiline", "line one\nline two", PolicyNone, []string{"line one line two"}},
		{"empty", "   \n ", PolicyWord, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.text, tt.policy)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Split(%q, %s) = %v, want %v", tt.text, tt.policy, got, tt.want)
			}
		})
	}
}
