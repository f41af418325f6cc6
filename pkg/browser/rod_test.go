package browser

import (
	"regexp"
	"testing"
)

func TestOptionPattern(t *testing.T) {
	tests := []struct {
		text  string
		label string
		want  bool
	}{
		{"business", "Business", true},
		{"business", "Business Class", true},
		{"Business", "business", true},
		{"first", "Premium Economy", false},
		{"a.b", "a.b", true},
		{"a.b", "axb", false},
		{"(main)", "Main Cabin (main)", true},
	}

	for _, tt := range tests {
		t.Run(tt.text+"/"+tt.label, func(t *testing.T) {
			re := regexp.MustCompile(optionPattern(tt.text))
			if got := re.MatchString(tt.label); got != tt.want {
				t.Errorf("optionPattern(%q) matching %q = %v, want %v", tt.text, tt.label, got, tt.want)
			}
		})
	}
}
