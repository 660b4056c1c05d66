package textutil

import "testing"

func TestNormalizePunctuation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"collapses bangs", "wow!!!", "wow!"},
		{"collapses ellipsis", "wait....", "wait…"},
		{"space before punctuation removed", "hello , world", "hello, world"},
		{"space after punctuation enforced", "hello,world", "hello, world"},
		{"dash run to em dash", "a --- b", "a — b"},
		{"multi space collapsed", "a    b", "a b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := NormalizePunctuation(tt.input); got != tt.want {
				t.Errorf("NormalizePunctuation(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizePunctuation_ProtectsDecimals(t *testing.T) {
	t.Parallel()

	got := NormalizePunctuation("the value is 3.14 exactly")
	if got != "the value is 3.14 exactly" {
		t.Errorf("decimal should survive unchanged, got %q", got)
	}
}
