package encoder

import "testing"

func TestEscape(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain text", "residential", "residential"},
		{"backslash", `a\b`, `a\\b`},
		{"tab", "a\tb", `a\tb`},
		{"newline", "a\nb", `a\nb`},
		{"backslash before escaped char", "a\\\tb", `a\\\tb`},
		{"all controls", "\b\t\n\v\f\r", `\b\t\n\v\f\r`},
		{"utf8 passes through", "café", "café"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Escape(tt.input); got != tt.want {
				t.Errorf("Escape(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestEscapeIsMorphism(t *testing.T) {
	pairs := [][2]string{
		{"foo", "bar"},
		{"a\tb", "c\nd"},
		{"", "residential"},
		{`back\slash`, "plain"},
	}

	for _, p := range pairs {
		a, b := p[0], p[1]
		got := Escape(a + b)
		want := Escape(a) + Escape(b)
		if got != want {
			t.Errorf("Escape(%q+%q) = %q, want %q", a, b, got, want)
		}
	}
}
