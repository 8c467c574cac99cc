package corpus

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCompileQuery(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		primary  string
		fallback string
	}{
		{
			name:    "empty input",
			raw:     "",
			primary: "",
		},
		{
			name:    "whitespace only",
			raw:     "   \t ",
			primary: "",
		},
		{
			name:    "single bareword omits fallback",
			raw:     "Kaufvertrag",
			primary: "Kaufvertrag*",
		},
		{
			name:     "multi token",
			raw:      "Treu und Glauben",
			primary:  "Treu* AND und* AND Glauben*",
			fallback: "Treu* OR und* OR Glauben*",
		},
		{
			name:     "operator characters quoted",
			raw:      "§ 823 BGB",
			primary:  `"§"* AND 823* AND BGB*`,
			fallback: `"§"* OR 823* OR BGB*`,
		},
		{
			name:     "operator keywords quoted",
			raw:      "Treu AND Glauben",
			primary:  `Treu* AND "AND"* AND Glauben*`,
			fallback: `Treu* OR "AND"* OR Glauben*`,
		},
		{
			name:    "lower-case operator word stays bare",
			raw:     "near",
			primary: "near*",
		},
		{
			name:    "double quotes stripped",
			raw:     `"Datenschutz"`,
			primary: "Datenschutz*",
		},
		{
			name:     "punctuated token quoted",
			raw:      "Abs. 1",
			primary:  `"Abs."* AND 1*`,
			fallback: `"Abs."* OR 1*`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CompileQuery(tt.raw)
			if got.Primary != tt.primary {
				t.Errorf("Primary = %q, want %q", got.Primary, tt.primary)
			}
			if got.Fallback != tt.fallback {
				t.Errorf("Fallback = %q, want %q", got.Fallback, tt.fallback)
			}
		})
	}
}

func TestCompileQueryDeterministic(t *testing.T) {
	raw := `Verordnung (EU) 2016/679 "DSGVO"`
	first := CompileQuery(raw)
	for i := 0; i < 5; i++ {
		if got := CompileQuery(raw); got != first {
			t.Fatalf("CompileQuery not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestSubstringTokens(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"", nil},
		{"a b c", nil},
		{"Treu und Glauben", []string{"treu", "und", "glauben"}},
		{"§ 823 BGB", []string{"823", "bgb"}},
		{"  Kaufvertrag  ", []string{"kaufvertrag"}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, substringTokens(tt.raw)); diff != "" {
			t.Errorf("substringTokens(%q) mismatch (-want +got):\n%s", tt.raw, diff)
		}
	}
}
