package translate

import (
	"strings"
	"testing"
)

func TestBypassMarksPassthrough(t *testing.T) {
	got := Bypass{}.Translate(t.Context(), "事業内容")
	if !strings.HasPrefix(got, "translation disabled: ") {
		t.Errorf("bypass output = %q", got)
	}
	if !strings.HasSuffix(got, "事業内容") {
		t.Errorf("bypass lost the input: %q", got)
	}
}

func TestForMode(t *testing.T) {
	if _, ok := ForMode(false).(Bypass); !ok {
		t.Error("disabled mode must return the bypass translator")
	}
	if _, ok := ForMode(true).(*Gemini); !ok {
		t.Error("enabled mode must return the Gemini translator")
	}
}

func TestParseTranslation(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"clean", `{"translation": "Description of business"}`, "Description of business", false},
		{"fenced", "```json\n{\"translation\": \"Fenced\"}\n```", "Fenced", false},
		{"single quotes", `{'translation': 'Repaired'}`, "Repaired", false},
		{"empty", `{"translation": ""}`, "", true},
		{"not json at all", `sure, here is the translation`, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseTranslation(tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseTranslation failed: %v", err)
			}
			if got != tc.want {
				t.Errorf("translation = %q, want %q", got, tc.want)
			}
		})
	}
}
