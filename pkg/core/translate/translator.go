// Package translate defines the translation port used for narrative text
// and filer names. Implementations never fail the pipeline: on internal
// trouble they return a clearly-marked passthrough of the input.
package translate

import "context"

// Translator is the port for Japanese-to-English text translation.
type Translator interface {
	// Translate returns the English rendition of text. It must not fail:
	// implementations return a marked passthrough on any internal error.
	Translate(ctx context.Context, text string) string
}

// Bypass is the no-op translator used when translation is disabled.
type Bypass struct{}

func (Bypass) Translate(_ context.Context, text string) string {
	return "translation disabled: " + text
}

// ForMode returns the Gemini-backed translator when enabled, otherwise
// the bypass.
func ForMode(enabled bool) Translator {
	if enabled {
		return NewGemini("")
	}
	return Bypass{}
}
