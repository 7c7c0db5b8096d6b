// Package locale persists the interface language preference
package locale

import (
	"context"
	"errors"
	"fmt"

	"github.com/findosh/agriconnect/internal/storage"
	"go.uber.org/zap"
)

// KeyLanguage is the storage key holding the language code
const KeyLanguage = "agriculture-connect-language"

// Language is a supported UI language code
type Language string

const (
	Hebrew  Language = "he"
	Arabic  Language = "ar"
	English Language = "en"
	Sinhala Language = "si"
	Tamil   Language = "ta"

	Default = Hebrew
)

var ErrUnsupportedLanguage = errors.New("unsupported language")

var names = map[Language]string{
	Hebrew:  "עברית",
	Arabic:  "العربية",
	English: "English",
	Sinhala: "සිංහල",
	Tamil:   "தமிழ்",
}

// Available lists the supported languages in display order
func Available() []Language {
	return []Language{Hebrew, Arabic, English, Sinhala, Tamil}
}

// Name returns the native name of a language
func (l Language) Name() string {
	return names[l]
}

// Supported reports whether l is one of the available languages
func (l Language) Supported() bool {
	_, ok := names[l]
	return ok
}

// RTL reports whether the language is written right to left
func (l Language) RTL() bool {
	return l == Hebrew || l == Arabic
}

// Preference reads and writes the stored language
type Preference struct {
	store  storage.Store
	logger *zap.Logger
}

// NewPreference creates a preference backed by store
func NewPreference(store storage.Store, logger *zap.Logger) *Preference {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Preference{store: store, logger: logger}
}

// Get returns the stored language, or Default when unset or unsupported
func (p *Preference) Get(ctx context.Context) Language {
	raw, ok, err := p.store.Get(ctx, KeyLanguage)
	if err != nil {
		p.logger.Warn("failed to read language", zap.Error(err))
		return Default
	}
	if lang := Language(raw); ok && lang.Supported() {
		return lang
	}
	return Default
}

// Set stores lang
func (p *Preference) Set(ctx context.Context, lang Language) error {
	if !lang.Supported() {
		return fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}
	return p.store.Set(ctx, KeyLanguage, string(lang))
}
