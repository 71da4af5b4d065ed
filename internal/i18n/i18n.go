// Package i18n provides the localized messages returned by the HTTP endpoints.
// Translations are embedded YAML files loaded into a go-i18n bundle.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Message IDs
const (
	SudoModeTimeout  = "SudoModeController.TIMEOUT"
	SudoModeInvalid  = "SudoModeController.INVALID"
	SudoModeError    = "SudoModeController.ERROR"
	SudoModeRequired = "SudoMode.REQUIRED"
	InvalidLogin     = "Auth.INVALID_CREDENTIALS"
	LoginRequired    = "Auth.REQUIRED"
	MemberForbidden  = "Member.FORBIDDEN"
	MemberNotFound   = "Member.NOT_FOUND"
	BadRequest       = "Request.INVALID"
	InternalError    = "Request.ERROR"
)

//go:embed locales/*.yaml
var localeFS embed.FS

// Translator localizes message IDs for a preferred language list
type Translator struct {
	bundle   *i18n.Bundle
	fallback string
}

// New loads the embedded locales. fallback is used when a request carries no language preference.
func New(fallback string) (*Translator, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)

	files, err := fs.ReadDir(localeFS, "locales")
	if err != nil {
		return nil, fmt.Errorf("failed to read locales: %w", err)
	}
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + f.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read locale %s: %w", f.Name(), err)
		}
		if _, err := bundle.ParseMessageFileBytes(data, f.Name()); err != nil {
			return nil, fmt.Errorf("failed to parse locale %s: %w", f.Name(), err)
		}
	}

	if fallback == "" {
		fallback = language.English.String()
	}
	return &Translator{bundle: bundle, fallback: fallback}, nil
}

// Languages returns the tags of all loaded locales
func (t *Translator) Languages() []string {
	tags := t.bundle.LanguageTags()
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		out = append(out, tag.String())
	}
	return out
}

// T translates messageID for the given preferences, typically an Accept-Language header value.
// Unknown IDs are returned as is.
func (t *Translator) T(messageID string, langs ...string) string {
	localizer := i18n.NewLocalizer(t.bundle, append(langs, t.fallback)...)
	msg, err := localizer.Localize(&i18n.LocalizeConfig{MessageID: messageID})
	if err != nil {
		return messageID
	}
	return msg
}
