// Copyright (c) 2026 Mike Mehl
// nerves-hub-cli - NervesHub user identity management
// This source code is licensed under the MIT license found in the LICENSE file.

// Package i18n provides internationalization support for the CLI.
// It uses the go-i18n library to load and manage translation files, allowing
// every user-facing message to be displayed in multiple languages.
package i18n

import (
	"fmt"
	"io/fs"
	"strings"

	"embed"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// localeFS embeds the YAML translation files from the 'locales' directory
// into the application binary.
//
//go:embed locales/*.yaml
var localeFS embed.FS

// bundle stores all the loaded translation messages from the locale files.
var bundle *i18n.Bundle

// localizer is used to translate messages into a specific language.
var localizer *i18n.Localizer

// currentLang is the active language tag passed to Init or SetLang.
var currentLang = "en"

// localeNames maps locale tags to their human-readable display names.
var localeNames = map[string]string{
	"en": "English",
	"de": "Deutsch",
}

// Init initializes the i18n bundle and sets up the localizer for a specific
// language. It parses all embedded YAML files from the 'locales' directory.
func Init(lang string) {
	bundle = i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)

	files, _ := fs.ReadDir(localeFS, "locales")
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		data, _ := localeFS.ReadFile("locales/" + f.Name())
		bundle.ParseMessageFileBytes(data, f.Name())
	}

	if lang == "" {
		lang = "en"
	}
	currentLang = lang
	localizer = i18n.NewLocalizer(bundle, lang)
}

// T translates a message by its ID. Extra arguments are applied with
// fmt.Sprintf to the localized string, so messages may carry printf verbs.
// If the i18n system has not been initialized, it defaults to English.
// If a translation for the given ID is not found, the ID itself is returned.
func T(messageID string, args ...interface{}) string {
	if localizer == nil {
		Init("en")
	}
	msg, err := localizer.Localize(&i18n.LocalizeConfig{MessageID: messageID})
	if err != nil {
		// go-i18n returns an error for unknown IDs; fall back to the ID so
		// a missing translation never hides the message entirely.
		return messageID
	}
	if len(args) > 0 {
		return fmt.Sprintf(msg, args...)
	}
	return msg
}

// SetLang changes the active language of the localizer.
func SetLang(lang string) {
	Init(lang)
}

// GetLang returns the active language tag.
func GetLang() string {
	return currentLang
}

// GetAvailableLocales returns the locale tags found in the embedded files
// mapped to their display names.
func GetAvailableLocales() map[string]string {
	out := map[string]string{}
	files, _ := fs.ReadDir(localeFS, "locales")
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		tag := strings.TrimSuffix(f.Name(), ".yaml")
		name, ok := localeNames[tag]
		if !ok {
			name = tag
		}
		out[tag] = name
	}
	return out
}
