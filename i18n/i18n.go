// Package i18n renders the message keys carried by mailAuth errors in the
// caller's language. English and Simplified Chinese are bundled; English is
// the fallback.
package i18n

import (
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

var supported = []language.Tag{language.English, language.SimplifiedChinese}

// Translator resolves request languages and renders message keys.
type Translator struct {
	catalog *catalog.Builder
	matcher language.Matcher
}

// New builds a Translator over the bundled messages.
func New() *Translator {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, text := range english {
		_ = b.SetString(language.English, key, text)
	}
	for key, text := range chinese {
		_ = b.SetString(language.SimplifiedChinese, key, text)
	}
	return &Translator{
		catalog: b,
		matcher: language.NewMatcher(supported),
	}
}

// Match picks the supported language that best fits an Accept-Language
// header. Unparseable or empty headers yield English.
func (t *Translator) Match(acceptLanguage string) language.Tag {
	acceptLanguage = strings.TrimSpace(acceptLanguage)
	if acceptLanguage == "" {
		return language.English
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return language.English
	}
	_, idx, _ := t.matcher.Match(tags...)
	return supported[idx]
}

// Message renders key in tag. Unknown keys are returned unchanged.
func (t *Translator) Message(tag language.Tag, key string) string {
	p := message.NewPrinter(tag, message.Catalog(t.catalog))
	return p.Sprintf(key)
}

// Keys lists every message key with an English rendering, sorted.
func Keys() []string {
	keys := make([]string, 0, len(english))
	for k := range english {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
