// Package catalog loads the embedded locale message catalogs and
// registers them with x/text. Catalog files are a small quoted-YAML
// subset: a locale header, a namespace header, and a flat message map.
package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// BaseLocale is the canonical source locale; every other locale falls
// back to it.
const BaseLocale = "en-US"

//go:embed locales/*/*.yaml
var embeddedFS embed.FS

var defaultBundle = mustLoadEmbedded()

type catalogFile struct {
	locale    string
	namespace string
	messages  map[string]string
}

type localeCatalog struct {
	namespaces map[string]map[string]string
	messages   map[string]string
}

// Bundle holds every loaded locale catalog.
type Bundle struct {
	locales map[string]*localeCatalog
}

// Default returns the process-wide embedded bundle.
func Default() *Bundle {
	return defaultBundle
}

// LoadEmbedded loads the catalogs embedded in this package.
func LoadEmbedded() (*Bundle, error) {
	return LoadFromFS(embeddedFS)
}

// LoadFromFS loads catalogs from locales/<locale>/<namespace>.yaml
// files in catalogFS. Keys share one flat space per locale, so a key
// may appear in only one namespace.
func LoadFromFS(catalogFS fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(catalogFS, "locales/*/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	sort.Strings(paths)

	bundle := &Bundle{locales: map[string]*localeCatalog{}}
	for _, path := range paths {
		data, err := fs.ReadFile(catalogFS, path)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", path, err)
		}
		file, err := parseCatalogFile(data)
		if err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", path, err)
		}
		if err := bundle.add(path, file); err != nil {
			return nil, err
		}
	}

	if !bundle.HasLocale(BaseLocale) {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}
	return bundle, nil
}

func (b *Bundle) add(path string, file catalogFile) error {
	pathLocale := filepath.Base(filepath.Dir(path))
	pathNamespace := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if file.locale != pathLocale {
		return fmt.Errorf("catalog %s: locale %q does not match directory %q", path, file.locale, pathLocale)
	}
	if file.namespace != pathNamespace {
		return fmt.Errorf("catalog %s: namespace %q does not match filename %q", path, file.namespace, pathNamespace)
	}

	locale, ok := b.locales[file.locale]
	if !ok {
		locale = &localeCatalog{
			namespaces: map[string]map[string]string{},
			messages:   map[string]string{},
		}
		b.locales[file.locale] = locale
	}
	if _, exists := locale.namespaces[file.namespace]; exists {
		return fmt.Errorf("catalog %s: namespace %q already defined for locale %q", path, file.namespace, file.locale)
	}

	namespace := make(map[string]string, len(file.messages))
	for key, value := range file.messages {
		if _, exists := locale.messages[key]; exists {
			return fmt.Errorf("catalog %s: key %q already defined for locale %q", path, key, file.locale)
		}
		locale.messages[key] = value
		namespace[key] = value
	}
	locale.namespaces[file.namespace] = namespace
	return nil
}

// Register publishes every catalog message to x/text/message so
// Printers resolve them. Messages register under the full tag and its
// base language, which lets "ja" requests match "ja-JP" catalogs.
func (b *Bundle) Register() error {
	if b == nil {
		return nil
	}
	for _, locale := range b.Locales() {
		tag, err := language.Parse(locale)
		if err != nil {
			return fmt.Errorf("parse locale tag %q: %w", locale, err)
		}
		tags := []language.Tag{tag}
		if base, _ := tag.Base(); base.String() != "" && base.String() != "und" {
			if baseTag, err := language.Parse(base.String()); err == nil && baseTag != tag {
				tags = append(tags, baseTag)
			}
		}

		messages := b.LocaleMessages(locale)
		keys := make([]string, 0, len(messages))
		for key := range messages {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			for _, registerTag := range tags {
				message.SetString(registerTag, key, messages[key])
			}
		}
	}
	return nil
}

// HasLocale reports whether the locale exists in this bundle.
func (b *Bundle) HasLocale(locale string) bool {
	if b == nil {
		return false
	}
	_, ok := b.locales[strings.TrimSpace(locale)]
	return ok
}

// Locales returns the sorted locale identifiers in this bundle.
func (b *Bundle) Locales() []string {
	if b == nil {
		return nil
	}
	out := make([]string, 0, len(b.locales))
	for locale := range b.locales {
		out = append(out, locale)
	}
	sort.Strings(out)
	return out
}

// LocaleMessages returns a copy of every message for the locale.
func (b *Bundle) LocaleMessages(locale string) map[string]string {
	if b == nil {
		return map[string]string{}
	}
	catalog, ok := b.locales[strings.TrimSpace(locale)]
	if !ok {
		return map[string]string{}
	}
	return copyMap(catalog.messages)
}

// NamespaceMessages returns a copy of one namespace's messages for the
// locale.
func (b *Bundle) NamespaceMessages(locale, namespace string) map[string]string {
	if b == nil {
		return map[string]string{}
	}
	catalog, ok := b.locales[strings.TrimSpace(locale)]
	if !ok {
		return map[string]string{}
	}
	messages, ok := catalog.namespaces[strings.TrimSpace(namespace)]
	if !ok {
		return map[string]string{}
	}
	return copyMap(messages)
}

// NamespaceMessagesWithFallback returns namespace messages for the
// locale, falling back to the base locale, along with the locale that
// satisfied the lookup.
func (b *Bundle) NamespaceMessagesWithFallback(locale, namespace string) (string, map[string]string) {
	requested := strings.TrimSpace(locale)
	if messages := b.NamespaceMessages(requested, namespace); len(messages) > 0 {
		return requested, messages
	}
	return BaseLocale, b.NamespaceMessages(BaseLocale, namespace)
}

func copyMap(source map[string]string) map[string]string {
	out := make(map[string]string, len(source))
	for key, value := range source {
		out[key] = value
	}
	return out
}

func mustLoadEmbedded() *Bundle {
	bundle, err := LoadEmbedded()
	if err != nil {
		panic(err)
	}
	if err := bundle.Register(); err != nil {
		panic(err)
	}
	return bundle
}

func parseCatalogFile(data []byte) (catalogFile, error) {
	out := catalogFile{messages: map[string]string{}}
	inMessages := false

	for _, rawLine := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		switch {
		case strings.HasPrefix(line, "locale:"):
			value, err := unquote(strings.TrimPrefix(line, "locale:"))
			if err != nil {
				return catalogFile{}, fmt.Errorf("parse locale: %w", err)
			}
			out.locale = value
		case strings.HasPrefix(line, "namespace:"):
			value, err := unquote(strings.TrimPrefix(line, "namespace:"))
			if err != nil {
				return catalogFile{}, fmt.Errorf("parse namespace: %w", err)
			}
			out.namespace = value
		case line == "messages:":
			inMessages = true
		default:
			if !inMessages {
				return catalogFile{}, fmt.Errorf("unexpected line %q", line)
			}
			key, value, err := parseMessageLine(line)
			if err != nil {
				return catalogFile{}, fmt.Errorf("parse message %q: %w", line, err)
			}
			out.messages[key] = value
		}
	}

	if out.locale == "" {
		return catalogFile{}, fmt.Errorf("missing locale header")
	}
	if out.namespace == "" {
		return catalogFile{}, fmt.Errorf("missing namespace header")
	}
	if len(out.messages) == 0 {
		return catalogFile{}, fmt.Errorf("no messages defined")
	}
	return out, nil
}

// parseMessageLine splits a `"key": "value"` entry. Both sides are
// quoted so keys and messages may contain colons.
func parseMessageLine(line string) (string, string, error) {
	keyToken, rest, err := scanQuoted(line)
	if err != nil {
		return "", "", err
	}
	key, err := strconv.Unquote(keyToken)
	if err != nil {
		return "", "", fmt.Errorf("unquote key: %w", err)
	}

	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, ":") {
		return "", "", fmt.Errorf("missing ':' separator")
	}
	value, err := unquote(strings.TrimPrefix(rest, ":"))
	if err != nil {
		return "", "", fmt.Errorf("unquote value: %w", err)
	}
	return key, value, nil
}

func unquote(value string) (string, error) {
	return strconv.Unquote(strings.TrimSpace(value))
}

// scanQuoted returns the leading quoted token and the remainder,
// honoring backslash escapes.
func scanQuoted(line string) (string, string, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, `"`) {
		return "", "", fmt.Errorf("expected quoted token")
	}
	escaped := false
	for i := 1; i < len(trimmed); i++ {
		switch {
		case escaped:
			escaped = false
		case trimmed[i] == '\\':
			escaped = true
		case trimmed[i] == '"':
			return trimmed[:i+1], trimmed[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("unterminated quoted token")
}
