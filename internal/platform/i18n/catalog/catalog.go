// Package catalog loads the embedded message catalogs and registers them with
// golang.org/x/text/message.
package catalog

import (
	"bufio"
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// BaseLocale is the canonical source locale for catalogs.
const BaseLocale = "en-US"

// File is one parsed locales/<locale>/<namespace>.yaml catalog file.
type File struct {
	Locale    string
	Namespace string
	Messages  map[string]string
}

// Bundle holds every loaded locale keyed by locale then namespace.
type Bundle struct {
	namespaces map[string]map[string]map[string]string
}

//go:embed locales/*/*.yaml
var embeddedFS embed.FS

var defaultBundle = mustLoadAndRegister()

// Default returns the process-wide embedded bundle.
func Default() *Bundle {
	return defaultBundle
}

// LoadEmbedded loads the catalogs embedded in this package.
func LoadEmbedded() (*Bundle, error) {
	return LoadFromFS(embeddedFS)
}

// LoadFromFS loads catalog files matching locales/*/*.yaml from catalogFS.
func LoadFromFS(catalogFS fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(catalogFS, "locales/*/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	sort.Strings(paths)

	bundle := &Bundle{namespaces: map[string]map[string]map[string]string{}}
	for _, p := range paths {
		data, err := fs.ReadFile(catalogFS, p)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", p, err)
		}
		file, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", p, err)
		}
		if err := bundle.add(p, file); err != nil {
			return nil, err
		}
	}
	if !bundle.HasLocale(BaseLocale) {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}
	return bundle, nil
}

func (b *Bundle) add(p string, file File) error {
	wantLocale := path.Base(path.Dir(p))
	wantNamespace := strings.TrimSuffix(path.Base(p), path.Ext(p))
	if file.Locale != wantLocale {
		return fmt.Errorf("catalog %s: locale %q must match path locale %q", p, file.Locale, wantLocale)
	}
	if file.Namespace != wantNamespace {
		return fmt.Errorf("catalog %s: namespace %q must match filename %q", p, file.Namespace, wantNamespace)
	}

	locale := b.namespaces[file.Locale]
	if locale == nil {
		locale = map[string]map[string]string{}
		b.namespaces[file.Locale] = locale
	}
	for namespace, messages := range locale {
		for key := range file.Messages {
			if _, dup := messages[key]; dup {
				return fmt.Errorf("catalog %s: key %q already defined in namespace %q", p, key, namespace)
			}
		}
	}
	locale[file.Namespace] = file.Messages
	return nil
}

// Register installs every message with x/text/message. Regional locales are
// also registered under their base language so "pt" resolves to "pt-BR".
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
		if base, confidence := tag.Base(); confidence != language.No {
			if baseTag := language.Make(base.String()); baseTag != tag {
				tags = append(tags, baseTag)
			}
		}
		for key, value := range b.Messages(locale) {
			for _, t := range tags {
				if err := message.SetString(t, key, value); err != nil {
					return fmt.Errorf("register %s %q: %w", t, key, err)
				}
			}
		}
	}
	return nil
}

// HasLocale reports whether locale was loaded.
func (b *Bundle) HasLocale(locale string) bool {
	if b == nil {
		return false
	}
	_, ok := b.namespaces[strings.TrimSpace(locale)]
	return ok
}

// Locales returns the loaded locale identifiers in sorted order.
func (b *Bundle) Locales() []string {
	if b == nil {
		return nil
	}
	out := make([]string, 0, len(b.namespaces))
	for locale := range b.namespaces {
		out = append(out, locale)
	}
	sort.Strings(out)
	return out
}

// Messages returns a copy of every message for locale across namespaces.
func (b *Bundle) Messages(locale string) map[string]string {
	out := map[string]string{}
	if b == nil {
		return out
	}
	for _, messages := range b.namespaces[strings.TrimSpace(locale)] {
		for key, value := range messages {
			out[key] = value
		}
	}
	return out
}

// Message returns one message with base-locale fallback.
func (b *Bundle) Message(locale, key string) (string, bool) {
	if b == nil {
		return "", false
	}
	key = strings.TrimSpace(key)
	for _, candidate := range []string{strings.TrimSpace(locale), BaseLocale} {
		for _, messages := range b.namespaces[candidate] {
			if value, ok := messages[key]; ok {
				return value, true
			}
		}
	}
	return "", false
}

// NamespaceMessages returns a copy of one namespace together with the locale
// that satisfied the lookup, falling back to BaseLocale.
func (b *Bundle) NamespaceMessages(locale, namespace string) (string, map[string]string) {
	locale = strings.TrimSpace(locale)
	namespace = strings.TrimSpace(namespace)
	if b == nil {
		return BaseLocale, map[string]string{}
	}
	if messages, ok := b.namespaces[locale][namespace]; ok && len(messages) > 0 {
		return locale, copyMap(messages)
	}
	return BaseLocale, copyMap(b.namespaces[BaseLocale][namespace])
}

func copyMap(source map[string]string) map[string]string {
	out := make(map[string]string, len(source))
	for key, value := range source {
		out[key] = value
	}
	return out
}

func mustLoadAndRegister() *Bundle {
	bundle, err := LoadEmbedded()
	if err != nil {
		panic(err)
	}
	if err := bundle.Register(); err != nil {
		panic(err)
	}
	return bundle
}

// Parse reads the small YAML subset used by catalog files: quoted locale and
// namespace scalars followed by a messages map of quoted keys and values.
func Parse(data []byte) (File, error) {
	file := File{Messages: map[string]string{}}
	inMessages := false

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var err error
		switch {
		case strings.HasPrefix(line, "locale:"):
			file.Locale, err = strconv.Unquote(strings.TrimSpace(strings.TrimPrefix(line, "locale:")))
		case strings.HasPrefix(line, "namespace:"):
			file.Namespace, err = strconv.Unquote(strings.TrimSpace(strings.TrimPrefix(line, "namespace:")))
		case line == "messages:":
			inMessages = true
		case inMessages:
			var key, value string
			key, value, err = parseEntry(line)
			if err == nil {
				if strings.TrimSpace(key) == "" {
					err = fmt.Errorf("blank key")
				} else if _, dup := file.Messages[key]; dup {
					err = fmt.Errorf("duplicate key %q", key)
				}
			}
			if err == nil {
				file.Messages[key] = value
			}
		default:
			err = fmt.Errorf("unexpected content")
		}
		if err != nil {
			return File{}, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return File{}, err
	}

	switch {
	case file.Locale == "":
		return File{}, fmt.Errorf("missing locale")
	case file.Namespace == "":
		return File{}, fmt.Errorf("missing namespace")
	case len(file.Messages) == 0:
		return File{}, fmt.Errorf("missing messages")
	}
	return file, nil
}

func parseEntry(line string) (string, string, error) {
	keyToken, rest, err := cutQuoted(line)
	if err != nil {
		return "", "", err
	}
	rest, ok := strings.CutPrefix(strings.TrimSpace(rest), ":")
	if !ok {
		return "", "", fmt.Errorf("missing ':' separator")
	}
	key, err := strconv.Unquote(keyToken)
	if err != nil {
		return "", "", fmt.Errorf("unquote key: %w", err)
	}
	value, err := strconv.Unquote(strings.TrimSpace(rest))
	if err != nil {
		return "", "", fmt.Errorf("unquote value: %w", err)
	}
	return key, value, nil
}

// cutQuoted splits a leading double-quoted token from the rest of line.
func cutQuoted(line string) (string, string, error) {
	if !strings.HasPrefix(line, `"`) {
		return "", "", fmt.Errorf("expected quoted key")
	}
	for i := 1; i < len(line); i++ {
		switch line[i] {
		case '\\':
			i++
		case '"':
			return line[:i+1], line[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("unterminated quoted key")
}
