// Package i18n resolves localized bot texts from YAML catalogs embedded in the binary.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"maps"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var embedded embed.FS

// Translator resolves localized strings using dot-separated keys.
type Translator interface {
	T(key string) string
	// Format resolves key and substitutes {{.Name}} placeholders from vars.
	Format(key string, vars map[string]string) string
	Lang() string
}

// Manager stores all available translations.
type Manager struct {
	translations map[string]map[string]string
	defaultLang  string
}

// Load loads the embedded catalogs.
func Load(defaultLang string) (*Manager, error) {
	sub, err := fs.Sub(embedded, "locales")
	if err != nil {
		return nil, fmt.Errorf("i18n: open embedded locales: %w", err)
	}
	return LoadFS(sub, defaultLang)
}

// LoadFS loads translations from the YAML files at the root of fsys.
func LoadFS(fsys fs.FS, defaultLang string) (*Manager, error) {
	catalog, err := parseFS(fsys)
	if err != nil {
		return nil, err
	}

	if defaultLang == "" {
		defaultLang = "ru"
	}

	if _, ok := catalog[defaultLang]; !ok {
		return nil, fmt.Errorf("i18n: default language %q is missing", defaultLang)
	}

	return &Manager{translations: catalog, defaultLang: defaultLang}, nil
}

// Translator returns a translator for the requested language.
func (m *Manager) Translator(lang string) Translator {
	if m == nil {
		return translator{}
	}

	norm := strings.ToLower(strings.TrimSpace(lang))
	if norm == "" || m.translations[norm] == nil {
		norm = m.defaultLang
	}

	return translator{
		lang:         norm,
		fallback:     m.defaultLang,
		translations: m.translations,
	}
}

// Default returns the translator of the default language.
func (m *Manager) Default() Translator {
	if m == nil {
		return translator{}
	}
	return m.Translator(m.defaultLang)
}

// All returns the value of key in every loaded language, sorted by language code.
// Menu buttons are matched against all of them.
func (m *Manager) All(key string) []string {
	langs := m.Languages()
	out := make([]string, 0, len(langs))
	for _, lang := range langs {
		out = append(out, m.Translator(lang).T(key))
	}
	return out
}

// Languages returns all loaded languages.
func (m *Manager) Languages() []string {
	if m == nil {
		return nil
	}

	languages := make([]string, 0, len(m.translations))
	for lang := range m.translations {
		languages = append(languages, lang)
	}
	sort.Strings(languages)
	return languages
}

type translator struct {
	lang         string
	fallback     string
	translations map[string]map[string]string
}

func (t translator) Lang() string {
	return t.lang
}

// T returns the text of key in the translator's language, then the default language, then key itself.
func (t translator) T(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	for _, lang := range [...]string{t.lang, t.fallback} {
		if value, ok := t.translations[lang][key]; ok && value != "" {
			return value
		}
	}
	return key
}

func (t translator) Format(key string, vars map[string]string) string {
	text := t.T(key)
	if len(vars) == 0 {
		return text
	}

	pairs := make([]string, 0, len(vars)*2)
	for name, value := range vars {
		pairs = append(pairs, "{{."+name+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// parseFS merges every *.yaml and *.yml file at the root of fsys. Later files override earlier keys.
func parseFS(fsys fs.FS) (map[string]map[string]string, error) {
	var names []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := fs.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("i18n: glob %s: %w", pattern, err)
		}
		names = append(names, matches...)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("i18n: no yaml files found")
	}
	sort.Strings(names)

	catalog := make(map[string]map[string]string)
	for _, name := range names {
		file, err := parseFile(fsys, name)
		if err != nil {
			return nil, err
		}
		for lang, texts := range file {
			if catalog[lang] == nil {
				catalog[lang] = make(map[string]string, len(texts))
			}
			maps.Copy(catalog[lang], texts)
		}
	}
	return catalog, nil
}

// parseFile reads one catalog. The top-level keys are language codes, nested mappings become dotted keys.
func parseFile(fsys fs.FS, name string) (map[string]map[string]string, error) {
	data, err := fs.ReadFile(fsys, path.Clean(name))
	if err != nil {
		return nil, fmt.Errorf("i18n: read file %s: %w", name, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("i18n: parse file %s: %w", name, err)
	}

	catalog := make(map[string]map[string]string)
	if len(doc.Content) == 0 {
		return catalog, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("i18n: %s:%d: top level must map languages to texts", name, root.Line)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		lang := strings.ToLower(strings.TrimSpace(root.Content[i].Value))
		if lang == "" {
			continue
		}
		texts := make(map[string]string)
		if err := flatten(name, "", root.Content[i+1], texts); err != nil {
			return nil, err
		}
		if len(texts) > 0 {
			catalog[lang] = texts
		}
	}
	return catalog, nil
}

func flatten(file, prefix string, node *yaml.Node, out map[string]string) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if prefix != "" {
			out[prefix] = node.Value
		}
		return nil
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i].Value
			if key == "" {
				continue
			}
			if prefix != "" {
				key = prefix + "." + key
			}
			if err := flatten(file, key, node.Content[i+1], out); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("i18n: %s:%d: %s must be a string or a mapping", file, node.Line, prefix)
	}
}
