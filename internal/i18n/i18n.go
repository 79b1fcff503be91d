// Package i18n resolves user-facing strings from YAML catalogs.
//
// A catalog file maps a language code to a tree of messages:
//
//	en:
//	  gate:
//	    banned: "🚫 You are banned."
//
// Nested keys are addressed with dots ("gate.banned"). Messages may carry
// {name} placeholders filled by Tf.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var locales embed.FS

// Params fills {name} placeholders in a message.
type Params map[string]any

// Translator resolves localized strings using dot-separated keys.
type Translator interface {
	T(key string) string
	Tf(key string, params Params) string
	Lang() string
}

type messages map[string]string

// Manager holds every loaded language.
type Manager struct {
	langs       map[string]messages
	defaultLang string
}

// Load loads the catalogs compiled into the binary.
func Load(defaultLang string) (*Manager, error) {
	return LoadFS(locales, "locales", defaultLang)
}

// LoadFromDir loads catalogs from a directory on disk.
func LoadFromDir(dir, defaultLang string) (*Manager, error) {
	return LoadFS(os.DirFS(dir), ".", defaultLang)
}

// LoadFS loads every .yaml/.yml catalog directly under root. Files for the
// same language are merged; later files win on duplicate keys.
func LoadFS(fsys fs.FS, root, defaultLang string) (*Manager, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("i18n: read dir %s: %w", root, err)
	}

	m := &Manager{langs: make(map[string]messages), defaultLang: normalizeLang(defaultLang)}
	if m.defaultLang == "" {
		m.defaultLang = "en"
	}

	files := 0
	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}
		files++
		if err := m.loadFile(fsys, path.Join(root, entry.Name())); err != nil {
			return nil, err
		}
	}

	if files == 0 {
		return nil, fmt.Errorf("i18n: no yaml files found in %s", root)
	}
	if _, ok := m.langs[m.defaultLang]; !ok {
		return nil, fmt.Errorf("i18n: default language %q is missing", m.defaultLang)
	}

	return m, nil
}

func (m *Manager) loadFile(fsys fs.FS, name string) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("i18n: read file %s: %w", name, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("i18n: parse file %s: %w", name, err)
	}
	if len(doc.Content) == 0 {
		return nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("i18n: %s: top level must map languages to messages", name)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		lang := normalizeLang(root.Content[i].Value)
		if lang == "" {
			continue
		}
		if m.langs[lang] == nil {
			m.langs[lang] = make(messages)
		}
		if err := collect("", root.Content[i+1], m.langs[lang]); err != nil {
			return fmt.Errorf("i18n: %s: %w", name, err)
		}
	}

	return nil
}

// collect flattens a mapping node into dot-separated keys.
func collect(prefix string, node *yaml.Node, out messages) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if prefix == "" {
			return fmt.Errorf("line %d: message without a key", node.Line)
		}
		out[prefix] = node.Value
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := strings.TrimSpace(node.Content[i].Value)
			if key == "" {
				continue
			}
			if prefix != "" {
				key = prefix + "." + key
			}
			if err := collect(key, node.Content[i+1], out); err != nil {
				return err
			}
		}
	case yaml.AliasNode:
		return collect(prefix, node.Alias, out)
	default:
		return fmt.Errorf("line %d: %q must be a string or a mapping", node.Line, prefix)
	}
	return nil
}

// Translator returns a translator for lang, or for the default language when
// lang is unknown.
func (m *Manager) Translator(lang string) Translator {
	if m == nil {
		return translator{}
	}

	norm := normalizeLang(lang)
	if _, ok := m.langs[norm]; !ok {
		norm = m.defaultLang
	}

	return translator{primary: m.langs[norm], fallback: m.langs[m.defaultLang], lang: norm}
}

// Languages returns the loaded language codes in order.
func (m *Manager) Languages() []string {
	if m == nil {
		return nil
	}

	out := make([]string, 0, len(m.langs))
	for lang := range m.langs {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// Missing lists keys present in the default language but absent from lang.
func (m *Manager) Missing(lang string) []string {
	if m == nil {
		return nil
	}

	target := m.langs[normalizeLang(lang)]
	var out []string
	for key := range m.langs[m.defaultLang] {
		if _, ok := target[key]; !ok {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

type translator struct {
	primary  messages
	fallback messages
	lang     string
}

func (t translator) Lang() string {
	return t.lang
}

// T returns the message for key, falling back to the default language and
// finally to the key itself.
func (t translator) T(key string) string {
	key = strings.TrimSpace(key)
	if msg, ok := t.primary[key]; ok {
		return msg
	}
	if msg, ok := t.fallback[key]; ok {
		return msg
	}
	return key
}

// Tf translates key and substitutes {name} placeholders from params.
// Unknown placeholders are left as is.
func (t translator) Tf(key string, params Params) string {
	msg := t.T(key)
	if len(params) == 0 || !strings.Contains(msg, "{") {
		return msg
	}

	pairs := make([]string, 0, len(params)*2)
	for name, value := range params {
		pairs = append(pairs, "{"+name+"}", fmt.Sprint(value))
	}

	return strings.NewReplacer(pairs...).Replace(msg)
}

func normalizeLang(lang string) string {
	return strings.ToLower(strings.TrimSpace(lang))
}

func isYAML(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
