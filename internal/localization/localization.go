package localization

import (
	"embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed translations/*.yaml
var translationsFS embed.FS

// Languages shipped with the binary.
var Languages = []string{"ru", "en"}

type Service struct {
	translations map[string]map[string]interface{}
	defaultLang  string
}

// NewService loads the embedded catalogs. Unknown languages fall back to defaultLang.
func NewService(defaultLang string) (*Service, error) {
	s := &Service{
		translations: make(map[string]map[string]interface{}),
		defaultLang:  defaultLang,
	}

	for _, lang := range Languages {
		data, err := translationsFS.ReadFile(fmt.Sprintf("translations/%s.yaml", lang))
		if err != nil {
			return nil, fmt.Errorf("read %s translations: %w", lang, err)
		}

		var translations map[string]interface{}
		if err := yaml.Unmarshal(data, &translations); err != nil {
			return nil, fmt.Errorf("parse %s translations: %w", lang, err)
		}

		s.translations[lang] = translations
	}

	if _, ok := s.translations[defaultLang]; !ok {
		return nil, fmt.Errorf("default language %q is not available", defaultLang)
	}

	return s, nil
}

// Get retrieves a translation by key for the given language
// Key format: "section.subsection.key" or "section.key"
// Params can contain placeholders like {{ticket}}, {{company}}, etc.
// A missing key returns the key itself.
func (s *Service) Get(lang, key string, params map[string]interface{}) string {
	langTranslations, ok := s.translations[lang]
	if !ok {
		langTranslations = s.translations[s.defaultLang]
	}

	text, ok := lookup(langTranslations, key)
	if !ok && lang != s.defaultLang {
		text, ok = lookup(s.translations[s.defaultLang], key)
	}
	if !ok {
		return key
	}

	return s.replacePlaceholders(text, params)
}

func lookup(translations map[string]interface{}, key string) (string, bool) {
	var current interface{} = translations
	for _, part := range strings.Split(key, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return "", false
		}
		current = m[part]
	}

	text, ok := current.(string)
	return text, ok
}

func (s *Service) replacePlaceholders(text string, params map[string]interface{}) string {
	if params == nil {
		return text
	}

	result := text
	for key, value := range params {
		placeholder := fmt.Sprintf("{{%s}}", key)
		result = strings.ReplaceAll(result, placeholder, fmt.Sprint(value))
	}

	return result
}
