package domain

import "strings"

// Language selects the locale of generated text
type Language string

const (
	LangRussian Language = "ru"
	LangEnglish Language = "en"
	LangKazakh  Language = "kk"
)

// DefaultLanguage is used when a request names none or an unsupported one
const DefaultLanguage = LangRussian

// ParseLanguage normalizes a language code such as "EN" or "kk-KZ"
func ParseLanguage(code string) Language {
	code = strings.ToLower(strings.TrimSpace(code))
	if i := strings.IndexAny(code, "-_"); i > 0 {
		code = code[:i]
	}
	switch Language(code) {
	case LangRussian, LangEnglish, LangKazakh:
		return Language(code)
	case "kz":
		return LangKazakh
	}
	return DefaultLanguage
}
