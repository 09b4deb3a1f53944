package ocr

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/language"
)

var ErrNoLanguages = errors.New("at least one language has to be specified")

type ErrUnsupportedLanguage struct {
	Code string
	// Closest supported code. Empty if nothing is close enough
	Suggestion string
}

func (e *ErrUnsupportedLanguage) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("language code is not supported: %q, did you mean %q?", e.Code, e.Suggestion)
	}
	return fmt.Sprintf("language code is not supported: %q", e.Code)
}

// Language codes accepted on initialization. Same codes as EasyOCR uses.
var supportedLanguageCodes = []string{
	"abq", "ady", "af", "ang", "ar", "as", "ava", "az", "be", "bg", "bh", "bho", "bn", "bs",
	"ch_sim", "ch_tra", "che", "cs", "cy", "da", "dar", "de", "en", "es", "et", "fa", "fr",
	"ga", "gom", "hi", "hr", "hu", "id", "inh", "is", "it", "ja", "kbd", "kn", "ko", "ku",
	"la", "lbe", "lez", "lt", "lv", "mah", "mai", "mi", "mn", "mr", "ms", "mt", "ne", "new",
	"nl", "no", "oc", "pi", "pl", "pt", "ro", "ru", "rs_cyrillic", "rs_latin", "sck", "sk",
	"sl", "sq", "sv", "sw", "ta", "tab", "te", "th", "tjk", "tl", "tr", "ug", "uk", "ur",
	"uz", "vi",
}

// Codes where tesseract model name differs from ISO 639-3 code
var tesseractModelOverrides = map[string]string{
	"ch_sim":      "chi_sim",
	"ch_tra":      "chi_tra",
	"rs_cyrillic": "srp",
	"rs_latin":    "srp_latn",
	"ku":          "kmr",
	"tjk":         "tgk",
	"no":          "nor",
	"ms":          "msa",
}

// code -> tesseract model name. Tesseract model names map to themselves.
var tesseractModelByCode = buildTesseractModelTable()

func buildTesseractModelTable() map[string]string {
	table := make(map[string]string, len(supportedLanguageCodes)*2)
	for _, code := range supportedLanguageCodes {
		model, ok := tesseractModelOverrides[code]
		if !ok {
			model = code
			if base, err := language.ParseBase(code); err == nil {
				model = base.ISO3()
			}
		}
		table[code] = model
	}
	for _, code := range supportedLanguageCodes {
		if model := table[code]; table[model] == "" {
			table[model] = model
		}
	}
	return table
}

// Converts language codes into tesseract model names. Order is preserved and duplicates are dropped.
func ResolveLanguages(codes []string) ([]string, error) {
	if len(codes) == 0 {
		return nil, ErrNoLanguages
	}

	models := make([]string, 0, len(codes))
	for _, code := range codes {
		normalized := strings.ToLower(strings.TrimSpace(code))
		model, ok := tesseractModelByCode[normalized]
		if !ok {
			return nil, &ErrUnsupportedLanguage{Code: code, Suggestion: suggestLanguage(normalized)}
		}
		if !slices.Contains(models, model) {
			models = append(models, model)
		}
	}
	return models, nil
}

func suggestLanguage(code string) string {
	if code == "" {
		return ""
	}

	candidates := make([]string, 0, len(tesseractModelByCode))
	for candidate := range tesseractModelByCode {
		candidates = append(candidates, candidate)
	}
	slices.Sort(candidates)

	best := ""
	bestDistance := 3 // anything further is not a typo
	for _, candidate := range candidates {
		if d := levenshtein.ComputeDistance(code, candidate); d < bestDistance {
			best, bestDistance = candidate, d
		}
	}
	return best
}
