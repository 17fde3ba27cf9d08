package translation

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/jonesrussell/market-insights/internal/domain"
)

var qualityRules = []string{
	"Preserve the meaning, tone and register of the source text.",
	"Keep numbers, currencies, percentages, dates and units exactly as written.",
	"Do not translate company names, brand names, product names or ticker symbols.",
	"Use the standard industry terminology of the target market.",
	"Keep any markup, line breaks and placeholders unchanged.",
	"Return only the translation, without quotes, notes or explanations.",
}

// FieldGuidance returns the field-specific instruction for f.
func FieldGuidance(f domain.Field) (string, error) {
	switch f {
	case domain.FieldTitle:
		return "This is a report or article title. Keep it concise and compelling, and keep key terms searchable.", nil
	case domain.FieldName:
		return "This is a category name shown in navigation. Use a short, natural noun phrase.", nil
	case domain.FieldDescription:
		return "This is a descriptive paragraph. Translate fully and keep the professional tone.", nil
	case domain.FieldSummary:
		return "This is an executive summary. Keep it crisp and keep every figure and finding.", nil
	case domain.FieldKeywords:
		return "This is a comma-separated keyword list. Translate each keyword and keep the comma separation.", nil
	case domain.FieldMetaTitle:
		return "This is an SEO page title. Stay under 60 characters where possible.", nil
	case domain.FieldMetaDescription:
		return "This is an SEO meta description. Stay under 160 characters where possible.", nil
	case domain.FieldContent:
		return "This is long-form body content. Translate every paragraph and keep headings and formatting.", nil
	}
	return "", fmt.Errorf("%w: no guidance for field %q", domain.ErrUnsupportedField, f)
}

// LocaleName returns the English display name of a locale code, or the
// code itself when it cannot be parsed.
func LocaleName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return code
}

// BuildSystemPrompt renders the template and appends the quality rules
// and guidance for the field.
func BuildSystemPrompt(template, sourceLocale, targetLocale string, field domain.Field) (string, error) {
	guidance, err := FieldGuidance(field)
	if err != nil {
		return "", err
	}

	source := LocaleName(sourceLocale)
	target := LocaleName(targetLocale)

	var b strings.Builder
	b.WriteString(strings.NewReplacer(
		"{{source_locale}}", source,
		"{{target_locale}}", target,
	).Replace(template))

	b.WriteString("\n\nTranslation rules:\n")
	for _, rule := range qualityRules {
		b.WriteString("- ")
		b.WriteString(rule)
		b.WriteByte('\n')
	}

	fmt.Fprintf(&b, "\nField guidance (%s): %s\n", field, guidance)
	fmt.Fprintf(&b, "\nSource language: %s (%s)\nTarget language: %s (%s)", source, sourceLocale, target, targetLocale)
	return b.String(), nil
}
