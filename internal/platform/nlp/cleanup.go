package nlp

import (
	"regexp"
	"strings"
	"unicode"
)

// Dictation software habitually inserts " x " where the speaker paused
// between sentences. Genuine uses of x, wound dimensions ("4 x 3 x 0.5 cm")
// and frequencies ("TID x 7 days"), must survive the repair, so the rules
// only fire next to words.
var (
	sentenceStarters = `Apply|Cleaned|Continue|Change|Heal|To|No|Education|Patient|Observed|Wound|Dressings|Initiate|Encourage`

	xBeforeStarter = regexp.MustCompile(`[.\s]*\s+x\s+((?i:` + sentenceStarters + `)|[A-Z])`)
	xBetweenWords  = regexp.MustCompile(`([a-zA-Z]{3,})\s+x\s+([a-zA-Z]{3,})`)
	xTrailing      = regexp.MustCompile(`\s+x\s*$`)
)

// termFixes corrects recurring speech-recognition mishearings of clinical
// vocabulary. Order matters: later entries rewrite the output of earlier
// ones.
var termFixes = []struct {
	from *regexp.Regexp
	to   string
}{
	{ci("calcium alkenate"), "calcium alginate"},
	{ci("alkenate"), "alginate"},
	{ci("protecting wood"), "protecting boot"},
	{ci("protecting wedge"), "positioning wedge"},
	{ci("comparison wrap"), "compression wrap"},
	{ci("compilation therapy"), "compression therapy"},
	{ci("dry quartz"), "dry gauze"},
	{ci("boarded foam"), "bordered foam"},
	{ci("boarder foam"), "bordered foam"},
	{ci("mild honey"), "Medihoney"},
	{ci("normal saline"), "Normal Saline"},
	{ci("rejuvenation"), "elevation"},
	{ci("Education 3 x Forced"), "Education reinforced"},
	{ci("Education 3 x reinforced"), "Education reinforced"},
	{ci("Education reinforced"), "Education was reinforced"},
}

func ci(literal string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + regexp.QuoteMeta(literal))
}

// CleanNarrative repairs narrative text coming out of transcription:
// clinical term mishearings, stray " x " sentence separators, doubled
// periods and sentence casing. The absence sentinel passes through
// untouched.
func CleanNarrative(text string) string {
	if text == "" || text == "-" {
		return text
	}
	res := strings.TrimSpace(text)

	for _, fix := range termFixes {
		res = fix.from.ReplaceAllString(res, fix.to)
	}

	res = xBeforeStarter.ReplaceAllStringFunc(res, func(match string) string {
		sub := xBeforeStarter.FindStringSubmatch(match)
		return ". " + capitalizeFirst(sub[1])
	})
	res = xBetweenWords.ReplaceAllString(res, "$1. $2")
	res = xTrailing.ReplaceAllString(res, ".")

	res = strings.ReplaceAll(res, "..", ".")
	res = strings.ReplaceAll(res, ". .", ".")

	return capitalizeFirst(strings.TrimSpace(res))
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	if unicode.IsLower(runes[0]) {
		runes[0] = unicode.ToUpper(runes[0])
		return string(runes)
	}
	return s
}
