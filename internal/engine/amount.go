package engine

import (
	"regexp"
	"strings"

	"khata/internal/core"
)

// amountRule pairs a named pattern with its compiled expression. Rules are
// evaluated in slice order and the first rule that matches anywhere in the
// text wins, so an explicit currency marker always beats an incidental bare
// number appearing earlier in the sentence.
type amountRule struct {
	name string
	re   *regexp.Regexp
}

// number is digits with optional thousands separators and an optional
// two-decimal fraction.
const number = `([\d,]+(?:\.\d{2})?)`

var amountRules = []amountRule{
	{name: "symbol_prefix", re: regexp.MustCompile(`₹\s*` + number)},
	{name: "rs_prefix", re: regexp.MustCompile(`rs\.?\s*` + number)},
	{name: "inr_prefix", re: regexp.MustCompile(`inr\s*` + number)},
	{name: "currency_suffix", re: regexp.MustCompile(number + `\s*(?:rs|rupees|inr|₹)`)},
	{name: "bare_number", re: regexp.MustCompile(`\b` + number + `\b`)},
}

// ExtractAmount finds a monetary value inside free text. Matching is
// case-insensitive. The second return value is false when no rule matches.
func ExtractAmount(text string) (core.Money, bool) {
	lower := strings.ToLower(text)
	for _, rule := range amountRules {
		m := rule.re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		raw := strings.ReplaceAll(m[1], ",", "")
		paise, err := core.ParseDecimalToPaise(raw)
		if err != nil {
			// Matched fragment that is not a number after all (e.g. a lone
			// separator); fall through to the next rule.
			continue
		}
		return core.Money{Paise: paise}, true
	}
	return core.Money{}, false
}
