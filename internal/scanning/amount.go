package scanning

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// space also covers \v and Unicode spaces such as NBSP, which OCR output
// often contains.
const space = `[\s\v\p{Zs}]`

// amountPatterns are tried in order and the first one with any match decides.
var amountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)total[\s\v\p{Zs}:]*\$?` + space + `*(\d+[.,]\d{2})`),  // total: $123.45
	regexp.MustCompile(`(?i)amount[\s\v\p{Zs}:]*\$?` + space + `*(\d+[.,]\d{2})`), // amount: $123.45
	regexp.MustCompile(`\$` + space + `*(\d+[.,]\d{2})`),                          // $123.45
	regexp.MustCompile(`(\d+[.,]\d{2})` + space + `*\$`),                          // 123.45$
	regexp.MustCompile(`(?i)sum[\s\v\p{Zs}:]*\$?` + space + `*(\d+[.,]\d{2})`),    // sum: $123.45
	regexp.MustCompile(`(?i)due[\s\v\p{Zs}:]*\$?` + space + `*(\d+[.,]\d{2})`),    // due: $123.45
}

// ParseAmount finds the bill total in free text. The first pattern with any
// match wins and the largest of its matches is returned, since the total is
// usually the largest figure printed on a receipt.
func ParseAmount(text string) decimal.NullDecimal {
	for _, re := range amountPatterns {
		var (
			best  decimal.Decimal
			found bool
		)
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			v, err := decimal.NewFromString(strings.Replace(m[1], ",", ".", 1))
			if err != nil {
				continue
			}
			if !found || v.GreaterThan(best) {
				best = v
				found = true
			}
		}
		if found {
			return decimal.NewNullDecimal(best)
		}
	}
	return decimal.NullDecimal{}
}
