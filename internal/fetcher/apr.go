package fetcher

import (
	"strings"

	"github.com/shopspring/decimal"
)

var aprCleaner = strings.NewReplacer("%", "", "\u00a0", "", " ", "", ",", ".")

// ParseAPR normalises the upstream rate-of-return field. The value may arrive
// as a JSON number or as a locale-formatted string with "," or "." decimal
// separators, an optional "%" suffix, and non-breaking spaces. Absent or
// unparsable values yield ok=false, never zero.
func ParseAPR(value any) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case nil:
		return decimal.Decimal{}, false
	case float64:
		return decimal.NewFromFloat(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case string:
		cleaned := aprCleaner.Replace(v)
		if cleaned == "" {
			return decimal.Decimal{}, false
		}
		d, err := decimal.NewFromString(cleaned)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	default:
		return decimal.Decimal{}, false
	}
}
