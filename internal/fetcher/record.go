package fetcher

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Record is one raw marketplace entry. The upstream schema is not under our
// control, so fields are accessed defensively through typed helpers instead
// of a fixed struct.
type Record map[string]any

// Asset returns the case-normalized asset identifier, or "" when absent.
func (r Record) Asset() string {
	v, ok := r["asset"]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.ToLower(s)
	}
	return strings.ToLower(fmt.Sprint(v))
}

// APR returns the parsed rate-of-return field. The second value is false when
// the field is absent or unparsable; such records are excluded from threshold
// comparisons and from display.
func (r Record) APR() (decimal.Decimal, bool) {
	return ParseAPR(r["sort_apr"])
}

// FixedSaleStatuses extracts the sale_status entries of the locked-term
// product list (1 = available, 2 = sold out).
func (r Record) FixedSaleStatuses() []int {
	return saleStatuses(r["fixed_list"])
}

// FixableSaleStatuses extracts the sale_status entries of the flexible
// product list.
func (r Record) FixableSaleStatuses() []int {
	return saleStatuses(r["fixable_list"])
}

func saleStatuses(v any) []int {
	seq, ok := v.([]any)
	if !ok {
		return nil
	}
	statuses := make([]int, 0, len(seq))
	for _, entry := range seq {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		s, ok := m["sale_status"]
		if !ok {
			continue
		}
		switch n := s.(type) {
		case float64:
			statuses = append(statuses, int(n))
		case int:
			statuses = append(statuses, n)
		}
	}
	return statuses
}
