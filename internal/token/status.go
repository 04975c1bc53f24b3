package token

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/amorokk/bee/internal/fetcher"
)

// NoData is the serialized form stored for an asset whose availability could
// not be determined.
const NoData = "no_data"

// Availability is the normalized four-state classification of an asset's
// locked-term offers.
type Availability int

const (
	Unknown Availability = iota
	Available
	SoldOut
	Partial
)

// Classify derives the availability from the per-offer sale statuses.
// Partial takes precedence over the other states; the result depends only on
// which statuses occur, never on their order.
func Classify(fixedList []int) Availability {
	if len(fixedList) == 0 {
		return Unknown
	}
	hasOpen := slices.Contains(fixedList, 1)
	hasSold := slices.Contains(fixedList, 2)
	switch {
	case hasOpen && hasSold:
		return Partial
	case hasOpen:
		return Available
	default:
		return SoldOut
	}
}

// Glyph returns the status indicator shown to subscribers.
func (a Availability) Glyph() string {
	switch a {
	case Partial:
		return "🟡"
	case Available:
		return "🟢"
	case SoldOut:
		return "🔴"
	default:
		return "⚪"
	}
}

// Text returns the human-readable phrase for the classification.
func (a Availability) Text() string {
	switch a {
	case Partial:
		return "partially available"
	case Available:
		return "available for purchase"
	case SoldOut:
		return "sold out"
	default:
		return "no data"
	}
}

// Status is a point-in-time availability snapshot of one asset.
type Status struct {
	Coin       string
	FixedList  []int
	APR        *decimal.Decimal
	ObservedAt time.Time
}

// FromRecord builds a snapshot from a raw marketplace record.
func FromRecord(rec fetcher.Record) Status {
	s := Status{
		Coin:       strings.ToUpper(rec.Asset()),
		FixedList:  rec.FixedSaleStatuses(),
		ObservedAt: time.Now().UTC(),
	}
	if apr, ok := rec.APR(); ok {
		s.APR = &apr
	}
	return s
}

// Availability classifies the snapshot.
func (s Status) Availability() Availability {
	return Classify(s.FixedList)
}

// Equal reports whether two snapshots describe the same availability state.
// Only the asset and the offer statuses participate; APR drift and timestamps
// never count as a change.
func (s Status) Equal(other Status) bool {
	return s.Coin == other.Coin && slices.Equal(s.FixedList, other.FixedList)
}

// Key returns the registry key for the asset.
func (s Status) Key() string {
	return strings.ToLower(s.Coin)
}

type statusRecord struct {
	FixedList []int  `json:"fixed_list"`
	SortAPR   string `json:"sort_apr,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Serialize encodes the snapshot for storage. Unknown availability collapses
// to the NoData literal.
func (s Status) Serialize() string {
	if s.Availability() == Unknown {
		return NoData
	}
	rec := statusRecord{
		FixedList: s.FixedList,
		Timestamp: s.ObservedAt.UTC().Format(time.RFC3339),
	}
	if s.APR != nil {
		rec.SortAPR = s.APR.String()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return NoData
	}
	return string(data)
}

// Parse decodes a stored snapshot. A missing or zero timestamp is replaced
// with the current time; the NoData literal and undecodable input yield an
// unknown-availability snapshot rather than an error.
func Parse(coin, serialized string) Status {
	s := Status{
		Coin:       strings.ToUpper(coin),
		ObservedAt: time.Now().UTC(),
	}
	if serialized == "" || serialized == NoData {
		return s
	}
	var rec statusRecord
	if err := json.Unmarshal([]byte(serialized), &rec); err != nil {
		return s
	}
	s.FixedList = rec.FixedList
	if rec.SortAPR != "" {
		if apr, err := decimal.NewFromString(rec.SortAPR); err == nil {
			s.APR = &apr
		}
	}
	if rec.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339, rec.Timestamp); err == nil && !ts.IsZero() {
			s.ObservedAt = ts
		}
	}
	return s
}

// Format renders the subscriber-facing status line, for example
// "ALGO: 🟢 available for purchase [1] (APR: 2.50%)". The upstream reports a
// fractional rate, so display rescales it by 100.
func (s Status) Format() string {
	avail := s.Availability()

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s %s", s.Coin, avail.Glyph(), avail.Text())
	if avail != Unknown {
		fmt.Fprintf(&b, " %v", s.FixedList)
	}
	if s.APR != nil {
		fmt.Fprintf(&b, " (APR: %s%%)", s.APR.Mul(decimal.NewFromInt(100)).StringFixed(2))
	}
	return b.String()
}
