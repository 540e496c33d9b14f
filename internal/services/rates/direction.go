// Package rates holds the pure exchange-rate arithmetic: base-side
// inference for a currency pair, leg derivation and flex-rate
// resolution.
package rates

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"github.com/ravilg/fxdesk/internal/entity"
)

// RateLookup resolves a currency code to its reference rate. The
// second return is false when no rate is configured for the code.
type RateLookup func(code string) (decimal.Decimal, bool)

// LookupFrom builds a RateLookup over a currency snapshot.
func LookupFrom(currencies map[string]entity.Currency) RateLookup {
	return func(code string) (decimal.Decimal, bool) {
		c, ok := currencies[code]
		if !ok {
			return decimal.Decimal{}, false
		}
		return c.ReferenceRate()
	}
}

// BaseSide identifies which side of a pair is the base currency, the
// one multiplied by the exchange rate to reach the other side.
type BaseSide int

const (
	// BaseAmbiguous means the heuristic could not pick a side.
	// Callers default to treating From as base (multiply).
	BaseAmbiguous BaseSide = iota
	BaseFrom
	BaseTo
)

func (s BaseSide) String() string {
	switch s {
	case BaseFrom:
		return "from"
	case BaseTo:
		return "to"
	}
	return "ambiguous"
}

var ambiguousResolutions = promauto.NewCounter(prometheus.CounterOpts{
	Name: "fxdesk_ambiguous_direction_total",
	Help: "Base-side resolutions that fell through to the ambiguous default",
})

// fallbackStableCode is assumed stable when no rate is configured.
const fallbackStableCode = "USDT"

// isStable reports whether the currency behaves like the settlement
// currency: reference rate at or below one, or the literal USDT code
// when no rate is known.
func isStable(code string, lookup RateLookup) bool {
	if rate, ok := lookup(code); ok {
		return rate.LessThanOrEqual(decimal.NewFromInt(1))
	}
	return code == fallbackStableCode
}

// ResolveBase decides which side of the pair the exchange rate
// multiplies. It never fails: unresolvable pairs degrade to
// BaseAmbiguous, counted so operators can see how often the weak
// heuristic fires.
func ResolveBase(from, to string, lookup RateLookup) BaseSide {
	fromStable := isStable(from, lookup)
	toStable := isStable(to, lookup)

	switch {
	case fromStable && !toStable:
		return BaseFrom
	case toStable && !fromStable:
		return BaseTo
	case fromStable && toStable:
		ambiguousResolutions.Inc()
		return BaseAmbiguous
	}

	fromRate, fromOK := lookup(from)
	toRate, toOK := lookup(to)
	if !fromOK || !toOK {
		ambiguousResolutions.Inc()
		return BaseAmbiguous
	}

	// Weaker currencies are quoted in units of stronger ones, so the
	// smaller reference rate marks the base side.
	if fromRate.LessThan(toRate) {
		return BaseFrom
	}
	return BaseTo
}
