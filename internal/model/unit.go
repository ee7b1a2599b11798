// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file classifies free-text unit strings into coarse families. Families
// drive two things: unit-mismatch warnings on mechanisms and the plausible
// domain used when presenting simulated values.
package model

import (
	"math"
	"strings"
)

// UnitFamily is a coarse class of measurement units.
type UnitFamily string

const (
	UnitBinary     UnitFamily = "binary"
	UnitPercent    UnitFamily = "percent"
	UnitProportion UnitFamily = "proportion"
	UnitRate       UnitFamily = "rate"
	UnitCurrency   UnitFamily = "currency"
	UnitIndex      UnitFamily = "index"
	UnitCount      UnitFamily = "count"
	UnitOther      UnitFamily = "other"
)

var timeWindows = []string{
	"year", "annual", "yr", "month", "week", "day", "daily", "hour", "quarter", "decade",
}

var currencyMarkers = []string{"usd", "$", "dollar", "eur", "€", "gbp", "£"}

func containsWord(s string, words ...string) bool {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '%' || r == '$' || r == '/')
	})
	for _, f := range fields {
		for _, w := range words {
			if f == w {
				return true
			}
		}
	}
	return false
}

func containsAny(s string, parts ...string) bool {
	for _, p := range parts {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// HasDenominator reports whether the unit names a "per" or "/" denominator.
func HasDenominator(unit string) bool {
	u := strings.ToLower(unit)
	return strings.Contains(u, "/") || containsWord(u, "per")
}

// HasTimeWindow reports whether the unit names a time window.
func HasTimeWindow(unit string) bool {
	return containsAny(strings.ToLower(unit), timeWindows...)
}

// ValidRateUnit reports whether a rate unit carries both a denominator and a
// time window, e.g. "evictions per 1,000 renter households per year".
func ValidRateUnit(unit string) bool {
	return HasDenominator(unit) && HasTimeWindow(unit)
}

// ClassifyUnit maps a unit string onto a family. Order matters: a percentage
// of households is a percent, not a count.
func ClassifyUnit(unit string) UnitFamily {
	u := strings.ToLower(strings.TrimSpace(unit))
	switch {
	case u == "":
		return UnitOther
	case strings.Contains(u, "%") || containsAny(u, "percent"):
		return UnitPercent
	case containsAny(u, "proportion", "fraction", "share"):
		return UnitProportion
	case containsAny(u, "binary", "boolean", "yes/no", "indicator", "0/1"):
		return UnitBinary
	case ValidRateUnit(u):
		return UnitRate
	case containsAny(u, currencyMarkers...):
		return UnitCurrency
	case containsAny(u, "index", "score"):
		return UnitIndex
	case containsAny(u, "count", "number of", "persons", "people", "households"):
		return UnitCount
	default:
		return UnitOther
	}
}

// Domain returns the plausible value range for the family, if one is known.
func (f UnitFamily) Domain() (lo, hi float64, ok bool) {
	switch f {
	case UnitPercent:
		return 0, 100, true
	case UnitProportion, UnitBinary:
		return 0, 1, true
	case UnitRate, UnitCount:
		return 0, math.Inf(1), true
	default:
		return 0, 0, false
	}
}

// Compatible reports whether an edge may connect the two families without an
// explicit transform. Unknown families are compatible with everything.
func Compatible(from, to UnitFamily) bool {
	if from == to || from == UnitOther || to == UnitOther {
		return true
	}
	ratio := func(f UnitFamily) bool { return f == UnitPercent || f == UnitProportion }
	return ratio(from) && ratio(to)
}
