// Package quota classifies catches against a free catch limit and computes
// the surcharge owed once the limit is exceeded.
//
// Classification happens at the moment a catch is recorded, from the count of
// catches recorded before it. It must not be re-derived afterwards: in remote
// mode other clients can add catches between the write and a later read.
package quota

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Outcome is the classification of one new catch.
type Outcome string

const (
	// Under means the catch is within the free quota.
	Under Outcome = "UNDER"
	// AtLimit means the catch is the last free one.
	AtLimit Outcome = "AT_LIMIT"
	// Over means the catch exceeds the quota and a surcharge is owed.
	Over Outcome = "OVER"
)

// Classify returns the outcome of recording one more catch when prior
// catches are already counted against limit.
//
// A limit of 0 makes the very first catch Over.
func Classify(limit, prior int) Outcome {
	next := prior + 1
	switch {
	case next < limit:
		return Under
	case next == limit:
		return AtLimit
	default:
		return Over
	}
}

// Remaining returns how many free catches are left before the limit is reached.
// Never negative.
func Remaining(limit, count int) int {
	if count >= limit {
		return 0
	}
	return limit - count
}

// FeeSchedule holds the configured fees, in whole currency units.
type FeeSchedule struct {
	OverLimitFee      int
	VisitFee          int
	SpecialCatchFee   int
	SpeciesSurcharges map[string]int
	Currency          string
}

// Surcharge returns the fee owed for an Over catch of the given species.
// Species is matched case-insensitively; unknown or empty species add nothing.
func (f FeeSchedule) Surcharge(species string) int {
	return f.OverLimitFee + f.SpeciesSurcharges[strings.ToLower(strings.TrimSpace(species))]
}

// FeeFor returns the fee owed for a catch with the given outcome.
func (f FeeSchedule) FeeFor(o Outcome, species string) int {
	if o != Over {
		return 0
	}
	return f.Surcharge(species)
}

// VisitFeeFor returns the fee for one guest visit.
func (f FeeSchedule) VisitFeeFor(tookSpecialCatch bool) int {
	fee := f.VisitFee
	if tookSpecialCatch {
		fee += f.SpecialCatchFee
	}
	return fee
}

// Format renders an amount with the schedule's currency, e.g. "150 CZK".
func (f FeeSchedule) Format(amount int) string {
	if f.Currency == "" {
		return strconv.Itoa(amount)
	}
	return fmt.Sprintf("%d %s", amount, f.Currency)
}

// ParseSurcharges parses "pike:50, zander:80" into a species→amount map.
// Species names are lower-cased. An empty string yields an empty map.
func ParseSurcharges(s string) (map[string]int, error) {
	out := make(map[string]int)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, amount, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("species surcharge %q: want species:amount", part)
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			return nil, fmt.Errorf("species surcharge %q: empty species", part)
		}
		n, err := strconv.Atoi(strings.TrimSpace(amount))
		if err != nil {
			return nil, fmt.Errorf("species surcharge %q: %w", part, err)
		}
		if n < 0 {
			return nil, fmt.Errorf("species surcharge %q: negative amount", part)
		}
		out[name] = n
	}
	return out, nil
}

// Species returns the configured species in sorted order.
func (f FeeSchedule) Species() []string {
	names := make([]string, 0, len(f.SpeciesSurcharges))
	for name := range f.SpeciesSurcharges {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
