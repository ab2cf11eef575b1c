package payment

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// maxExactUnits bounds the dynamic-programming table of ExactChange.
// Larger amounts are first reduced greedily with the biggest denomination.
const maxExactUnits = 2_000_000

// FCFADenominations is the note and coin ladder of the CFA franc.
var FCFADenominations = []decimal.Decimal{
	decimal.NewFromInt(10000),
	decimal.NewFromInt(5000),
	decimal.NewFromInt(2000),
	decimal.NewFromInt(1000),
	decimal.NewFromInt(500),
	decimal.NewFromInt(250),
	decimal.NewFromInt(200),
	decimal.NewFromInt(100),
	decimal.NewFromInt(50),
	decimal.NewFromInt(25),
	decimal.NewFromInt(10),
	decimal.NewFromInt(5),
}

// DenominationCount is how many pieces of one denomination to hand back.
type DenominationCount struct {
	Denomination decimal.Decimal `json:"denomination"`
	Count        int64           `json:"count"`
}

// ChangeBreakdown lists the pieces for a change amount, largest first.
// Remainder is the part no combination of denominations can represent.
type ChangeBreakdown struct {
	Pieces    []DenominationCount `json:"pieces"`
	Remainder decimal.Decimal     `json:"remainder"`
}

// Counts returns the breakdown keyed by denomination.
func (b ChangeBreakdown) Counts() map[string]int64 {
	m := make(map[string]int64, len(b.Pieces))
	for _, p := range b.Pieces {
		m[p.Denomination.String()] = p.Count
	}
	return m
}

// Total is the value of all pieces.
func (b ChangeBreakdown) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, p := range b.Pieces {
		sum = sum.Add(p.Denomination.Mul(decimal.NewFromInt(p.Count)))
	}
	return sum
}

// PieceCount is the number of notes and coins handed back.
func (b ChangeBreakdown) PieceCount() int64 {
	var n int64
	for _, p := range b.Pieces {
		n += p.Count
	}
	return n
}

// Breakdown is the greedy change algorithm: largest denomination first,
// take as many as fit, continue with the rest. It is optimal only for
// canonical denomination sets; see IsCanonical.
func Breakdown(amount decimal.Decimal, denominations []decimal.Decimal) ChangeBreakdown {
	denoms := sortedDesc(denominations)
	remaining := amount
	var pieces []DenominationCount
	for _, d := range denoms {
		if remaining.LessThan(d) {
			continue
		}
		q, r := remaining.QuoRem(d, 0)
		pieces = append(pieces, DenominationCount{Denomination: d, Count: q.IntPart()})
		remaining = r
	}
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	return ChangeBreakdown{Pieces: pieces, Remainder: remaining}
}

// ExactChange finds the fewest pieces for the largest representable
// amount not above amount, using dynamic programming. It is correct for
// any denomination set.
func ExactChange(amount decimal.Decimal, denominations []decimal.Decimal) ChangeBreakdown {
	denoms := sortedDesc(denominations)
	if len(denoms) == 0 || !amount.IsPositive() {
		return ChangeBreakdown{Remainder: decimal.Max(amount, decimal.Zero)}
	}
	scale, units := toUnits(denoms)
	total := amount.Shift(scale).Floor().IntPart()
	fraction := amount.Sub(decimal.NewFromInt(total).Shift(-scale))

	// Reduce with the largest piece until the table stays small.
	counts := make([]int64, len(denoms))
	if total > maxExactUnits {
		n := (total - maxExactUnits + units[0] - 1) / units[0]
		counts[0] = n
		total -= n * units[0]
	}

	best, pick := changeTable(total, units)
	target := total
	for target > 0 && best[target] == math.MaxInt32 {
		target--
	}
	for v := target; v > 0; v -= units[pick[v]] {
		counts[pick[v]]++
	}

	var pieces []DenominationCount
	for i, c := range counts {
		if c > 0 {
			pieces = append(pieces, DenominationCount{Denomination: denoms[i], Count: c})
		}
	}
	remainder := decimal.NewFromInt(total - target).Shift(-scale).Add(fraction)
	return ChangeBreakdown{Pieces: pieces, Remainder: remainder}
}

// IsCanonical reports whether greedy change is optimal for the set. It
// compares greedy against the exact solution for every amount below the
// sum of the two largest denominations, where the smallest counterexample
// of a non-canonical system lies.
func IsCanonical(denominations []decimal.Decimal) bool {
	_, ok := FirstCounterexample(denominations)
	return !ok
}

// FirstCounterexample returns the smallest amount for which greedy change
// uses more pieces than necessary, or misses a representable amount.
func FirstCounterexample(denominations []decimal.Decimal) (decimal.Decimal, bool) {
	denoms := sortedDesc(denominations)
	if len(denoms) < 2 {
		return decimal.Zero, false
	}
	scale, units := toUnits(denoms)
	limit := units[0] + units[1]
	best, _ := changeTable(limit, units)

	for v := int64(1); v < limit; v++ {
		if best[v] == math.MaxInt32 {
			continue
		}
		rest, n := v, int64(0)
		for _, u := range units {
			n += rest / u
			rest %= u
		}
		if rest != 0 || n > int64(best[v]) {
			return decimal.NewFromInt(v).Shift(-scale), true
		}
	}
	return decimal.Zero, false
}

// ValidateDenominations checks a configured ladder.
func ValidateDenominations(denominations []decimal.Decimal) error {
	if len(denominations) == 0 {
		return fmt.Errorf("at least one denomination is required")
	}
	seen := make(map[string]bool, len(denominations))
	for _, d := range denominations {
		if !d.IsPositive() {
			return fmt.Errorf("denomination %s must be positive", d)
		}
		if seen[d.String()] {
			return fmt.Errorf("denomination %s listed twice", d)
		}
		seen[d.String()] = true
	}
	return nil
}

// ChangeMaker hands back change for one configured ladder. Canonical
// ladders use Breakdown; others use ExactChange.
type ChangeMaker struct {
	denominations []decimal.Decimal
	canonical     bool
}

// NewChangeMaker validates the ladder and checks whether it is canonical.
func NewChangeMaker(denominations []decimal.Decimal) (*ChangeMaker, error) {
	if err := ValidateDenominations(denominations); err != nil {
		return nil, err
	}
	return &ChangeMaker{
		denominations: sortedDesc(denominations),
		canonical:     IsCanonical(denominations),
	}, nil
}

// Canonical reports whether greedy change is optimal for the ladder.
func (m *ChangeMaker) Canonical() bool {
	return m.canonical
}

// Denominations returns the ladder, largest first.
func (m *ChangeMaker) Denominations() []decimal.Decimal {
	return append([]decimal.Decimal(nil), m.denominations...)
}

// Make splits amount into pieces.
func (m *ChangeMaker) Make(amount decimal.Decimal) ChangeBreakdown {
	if m.canonical {
		return Breakdown(amount, m.denominations)
	}
	return ExactChange(amount, m.denominations)
}

// changeTable computes the fewest pieces for every value up to limit.
// pick[v] is the index of the last piece used for v.
func changeTable(limit int64, units []int64) ([]int32, []int) {
	best := make([]int32, limit+1)
	pick := make([]int, limit+1)
	for v := int64(1); v <= limit; v++ {
		best[v] = math.MaxInt32
		for i, u := range units {
			if u > v || best[v-u] == math.MaxInt32 {
				continue
			}
			if best[v-u]+1 < best[v] {
				best[v] = best[v-u] + 1
				pick[v] = i
			}
		}
	}
	return best, pick
}

// toUnits converts denominations to integers in the smallest unit they
// share, e.g. 0.05 and 1 become 5 and 100 with scale 2.
func toUnits(denoms []decimal.Decimal) (int32, []int64) {
	var scale int32
	for _, d := range denoms {
		if e := -d.Exponent(); e > scale && !d.Equal(d.Truncate(scale)) {
			scale = e
		}
	}
	units := make([]int64, len(denoms))
	for i, d := range denoms {
		units[i] = d.Shift(scale).IntPart()
	}
	return scale, units
}

func sortedDesc(denoms []decimal.Decimal) []decimal.Decimal {
	out := append([]decimal.Decimal(nil), denoms...)
	sort.Slice(out, func(i, j int) bool { return out[i].GreaterThan(out[j]) })
	return out
}
