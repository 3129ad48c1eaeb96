package matching

import (
	"cmp"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankrec/internal/model"
)

// Combination searches only look at this many items nearest the target date.
const maxCombinationPool = 30

// maxCombinationResults stops a combination search once this many sets are found.
const maxCombinationResults = 50

// Candidate is a scored, unpersisted proposal for one statement entry.
type Candidate struct {
	Type             model.MatchType `json:"matchType"`
	EntryID          int64           `json:"bankStatementEntryId"`
	GroupedEntryIDs  []int64         `json:"groupedStatementEntryIds,omitempty"`
	TransactionIDs   []int64         `json:"internalTransactionIds"`
	Confidence       decimal.Decimal `json:"confidenceScore"`
	DaysApart        int             `json:"daysApart"`
	AmountDifference decimal.Decimal `json:"amountDifference"`
}

// Match turns the candidate into an unsaved match.
func (c Candidate) Match(accountID int64) model.Match {
	return model.Match{
		AccountID:        accountID,
		StatementEntryID: c.EntryID,
		GroupedEntryIDs:  slices.Clone(c.GroupedEntryIDs),
		TransactionIDs:   slices.Clone(c.TransactionIDs),
		Type:             c.Type,
		Confidence:       c.Confidence,
	}
}

func sameReference(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}

// compareCandidates orders by confidence descending, then date distance,
// absolute amount difference and the earliest transaction ids.
func compareCandidates(a, b Candidate) int {
	if c := b.Confidence.Cmp(a.Confidence); c != 0 {
		return c
	}
	if c := cmp.Compare(a.DaysApart, b.DaysApart); c != 0 {
		return c
	}
	if c := a.AmountDifference.Abs().Cmp(b.AmountDifference.Abs()); c != 0 {
		return c
	}
	if c := slices.Compare(a.TransactionIDs, b.TransactionIDs); c != 0 {
		return c
	}
	return slices.Compare(a.GroupedEntryIDs, b.GroupedEntryIDs)
}

// Candidates scores every way the pool can explain entry e. txns are the
// unreconciled transactions and others the unmatched statement entries of
// the same account; e itself is ignored in others.
//
// Tiers are tried in order and the first that yields anything wins:
// single transactions with the exact amount, split sets of transactions,
// combined sets of statement entries, then near-amount possibles. The
// result is sorted best first.
func (o Options) Candidates(e model.StatementEntry, txns []model.InternalTransaction, others []model.StatementEntry) []Candidate {
	window := make([]model.InternalTransaction, 0, len(txns))
	for _, t := range txns {
		if t.AccountID == e.AccountID && !t.Reconciled && model.DaysApart(e.Date, t.Date) <= o.WindowDays {
			window = append(window, t)
		}
	}
	slices.SortFunc(window, func(a, b model.InternalTransaction) int { return cmp.Compare(a.ID, b.ID) })

	for _, search := range []func() []Candidate{
		func() []Candidate { return o.singles(e, window) },
		func() []Candidate { return o.splits(e, window) },
		func() []Candidate { return o.combined(e, window, others) },
		func() []Candidate { return o.possibles(e, window) },
	} {
		if found := search(); len(found) > 0 {
			slices.SortStableFunc(found, compareCandidates)
			return found
		}
	}
	return []Candidate{}
}

func (o Options) singles(e model.StatementEntry, window []model.InternalTransaction) []Candidate {
	var out []Candidate
	for _, t := range window {
		if !t.Amount.Equal(e.Amount) {
			continue
		}
		days := model.DaysApart(e.Date, t.Date)
		typ := o.tier(e, t, days)
		out = append(out, Candidate{
			Type:             typ,
			EntryID:          e.ID,
			TransactionIDs:   []int64{t.ID},
			Confidence:       o.Confidence(typ, days),
			DaysApart:        days,
			AmountDifference: decimal.Zero,
		})
	}
	return out
}

func (o Options) splits(e model.StatementEntry, window []model.InternalTransaction) []Candidate {
	pool := nearest(window, e.Date, func(t model.InternalTransaction) model.Date { return t.Date })
	amounts := make([]decimal.Decimal, len(pool))
	for i, t := range pool {
		amounts[i] = t.Amount
	}

	var out []Candidate
	for _, set := range subsetsSumming(amounts, e.Amount, 2, o.MaxCombination) {
		ids := make([]int64, len(set))
		days := 0
		for i, idx := range set {
			ids[i] = pool[idx].ID
			days = max(days, model.DaysApart(e.Date, pool[idx].Date))
		}
		slices.Sort(ids)
		out = append(out, Candidate{
			Type:             model.MatchSplit,
			EntryID:          e.ID,
			TransactionIDs:   ids,
			Confidence:       o.Confidence(model.MatchSplit, days),
			DaysApart:        days,
			AmountDifference: decimal.Zero,
		})
	}
	return out
}

func (o Options) combined(e model.StatementEntry, window []model.InternalTransaction, others []model.StatementEntry) []Candidate {
	var out []Candidate
	for _, t := range window {
		target := t.Amount.Sub(e.Amount)
		if target.IsZero() {
			continue
		}
		var near []model.StatementEntry
		for _, other := range others {
			if other.ID != e.ID && other.AccountID == e.AccountID && !other.Matched &&
				model.DaysApart(other.Date, t.Date) <= o.WindowDays {
				near = append(near, other)
			}
		}
		slices.SortFunc(near, func(a, b model.StatementEntry) int { return cmp.Compare(a.ID, b.ID) })
		near = nearest(near, t.Date, func(s model.StatementEntry) model.Date { return s.Date })

		amounts := make([]decimal.Decimal, len(near))
		for i, s := range near {
			amounts[i] = s.Amount
		}
		for _, set := range subsetsSumming(amounts, target, 1, o.MaxCombination-1) {
			grouped := make([]int64, len(set))
			days := model.DaysApart(e.Date, t.Date)
			for i, idx := range set {
				grouped[i] = near[idx].ID
				days = max(days, model.DaysApart(near[idx].Date, t.Date))
			}
			slices.Sort(grouped)
			out = append(out, Candidate{
				Type:             model.MatchCombined,
				EntryID:          e.ID,
				GroupedEntryIDs:  grouped,
				TransactionIDs:   []int64{t.ID},
				Confidence:       o.Confidence(model.MatchCombined, days),
				DaysApart:        days,
				AmountDifference: decimal.Zero,
			})
		}
	}
	return out
}

func (o Options) possibles(e model.StatementEntry, window []model.InternalTransaction) []Candidate {
	var out []Candidate
	for _, t := range window {
		diff := e.Amount.Sub(t.Amount)
		if diff.IsZero() || diff.Abs().GreaterThan(o.AmountTolerance) {
			continue
		}
		days := model.DaysApart(e.Date, t.Date)
		out = append(out, Candidate{
			Type:             model.MatchPossible,
			EntryID:          e.ID,
			TransactionIDs:   []int64{t.ID},
			Confidence:       o.Confidence(model.MatchPossible, days),
			DaysApart:        days,
			AmountDifference: diff,
		})
	}
	return out
}

// nearest keeps at most maxCombinationPool items, preferring those dated
// closest to d. items must be sorted by id; the result stays in id order.
func nearest[T any](items []T, d model.Date, dateOf func(T) model.Date) []T {
	if len(items) <= maxCombinationPool {
		return items
	}
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		return cmp.Compare(model.DaysApart(d, dateOf(items[a])), model.DaysApart(d, dateOf(items[b])))
	})
	idx = idx[:maxCombinationPool]
	slices.Sort(idx)
	out := make([]T, len(idx))
	for i, j := range idx {
		out[i] = items[j]
	}
	return out
}

// subsetsSumming returns index sets of minSize..maxSize amounts whose sum
// equals target, in lexicographic index order.
func subsetsSumming(amounts []decimal.Decimal, target decimal.Decimal, minSize, maxSize int) [][]int {
	var out [][]int
	set := make([]int, 0, maxSize)
	var walk func(start int, sum decimal.Decimal)
	walk = func(start int, sum decimal.Decimal) {
		if len(out) >= maxCombinationResults {
			return
		}
		if len(set) >= minSize && sum.Equal(target) {
			out = append(out, slices.Clone(set))
		}
		if len(set) == maxSize {
			return
		}
		for i := start; i < len(amounts); i++ {
			set = append(set, i)
			walk(i+1, sum.Add(amounts[i]))
			set = set[:len(set)-1]
		}
	}
	if maxSize >= minSize && minSize > 0 {
		walk(0, decimal.Zero)
	}
	return out
}
