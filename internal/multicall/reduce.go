package multicall

import (
	"cmp"
	"log"
	"sort"
)

// ReduceWithEquality collapses the aggregate to a single value iff
// every provider returned a value equal to every other (full value
// equality via eq). On any inequality it fails with the complete
// participating value-set as evidence, so the caller sees everything
// that diverged, not just the outliers. Use for data expected to be
// byte-identical across any honest provider.
func ReduceWithEquality[T any](r Results[T], eq func(a, b T) bool) (T, error) {
	var zero T
	ok, err := r.AllOK()
	if err != nil {
		return zero, err
	}
	base := ok[0]
	for _, entry := range ok[1:] {
		if !eq(base.Value, entry.Value) {
			reduceErr := &InconsistentResultsError[T]{Results: FromEntries(ok)}
			log.Printf("[multicall] equality reduction found inconsistent results: %v", reduceErr)
			return zero, reduceErr
		}
	}
	return base.Value, nil
}

// ReduceWithMinByKey returns the value with the smallest extracted
// key, with no majority requirement. Appropriate only when the
// smallest observation is itself the safe choice regardless of how
// many providers agree. Ties resolve to the first provider in identity
// order.
func ReduceWithMinByKey[T any, K cmp.Ordered](r Results[T], key func(T) K) (T, error) {
	var zero T
	ok, err := r.AllOK()
	if err != nil {
		return zero, err
	}
	min := ok[0].Value
	minKey := key(min)
	for _, entry := range ok[1:] {
		if k := key(entry.Value); k < minKey {
			min, minKey = entry.Value, k
		}
	}
	return min, nil
}

// ReduceWithStrictMajorityByKey buckets values by an extracted key and
// returns the representative of the largest bucket, provided it is
// strictly larger than the runner-up. Two values sharing a key must be
// equal (never averaged or merged): a same-key inequality fails
// immediately with exactly the conflicting pair, before the remaining
// entries are scanned. A tie between the two largest buckets fails
// with the merged contents of both. Use for data where honest
// providers should agree on a primary key but may momentarily diverge
// on secondary observations.
func ReduceWithStrictMajorityByKey[T any, K cmp.Ordered](r Results[T], key func(T) K, eq func(a, b T) bool) (T, error) {
	var zero T
	ok, err := r.AllOK()
	if err != nil {
		return zero, err
	}

	votes := make(map[K][]Entry[T])
	for _, entry := range ok {
		k := key(entry.Value)
		ballot := votes[k]
		if len(ballot) > 0 && !eq(ballot[0].Value, entry.Value) {
			reduceErr := &InconsistentResultsError[T]{
				Results: FromEntries([]Entry[T]{ballot[0], entry}),
			}
			log.Printf("[multicall] strict-majority reduction found conflicting values for the same key: %v", reduceErr)
			return zero, reduceErr
		}
		votes[k] = append(ballot, entry)
	}

	type tallied struct {
		key    K
		ballot []Entry[T]
	}
	tally := make([]tallied, 0, len(votes))
	for k, ballot := range votes {
		tally = append(tally, tallied{key: k, ballot: ballot})
	}
	if len(tally) == 0 {
		panic("BUG: tally cannot be empty for a non-empty aggregate")
	}
	// Secondary sort on the key keeps the tie evidence deterministic
	// when three or more buckets share the top cardinality.
	sort.Slice(tally, func(i, j int) bool {
		if len(tally[i].ballot) != len(tally[j].ballot) {
			return len(tally[i].ballot) < len(tally[j].ballot)
		}
		return tally[i].key < tally[j].key
	})

	if len(tally) == 1 {
		return tally[0].ballot[0].Value, nil
	}
	first, second := tally[len(tally)-1], tally[len(tally)-2]
	if len(first.ballot) > len(second.ballot) {
		return first.ballot[0].Value, nil
	}
	reduceErr := &InconsistentResultsError[T]{
		Results: FromEntries(append(append([]Entry[T]{}, first.ballot...), second.ballot...)),
	}
	log.Printf("[multicall] strict-majority reduction found no strict majority: %v", reduceErr)
	return zero, reduceErr
}
