package stratify

// FreqTable is a histogram over small non-negative integers. The table grows
// on demand: Add(i) makes bucket i addressable before incrementing it, and
// reads past the end yield zero. A table never shrinks.
type FreqTable struct {
	counts []int64
}

// Add increments bucket i by one.
func (t *FreqTable) Add(i int) { t.AddN(i, 1) }

// AddN increments bucket i by n. It panics if i is negative.
func (t *FreqTable) AddN(i int, n int64) {
	if i < 0 {
		panic("stratify: negative FreqTable index")
	}
	if i >= len(t.counts) {
		if i < cap(t.counts) {
			t.counts = t.counts[:i+1]
		} else {
			grown := make([]int64, i+1, 2*(i+1))
			copy(grown, t.counts)
			t.counts = grown
		}
	}
	t.counts[i] += n
}

// Get returns the count in bucket i, or zero if i was never added.
func (t *FreqTable) Get(i int) int64 {
	if i < 0 || i >= len(t.counts) {
		return 0
	}
	return t.counts[i]
}

// Len returns one past the largest bucket ever added.
func (t *FreqTable) Len() int { return len(t.counts) }

// Sum returns the total of all buckets.
func (t *FreqTable) Sum() int64 {
	var s int64
	for _, n := range t.counts {
		s += n
	}
	return s
}

// Each calls fn for every nonzero bucket, in increasing index order.
func (t *FreqTable) Each(fn func(i int, n int64)) {
	for i, n := range t.counts {
		if n > 0 {
			fn(i, n)
		}
	}
}
