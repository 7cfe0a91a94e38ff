package service

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

const filterFalsePositiveRate = 0.001

// ActiveDomainFilter is a bloom filter over the domain names of the last emission cycle.
// It lets the live redirect surface drop requests for unknown hosts without a store lookup.
// Until the first Reset every name is reported as possibly present.
type ActiveDomainFilter struct {
	mu       sync.RWMutex
	filter   *bloom.BloomFilter
	expected uint
	ready    bool
}

// NewActiveDomainFilter sizes the filter for expected domains.
func NewActiveDomainFilter(expected uint) *ActiveDomainFilter {
	if expected == 0 {
		expected = 1024
	}
	return &ActiveDomainFilter{expected: expected}
}

// Reset replaces the filter contents with names.
func (f *ActiveDomainFilter) Reset(names []string) {
	if f == nil {
		return
	}
	n := f.expected
	if uint(len(names)) > n {
		n = uint(len(names))
	}
	bf := bloom.NewWithEstimates(n, filterFalsePositiveRate)
	for _, name := range names {
		bf.AddString(name)
	}

	f.mu.Lock()
	f.filter = bf
	f.ready = true
	f.mu.Unlock()
}

// MayContain reports false only when name was definitely absent from the last Reset.
func (f *ActiveDomainFilter) MayContain(name string) bool {
	if f == nil {
		return true
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.ready {
		return true
	}
	return f.filter.TestString(name)
}
