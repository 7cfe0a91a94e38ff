package redirect

import (
	"regexp"

	"github.com/maypok86/otter"
)

const defaultPatternCacheSize = 4096

// PatternCache keeps compiled rule patterns. Compile failures are not cached.
type PatternCache struct {
	cache otter.Cache[string, *regexp.Regexp]
}

var defaultPatterns = NewPatternCache(defaultPatternCacheSize)

// NewPatternCache returns a cache bounded to capacity compiled patterns.
func NewPatternCache(capacity int) *PatternCache {
	if capacity <= 0 {
		capacity = defaultPatternCacheSize
	}
	cache, err := otter.MustBuilder[string, *regexp.Regexp](capacity).
		Cost(func(_ string, _ *regexp.Regexp) uint32 { return 1 }).
		Build()
	if err != nil {
		panic("redirect: failed to create pattern cache: " + err.Error())
	}
	return &PatternCache{cache: cache}
}

// Compile returns the compiled form of pattern. A nil cache uses the package default.
func (c *PatternCache) Compile(pattern string) (*regexp.Regexp, error) {
	if c == nil {
		c = defaultPatterns
	}
	if re, ok := c.cache.Get(pattern); ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	c.cache.Set(pattern, re)
	return re, nil
}
