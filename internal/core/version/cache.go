package version

import "github.com/varietal/varietal/internal/types"

// Cache memoizes parsed versions to avoid repeated tokenizing during
// solving and ordering, where the same version string is compared many
// times across candidate generations. This mirrors the teacher's
// versionCache shape (a package-scoped map of string -> parsed value)
// generalized from Debian/PEP440 parsing to conda's own grammar.
type Cache struct {
	parsed map[string]types.Version
}

// NewCache returns an empty, ready-to-use cache.
func NewCache() *Cache {
	return &Cache{parsed: map[string]types.Version{}}
}

// Parse returns a parsed version, populating the cache on first use.
func (c *Cache) Parse(raw string) (types.Version, error) {
	if v, ok := c.parsed[raw]; ok {
		return v, nil
	}
	v, err := Parse(raw)
	if err != nil {
		return types.Version{}, err
	}
	c.parsed[raw] = v
	return v, nil
}

// Compare compares two raw version strings, caching each side's parse.
// Returns 0 if either side fails to parse.
func (c *Cache) Compare(a, b string) int {
	va, err := c.Parse(a)
	if err != nil {
		return 0
	}
	vb, err := c.Parse(b)
	if err != nil {
		return 0
	}
	return Compare(va, vb)
}
