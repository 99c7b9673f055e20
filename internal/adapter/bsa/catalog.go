package bsa

import (
	"fmt"
	"sort"
	"strings"
)

// Catalog looks entries up across several archives. Archives are consulted in
// the order given; the first one holding an entry wins. An empty catalog is
// valid and holds nothing.
type Catalog struct {
	readers []*Reader
}

func OpenCatalog(paths []string) (*Catalog, error) {
	c := &Catalog{}
	for _, path := range paths {
		r, err := Open(path)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.readers = append(c.readers, r)
	}
	return c, nil
}

// Find returns the name of the first archive holding the entry.
func (c *Catalog) Find(name string) (string, bool) {
	for _, r := range c.readers {
		if r.Contains(name) {
			return r.Name(), true
		}
	}
	return "", false
}

// Entries returns the base names carried by any archive with the given
// extension, deduplicated case-insensitively and sorted.
func (c *Catalog) Entries(ext string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, r := range c.readers {
		for _, name := range r.Entries(ext) {
			key := strings.ToLower(name)
			if seen[key] {
				continue
			}
			seen[key] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Extract pulls the entry from the first archive holding it.
func (c *Catalog) Extract(name string) ([]byte, error) {
	for _, r := range c.readers {
		if r.Contains(name) {
			return r.Extract(name)
		}
	}
	return nil, fmt.Errorf("no archive holds %q", name)
}

func (c *Catalog) Close() error {
	var firstErr error
	for _, r := range c.readers {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
