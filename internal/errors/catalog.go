package errors

import (
	"slices"
	"sync"
)

// Catalog indexes kinds by name. It is used where kinds are referenced by
// name, such as rule files.
type Catalog struct {
	mu    sync.RWMutex
	kinds map[string]*Kind
}

// NewCatalog creates a catalog holding Standard and the given kinds
func NewCatalog(kinds ...*Kind) *Catalog {
	c := &Catalog{kinds: map[string]*Kind{Standard.Name(): Standard}}
	for _, k := range kinds {
		c.kinds[k.Name()] = k
	}
	return c
}

// Add registers an existing kind under its name
func (c *Catalog) Add(k *Kind) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.kinds[k.Name()]; ok && existing != k {
		return AlreadyExistsf("kind %q is already defined", k.Name())
	}
	c.kinds[k.Name()] = k
	return nil
}

// Define creates a kind and registers it
func (c *Catalog) Define(name string, opts ...KindOption) (*Kind, error) {
	if name == "" {
		return nil, InvalidArgument("kind name is required")
	}

	k := DefineKind(name, opts...)
	if err := c.Add(k); err != nil {
		return nil, err
	}
	return k, nil
}

// Lookup finds a kind by name
func (c *Catalog) Lookup(name string) (*Kind, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	k, ok := c.kinds[name]
	return k, ok
}

// Names returns the registered names in sorted order
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.kinds))
	for name := range c.kinds {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
