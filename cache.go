package jsonexec

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Cache holds compiled templates by name.  Concurrent first requests for a
// name compile once and share the result; least recently used templates
// are evicted when the cache is full.
type Cache struct {
	templates *lru.Cache[string, *Template]
	group     singleflight.Group
	opts      []Option
}

// NewCache returns a cache of at most size templates, each compiled with
// opts.
func NewCache(size int, opts ...Option) (*Cache, error) {
	templates, err := lru.New[string, *Template](size)
	if err != nil {
		return nil, fmt.Errorf("error creating template cache: %w", err)
	}
	return &Cache{templates: templates, opts: opts}, nil
}

// Get returns the template cached under name, compiling format if there
// is none.  The format is only consulted on a miss, so callers must use a
// distinct name per shape.
func (c *Cache) Get(name string, format any) (*Template, error) {
	if t, ok := c.templates.Get(name); ok {
		return t, nil
	}
	v, err, _ := c.group.Do(name, func() (any, error) {
		if t, ok := c.templates.Get(name); ok {
			return t, nil
		}
		t, err := Compile(format, c.opts...)
		if err != nil {
			return nil, err
		}
		c.templates.Add(name, t)
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Template), nil
}

// Execute encodes v with the template cached under name, compiling format
// on a miss.
func (c *Cache) Execute(name string, format, v any) (string, error) {
	t, err := c.Get(name, format)
	if err != nil {
		return "", err
	}
	return t.Execute(v), nil
}

// Len returns the number of cached templates.
func (c *Cache) Len() int { return c.templates.Len() }

// Remove drops the template cached under name.
func (c *Cache) Remove(name string) { c.templates.Remove(name) }

// Purge drops every cached template.
func (c *Cache) Purge() { c.templates.Purge() }
