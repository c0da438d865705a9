package alloc

import (
	"fmt"
	"sync"

	"github.com/joshuapare/genheap/heap"
)

// Context is one mutator thread's allocation state: a region per base
// page type it allocates into. A Context is owned by a single goroutine;
// only Quiesce touches it from outside, and only with the world stopped.
type Context struct {
	a       *Allocator
	regions [heap.NumBaseTypes]Region
}

// NewContext registers a mutator context with the allocator. The caller
// must Release it before the heap is torn down.
func (a *Allocator) NewContext() *Context {
	c := &Context{a: a}
	for i := range c.regions {
		c.regions[i].Reset()
	}
	a.ctxMu().Lock()
	a.ctxs[c] = struct{}{}
	a.ctxMu().Unlock()
	return c
}

// Release closes the context's regions and unregisters it.
func (c *Context) Release() {
	c.CloseAll()
	c.a.ctxMu().Lock()
	delete(c.a.ctxs, c)
	c.a.ctxMu().Unlock()
}

// Region returns the context's region for pt's base type.
func (c *Context) Region(pt heap.PageType) *Region {
	base := pt.Base()
	if base == heap.Free {
		panic(fmt.Sprintf("alloc: no region for page type %v", pt))
	}
	return &c.regions[base]
}

// Alloc bump-allocates nbytes of page type pt from the context's region
// for that type.
func (c *Context) Alloc(nbytes int64, pt heap.PageType) (int64, error) {
	return c.a.Alloc(c.Region(pt), nbytes, pt)
}

// CloseAll forces every region the context holds closed. After it
// returns, none of the context's pages carry the OpenRegion flag.
func (c *Context) CloseAll() {
	for i := range c.regions {
		c.a.CloseRegion(&c.regions[i], heap.PageType(i))
	}
}

// ctxMu guards the context registry. It is distinct from the page-claim
// lock so that registering a context never contends with allocation.
func (a *Allocator) ctxMu() *sync.Mutex { return &a.ctxRegistry }

// Quiesce runs fn with the world stopped: no region in any registered
// context is open, and no page can be claimed, while fn executes. Global
// operations (collection, verification, snapshotting) run under Quiesce
// so a scanner never observes an OpenRegion page.
//
// Mutator goroutines must already be halted by the caller; Quiesce
// closes their regions but cannot stop them from reopening one if they
// keep running.
func (a *Allocator) Quiesce(fn func() error) error {
	a.ctxMu().Lock()
	for c := range a.ctxs {
		c.CloseAll()
	}
	a.ctxMu().Unlock()

	a.mu.Lock()
	defer a.mu.Unlock()
	return fn()
}
