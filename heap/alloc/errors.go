package alloc

import "errors"

var (
	// ErrHeapExhausted indicates no freeish page run could satisfy the
	// request within the heap bounds. The heap size is fixed at process
	// start, so this is fatal rather than retryable.
	ErrHeapExhausted = errors.New("alloc: heap exhausted")

	// ErrBadPage indicates a page reference that is out of bounds or
	// does not name the start of an allocated object.
	ErrBadPage = errors.New("alloc: bad page reference")
)
