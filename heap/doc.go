// Package heap owns the managed heap's memory and its page table.
//
// # Overview
//
// A Heap is a contiguous run of fixed-size pages plus one page-table
// entry (PTE) per page. The PTE is the ground truth every other
// component works from: what kind of data a page holds, which
// generation it belongs to, how many bytes of it are valid, and where
// the object overlapping it begins.
//
// Everything above this package operates on page indexes and byte
// offsets from the heap base. Raw memory is reachable only through
// Bytes(), and only the snapshot and monitor layers ever look at it.
//
// # Addressing
//
// Heap addresses are int64 byte offsets from the heap base. Offsets map
// to pages with FindPageIndex, which returns NoPage for anything outside
// the configured heap range. Page sizes and counts are runtime
// configuration, not compile-time constants, so tests can run against a
// 20-page table while production heaps map gigabytes.
//
// # Concurrency
//
// The Heap itself does no locking. The alloc package serializes the one
// step that needs it (claiming a page for a region); see alloc.Allocator.
package heap
