package main

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/joshuapare/genheap/heap"
)

func init() {
	rootCmd.AddCommand(newDumpCmd())
}

func newDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump <dump> <address> [count]",
		Short: "Dump heap memory starting at an address",
		Long: `The dump command prints count words (default 20) of heap memory,
one word per line, with a printable-byte column. Each line also notes
the generation of the page the word lives on.

Example:
  heapmon dump core.ghcd 0x8000000 8`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(args)
		},
	}
	return cmd
}

// visible maps a byte to its printable form, '.' otherwise.
func visible(c byte) byte {
	if c < ' ' || c > '~' {
		return '.'
	}
	return c
}

func runDump(args []string) error {
	res, err := loadDump(args[0])
	if err != nil {
		return err
	}
	h := res.Heap

	off, err := parseHeapAddr(args[1], res.Preamble)
	if err != nil {
		return err
	}
	count := int64(20)
	if len(args) == 3 {
		count, err = strconv.ParseInt(args[2], 0, 64)
		if err != nil || count <= 0 {
			return fmt.Errorf("count must be a positive number, got %q", args[2])
		}
	}

	data := h.Bytes()
	for ; count > 0 && off+heap.WordBytes <= h.Size(); count-- {
		word := binary.LittleEndian.Uint64(data[off:])
		chars := make([]byte, heap.WordBytes)
		for i := range chars {
			chars[i] = visible(data[off+int64(i)])
		}

		page := h.FindPageIndex(off)
		pte := h.PTE(page)
		if pte.Type == heap.Free {
			printInfo("%#012x: 0x%016x | %s\n",
				res.Preamble.HeapBase+uint64(off), word, chars)
		} else {
			printInfo("%#012x: 0x%016x | %s | gen %s\n",
				res.Preamble.HeapBase+uint64(off), word, chars, genName(h, int(pte.Gen)))
		}
		off += heap.WordBytes
	}
	return nil
}
