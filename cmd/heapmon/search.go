package main

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/joshuapare/genheap/heap"
)

func init() {
	rootCmd.AddCommand(newSearchCmd())
}

func newSearchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <dump> <word>",
		Short: "Search the heap for a word value",
		Long: `The search command scans allocated pages word by word for an exact
value and prints each match's address and page. Free pages are skipped;
only the used extent of each page is searched.

Example:
  heapmon search core.ghcd 0xdeadbeef
  heapmon search core.ghcd 42 --limit 5`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(args, limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Stop after this many matches")
	return cmd
}

func runSearch(args []string, limit int) error {
	res, err := loadDump(args[0])
	if err != nil {
		return err
	}
	h := res.Heap

	needle, err := strconv.ParseUint(args[1], 0, 64)
	if err != nil {
		return fmt.Errorf("bad word %q: %w", args[1], err)
	}

	data := h.Bytes()
	found := 0
	for page := int64(0); page < h.Pages() && found < limit; page++ {
		pte := h.PTE(page)
		if pte.Type == heap.Free {
			continue
		}
		start := h.PageStart(page)
		end := start + int64(pte.BytesUsed)
		for off := start; off+heap.WordBytes <= end && found < limit; off += heap.WordBytes {
			if binary.LittleEndian.Uint64(data[off:]) != needle {
				continue
			}
			found++
			printInfo("%#012x: page %d (%v, gen %s)\n",
				res.Preamble.HeapBase+uint64(off), page, pte.Type, genName(h, int(pte.Gen)))
		}
	}
	printVerbose("%d match(es)\n", found)
	if found == 0 {
		printInfo("not found\n")
	}
	return nil
}
