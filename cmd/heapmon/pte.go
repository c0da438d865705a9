package main

import (
	"github.com/spf13/cobra"

	"github.com/joshuapare/genheap/heap"
)

func init() {
	rootCmd.AddCommand(newPteCmd())
}

func newPteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pte <dump> <address>",
		Short: "Show the page-table entry for a heap address",
		Long: `The pte command maps an address to its page and prints that page's
type, generation, usage, and scan-start. Addresses may be absolute
(relative to the dump's recorded heap base) or plain heap offsets.

Example:
  heapmon pte core.ghcd 0x8000000
  heapmon pte core.ghcd 4096`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPte(args)
		},
	}
	return cmd
}

func runPte(args []string) error {
	res, err := loadDump(args[0])
	if err != nil {
		return err
	}
	h := res.Heap

	off, err := parseHeapAddr(args[1], res.Preamble)
	if err != nil {
		return err
	}
	page := h.FindPageIndex(off)
	pte := h.PTE(page)

	if jsonOut {
		out := struct {
			Page      int64  `json:"page"`
			Offset    int64  `json:"offset"`
			Type      string `json:"type"`
			Gen       string `json:"generation,omitempty"`
			BytesUsed uint32 `json:"bytesUsed"`
			ScanStart uint32 `json:"scanStart"`
			ScanPage  int64  `json:"scanStartPage"`
			CardMark  bool   `json:"cardMarked"`
		}{
			Page:      page,
			Offset:    off,
			Type:      pte.Type.String(),
			BytesUsed: pte.BytesUsed,
			ScanStart: pte.ScanStart,
			ScanPage:  h.ScanStartPage(page),
			CardMark:  res.Cards.Marked(off),
		}
		if pte.Type != heap.Free {
			out.Gen = genName(h, int(pte.Gen))
		}
		return printJSON(out)
	}

	printInfo("Page %d (offset %#x, address %#x)\n", page, off, res.Preamble.HeapBase+uint64(off))
	printInfo("  type:       %v\n", pte.Type)
	if pte.Type != heap.Free {
		printInfo("  generation: %s\n", genName(h, int(pte.Gen)))
	}
	printInfo("  used:       %d / %d bytes\n", pte.BytesUsed, h.PageBytes())
	printInfo("  scan start: %d pages back (page %d)\n", pte.ScanStart, h.ScanStartPage(page))
	printInfo("  card:       marked=%v\n", res.Cards.Marked(off))
	return nil
}
