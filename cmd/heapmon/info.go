package main

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newInfoCmd())
}

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <dump>",
		Short: "Report a dump's heap parameters and generation totals",
		Long: `The info command validates a heap dump and displays its parameters:
page geometry, card granule, thread count, and the per-generation byte
totals re-derived from the restored page table.

Example:
  heapmon info core.ghcd
  heapmon info core.ghcd --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(args)
		},
	}
	return cmd
}

func runInfo(args []string) error {
	res, err := loadDump(args[0])
	if err != nil {
		return err
	}
	h := res.Heap

	if jsonOut {
		type genTotal struct {
			Generation string `json:"generation"`
			Bytes      int64  `json:"bytes"`
		}
		out := struct {
			File        string     `json:"file"`
			HeapBase    uint64     `json:"heapBase"`
			PageBytes   uint64     `json:"pageBytes"`
			Pages       uint64     `json:"pages"`
			CardBytes   uint64     `json:"cardBytes"`
			Threads     uint32     `json:"threads"`
			Allocated   int64      `json:"bytesAllocated"`
			Generations []genTotal `json:"generations"`
		}{
			File:      args[0],
			HeapBase:  res.Preamble.HeapBase,
			PageBytes: res.Preamble.PageBytes,
			Pages:     res.Preamble.PageCount,
			CardBytes: res.Preamble.CardBytes,
			Threads:   res.Preamble.ThreadCount,
			Allocated: h.BytesAllocated(),
		}
		for g := 0; g <= h.Scratch(); g++ {
			name := genName(h, g)
			out.Generations = append(out.Generations, genTotal{name, h.GenerationBytes(g)})
		}
		return printJSON(out)
	}

	printInfo("Dump: %s\n", args[0])
	printInfo("  Heap base:  %#x\n", res.Preamble.HeapBase)
	printInfo("  Pages:      %d x %d bytes (%d total)\n",
		res.Preamble.PageCount, res.Preamble.PageBytes, h.Size())
	printInfo("  Card size:  %d bytes (%d cards)\n", res.Preamble.CardBytes, res.Cards.Cards())
	printInfo("  Threads:    %d\n", res.Preamble.ThreadCount)
	printInfo("  Allocated:  %d bytes\n", h.BytesAllocated())
	for g := 0; g <= h.Scratch(); g++ {
		if b := h.GenerationBytes(g); b != 0 || verbose {
			printInfo("    gen %-7s %d bytes\n", genName(h, g), b)
		}
	}
	return nil
}
