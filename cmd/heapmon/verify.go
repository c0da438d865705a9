package main

import (
	"github.com/spf13/cobra"

	"github.com/joshuapare/genheap/heap/verify"
)

func init() {
	rootCmd.AddCommand(newVerifyCmd())
}

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <dump>",
		Short: "Check heap invariants on a restored dump",
		Long: `The verify command restores a dump and runs every structural
invariant check: free pages report no usage, no page is open, scan
starts resolve, and the generation counters match the page table.

Exit status is non-zero on the first failed check.

Example:
  heapmon verify core.ghcd`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(args)
		},
	}
	return cmd
}

func runVerify(args []string) error {
	res, err := loadDump(args[0])
	if err != nil {
		return err
	}
	if err := verify.AllInvariants(res.Heap); err != nil {
		return err
	}
	printInfo("heap OK: %d pages, %d bytes allocated\n",
		res.Heap.Pages(), res.Heap.BytesAllocated())
	return nil
}
