package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/genheap/heap"
	"github.com/joshuapare/genheap/heap/snapshot"
	"github.com/joshuapare/genheap/internal/format"
)

var (
	// Global flags
	verbose bool
	quiet   bool
	jsonOut bool
	debug   bool
)

// pr formats counts with digit grouping for human-readable output.
var pr = message.NewPrinter(language.English)

// logger discards everything unless --debug is set; see initLogging.
var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

var rootCmd = &cobra.Command{
	Use:   "heapmon",
	Short: "Inspect generational heap crash dumps",
	Long: `heapmon is the offline half of the low-level heap monitor. It reads
crash dumps produced by the snapshot writer and answers the questions the
in-process monitor would: what page backs an address, what a stretch of
memory contains, where a value occurs, and whether the restored heap
still satisfies its invariants.`,
	Version: "0.1.0",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogging()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Log debug detail to stderr")
}

func initLogging() {
	if debug {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadDump restores the dump at path, logging the decoded parameters.
func loadDump(path string) (*snapshot.Result, error) {
	logger.Debug("loading dump", "path", path)
	res, err := snapshot.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load dump: %w", err)
	}
	logger.Debug("dump loaded",
		"pages", res.Preamble.PageCount,
		"pageBytes", res.Preamble.PageBytes,
		"threads", res.Preamble.ThreadCount)
	return res, nil
}

// parseHeapAddr parses a command-line address. Values at or above the
// dump's recorded heap base are absolute; smaller values are taken as
// offsets from the base.
func parseHeapAddr(s string, p format.Preamble) (int64, error) {
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("bad address %q: %w", s, err)
	}
	if v >= p.HeapBase {
		v -= p.HeapBase
	}
	limit := p.PageCount * p.PageBytes
	if v >= limit {
		return 0, fmt.Errorf("address %s is outside the %d-byte heap", s, limit)
	}
	return int64(v), nil
}

// genName names a generation for display; the transient relocation slot
// prints as "scratch".
func genName(h *heap.Heap, g int) string {
	if g == h.Scratch() {
		return "scratch"
	}
	return strconv.Itoa(g)
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...interface{}) {
	if !quiet {
		pr.Fprintf(os.Stdout, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...interface{}) {
	if verbose && !quiet {
		pr.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
