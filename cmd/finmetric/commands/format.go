package commands

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// Output helpers shared by every command

const rule = "───────────────────────────────────────────────────────────"

// banner prints a titled double-rule header
func banner(title string) {
	fmt.Println(strings.Repeat("═", 59))
	fmt.Printf("  %s\n", title)
	fmt.Println(rule)
}

func printWarning(message string) { fmt.Printf("\n⚠️  %s\n\n", message) }
func printSuccess(message string) { fmt.Printf("✅ %s\n", message) }
func printError(message string)   { fmt.Printf("❌ %s\n", message) }

// printList prints a bulleted list
func printList(items []string) {
	for _, item := range items {
		fmt.Printf("   • %s\n", item)
	}
}

// table aligns rows on tab stops
type table struct {
	w *tabwriter.Writer
}

func newTable(out io.Writer, headers ...string) *table {
	t := &table{w: tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)}
	t.row(headers...)
	under := make([]string, len(headers))
	for i, h := range headers {
		under[i] = strings.Repeat("─", len([]rune(h)))
	}
	t.row(under...)
	return t
}

func (t *table) row(values ...string) {
	fmt.Fprintln(t.w, strings.Join(values, "\t"))
}

func (t *table) flush() {
	_ = t.w.Flush()
}

func stdoutTable(headers ...string) *table {
	return newTable(os.Stdout, headers...)
}
