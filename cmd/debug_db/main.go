// debug_db prints the most recent rows of the order journal.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/vitos/edgex_trade_bot/internal/infrastructure/storage"
)

func main() {
	dbPath := flag.String("db", "bot.db", "path to the journal database")
	limit := flag.Int("n", 50, "number of entries to show")
	flag.Parse()

	store, err := storage.NewSQLiteStore(*dbPath)
	if err != nil {
		fmt.Printf("Failed to init sqlite: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	entries, err := store.ListEntries(context.Background(), *limit)
	if err != nil {
		fmt.Printf("Failed to list journal: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Found %d entries:\n", len(entries))
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tEVENT\tSTRATEGY\tSYMBOL\tSIDE\tTYPE\tAMOUNT\tPRICE\tORDER\tREASON")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%g\t%g\t%s\t%s\n",
			e.ID, e.CreatedAt.Format("2006-01-02 15:04:05"), e.Event, e.Strategy,
			e.Symbol, e.Side, e.Type, e.Amount, e.Price, e.OrderID, e.Reason)
	}
	tw.Flush()
}
