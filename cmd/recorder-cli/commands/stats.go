package commands

import (
	"os"

	"recorder-scraper/lib/pinutil"
	"recorder-scraper/lib/serviceutil"
	"recorder-scraper/lib/sqliteutil"
	"recorder-scraper/services/recorder"
	"recorder-scraper/services/recorder/db"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	statsCmd.Flags().String("db", "data/recorder.db", "path to the sqlite database")
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print a per-PIN rollup of harvested documents.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		dbPath, err := cmd.Flags().GetString("db")
		if err != nil {
			serviceutil.Fatal("could not get --db", err)
		}
		sqlite, err := sqliteutil.OpenDB(db.Schema, dbPath)
		if err != nil {
			serviceutil.Fatal("failed to open database", err)
		}
		defer sqlite.Close()
		store := recorder.NewStore(sqlite)

		summaries, err := store.PinSummaries(ctx)
		if err != nil {
			serviceutil.Fatal("failed to query summaries", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"PIN", "Documents", "Entities", "Completed"})
		for _, s := range summaries {
			t.AppendRow(table.Row{
				pinutil.Format(s.Pin), s.Documents, s.Entities, s.Completed,
			})
		}
		t.Render()
	},
}
