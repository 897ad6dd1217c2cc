package commands

import (
	"recorder-scraper/lib/fetch"
	"recorder-scraper/lib/serviceutil"
	"recorder-scraper/lib/sqliteutil"
	"recorder-scraper/services/recorder"
	"recorder-scraper/services/recorder/db"
	"recorder-scraper/services/recorder/scraper"

	"github.com/spf13/cobra"
)

func init() {
	pdfsCmd.Flags().String("db", "data/recorder.db", "path to the sqlite database")
	pdfsCmd.Flags().String("data", "data/pdfs", "directory to download pdfs into")
	rootCmd.AddCommand(pdfsCmd)
}

var pdfsCmd = &cobra.Command{
	Use:   "pdfs",
	Short: "Download the pdf for every harvested document that has one.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		dbPath, err := cmd.Flags().GetString("db")
		if err != nil {
			serviceutil.Fatal("could not get --db", err)
		}
		dataDir, err := cmd.Flags().GetString("data")
		if err != nil {
			serviceutil.Fatal("could not get --data", err)
		}

		sqlite, err := sqliteutil.OpenDB(db.Schema, dbPath)
		if err != nil {
			serviceutil.Fatal("failed to open database", err)
		}
		defer sqlite.Close()
		store := recorder.NewStore(sqlite)

		client := fetch.NewClient(fetch.Options{})
		err = scraper.DownloadPdfs(ctx, client, store, dataDir)
		if err != nil {
			serviceutil.Fatal("some pdf downloads failed", err)
		}
	},
}
