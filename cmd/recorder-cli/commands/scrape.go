package commands

import (
	"os"
	"strings"
	"time"

	"recorder-scraper/lib/configutil"
	"recorder-scraper/lib/fetch"
	"recorder-scraper/lib/serviceutil"
	"recorder-scraper/lib/sqliteutil"
	"recorder-scraper/services/recorder"
	"recorder-scraper/services/recorder/db"
	"recorder-scraper/services/recorder/scraper"

	"github.com/spf13/cobra"
)

type ScrapeConfig struct {
	// root of the recorder site
	BaseUrl string `json:"base_url"`
	// PINs to harvest, any formatting
	Pins []string `json:"pins"`
	// optional file with one PIN per line, appended to Pins
	PinFile string `json:"pin_file"`
	// pause between PINs
	DelaySeconds int    `json:"delay_seconds"`
	UserAgent    string `json:"user_agent"`
}

const defaultBaseUrl = "https://crs.cookcountyclerkil.gov"

var defaultPins = []string{
	"17-29-304-001-0000",
	"17-05-115-085-0000",
	"16-10-421-053-0000",
}

func init() {
	scrapeCmd.Flags().String("config", "config.json5", "path to the scrape configuration")
	scrapeCmd.Flags().String("db", "data/recorder.db", "path to the sqlite database")
	scrapeCmd.Flags().String("checkpoint", "", "track completed PINs in this text file instead of the database")
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Harvest document metadata for the configured PINs into sqlite.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		configPath, err := cmd.Flags().GetString("config")
		if err != nil {
			serviceutil.Fatal("could not get --config", err)
		}
		config, err := configutil.ReadConfig[ScrapeConfig](configPath)
		if err != nil && !os.IsNotExist(err) {
			serviceutil.Fatal("failed to read config", err)
		}
		if config.BaseUrl == "" {
			config.BaseUrl = defaultBaseUrl
		}
		if config.PinFile != "" {
			filePins, err := readPinFile(config.PinFile)
			if err != nil {
				serviceutil.Fatal("failed to read pin file", err)
			}
			config.Pins = append(config.Pins, filePins...)
		}
		if len(config.Pins) == 0 {
			config.Pins = defaultPins
		}

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

		var progress scraper.Progress = store
		checkpoint, err := cmd.Flags().GetString("checkpoint")
		if err != nil {
			serviceutil.Fatal("could not get --checkpoint", err)
		}
		if checkpoint != "" {
			progress, err = recorder.NewFileProgress(checkpoint)
			if err != nil {
				serviceutil.Fatal("failed to open checkpoint file", err)
			}
		}

		client := fetch.NewClient(fetch.Options{
			UserAgent: config.UserAgent,
		})
		s, err := scraper.New(client, store, progress, scraper.Options{
			BaseUrl: config.BaseUrl,
			Pins:    config.Pins,
			Delay:   time.Duration(config.DelaySeconds) * time.Second,
		})
		if err != nil {
			serviceutil.Fatal("failed to create scraper", err)
		}

		sum := s.Run(ctx)
		if len(sum.Failed) > 0 {
			serviceutil.Fatal("some pins failed, re-run to retry them",
				&pinFailure{pins: sum.Failed})
		}
	},
}

type pinFailure struct {
	pins []string
}

func (e *pinFailure) Error() string {
	return strings.Join(e.pins, ", ")
}

func readPinFile(path string) ([]string, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pins []string
	for _, line := range strings.Split(string(contents), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			pins = append(pins, line)
		}
	}
	return pins, nil
}
