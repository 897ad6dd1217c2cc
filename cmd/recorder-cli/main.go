package main

import (
	"os"

	"recorder-scraper/cmd/recorder-cli/commands"
	"recorder-scraper/lib/serviceutil"
	"recorder-scraper/lib/telemetry"
)

func main() {
	ctx := serviceutil.SignalContext()

	telemetry.InitSlog(true)
	err := telemetry.SetupFromEnv(ctx, "recorder-cli")
	if err != nil && !os.IsNotExist(err) {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	if err == nil {
		telemetry.InstrumentPerfStats(ctx)
	}

	commands.ExecuteContext(ctx)
}
