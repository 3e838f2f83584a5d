package main

import (
	"aopskey/cmd/aopskey/commands"
	"aopskey/lib/serviceutil"
	"aopskey/lib/telemetry"
)

func main() {
	// Ctrl+C cancels the command context; a running extraction winds down
	// and reports what it finished
	ctx := serviceutil.SignalContext()
	telemetry.SetupFromEnv(ctx, "aopskey")
	telemetry.InitSlog(true)
	commands.ExecuteContext(ctx)
}
