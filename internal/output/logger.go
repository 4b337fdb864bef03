/*
PURPOSE:
  Provides a structured logger for Canopy Bench.
  Wraps slog for consistent output.

REQUIREMENTS:
  User-specified:
  - "Sane" CLI output. Not spammy.

  Implementation-discovered:
  - Needs to support Info/Warn/Error levels.
  - Quiet mode raises the level so only errors surface.

ARCHITECTURE INTEGRATION:
  - Used everywhere.

ERROR HANDLING:
  - N/A

IMPLEMENTATION RULES:
  - Use `log/slog` (Go 1.21+).

USAGE:
  output.Logger.Info("message", "key", "value")

RELATED FILES:
  - All.

MAINTENANCE:
  - Configurable log levels?
*/

package output

import (
	"log/slog"
	"os"
)

var Logger *slog.Logger

func init() {
	// Default generic logger. Logs go to stderr so `-o json` stdout
	// stays machine-parseable.
	Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
}

// SetLogger allows overriding the default logger (e.g. for testing or config changes)
func SetLogger(l *slog.Logger) {
	Logger = l
}

// SetQuiet swaps in a logger that only reports errors.
func SetQuiet() {
	Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}
