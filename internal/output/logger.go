package output

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger points the global logger at a JSON log file so that the status line
// on stdout stays intact. The returned closer flushes and closes that file.
func InitLogger(debug bool, path string) (io.Closer, error) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	log.Logger = zerolog.New(f).With().Timestamp().Logger()
	return f, nil
}

// WithRun tags every following log line with the run id.
func WithRun(runID string) {
	log.Logger = log.With().Str("run", runID).Logger()
}
