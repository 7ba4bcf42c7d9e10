package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger initializes the zerolog logger with the specified debug mode and output format.
// Logs go to stderr so command output on stdout stays machine readable.
func InitLogger(debug, human bool) {
	zerolog.TimeFieldFormat = time.RFC3339Nano                 // always initialize base logger with timestamp.
	base := zerolog.New(os.Stderr).With().Timestamp().Logger() // initialize base logger.
	if human {
		log.Logger = base.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339Nano,
		}) // select output format.
	} else {
		log.Logger = base // use JSON logger.
	}
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel) // set debug level.
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel) // set info level.
	}
}

// LogPluginInitFailure logs a plugin that could not be initialized and was left out of the registry.
func LogPluginInitFailure(name, kind string, err error) {
	log.Error().
		Str("event", "plugin_init_failed").
		Str("plugin", name).
		Str("kind", kind).
		Err(err).
		Msg("failed to initialize plugin")
}

// LogHookFailure logs a file type plugin that failed while running for an occasion.
func LogHookFailure(plugin, occasion, path string, err error, stack []byte) {
	log.Error().
		Str("event", "hook_failed").
		Str("plugin", plugin).
		Str("occasion", occasion).
		Str("path", path).
		Err(err).
		Str("stack", string(stack)).
		Msgf("running file type plugin %s failed", plugin)
}

// LogConversion logs a finished conversion with structured fields.
func LogConversion(input, output, inputPlugin, outputPlugin string, took time.Duration) {
	log.Info().
		Str("event", "conversion_done").
		Str("input", input).
		Str("output", output).
		Str("input_plugin", inputPlugin).
		Str("output_plugin", outputPlugin).
		Str("duration", took.String()).
		Msg("converted book")
}
