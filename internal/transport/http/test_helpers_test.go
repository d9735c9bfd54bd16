package http

import (
	"io"

	"github.com/rs/zerolog"
)

// testLogger returns a silent logger for tests.
func testLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
