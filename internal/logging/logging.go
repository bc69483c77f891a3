// Package logging builds the go-kit logger used by the command line tools.
package logging

import (
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Levels accepted by New.
var Levels = []string{"debug", "info", "warn", "error"}

// New returns a logfmt logger writing to w with a UTC timestamp, filtered
// at levelName.
func New(w io.Writer, levelName string) (log.Logger, error) {
	opt, err := filter(levelName)
	if err != nil {
		return nil, err
	}
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	return level.NewFilter(logger, opt), nil
}

// ValidLevel reports whether name is accepted by New.
func ValidLevel(name string) error {
	_, err := filter(name)
	return err
}

func filter(name string) (level.Option, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return level.AllowDebug(), nil
	case "", "info":
		return level.AllowInfo(), nil
	case "warn", "warning":
		return level.AllowWarn(), nil
	case "error":
		return level.AllowError(), nil
	default:
		return nil, errors.Newf("logging: unknown level %q (want one of %s)", name, strings.Join(Levels, ", "))
	}
}
