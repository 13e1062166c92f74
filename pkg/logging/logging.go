package logging

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

//Log output formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

//New creates a logger writing to out at the named level ("debug", "info", ...)
// in the named format
func New(out io.Writer, level, format string) (*logrus.Logger, error) {
	log := logrus.New()
	if err := Configure(log, out, level, format); err != nil {
		return nil, err
	}
	return log, nil
}

//Configure applies output, level and format to an existing logger, loggers
// already handed out pick up the change
func Configure(log *logrus.Logger, out io.Writer, level, format string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("Could not parse log level %q: %w", level, err)
	}

	var formatter logrus.Formatter
	switch format {
	case "", FormatText:
		formatter = &logrus.TextFormatter{FullTimestamp: true}
	case FormatJSON:
		formatter = &logrus.JSONFormatter{}
	default:
		return fmt.Errorf("Could not use log format %q, expected %q or %q", format, FormatText, FormatJSON)
	}

	log.SetOutput(out)
	log.SetLevel(lvl)
	log.SetFormatter(formatter)
	return nil
}
