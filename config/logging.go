package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

func NewLogger(level string, format string) (*logrus.Logger, error) {
	parsedLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, errors.Join(errors.New("bad log level"), err)
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(parsedLevel)

	switch format {
	case LogFormatText:
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case LogFormatJSON:
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("log format is not supported: %q", format)
	}

	return log, nil
}
