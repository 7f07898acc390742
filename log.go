package gocfb

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// logger is silent by default. Parsing untrusted office files can emit a lot
// of detail which is only interesting while debugging a broken container.
var logger = &logrus.Logger{
	Out:       io.Discard,
	Formatter: new(logrus.TextFormatter),
	Level:     logrus.WarnLevel,
}

// EnableDebug routes the package's debug output to stdout.
func EnableDebug() {
	logger.Out = os.Stdout
	logger.Level = logrus.DebugLevel
}

// DisableDebug silences the package's debug output again.
func DisableDebug() {
	logger.Out = io.Discard
	logger.Level = logrus.WarnLevel
}
