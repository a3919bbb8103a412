// Package testutil holds small helpers shared by package tests.
package testutil

import (
	"io"

	"github.com/sirupsen/logrus"
)

// SilentLogger returns a logrus entry that discards all output.
func SilentLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}
