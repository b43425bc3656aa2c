package events

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/sirupsen/logrus"
)

// loggerAdapter routes watermill's internal logging through logrus.
type loggerAdapter struct {
	log logrus.FieldLogger
}

// NewLoggerAdapter wraps log as a watermill.LoggerAdapter.
func NewLoggerAdapter(log logrus.FieldLogger) watermill.LoggerAdapter {
	return &loggerAdapter{log: log.WithField("component", "watermill")}
}

func (a *loggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.log.WithFields(logrus.Fields(fields)).WithError(err).Error(msg)
}

func (a *loggerAdapter) Info(msg string, fields watermill.LogFields) {
	a.log.WithFields(logrus.Fields(fields)).Info(msg)
}

func (a *loggerAdapter) Debug(msg string, fields watermill.LogFields) {
	a.log.WithFields(logrus.Fields(fields)).Debug(msg)
}

func (a *loggerAdapter) Trace(msg string, fields watermill.LogFields) {
	a.log.WithFields(logrus.Fields(fields)).Trace(msg)
}

func (a *loggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &loggerAdapter{log: a.log.WithFields(logrus.Fields(fields))}
}
