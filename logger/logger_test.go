package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlogLevels(t *testing.T) {
	l := NewSlog(InfoLevel, false)
	assert.Equal(t, InfoLevel, l.Level())

	l.SetLevel(DebugLevel)
	assert.Equal(t, DebugLevel, l.Level())

	l.SetLevel(ErrorLevel)
	assert.Equal(t, ErrorLevel, l.Level())

	// A child logger shares the parent's level.
	child := l.With("component", "test")
	assert.Equal(t, ErrorLevel, child.Level())
}

func TestDefaultLogger(t *testing.T) {
	orig := GetLogger()
	defer SetLogger(orig)

	l := NewSlog(WarnLevel, false)
	SetLogger(l)
	assert.Same(t, l, GetLogger())

	// nil is ignored
	SetLogger(nil)
	assert.Same(t, l, GetLogger())
}
