package network

import "fmt"

// Logger collects model-consistency warnings so they travel with the results
// instead of going to a global sink.
type Logger struct {
	warnings []string
}

func (l *Logger) Warnf(format string, args ...any) {
	if l == nil {
		return
	}
	l.warnings = append(l.warnings, fmt.Sprintf(format, args...))
}

func (l *Logger) Warnings() []string {
	if l == nil {
		return nil
	}
	return l.warnings
}

func (l *Logger) Empty() bool { return l == nil || len(l.warnings) == 0 }
