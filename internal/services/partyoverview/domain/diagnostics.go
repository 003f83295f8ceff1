package domain

import (
	"fmt"
	"log"
)

// Diagnostic records an actor whose ruleset projection failed.
type Diagnostic struct {
	ActorID   string
	ActorName string
	Err       error
}

// Error renders the diagnostic as an error message.
func (d Diagnostic) Error() string {
	return fmt.Sprintf("couldn't load actor %q (ID: %q): %v", d.ActorName, d.ActorID, d.Err)
}

// Unwrap exposes the underlying projection error.
func (d Diagnostic) Unwrap() error {
	return d.Err
}

// Reporter receives projection diagnostics.
type Reporter interface {
	ReportActorFailure(Diagnostic)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Diagnostic)

// ReportActorFailure calls f.
func (f ReporterFunc) ReportActorFailure(d Diagnostic) {
	if f != nil {
		f(d)
	}
}

// LogReporter writes diagnostics through a standard logger.
type LogReporter struct {
	Logger *log.Logger
}

// ReportActorFailure logs d.
func (r LogReporter) ReportActorFailure(d Diagnostic) {
	logger := r.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf("party overview: actor projection failed actor_id=%s actor_name=%q err=%v", d.ActorID, d.ActorName, d.Err)
}
