package pipeline

// WebSocketHub pushes run updates to connected clients.
type WebSocketHub interface {
	BroadcastUpdate(eventType, step, status string, metadata interface{})
}

// ProgressReporter is implemented by steps that report fine grained
// progress while they work.
type ProgressReporter interface {
	ReportProgress(progress int, message string) error
}

// SpecResolver finds the pipeline definition for a run by name.
type SpecResolver interface {
	Resolve(name string) (*Spec, error)
}

// StepOptions carries the optional collaborators handed to the built
// in steps. The run manifest is not here because it is per run; steps
// reach it through the run state.
type StepOptions struct {
	Broadcaster *StatusBroadcaster
	Tracer      *RunTracer
}
