package telemetry

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/opforge/opforge/pkg/buildload"
	"github.com/opforge/opforge/pkg/operations"
)

// OperationListener turns operation notifications into spans, log lines,
// metrics and events.
type OperationListener struct {
	logger  *Logger
	tracer  *Tracer
	metrics *Metrics
	events  *EventPublisher

	mu    sync.Mutex
	spans map[string]trace.Span
}

var _ operations.Listener = (*OperationListener)(nil)

// NewOperationListener creates a listener reporting to the given sinks.
func NewOperationListener(logger *Logger, tracer *Tracer, metrics *Metrics, events *EventPublisher) *OperationListener {
	return &OperationListener{
		logger:  logger,
		tracer:  tracer,
		metrics: metrics,
		events:  events,
		spans:   make(map[string]trace.Span),
	}
}

// Started implements operations.Listener.
func (l *OperationListener) Started(ctx context.Context, op operations.OperationInfo) {
	l.mu.Lock()
	if parent, ok := l.spans[op.ParentID]; ok {
		ctx = trace.ContextWithSpan(ctx, parent)
	}
	_, span := l.tracer.StartOperationSpan(ctx, op)
	l.spans[op.ID] = span
	l.mu.Unlock()

	logger := l.operationLogger(op)
	l.metrics.RecordOperationStarted()
	if err := l.events.PublishOperationStarted(op); err != nil {
		logger.WithError(err).Warn("Failed to publish operation event")
	}

	logger.Debug(op.Descriptor.ProgressDisplayName)
}

// Finished implements operations.Listener.
func (l *OperationListener) Finished(ctx context.Context, op operations.OperationInfo, outcome operations.Outcome) {
	l.mu.Lock()
	span, ok := l.spans[op.ID]
	delete(l.spans, op.ID)
	l.mu.Unlock()

	if ok {
		if outcome.Status != "" {
			span.SetAttributes(AttrOperationStatus.String(outcome.Status))
		}
		if outcome.Failed() {
			var oe *operations.OperationError
			if errors.As(outcome.Err, &oe) {
				span.SetAttributes(AttrErrorClass.String(string(oe.Class)), AttrErrorCode.String(oe.Code))
			}
			RecordError(span, outcome.Err)
		} else {
			RecordSuccess(span)
		}
		span.End(trace.WithTimestamp(outcome.EndedAt))
	}

	logger := l.operationLogger(op)
	l.metrics.RecordOperationFinished(op.Descriptor.DisplayName, outcome)
	if err := l.events.PublishOperationFinished(op, outcome); err != nil {
		logger.WithError(err).Warn("Failed to publish operation event")
	}

	logger = logger.WithField("duration", outcome.Duration().String())
	if outcome.Failed() {
		logger.WithError(outcome.Err).Warn(op.Descriptor.DisplayName + " failed")
		return
	}
	logger.Debug(op.Descriptor.DisplayName + " finished")
}

func (l *OperationListener) operationLogger(op operations.OperationInfo) *Logger {
	logger := l.logger.WithOperationID(op.ID)
	if op.ParentID != "" {
		logger = logger.WithField("parent_id", op.ParentID)
	}
	return logger
}

// BuildListener reports loaded builds to the log, metrics and events.
type BuildListener struct {
	logger  *Logger
	metrics *Metrics
	events  *EventPublisher
}

var _ buildload.BuildListener = (*BuildListener)(nil)

// NewBuildListener creates a build listener reporting to the given sinks.
func NewBuildListener(logger *Logger, metrics *Metrics, events *EventPublisher) *BuildListener {
	return &BuildListener{logger: logger, metrics: metrics, events: events}
}

// ProjectsLoaded implements buildload.BuildListener.
func (l *BuildListener) ProjectsLoaded(ctx context.Context, build buildload.Build) {
	logger := l.logger.WithBuild(build.IdentityPath())
	root := build.RootProject()
	if root == nil {
		logger.Warn("Build finished loading without a root project")
		return
	}

	count := countProjects(root)
	l.metrics.SetProjectsLoaded(count)
	if err := l.events.PublishProjectsLoaded(build.IdentityPath(), root.Name(), count); err != nil {
		logger.WithError(err).Warn("Failed to publish build event")
	}

	logger.
		WithField("root_project", root.Name()).
		WithField("projects", count).
		Info("Projects loaded")
}

func countProjects(p buildload.Project) int {
	n := 1
	for _, c := range p.ChildProjects() {
		if c != nil {
			n += countProjects(c)
		}
	}
	return n
}
