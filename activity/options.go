package activity

import (
	"context"

	"github.com/dshills/activity-go/activity/emit"
	"github.com/google/uuid"
)

// Option is a functional option for configuring a Circuit.
//
// Example:
//
//	circuit, err := activity.Compile(seq,
//	    activity.WithName("create"),
//	    activity.WithEmitter(emit.NewLogEmitter(os.Stderr, false)),
//	    activity.WithMaxSteps(100),
//	)
type Option func(*config) error

type config struct {
	name         string
	emitter      emit.Emitter
	metrics      *PrometheusMetrics
	maxSteps     int
	strictRoutes bool
	newRunID     func() string
}

func defaultConfig() config {
	return config{
		emitter:  emit.NewNullEmitter(),
		newRunID: uuid.NewString,
	}
}

// WithName names the circuit in events and metrics labels.
func WithName(name string) Option {
	return func(cfg *config) error {
		cfg.name = name
		return nil
	}
}

// WithEmitter sets the emitter that receives invocation events.
// A nil emitter discards events.
func WithEmitter(e emit.Emitter) Option {
	return func(cfg *config) error {
		if e == nil {
			e = emit.NewNullEmitter()
		}
		cfg.emitter = e
		return nil
	}
}

// WithMetrics records step latency, invocation outcomes and routing errors.
func WithMetrics(m *PrometheusMetrics) Option {
	return func(cfg *config) error {
		cfg.metrics = m
		return nil
	}
}

// WithMaxSteps limits the number of rows one invocation may run.
//
// Default: 0 (no limit). Forward search cannot loop, so this only matters
// for circuits with explicit id wiring back to an earlier row.
//
// When exceeded, Invoke returns ErrMaxStepsExceeded.
func WithMaxSteps(n int) Option {
	return func(cfg *config) error {
		if n < 0 {
			return &CompileError{Message: "max steps cannot be negative", Code: "INVALID_OPTION"}
		}
		cfg.maxSteps = n
		return nil
	}
}

// WithStrictRoutes makes Compile fail when any non-terminus connection does
// not resolve, instead of failing lazily when the route is taken.
func WithStrictRoutes() Option {
	return func(cfg *config) error {
		cfg.strictRoutes = true
		return nil
	}
}

// WithRunIDGenerator replaces the uuid generator used for run ids.
func WithRunIDGenerator(fn func() string) Option {
	return func(cfg *config) error {
		if fn == nil {
			return &CompileError{Message: "run id generator cannot be nil", Code: "INVALID_OPTION"}
		}
		cfg.newRunID = fn
		return nil
	}
}

type runIDKey struct{}

// WithRunID returns a context carrying the run id the next invocation
// should use instead of generating one.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFrom returns the run id carried by ctx.
func RunIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey{}).(string)
	return id, ok && id != ""
}
