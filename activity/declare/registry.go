package declare

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dshills/activity-go/activity"
	"github.com/dshills/activity-go/activity/varmap"
)

// Registry holds the tasks and methods a document may refer to by name.
type Registry struct {
	tasks   map[string]activity.Task
	methods varmap.Methods
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tasks:   make(map[string]activity.Task),
		methods: make(varmap.Methods),
	}
}

// RegisterTask registers task under name. A *dsl.Activity registered here
// can be used as a subprocess.
func (r *Registry) RegisterTask(name string, task activity.Task) error {
	if name == "" {
		return errors.New("task name cannot be empty")
	}
	if task == nil {
		return fmt.Errorf("task %q cannot be nil", name)
	}
	if _, exists := r.tasks[name]; exists {
		return &activity.DuplicateIDError{ID: name}
	}
	r.tasks[name] = task
	return nil
}

// RegisterMethod registers fn for method steps and method filters.
func (r *Registry) RegisterMethod(name string, fn activity.StepFunc) error {
	if name == "" {
		return errors.New("method name cannot be empty")
	}
	if fn == nil {
		return fmt.Errorf("method %q cannot be nil", name)
	}
	if _, exists := r.methods[name]; exists {
		return &activity.DuplicateIDError{ID: name}
	}
	r.methods[name] = fn
	return nil
}

// Task returns the task registered under name.
func (r *Registry) Task(name string) (activity.Task, error) {
	t, ok := r.tasks[name]
	if !ok {
		return nil, &activity.ReferenceError{Kind: "task", ID: name}
	}
	return t, nil
}

// Methods returns the registered methods.
func (r *Registry) Methods() varmap.Methods { return r.methods }

// Tasks returns the registered task names, sorted.
func (r *Registry) Tasks() []string {
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
