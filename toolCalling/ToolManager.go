package toolCalling

import (
	"context"
	"fmt"
	"sync"
	"time"

	"modelrelay/driver"
)

// ToolHandler is one executable capability. Parameters returns the JSON
// schema advertised to the model.
type ToolHandler interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// Registry dispatches tool invocations to registered handlers. It implements
// driver.ToolExecutor.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]ToolHandler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]ToolHandler)}
}

func (r *Registry) Register(handler ToolHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[handler.Name()] = handler
}

func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, name)
}

// Specs exports every registered handler as a driver ToolSpec, ready to be
// attached to a request.
func (r *Registry) Specs() []driver.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var specs []driver.ToolSpec
	for _, h := range r.handlers {
		specs = append(specs, driver.ToolSpec{
			ID:          h.Name(),
			Description: h.Description(),
			Parameters:  h.Parameters(),
		})
	}
	return specs
}

// ExecuteTool implements driver.ToolExecutor. An unregistered name is an
// executor error; a handler error becomes a Success=false result (the tool
// ran and failed on its own terms). Timing covers the handler call only.
func (r *Registry) ExecuteTool(ctx context.Context, name string, args map[string]interface{}) (driver.ToolResult, error) {
	r.mu.RLock()
	handler, exists := r.handlers[name]
	r.mu.RUnlock()
	if !exists {
		return driver.ToolResult{}, fmt.Errorf("%s is not registered", name)
	}

	started := time.Now()
	out, err := handler.Execute(ctx, args)
	finished := time.Now()
	timing := &driver.ToolTiming{
		StartTime: started,
		EndTime:   finished,
		Duration:  finished.Sub(started),
	}

	if err != nil {
		return driver.ToolResult{
			Success: false,
			Output:  map[string]interface{}{"error": err.Error()},
			Timing:  timing,
		}, nil
	}
	return driver.ToolResult{Success: true, Output: out, Timing: timing}, nil
}
