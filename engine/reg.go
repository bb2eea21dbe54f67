package engine

import (
	"sort"

	"github.com/relaypro/relay-go/workflow"
)

// RegisterWorkflow associates b with the engine by name.
func (e *Engine) RegisterWorkflow(b workflow.Builder) error {
	e.workflowsMu.Lock()
	defer e.workflowsMu.Unlock()
	e.workflows[b.Name()] = b
	e.logger.Debug("msg", "registered workflow", "name", b.Name())
	return nil
}

// UnregisterWorkflow dissociates the named workflow from the engine by name.
// Live sessions of the workflow are unaffected.
func (e *Engine) UnregisterWorkflow(name string) error {
	e.workflowsMu.Lock()
	defer e.workflowsMu.Unlock()
	if _, ok := e.workflows[name]; ok {
		delete(e.workflows, name)
		e.logger.Debug("msg", "unregistered workflow", "name", name)
	} else {
		e.logger.Info(
			"msg", "unregistered workflow",
			"name", name,
			"err", "workflow name not found",
		)
	}
	return nil
}

// Workflow returns the registered workflow by name.
func (e *Engine) Workflow(name string) workflow.Builder {
	e.workflowsMu.RLock()
	defer e.workflowsMu.RUnlock()
	return e.workflows[name]
}

// WorkflowRegistered returns true if the workflow name is registered.
func (e *Engine) WorkflowRegistered(name string) bool {
	e.workflowsMu.RLock()
	defer e.workflowsMu.RUnlock()
	_, ok := e.workflows[name]
	return ok
}

// WorkflowNames returns the sorted names of the registered workflows.
func (e *Engine) WorkflowNames() []string {
	e.workflowsMu.RLock()
	defer e.workflowsMu.RUnlock()
	names := make([]string, 0, len(e.workflows))
	for name := range e.workflows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
