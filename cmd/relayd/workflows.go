package main

import (
	"fmt"

	"github.com/relaypro/relay-go/logkeys"
	"github.com/relaypro/relay-go/workflow"
	"github.com/relaypro/relay-go/workflow/buttons"
	"github.com/relaypro/relay-go/workflow/deviceinfo"
	"github.com/relaypro/relay-go/workflow/hello"
	"github.com/relaypro/relay-go/workflow/leds"
	"github.com/relaypro/relay-go/workflow/timers"

	"github.com/micromdm/nanolib/log"
)

type registerer interface {
	RegisterWorkflow(b workflow.Builder) error
}

func registerWorkflows(logger log.Logger, r registerer) error {
	for _, b := range []workflow.Builder{
		hello.New(logger.With(logkeys.WorkflowName, hello.DefaultWorkflowName)),
		timers.New(logger.With(logkeys.WorkflowName, timers.DefaultWorkflowName)),
		buttons.New(logger.With(logkeys.WorkflowName, buttons.DefaultWorkflowName)),
		leds.New(logger.With(logkeys.WorkflowName, leds.DefaultWorkflowName)),
		deviceinfo.New(logger.With(logkeys.WorkflowName, deviceinfo.DefaultWorkflowName)),
	} {
		if err := r.RegisterWorkflow(b); err != nil {
			return fmt.Errorf("registering %s workflow: %w", b.Name(), err)
		}
	}
	return nil
}
