// Package pipeline provides the execution framework for dataset
// preparation runs composed of ordered steps.
//
// A run loads a dataset, pushes it through a sequence of cleaning
// transforms, and hands the result to an exporter. Steps execute
// strictly one at a time, in order. The first step error fails the
// run: the failing step is marked failed, every remaining step is
// marked skipped, and the error propagates to the caller. Steps are
// never retried.
//
// Core components:
//
// Manager: orchestrates run execution. It resolves the step order,
// drives each step, and keeps the state of active runs.
//
// Step: a single unit of work. LoadStep, CleanStep, ProfileStep, and
// ExportStep cover the built-in pipeline; custom steps implement the
// same interface.
//
// Registry: holds registered steps, validates their dependencies, and
// produces the execution order.
//
// RunState: the runtime state of one run, including per step states and
// the working dataset handed from step to step.
//
// RunManifest: the durable record of a run, written as JSON next to the
// outputs, tracking the source fingerprint, per step shape changes, and
// produced files.
//
// Spec: the declarative YAML description of a pipeline, held in a
// SpecStore and resolved by name when a run executes.
//
// StatusBroadcaster: serializes state changes into snapshots and pushes
// them to WebSocket clients.
//
// RunQueue: accepts submissions and executes them one at a time on a
// single worker, so two runs never interleave.
//
// Example:
//
//	specs := pipeline.NewSpecStore()
//	manager := pipeline.NewManager(hub, nil, nil)
//	err := pipeline.RegisterPipelineSteps(manager, pipeline.StepDeps{
//		Loader:   loader,
//		Profiler: profiler,
//		Exporter: exporter.NewDatasetExporter(paths),
//		Reports:  exporter.NewReportExporter(paths),
//		Specs:    specs,
//		Options:  pipeline.StepOptions{Broadcaster: manager.GetBroadcaster()},
//	})
//
//	resp, err := manager.Execute(ctx, pipeline.RunRequest{
//		Pipeline: pipeline.DefaultPipelineName,
//		Source:   "data/input/people.csv",
//	})
package pipeline
