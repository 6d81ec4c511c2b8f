package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/trace"

	"prepcli/internal/dataset"
	"prepcli/internal/exporter"
	"prepcli/internal/profile"
)

// StepDeps bundles the collaborators the built in steps need.
type StepDeps struct {
	Loader   *dataset.Loader
	Profiler *profile.Profiler
	Exporter *exporter.DatasetExporter
	Reports  *exporter.ReportExporter
	Specs    SpecResolver
	Options  StepOptions
}

// RegisterPipelineSteps registers the built in load, clean, profile
// and export steps on the manager, chained in that order.
func RegisterPipelineSteps(m *Manager, deps StepDeps) error {
	steps := []Step{
		NewLoadStep(deps.Loader, deps.Specs, deps.Options),
		NewCleanStep(deps.Specs, deps.Options),
		NewProfileStep(deps.Profiler, deps.Reports, deps.Specs, deps.Options),
		NewExportStep(deps.Exporter, deps.Specs, deps.Options),
	}
	for _, step := range steps {
		if err := m.RegisterStep(step); err != nil {
			return err
		}
	}
	return nil
}

func reportStepProgress(ctx context.Context, opts StepOptions, state *RunState, stepID string, progress int, message string) {
	if opts.Broadcaster != nil {
		opts.Broadcaster.UpdateStepProgress(state.ID, stepID, progress, message)
	}
	if opts.Tracer != nil {
		opts.Tracer.RecordStepProgress(ctx, stepID, progress, message)
	}
}

// LoadStep reads the source file into the run state.
type LoadStep struct {
	BaseStep
	loader *dataset.Loader
	specs  SpecResolver
	opts   StepOptions
}

// NewLoadStep creates the load step.
func NewLoadStep(loader *dataset.Loader, specs SpecResolver, opts StepOptions) *LoadStep {
	return &LoadStep{
		BaseStep: NewBaseStep(StepIDLoad, StepNameLoad, nil),
		loader:   loader,
		specs:    specs,
		opts:     opts,
	}
}

// Validate requires a loader and a source path, either from the run
// request or from the pipeline definition.
func (s *LoadStep) Validate(state *RunState) error {
	if s.loader == nil {
		return fmt.Errorf("no loader configured")
	}
	if s.sourcePath(state) == "" {
		return fmt.Errorf("no source file configured")
	}
	return nil
}

// Execute loads the dataset and records its provenance.
func (s *LoadStep) Execute(ctx context.Context, state *RunState) error {
	source := s.sourcePath(state)

	reportStepProgress(ctx, s.opts, state, s.ID(), 10,
		fmt.Sprintf("Loading %s", filepath.Base(source)))

	loadStart := time.Now()
	loadCtx := ctx
	var loadSpan trace.Span
	if s.opts.Tracer != nil {
		loadCtx, loadSpan = s.opts.Tracer.TraceDatasetLoad(ctx, source)
	}

	ds, err := s.loader.Load(loadCtx, source)

	if s.opts.Tracer != nil {
		rows, cols := 0, 0
		if ds != nil {
			rows, cols = ds.Rows(), ds.Cols()
		}
		s.opts.Tracer.RecordDatasetLoadCompletion(loadCtx, loadSpan, rows, cols, time.Since(loadStart), err)
		loadSpan.End()
	}

	if err != nil {
		return fmt.Errorf("failed to load %s: %w", source, err)
	}

	state.SetDataset(ds)
	if manifest := state.Manifest(); manifest != nil {
		manifest.RecordSource(ds.Source, ds.Fingerprint, ds.Rows(), ds.Cols())
	}
	if stepState := state.GetStep(s.ID()); stepState != nil {
		stepState.SetMetadata("rows", ds.Rows())
		stepState.SetMetadata("cols", ds.Cols())
	}

	reportStepProgress(ctx, s.opts, state, s.ID(), 100,
		fmt.Sprintf("Loaded %d rows, %d columns", ds.Rows(), ds.Cols()))
	return nil
}

// sourcePath picks the request source over the pipeline default.
func (s *LoadStep) sourcePath(state *RunState) string {
	if v, ok := state.GetConfig(ContextKeySourcePath); ok {
		if path, ok := v.(string); ok && path != "" {
			return path
		}
	}
	if s.specs != nil && state.Pipeline != "" {
		if spec, err := s.specs.Resolve(state.Pipeline); err == nil && spec.Source != "" {
			return spec.Source
		}
	}
	return ""
}

// CleanStep applies the pipeline's transforms to the working dataset,
// strictly in declaration order.
type CleanStep struct {
	BaseStep
	specs SpecResolver
	opts  StepOptions
}

// NewCleanStep creates the clean step.
func NewCleanStep(specs SpecResolver, opts StepOptions) *CleanStep {
	return &CleanStep{
		BaseStep: NewBaseStep(StepIDClean, StepNameClean, []string{StepIDLoad}),
		specs:    specs,
		opts:     opts,
	}
}

// Validate requires a loaded dataset and a resolvable pipeline.
func (s *CleanStep) Validate(state *RunState) error {
	if state.Dataset() == nil {
		return fmt.Errorf("no dataset loaded")
	}
	if s.specs == nil {
		return fmt.Errorf("no pipeline specs configured")
	}
	if _, err := s.specs.Resolve(state.Pipeline); err != nil {
		return err
	}
	return nil
}

// Execute applies each declared transform in order, recording every
// shape change in the manifest. The first failing transform fails the
// step; nothing after it runs.
func (s *CleanStep) Execute(ctx context.Context, state *RunState) error {
	spec, err := s.specs.Resolve(state.Pipeline)
	if err != nil {
		return err
	}

	ds := state.Dataset()
	df := ds.Frame
	manifest := state.Manifest()
	total := len(spec.Steps)

	for i, stepSpec := range spec.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}

		tr, err := stepSpec.BuildTransform()
		if err != nil {
			return fmt.Errorf("step %s: %w", stepSpec.ID, err)
		}

		if manifest != nil {
			manifest.RecordStepStart(stepSpec.ID, transformTitle(stepSpec), df.Nrow(), df.Ncol())
		}

		out, err := tr.Apply(df)
		if err != nil {
			if manifest != nil {
				manifest.RecordStepFailure(stepSpec.ID, err)
			}
			return fmt.Errorf("step %s: %w", stepSpec.ID, err)
		}
		df = out

		if manifest != nil {
			manifest.RecordStepCompletion(stepSpec.ID, df.Nrow(), df.Ncol(), map[string]interface{}{
				"transform": tr.Name(),
			})
		}

		reportStepProgress(ctx, s.opts, state, s.ID(), (i+1)*100/total,
			fmt.Sprintf("Applied %s (%d/%d)", stepSpec.ID, i+1, total))
	}

	cleaned := dataset.New(ds.Name, df)
	cleaned.Source = ds.Source
	cleaned.Format = ds.Format
	cleaned.Fingerprint = dataset.FingerprintRecords(df.Records())
	state.SetDataset(cleaned)

	if stepState := state.GetStep(s.ID()); stepState != nil {
		stepState.SetMetadata("transforms", total)
		stepState.SetMetadata("rows_out", cleaned.Rows())
		stepState.SetMetadata("cols_out", cleaned.Cols())
	}
	return nil
}

// transformTitle labels a manifest entry with the step ID and kind.
func transformTitle(st StepSpec) string {
	return fmt.Sprintf("%s (%s)", st.ID, st.Transform)
}

// ProfileStep writes a JSON profile of the cleaned dataset to the
// reports directory.
type ProfileStep struct {
	BaseStep
	profiler *profile.Profiler
	reports  *exporter.ReportExporter
	specs    SpecResolver
	opts     StepOptions
}

// NewProfileStep creates the profile step.
func NewProfileStep(profiler *profile.Profiler, reports *exporter.ReportExporter, specs SpecResolver, opts StepOptions) *ProfileStep {
	return &ProfileStep{
		BaseStep: NewBaseStep(StepIDProfile, StepNameProfile, []string{StepIDClean}),
		profiler: profiler,
		reports:  reports,
		specs:    specs,
		opts:     opts,
	}
}

// Validate requires a profiler and a loaded dataset.
func (s *ProfileStep) Validate(state *RunState) error {
	if s.profiler == nil || s.reports == nil {
		return fmt.Errorf("no profiler configured")
	}
	if state.Dataset() == nil {
		return fmt.Errorf("no dataset loaded")
	}
	return nil
}

// Execute profiles the dataset, unless the pipeline disabled it.
func (s *ProfileStep) Execute(ctx context.Context, state *RunState) error {
	if !s.profilingEnabled(state) {
		reportStepProgress(ctx, s.opts, state, s.ID(), 100, "Profiling disabled for this pipeline")
		return nil
	}

	ds := state.Dataset()
	prof, err := s.profiler.Profile(ctx, ds)
	if err != nil {
		return fmt.Errorf("failed to profile %s: %w", ds.Name, err)
	}

	artifact := ds.Name + "_profile.json"
	if err := s.reports.ExportProfileJSON(prof, artifact); err != nil {
		return fmt.Errorf("failed to write profile report: %w", err)
	}

	written := s.reports.ArtifactPath(artifact)
	if manifest := state.Manifest(); manifest != nil {
		manifest.RecordOutput(OutputInfo{
			Path:      written,
			Format:    "json",
			Rows:      prof.Rows,
			Cols:      prof.Cols,
			CreatedAt: time.Now(),
			CreatedBy: StepIDProfile,
		})
	}
	if stepState := state.GetStep(s.ID()); stepState != nil {
		stepState.SetMetadata("report", written)
		stepState.SetMetadata("columns", len(prof.Columns))
	}

	reportStepProgress(ctx, s.opts, state, s.ID(), 100,
		fmt.Sprintf("Profiled %d columns", len(prof.Columns)))
	return nil
}

// profilingEnabled reads the pipeline's profile flag, defaulting to
// profiling when the run has no pipeline definition.
func (s *ProfileStep) profilingEnabled(state *RunState) bool {
	if s.specs == nil || state.Pipeline == "" {
		return true
	}
	spec, err := s.specs.Resolve(state.Pipeline)
	if err != nil {
		return true
	}
	return spec.Profile
}

// ExportStep writes the cleaned dataset to its output file.
type ExportStep struct {
	BaseStep
	exporter *exporter.DatasetExporter
	specs    SpecResolver
	opts     StepOptions
}

// NewExportStep creates the export step.
func NewExportStep(exp *exporter.DatasetExporter, specs SpecResolver, opts StepOptions) *ExportStep {
	return &ExportStep{
		BaseStep: NewBaseStep(StepIDExport, StepNameExport, []string{StepIDProfile}),
		exporter: exp,
		specs:    specs,
		opts:     opts,
	}
}

// Validate requires an exporter and a loaded dataset.
func (s *ExportStep) Validate(state *RunState) error {
	if s.exporter == nil {
		return fmt.Errorf("no exporter configured")
	}
	if state.Dataset() == nil {
		return fmt.Errorf("no dataset loaded")
	}
	return nil
}

// Execute writes the dataset to the output target and records the
// artifact in the manifest.
func (s *ExportStep) Execute(ctx context.Context, state *RunState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ds := state.Dataset()
	target := s.outputTarget(state, ds)

	reportStepProgress(ctx, s.opts, state, s.ID(), 10, fmt.Sprintf("Writing %s", target))

	result, err := s.exporter.Export(ds, target)
	if err != nil {
		return fmt.Errorf("failed to export %s: %w", ds.Name, err)
	}

	if manifest := state.Manifest(); manifest != nil {
		manifest.RecordOutput(OutputInfo{
			Path:        result.Path,
			Format:      string(result.Format),
			Rows:        result.Rows,
			Cols:        result.Cols,
			Fingerprint: result.Fingerprint,
			CreatedAt:   result.WrittenAt,
			CreatedBy:   StepIDExport,
		})
	}
	state.SetContext(ContextKeyExportPath, result.Path)
	if stepState := state.GetStep(s.ID()); stepState != nil {
		stepState.SetMetadata("path", result.Path)
		stepState.SetMetadata("rows", result.Rows)
	}

	reportStepProgress(ctx, s.opts, state, s.ID(), 100,
		fmt.Sprintf("Wrote %d rows to %s", result.Rows, filepath.Base(result.Path)))
	return nil
}

// outputTarget picks the output file: the pipeline's declared output,
// or a name derived from the dataset, joined onto the requested output
// directory when one was given.
func (s *ExportStep) outputTarget(state *RunState, ds *dataset.Dataset) string {
	target := ""
	if s.specs != nil && state.Pipeline != "" {
		if spec, err := s.specs.Resolve(state.Pipeline); err == nil {
			target = spec.Output
		}
	}
	if target == "" {
		target = ds.Name + "_cleaned.csv"
	}

	if v, ok := state.GetConfig(ContextKeyOutputDir); ok {
		if dir, ok := v.(string); ok && dir != "" && !filepath.IsAbs(target) {
			return filepath.Join(dir, target)
		}
	}
	return target
}
