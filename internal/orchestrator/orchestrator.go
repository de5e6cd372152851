// Package orchestrator implements forge's build orchestrator (spec §4.12,
// C12): the top-level pipeline binding config, graph, schedule, cache,
// plugins, glue, and linker into one phased run.
//
// Grounded on distr1-distri's internal/batch.scheduler.run, which drives a
// channel-based worker pool over a package DAG, refreshes a status line,
// and persists results as it goes; this package generalizes that loop into
// an explicit Phase state machine (spec §4.12 names the phases Init
// through Complete) and keeps the core free of any terminal/TUI concerns —
// those live in cmd/forge, driven by the ProgressFunc callback.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/google/renameio"
	"golang.org/x/sync/errgroup"

	"github.com/forgebuild/forge/internal/cache"
	"github.com/forgebuild/forge/internal/config"
	"github.com/forgebuild/forge/internal/errs"
	"github.com/forgebuild/forge/internal/graph"
	"github.com/forgebuild/forge/internal/iface"
	"github.com/forgebuild/forge/internal/linker"
	"github.com/forgebuild/forge/internal/plugin"
	"github.com/forgebuild/forge/internal/schedule"
	"github.com/forgebuild/forge/internal/target"
	"github.com/forgebuild/forge/internal/trace"
)

// Phase names one step of the orchestrator's state machine (spec §4.12).
type Phase string

const (
	PhaseInit                Phase = "init"
	PhaseDependencyAnalysis  Phase = "dependency_analysis"
	PhaseCompilation         Phase = "compilation"
	PhaseInterfaceExtraction Phase = "interface_extraction"
	PhaseGlueGeneration      Phase = "glue_generation"
	PhaseLinking             Phase = "linking"
	PhaseComplete            Phase = "complete"
)

// ProgressFunc receives a phase transition or per-unit progress update
// within a phase.
type ProgressFunc func(phase Phase, message string, current, total int)

// PhaseReport records the timing of one phase, for BuildRunSummary.
type PhaseReport struct {
	Phase    Phase
	Started  time.Time
	Finished time.Time
}

// BuildRunSummary is the structured end-of-run report (SPEC_FULL.md's
// promotion of the teacher's logged succeeded/failed counters to a
// first-class return value).
type BuildRunSummary struct {
	RunID         string
	StartedAt     time.Time
	FinishedAt    time.Time
	Phases        []PhaseReport
	ModulesBuilt  []string
	ModulesCached []string
	ModulesFailed []string
	Plan          string // populated only for a dry run (spec §4.12)
}

// Options configures one Orchestrator invocation.
type Options struct {
	Project  *config.ProjectConfig
	Host     *plugin.Host
	Target   target.Target
	Profile  string // cache partition key, e.g. "debug"/"release"
	DryRun   bool
	Progress ProgressFunc
}

// Orchestrator runs the full build pipeline for one project.
type Orchestrator struct {
	opts Options
	host *plugin.Host
	link *linker.Manager
}

func New(opts Options) *Orchestrator {
	host := opts.Host
	if host == nil {
		host = plugin.Default()
	}
	return &Orchestrator{opts: opts, host: host, link: linker.New()}
}

func (o *Orchestrator) progress(phase Phase, message string, current, total int) {
	if o.opts.Progress != nil {
		o.opts.Progress(phase, message, current, total)
	}
}

// Plan renders a human-readable layer-by-layer build plan without
// compiling anything (spec §4.12's dry-run short-circuit).
func (o *Orchestrator) Plan(sched *schedule.BuildSchedule) string {
	var b strings.Builder
	fmt.Fprintf(&b, "build plan (%d layers, target %s):\n", len(sched.Layers), o.opts.Target.Triple())
	for i, layer := range sched.Layers {
		fmt.Fprintf(&b, "  layer %d: %s\n", i, strings.Join(layer, ", "))
	}
	return b.String()
}

// Run executes the whole pipeline: dependency analysis, scheduling,
// per-layer compilation, interface extraction, glue generation, and
// linking, in that order (spec §4.12/§5).
func (o *Orchestrator) Run(ctx context.Context) (*BuildRunSummary, error) {
	return o.run(ctx, "")
}

// BuildTarget restricts the run to moduleName's transitive dependency
// closure (spec §4.5's targeted build, wired at the orchestrator level per
// SPEC_FULL.md's supplemented-features list).
func (o *Orchestrator) BuildTarget(ctx context.Context, moduleName string) (*BuildRunSummary, error) {
	return o.run(ctx, moduleName)
}

func (o *Orchestrator) run(ctx context.Context, targetModule string) (*BuildRunSummary, error) {
	runID := trace.RunID()
	summary := &BuildRunSummary{RunID: runID, StartedAt: time.Now().UTC()}

	o.progress(PhaseInit, "loading cache", 0, 0)
	c, err := cache.Load(o.opts.Project.Root)
	if err != nil {
		return summary, err
	}

	g, sched, err := o.phaseAnalysis(runID, summary, targetModule)
	if err != nil {
		return summary, err
	}

	if o.opts.DryRun {
		summary.Plan = o.Plan(sched)
		summary.FinishedAt = time.Now().UTC()
		return summary, nil
	}

	rebuilt := make(map[string]bool)
	interfaces := make(map[string]*iface.ModuleInterface)
	outDirs := make(map[string]string)

	if err := o.phaseCompilation(ctx, runID, summary, g, sched, c, rebuilt, outDirs); err != nil {
		_ = c.Save()
		return summary, err
	}
	if err := c.Save(); err != nil {
		return summary, err
	}

	o.phaseExtraction(ctx, runID, summary, sched, outDirs, interfaces)
	o.phaseGlue(runID, summary, sched, g, outDirs, interfaces)

	if err := o.phaseLinking(ctx, summary, sched, outDirs); err != nil {
		return summary, err
	}

	mark(summary, PhaseComplete)
	summary.FinishedAt = time.Now().UTC()
	return summary, nil
}

// mark records phase as finished now. Phases run one after another, so a
// phase started when the previously recorded phase finished (or, for the
// first one, when the run started).
func mark(summary *BuildRunSummary, phase Phase) {
	started := summary.StartedAt
	if n := len(summary.Phases); n > 0 {
		started = summary.Phases[n-1].Finished
	}
	summary.Phases = append(summary.Phases, PhaseReport{Phase: phase, Started: started, Finished: time.Now().UTC()})
}

func (o *Orchestrator) phaseAnalysis(runID string, summary *BuildRunSummary, targetModule string) (*graph.DependencyGraph, *schedule.BuildSchedule, error) {
	ev := trace.Event(runID, "dependency_analysis", "", string(PhaseDependencyAnalysis))
	defer ev.Done()
	o.progress(PhaseDependencyAnalysis, "building dependency graph", 0, 0)

	g, err := graph.Build(o.opts.Project.Modules)
	if err != nil {
		return nil, nil, err
	}

	var sched *schedule.BuildSchedule
	if targetModule != "" {
		sched, err = schedule.BuildTarget(g, targetModule)
	} else {
		sched, err = schedule.Build(g)
	}
	if err != nil {
		return nil, nil, err
	}
	mark(summary, PhaseDependencyAnalysis)
	return g, sched, nil
}

// layerConcurrency bounds a layer's parallel compiles to the smaller of the
// layer size and the host's hardware parallelism (spec §5), or
// Project.MaxJobs when the project overrides it.
func (o *Orchestrator) layerConcurrency(layerSize int) int {
	max := runtime.GOMAXPROCS(0)
	if o.opts.Project.MaxJobs > 0 {
		max = o.opts.Project.MaxJobs
	}
	if layerSize < max {
		return layerSize
	}
	return max
}

func (o *Orchestrator) phaseCompilation(ctx context.Context, runID string, summary *BuildRunSummary, g *graph.DependencyGraph, sched *schedule.BuildSchedule, c *cache.Cache, rebuilt map[string]bool, outDirs map[string]string) error {
	o.progress(PhaseCompilation, "compiling", 0, len(sched.Flatten()))
	done := 0
	for _, layer := range sched.Layers {
		grp, gctx := errgroup.WithContext(ctx)
		grp.SetLimit(o.layerConcurrency(len(layer)))

		layerResults := make(chan compileOutcome, len(layer))

		for _, name := range layer {
			name := name
			grp.Go(func() error {
				outcome := o.compileOne(gctx, runID, name, g, c, rebuilt)
				layerResults <- outcome
				return outcome.err
			})
		}

		waitErr := grp.Wait()
		close(layerResults)

		// Cache, rebuilt-set, and outDirs updates happen here, sequentially on
		// the main loop between layer completions (spec §5: "the cache is
		// updated only by the orchestrator, on the main worker loop, between
		// layer completions; plugins never touch the cache directly"), never
		// from inside the concurrent per-module goroutines above.
		for r := range layerResults {
			done++
			outDirs[r.name] = r.buildDir
			switch {
			case r.err != nil:
				summary.ModulesFailed = append(summary.ModulesFailed, r.name)
			case r.cached:
				summary.ModulesCached = append(summary.ModulesCached, r.name)
			default:
				rebuilt[r.name] = true
				c.Put(r.name, o.opts.Profile, r.entry)
				summary.ModulesBuilt = append(summary.ModulesBuilt, r.name)
			}
			o.progress(PhaseCompilation, r.name, done, len(sched.Flatten()))
		}
		if waitErr != nil {
			return waitErr
		}
	}
	mark(summary, PhaseCompilation)
	return nil
}

// compileOutcome is compileOne's result, applied to the shared cache,
// rebuilt set, and outDirs map sequentially by the caller once the whole
// layer's goroutines have finished — never concurrently (spec §5).
type compileOutcome struct {
	name     string
	buildDir string
	cached   bool
	entry    cache.CacheEntry
	err      error
}

// compileOne computes name's fingerprints and, if the cache check (a
// read-only operation against the immutable-for-this-layer c/rebuilt
// snapshot) misses, invokes its plugin's Compile. It reports its outcome
// rather than mutating any shared state directly, so many of these can run
// concurrently within one schedule layer.
func (o *Orchestrator) compileOne(ctx context.Context, runID string, name string, g *graph.DependencyGraph, c *cache.Cache, rebuilt map[string]bool) compileOutcome {
	node, _ := g.Node(name)
	m := node.Module
	buildDir := filepath.Join(o.opts.Project.OutputDir, name)

	p, ok := o.host.ByLanguage(m.Language)
	if !ok {
		return compileOutcome{name: name, buildDir: buildDir, err: &errs.ToolchainError{Module: name, Language: m.Language, Candidates: nil}}
	}

	exts := make(map[string]bool)
	for _, e := range p.Capabilities().SupportedExtensions {
		exts[strings.ToLower(e)] = true
	}
	srcHash, err := cache.SourceHash(filepath.Join(m.ModulePath, "src"), exts)
	if err != nil {
		return compileOutcome{name: name, buildDir: buildDir, err: err}
	}
	cfgHash := cache.ConfigHash(m.ConfigBytes)
	depsHash := cache.DependenciesHash(m.Dependencies)
	transitive := g.TransitiveDependencies(name)

	if _, cached := c.Check(name, o.opts.Profile, srcHash, cfgHash, depsHash, rebuilt, transitive); cached {
		return compileOutcome{name: name, buildDir: buildDir, cached: true}
	}

	ev := trace.Event(runID, "compile", name, string(PhaseCompilation))
	defer ev.Done()

	res := p.Compile(ctx, plugin.CompileInput{
		Module:   m,
		BuildDir: buildDir,
		Target:   o.opts.Target,
		Jobs:     o.layerConcurrency(1),
	})
	if res.Err != nil {
		return compileOutcome{name: name, buildDir: buildDir, err: res.Err}
	}

	return compileOutcome{
		name:     name,
		buildDir: buildDir,
		entry: cache.CacheEntry{
			SourceHash:       srcHash,
			ConfigHash:       cfgHash,
			DependenciesHash: depsHash,
			ArtifactPaths:    res.Artifacts,
			CompiledAt:       time.Now().UTC(),
			Profile:          o.opts.Profile,
		},
	}
}

func (o *Orchestrator) phaseExtraction(ctx context.Context, runID string, summary *BuildRunSummary, sched *schedule.BuildSchedule, outDirs map[string]string, interfaces map[string]*iface.ModuleInterface) {
	for _, name := range sched.Flatten() {
		m, ok := o.opts.Project.Module(name)
		if !ok {
			continue
		}
		p, ok := o.host.ByLanguage(m.Language)
		if !ok || !p.Capabilities().SupportsInterfaceExtraction {
			continue
		}
		artifact := primaryArtifact(outDirs[name], m, o.opts.Target)
		if artifact == "" {
			continue
		}
		ev := trace.Event(runID, "extract_interface", name, string(PhaseInterfaceExtraction))
		mi, err := p.ExtractInterface(ctx, artifact)
		ev.Done()
		if err != nil {
			// Non-fatal (spec §7): logged via progress, linking proceeds
			// without this module's interface.
			o.progress(PhaseInterfaceExtraction, (&errs.ExtractionError{Module: name, Err: err}).Error(), 0, 0)
			continue
		}
		if mi != nil {
			interfaces[name] = mi
		}
	}
	mark(summary, PhaseInterfaceExtraction)
}

func primaryArtifact(buildDir string, m config.ModuleConfig, t target.Target) string {
	if buildDir == "" {
		return ""
	}
	kind := target.KindSharedLib
	if m.Kind == config.KindExecutable {
		kind = target.KindExecutable
	}
	return filepath.Join(buildDir, m.Name+t.Extension(kind))
}

// phaseGlue generates glue for every dependency edge consumer -> producer
// (the consumer depends on the producer) where the producer's interface was
// extracted and the consumer's language plugin supports glue. It runs after
// interface extraction and before linking (spec §5(d)).
func (o *Orchestrator) phaseGlue(runID string, summary *BuildRunSummary, sched *schedule.BuildSchedule, g *graph.DependencyGraph, outDirs map[string]string, interfaces map[string]*iface.ModuleInterface) {
	glueDir := filepath.Join(o.opts.Project.OutputDir, "glue")

	for _, name := range sched.Flatten() {
		node, ok := g.Node(name)
		if !ok {
			continue
		}
		for _, dep := range node.Dependencies {
			mi, ok := interfaces[dep]
			if !ok {
				continue
			}
			consumer, ok := o.opts.Project.Module(name)
			if !ok {
				continue
			}
			p, ok := o.host.ByLanguage(consumer.Language)
			if !ok || !p.Capabilities().SupportsGlue {
				continue
			}
			ev := trace.Event(runID, "generate_glue", dep+"->"+name, string(PhaseGlueGeneration))
			result, err := p.GenerateGlue(mi, consumer.Language, name)
			ev.Done()
			if err != nil {
				o.progress(PhaseGlueGeneration, (&errs.GlueError{Producer: dep, Consumer: name, Err: err}).Error(), 0, 0)
				continue
			}
			if err := writeGlueFile(glueDir, result.Filename, result.Contents); err != nil {
				o.progress(PhaseGlueGeneration, err.Error(), 0, 0)
				summary.ModulesFailed = append(summary.ModulesFailed, name)
			}
		}
	}
	mark(summary, PhaseGlueGeneration)
}

// phaseLinking places every module's final deliverable, not just
// executables: a standalone library produces a linked (or, for a
// managed-only input set, copied) artifact the same way an executable does
// (spec §8 scenario 5 names a library-only project reaching the linker
// manager's managed-only copy path).
func (o *Orchestrator) phaseLinking(ctx context.Context, summary *BuildRunSummary, sched *schedule.BuildSchedule, outDirs map[string]string) error {
	for _, name := range linkableModules(o.opts.Project, sched) {
		m, _ := o.opts.Project.Module(name)
		closure := outDirsFor(o.opts.Project, m, outDirs)
		inputs, err := linker.CollectInputs(closure)
		if err != nil {
			return err
		}
		if len(inputs) == 0 {
			continue
		}
		kind := target.KindSharedLib
		if m.Kind == config.KindExecutable {
			kind = target.KindExecutable
		}
		res, err := o.link.Link(ctx, inputs, name, o.opts.Project.OutputDir, outputArtifactName(o.opts.Project, m), o.opts.Target, kind)
		if err != nil {
			return err
		}
		if !res.ManagedOnly && res.OutputPath != "" {
			if deps, _ := plugin.SharedLibDeps(ctx, res.OutputPath); len(deps) > 0 {
				o.progress(PhaseLinking, fmt.Sprintf("%s: runtime deps %v", name, deps), 0, 0)
			}
		}
	}
	mark(summary, PhaseLinking)
	return nil
}

// outputArtifactName applies the project-wide output-artifact override only
// to the executable it names; library modules always keep their own module
// name so two libraries linked in the same run never collide on one name.
func outputArtifactName(p *config.ProjectConfig, m config.ModuleConfig) string {
	if p.OutputArtifact != "" && m.Kind == config.KindExecutable {
		return p.OutputArtifact
	}
	return m.Name
}

// linkableModules returns every module in schedule order: executables link
// against their dependency closure, and libraries still pass through Link so
// a managed-only library reaches the linker manager's copy path.
func linkableModules(p *config.ProjectConfig, sched *schedule.BuildSchedule) []string {
	var out []string
	for _, name := range sched.Flatten() {
		if _, ok := p.Module(name); ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// outDirsFor restricts the set of build output directories to m's own and
// every transitive dependency's, so a link step only gathers inputs it
// actually depends on.
func outDirsFor(p *config.ProjectConfig, m config.ModuleConfig, all map[string]string) map[string]string {
	closure := map[string]bool{m.Name: true}
	var visit func(string)
	visit = func(name string) {
		mc, ok := p.Module(name)
		if !ok {
			return
		}
		for _, dep := range mc.Dependencies {
			if !closure[dep] {
				closure[dep] = true
				visit(dep)
			}
		}
	}
	visit(m.Name)
	out := make(map[string]string, len(closure))
	for name := range closure {
		if dir, ok := all[name]; ok {
			out[name] = dir
		}
	}
	return out
}

func writeGlueFile(dir, filename string, contents []byte) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &errs.IoError{Path: dir, Err: err}
	}
	path := filepath.Join(dir, filename)
	if err := renameio.WriteFile(path, contents, 0644); err != nil {
		return &errs.IoError{Path: path, Err: err}
	}
	return nil
}
