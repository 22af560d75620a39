// Package runtime implements the Runtime Facade (C8): the single
// entry point a host embeds, wiring the Data Source (C1), lexer (C2),
// parser (C3), preprocessor (C4), Pattern Tree (C5), Evaluator (C6),
// and Task Manager (C7) behind execute/submit/abort and the
// configuration setters spec.md §4.7 lists. Grounded stylistically on
// cmd/sentra/main.go's constructor-then-dispatch shape, generalized
// from a CLI switch into a library facade a host calls into directly.
package runtime

import (
	"sync"

	"patternlang/internal/diag"
	"patternlang/internal/eval"
	"patternlang/internal/parse"
	"patternlang/internal/pattern"
	"patternlang/internal/preprocess"
	"patternlang/internal/source"
	"patternlang/internal/task"
	"patternlang/internal/token"
)

// Options configures a Runtime: default endianness, construction
// limits, worker-pool size, and where #include resolves relative
// paths from. Mirrors the teacher's NewConcurrencyModule/NewVM-style
// constructor options rather than a config-file format — the PL
// runtime is embedded, not a standalone service.
type Options struct {
	DefaultEndian pattern.Endian
	MaxPatterns   int
	MaxRecursion  int
	WorkerCount   int
	IncludePaths  []string
	IncludeReader preprocess.FileReader
}

// Job is the facade's view of an in-flight evaluation submitted via
// Submit; it carries the eventual Result alongside the underlying
// task.Handle's running/interrupt/progress surface.
type Job struct {
	task.Handle
	mu     sync.Mutex
	result *eval.Result
	err    error
}

// Result blocks until the job finishes and returns its outcome.
func (j *Job) Result() (*eval.Result, error) {
	j.Wait()
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result, j.err
}

func (j *Job) setResult(res *eval.Result, err error) {
	j.mu.Lock()
	j.result, j.err = res, err
	j.mu.Unlock()
}

// Runtime is the facade a host program embeds: one Runtime per
// in-process evaluation context.
type Runtime struct {
	mu   sync.Mutex
	opts Options
	src  source.Source
	tasks *task.Manager

	pragmaHandlers map[string][]func(value string)
	lastJob        *Job
}

// New creates a Runtime and starts its worker pool.
func New(opts Options) *Runtime {
	return &Runtime{
		opts:           opts,
		tasks:          task.New(opts.WorkerCount),
		pragmaHandlers: map[string][]func(value string){},
	}
}

// Close shuts down the worker pool, interrupting any in-flight jobs.
func (r *Runtime) Close() {
	r.tasks.Shutdown()
}

// SetDefaultEndianness changes the byte order assumed for integer
// members that carry no explicit be/le prefix.
func (r *Runtime) SetDefaultEndianness(e pattern.Endian) {
	r.mu.Lock()
	r.opts.DefaultEndian = e
	r.mu.Unlock()
}

// SetDataSource installs src as the C1 view every subsequent
// execute/submit call evaluates against (source 0, per §6.5).
func (r *Runtime) SetDataSource(src source.Source) {
	r.mu.Lock()
	r.src = src
	r.mu.Unlock()
}

// RegisterPragmaHandler arranges for fn to be called with each value
// seen for a `#pragma tag value` directive once preprocessing
// completes. Handlers are the only way a caller sees pragmas: the
// Result carries no tag→values map.
func (r *Runtime) RegisterPragmaHandler(tag string, fn func(value string)) {
	r.mu.Lock()
	r.pragmaHandlers[tag] = append(r.pragmaHandlers[tag], fn)
	r.mu.Unlock()
}

// SetLimit changes the "max-patterns" or "max-recursion" ceiling
// applied to subsequent evaluations.
func (r *Runtime) SetLimit(kind string, value int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch kind {
	case "max-patterns":
		r.opts.MaxPatterns = value
	case "max-recursion":
		r.opts.MaxRecursion = value
	default:
		return diag.New(diag.KindInternal, "unknown limit kind: "+kind, diag.Location{})
	}
	return nil
}

func (r *Runtime) snapshotOptions() Options {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opts
}

// preprocessText runs #include/#define/#pragma expansion over (file,
// text), returning the expanded text and the tag→values pragma map.
func (r *Runtime) preprocessText(file, text string) (string, map[string][]string, error) {
	reader := r.opts.IncludeReader
	if reader == nil {
		reader = noIncludeReader{}
	}
	pp := preprocess.New(reader, r.opts.IncludePaths)
	expanded, err := pp.Process(file, text)
	if err != nil {
		return "", nil, err
	}
	return expanded, pp.Pragmas, nil
}

type noIncludeReader struct{}

func (noIncludeReader) ReadFile(path string) (string, error) {
	return "", diag.New(diag.KindSemantic, "no #include resolver configured for "+path, diag.Location{})
}

func (r *Runtime) firePragmas(pragmas map[string][]string) {
	r.mu.Lock()
	handlers := make(map[string][]func(string), len(r.pragmaHandlers))
	for k, v := range r.pragmaHandlers {
		handlers[k] = v
	}
	r.mu.Unlock()
	for tag, values := range pragmas {
		for _, fn := range handlers[tag] {
			for _, v := range values {
				fn(v)
			}
		}
	}
}

func toValues(inVars map[string]eval.Value) map[string]eval.Value {
	if inVars == nil {
		return map[string]eval.Value{}
	}
	return inVars
}

// run does the actual parse+evaluate work shared by Execute and the
// closure Submit hands to the Task Manager; tick is the task's
// cooperative-cancellation check, wired into eval.Options.Tick.
func (r *Runtime) run(file, text string, inVars map[string]eval.Value, tick func() error) (*eval.Result, error) {
	opts := r.snapshotOptions()

	expanded, pragmas, err := r.preprocessText(file, text)
	if err != nil {
		return nil, err
	}
	r.firePragmas(pragmas)

	scanner := token.NewScanner(file, expanded)
	tokens, err := scanner.ScanTokens()
	if err != nil {
		return nil, err
	}

	prog, err := parse.New(file, expanded, tokens).Parse()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	src := r.src
	r.mu.Unlock()
	if src == nil {
		return nil, diag.New(diag.KindInternal, "no data source installed: call SetDataSource first", diag.Location{File: file})
	}

	ev := eval.New(src, eval.Options{
		DefaultEndian: opts.DefaultEndian,
		MaxPatterns:   opts.MaxPatterns,
		MaxRecursion:  opts.MaxRecursion,
		Tick:          tick,
	})
	ev.SetInVars(toValues(inVars))

	return ev.Evaluate(prog)
}

// Execute synchronously parses and evaluates text, for small scripts
// or tests that do not need the worker pool.
func (r *Runtime) Execute(file, text string, inVars map[string]eval.Value) (*eval.Result, error) {
	return r.run(file, text, inVars, func() error { return nil })
}

// Submit enqueues an evaluation job on the Task Manager and returns
// immediately with a Job the caller can poll or Wait() on.
func (r *Runtime) Submit(name, file, text string, inVars map[string]eval.Value) *Job {
	job := &Job{}
	h := r.tasks.CreateTask(name, 0, func(t *task.Task) error {
		res, err := r.run(file, text, inVars, t.Tick)
		job.setResult(res, err)
		return err
	})
	job.Handle = h

	r.mu.Lock()
	r.lastJob = job
	r.mu.Unlock()
	return job
}

// Abort interrupts the most recently submitted job, if any, matching
// §4.7's single-slot "abort the current run" operation.
func (r *Runtime) Abort() {
	r.mu.Lock()
	job := r.lastJob
	r.mu.Unlock()
	if job != nil {
		job.Interrupt()
	}
}

// GetSections returns res.Sections, the named sections that
// evaluation produced from `section(name) { ... }` blocks, or nil for
// a nil res. It is a package function over a Result, not a Runtime
// method, and is equivalent to reading eval.Result.Sections directly.
func GetSections(res *eval.Result) map[string]*eval.Section {
	if res == nil {
		return nil
	}
	return res.Sections
}
