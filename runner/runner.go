package runner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dhcgn/msg-partition/config"
	"github.com/dhcgn/msg-partition/element"
	"github.com/dhcgn/msg-partition/filter"
	"github.com/dhcgn/msg-partition/model"
	"github.com/dhcgn/msg-partition/partition"
	"github.com/dhcgn/msg-partition/state"
	"github.com/dhcgn/msg-partition/stats"
)

var ErrNoInputs = errors.New("no supported input files found")

type Runner struct {
	cfg    config.Config
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	router     partition.Router
	opts       partition.Options
	optsDigest string
	tracker    state.Tracker

	events     chan stats.Event
	subscribed bool
	statsWG    sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeEventsOnce sync.Once
	since           time.Time
}

func New(cfg config.Config, logger *zap.Logger) (*Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	f, err := filter.New(cfg.FilterOptions())
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}

	tracker, err := state.NewBoltTracker(cfg.StateDir, !cfg.DryRun)
	if err != nil {
		return nil, fmt.Errorf("state tracker: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		cfg:        cfg,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		router:     NewRouter(cfg, f),
		optsDigest: optionsDigest(cfg),
		tracker:    tracker,
		events:     make(chan stats.Event, 128),
		opts: partition.Options{
			IncludeMetadata:      cfg.IncludeMetadata,
			Languages:            cfg.Languages,
			MinPartition:         cfg.MinPartition,
			MaxPartition:         cfg.MaxPartition,
			IncludeDebugMetadata: cfg.DebugMetadata,
			Logger:               logger,
		},
	}
	return r, nil
}

func (r *Runner) Config() config.Config {
	return r.cfg
}

func (r *Runner) Tracker() state.Tracker {
	return r.tracker
}

func (r *Runner) EmitEvent(evt stats.Event) {
	if !r.subscribed {
		return
	}
	select {
	case <-r.ctx.Done():
	case r.events <- evt:
	}
}

// SubscribeStats must be called before Run.
func (r *Runner) SubscribeStats(name string, fn func(context.Context, <-chan stats.Event) error) {
	r.subscribed = true
	r.statsWG.Add(1)
	go func() {
		defer r.statsWG.Done()
		if err := fn(r.ctx, r.events); err != nil && !errors.Is(err, context.Canceled) {
			r.fail(fmt.Errorf("%s stats: %w", name, err))
		}
	}()
}

// Run scans the inputs and partitions them with at most cfg.Workers calls in
// flight. Inputs that fail to partition are reported in their Result; Run
// itself fails only on scan, output or state errors.
func (r *Runner) Run() ([]model.Result, error) {
	r.since = time.Now()

	var results []model.Result
	jobs, err := r.Scan()
	if err != nil {
		r.fail(err)
	} else {
		results = r.partitionAll(jobs)
	}

	r.closeEvents()
	r.statsWG.Wait()
	r.cancel()

	if err := r.tracker.Close(); err != nil {
		r.fail(err)
	}

	duration := time.Since(r.since)
	if r.err != nil {
		r.logger.Error("batch failed", zap.Duration("duration", duration), zap.Error(r.err))
		return results, r.err
	}

	r.logger.Info("batch completed", zap.Duration("duration", duration), zap.Int("inputs", len(results)))
	return results, nil
}

// Scan expands the inputs into jobs. Directories are walked for files with a
// supported extension; explicit files are always taken.
func (r *Runner) Scan() ([]model.Job, error) {
	var jobs []model.Job
	seen := make(map[string]bool)
	add := func(path, rel string) {
		output := filepath.Join(r.cfg.OutputDir, rel+".json")
		for n := 1; seen[output]; n++ {
			output = filepath.Join(r.cfg.OutputDir, rel+"-"+strconv.Itoa(n)+".json")
		}
		seen[output] = true
		jobs = append(jobs, model.Job{Path: path, Output: output})
	}

	for _, input := range r.cfg.Inputs {
		info, err := os.Stat(input)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", input, err)
		}
		if !info.IsDir() {
			add(input, filepath.Base(input))
			continue
		}

		var found []string
		err = filepath.WalkDir(input, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !r.supported(path) {
				return nil
			}
			found = append(found, path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", input, err)
		}
		sort.Strings(found)
		for _, path := range found {
			rel, err := filepath.Rel(input, path)
			if err != nil {
				rel = filepath.Base(path)
			}
			add(path, rel)
		}
	}

	if len(jobs) == 0 {
		return nil, ErrNoInputs
	}
	r.logger.Debug("scanned inputs", zap.Int("files", len(jobs)))
	return jobs, nil
}

func (r *Runner) supported(path string) bool {
	_, ok := r.router.Routes[strings.ToLower(filepath.Ext(path))]
	return ok
}

func (r *Runner) partitionAll(jobs []model.Job) []model.Result {
	results := make([]model.Result, len(jobs))

	g, ctx := errgroup.WithContext(r.ctx)
	g.SetLimit(r.cfg.Workers)
	for i, job := range jobs {
		g.Go(func() error {
			res, err := r.process(ctx, job)
			results[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		r.fail(err)
	}
	return results
}

// process partitions one job. The returned error is fatal for the batch;
// partitioning failures are recorded in the Result instead.
func (r *Runner) process(ctx context.Context, job model.Job) (model.Result, error) {
	start := time.Now()
	res := model.Result{Job: job}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res, err
	}
	r.EmitEvent(stats.Event{Stage: stats.StageScan, Type: stats.EventTypeScanned, Path: job.Path})

	hash, err := hashFile(job.Path)
	if err != nil {
		return r.failed(res, err), nil
	}
	job.Hash = hash
	res.Job = job

	key := hash + ":" + r.optsDigest
	if r.tracker.AlreadyProcessed(key) && fileExists(job.Output) {
		res.Skipped = true
		r.EmitEvent(stats.Event{Stage: stats.StagePartition, Type: stats.EventTypeDuplicate, Path: job.Path})
		r.logger.Debug("skipping unchanged input", zap.String("path", job.Path))
		return res, nil
	}

	els, err := r.router.Partition(partition.Source{Path: job.Path}, r.opts)
	if err != nil {
		return r.failed(res, err), nil
	}
	res.Elements = len(els)
	res.Duration = time.Since(start)

	evt := stats.Event{
		Stage:    stats.StagePartition,
		Type:     stats.EventTypePartitioned,
		Path:     job.Path,
		Elements: len(els),
		Duration: res.Duration,
	}
	if r.cfg.DryRun {
		evt.Type = stats.EventTypeDryRun
		r.EmitEvent(evt)
		r.logger.Info("partitioned (dry run)", zap.String("path", job.Path), zap.Int("elements", len(els)))
		return res, nil
	}

	if err := writeOutput(job.Output, els); err != nil {
		res.Err = err
		return res, err
	}
	if err := r.tracker.MarkProcessed(key, job.Output); err != nil {
		res.Err = err
		return res, err
	}
	r.EmitEvent(evt)
	r.logger.Info("partitioned",
		zap.String("path", job.Path),
		zap.String("output", job.Output),
		zap.Int("elements", len(els)),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

func (r *Runner) failed(res model.Result, err error) model.Result {
	res.Err = err
	r.EmitEvent(stats.Event{Stage: stats.StagePartition, Type: stats.EventTypeError, Path: res.Job.Path, Err: err})
	r.logger.Warn("partition failed", zap.String("path", res.Job.Path), zap.Error(err))
	return res
}

// optionsDigest fingerprints the settings that shape an output document. A
// previous result is reused only when content and digest both match.
func optionsDigest(cfg config.Config) string {
	data, _ := json.Marshal(struct {
		ProcessAttachments bool
		MinPartition       int
		MaxPartition       int
		Languages          []string
		ChunkingStrategy   string
		IncludeMetadata    bool
		DebugMetadata      bool
		Filter             filter.Options
	}{
		ProcessAttachments: cfg.ProcessAttachments,
		MinPartition:       cfg.MinPartition,
		MaxPartition:       cfg.MaxPartition,
		Languages:          element.Languages(cfg.Languages),
		ChunkingStrategy:   cfg.ChunkingStrategy,
		IncludeMetadata:    cfg.IncludeMetadata,
		DebugMetadata:      cfg.DebugMetadata,
		Filter:             cfg.FilterOptions(),
	})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// writeOutput writes els as a JSON document, replacing path atomically.
func writeOutput(path string, els []element.Element) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".partial-*.json")
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := element.Write(tmp, els); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func (r *Runner) closeEvents() {
	r.closeEventsOnce.Do(func() {
		close(r.events)
	})
}

func (r *Runner) fail(err error) {
	if err == nil {
		return
	}
	r.errMu.Lock()
	if r.err == nil {
		r.err = err
		r.cancel()
	}
	r.errMu.Unlock()
}
