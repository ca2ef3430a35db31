package job

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"pixbatch/archive"
	"pixbatch/cancellation"
	"pixbatch/codec"
	"pixbatch/config"
	"pixbatch/governor"
	"pixbatch/logger"
	"pixbatch/models"
	"pixbatch/progress"
)

// Coordinator turns jobs into archives. Codec is required; every other field
// has a usable zero value.
type Coordinator struct {
	Codec    Codec
	Progress progress.Publisher

	// ConcurrencyFor returns the slot bound for a job of n items.
	// Defaults to config.GetConcurrency.
	ConcurrencyFor func(n int) int
	// MemoryPerItem defaults to config.GetMemoryPerItem.
	MemoryPerItem int64
	Archive        archive.Format

	States    *States
	Recorder  Recorder
	Archives  *ArchivePublisher
	Callbacks *CallbackSender
}

// Output is a finished job.
type Output struct {
	JobID    string
	Format   archive.Format
	Archive  []byte
	Files    []string
	Mode     models.ExecutionMode
	Location string // where the archive was published, if anywhere
	Duration time.Duration
}

// Filename is the suggested download name of the archive.
func (o *Output) Filename() string {
	id := o.JobID
	if len(id) > 8 {
		id = id[:8]
	}
	return "converted_" + id + o.Format.Extension()
}

// Run converts every item of j and returns one archive, or the first failure
// in submission order. tok is checked before each item is admitted; items
// already running are never interrupted. ctx bounds waits on the resource
// gates and external tools. Run takes ownership of the item bytes: the Data
// of every item in j.Items is nil once it returns, whatever the outcome.
func (c *Coordinator) Run(ctx context.Context, j models.Job, tok *cancellation.Token) (*Output, error) {
	start := time.Now()
	defer releaseItems(j.Items)
	if tok == nil {
		tok = cancellation.NewToken()
	}
	if j.Settings.Options == nil {
		return nil, fmt.Errorf("%w: job %s has no encode options", models.ErrInvalidSettings, j.ID)
	}

	capability := c.Codec.Capability(j.Settings.Format)
	if capability.Sequential() {
		j.Mode = models.ModeSequential
	} else {
		j.Mode = models.ModeParallel
	}
	summary := j.Summarize()

	c.States.Set(j.ID, StateProcessing)
	out, err := c.run(ctx, &j, tok, capability)
	if err == nil {
		out.Duration = time.Since(start)
		err = c.deliver(ctx, j, out)
	}

	if err != nil {
		kind := KindOf(err)
		if kind == KindCancelled {
			c.States.Set(j.ID, StateCancelled)
			logger.Infof("job %s cancelled after %s", j.ID, time.Since(start).Round(time.Millisecond))
		} else {
			c.States.Set(j.ID, StateFailed)
			logger.Errorf("job %s failed (%s): %v", j.ID, kind, err)
		}
		if c.Recorder != nil {
			c.Recorder.RecordFailure(summary, err)
		}
		c.Callbacks.Send(j, nil, err)
		return nil, err
	}

	c.States.Set(j.ID, StateCompleted)
	logger.Infof("job %s: %d files -> %s %s (%s) in %s", j.ID, len(out.Files), humanize.Bytes(uint64(len(out.Archive))),
		out.Format, j.Mode, out.Duration.Round(time.Millisecond))
	if c.Recorder != nil {
		c.Recorder.RecordSuccess(summary, out)
	}
	c.Callbacks.Send(j, out, nil)
	return out, nil
}

func (c *Coordinator) run(ctx context.Context, j *models.Job, tok *cancellation.Token, capability codec.Capability) (*Output, error) {
	n := len(j.Items)
	if n == 0 {
		return nil, ErrEmptyJob
	}

	concurrency := c.concurrency(n)
	if capability.MaxConcurrency > 1 {
		concurrency = min(concurrency, capability.MaxConcurrency)
	}
	memoryPerItem := c.MemoryPerItem
	if memoryPerItem <= 0 {
		memoryPerItem = config.GetMemoryPerItem()
	}
	gov, err := governor.New(concurrency, memoryPerItem)
	if err != nil {
		return nil, err
	}

	// Reject what could never be admitted before any work starts.
	for _, item := range j.Items {
		if err := gov.Admissible(item.Size()); err != nil {
			return nil, itemError(KindResource, item, err)
		}
	}

	logger.Infof("job %s: %d files, %s, target %s, mode %s, concurrency %d", j.ID, n,
		humanize.Bytes(uint64(j.Summarize().InputBytes)), j.Settings.Format, j.Mode, concurrency)

	tracker := &completion{
		publisher: c.Progress,
		session:   j.SessionID,
		increment: progress.Increment(n),
		total:     n,
	}
	proc := &itemProcessor{codec: c.Codec, settings: j.Settings, report: tracker.done}

	var results []models.Result
	if j.Mode == models.ModeSequential {
		results, err = runSequential(ctx, proc, j.Items, tok)
	} else {
		results, err = runParallel(ctx, proc, gov, j.Items, tok)
	}
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(a, b int) bool { return results[a].Index < results[b].Index })
	entries := make([]archive.Entry, len(results))
	for i, r := range results {
		entries[i] = archive.Entry{Name: r.Filename, Data: r.Data}
	}
	entries = archive.UniqueNames(entries)

	format := c.Archive
	if format == "" {
		format = archive.Zip
	}
	data, err := archive.Build(format, entries)
	if err != nil {
		return nil, &ItemError{Kind: KindAggregation, Index: -1, Err: err}
	}

	return &Output{
		JobID:   j.ID,
		Format:  format,
		Archive: data,
		Files:   entryNames(entries),
		Mode:    j.Mode,
	}, nil
}

func entryNames(entries []archive.Entry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

func (c *Coordinator) concurrency(n int) int {
	if c.ConcurrencyFor != nil {
		if v := c.ConcurrencyFor(n); v > 0 {
			return v
		}
	}
	return config.GetConcurrency(n)
}

// releaseItems drops the upload bytes still held by items that never ran.
func releaseItems(items []models.Item) {
	for i := range items {
		items[i].Data = nil
	}
}

// runSequential converts items one at a time in submission order and stops
// at the first failure.
func runSequential(ctx context.Context, proc *itemProcessor, items []models.Item, tok *cancellation.Token) ([]models.Result, error) {
	results := make([]models.Result, 0, len(items))
	for i := range items {
		if tok.Cancelled() {
			return nil, &ItemError{Kind: KindCancelled, Index: items[i].Index, Filename: items[i].Filename, Err: fmt.Errorf("%d of %d items done", i, len(items))}
		}
		res, err := safeProcess(ctx, proc, items[i])
		items[i].Data = nil
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

// runParallel starts one goroutine per item. Each waits for a permit, then
// converts its item. All goroutines finish before results are collected;
// the first failure by submission index wins and successes are dropped.
func runParallel(ctx context.Context, proc *itemProcessor, gov *governor.Governor, items []models.Item, tok *cancellation.Token) ([]models.Result, error) {
	// wake gate waiters as soon as the token is set
	admitCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		select {
		case <-tok.Done():
			stop()
		case <-admitCtx.Done():
		}
	}()

	results := make([]models.Result, len(items))
	errs := make([]error, len(items))

	var wg sync.WaitGroup
	for i := range items {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			item := items[i]
			items[i].Data = nil

			if tok.Cancelled() {
				errs[i] = itemError(KindCancelled, item, ErrCancelled)
				return
			}
			permit, err := gov.Acquire(admitCtx, item.Size())
			if err != nil {
				if tok.Cancelled() || ctx.Err() != nil {
					errs[i] = itemError(KindCancelled, item, err)
				} else {
					errs[i] = itemError(KindResource, item, err)
				}
				return
			}
			defer permit.Release()

			if tok.Cancelled() {
				errs[i] = itemError(KindCancelled, item, ErrCancelled)
				return
			}
			results[i], errs[i] = safeProcess(ctx, proc, item)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// safeProcess turns a panic inside the codec into a task failure.
func safeProcess(ctx context.Context, proc *itemProcessor, item models.Item) (res models.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("panic converting %s: %v\n%s", item.Filename, r, debug.Stack())
			res = models.Result{}
			err = itemError(KindTask, item, fmt.Errorf("panic: %v", r))
		}
	}()
	return proc.process(ctx, item)
}

// completion publishes Dispatch + increment × completed as items finish.
// The lock keeps publication order equal to completion count order.
type completion struct {
	mu        sync.Mutex
	publisher progress.Publisher
	session   string
	increment float64
	total     int
	completed int
}

func (c *completion) done(label string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.completed++
	value := progress.Dispatch + c.increment*float64(c.completed)
	if c.completed >= c.total {
		value = progress.Complete
	}
	if c.publisher != nil {
		c.publisher.Publish(c.session, progress.Event{Progress: min(value, progress.Complete), Label: label})
	}
}
