// Package counter computes token counts for sets of files on a
// bounded worker pool, without blocking the caller. Requests are
// generation-tagged: a newer request supersedes the previous one and
// superseded results are dropped before they reach the consumer.
package counter

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// cacheSize bounds the per-path count cache.
const cacheSize = 1024

// Generation identifies one counting request.
type Generation uint64

// FileItem is a snapshot of one file to count. The counter never
// receives live tree nodes; the size and mtime form the cache
// signature.
type FileItem struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// UpdateKind discriminates Update events.
type UpdateKind int

const (
	// FileCounted reports one successfully counted file.
	FileCounted UpdateKind = iota
	// FileFailed reports one file that could not be counted. Failed
	// files are excluded from the aggregate sum.
	FileFailed
	// Done carries the final aggregate for a generation.
	Done
	// Cancelled acknowledges that a generation stopped early.
	Cancelled
)

// Aggregate summarizes a finished generation.
type Aggregate struct {
	Files  int // successfully counted files
	Errors int // files that failed
	Tokens int // sum over successfully counted files
}

// Update is one event on the counter's result channel. Only updates
// from the newest generation are ever emitted.
type Update struct {
	Generation Generation
	Kind       UpdateKind
	Path       string
	Tokens     int
	Err        error
	Aggregate  Aggregate
}

// Counter owns the worker pool and the count cache.
type Counter struct {
	tok     Tokenizer
	workers int
	logger  *zap.Logger
	updates chan Update
	cache   *lru.Cache[string, int]

	mu      sync.Mutex
	lastGen Generation
	gens    map[Generation]*generation
}

type generation struct {
	id     Generation
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a Counter. workers <= 0 selects runtime.NumCPU(); a nil
// logger is replaced with a no-op.
func New(tok Tokenizer, workers int, logger *zap.Logger) *Counter {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cache, _ := lru.New[string, int](cacheSize)
	return &Counter{
		tok:     tok,
		workers: workers,
		logger:  logger,
		updates: make(chan Update, 256),
		cache:   cache,
		gens:    make(map[Generation]*generation),
	}
}

// Updates is the progress/result channel. Per-file completion order
// within a generation is unspecified; the Done update is emitted only
// after every file has been accounted for.
func (c *Counter) Updates() <-chan Update {
	return c.updates
}

// Request starts counting the given file set and returns its
// generation. Any in-flight generation is implicitly cancelled; its
// remaining results are discarded silently.
func (c *Counter) Request(items []FileItem) Generation {
	c.mu.Lock()
	c.lastGen++
	id := c.lastGen
	for _, g := range c.gens {
		g.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	g := &generation{id: id, ctx: ctx, cancel: cancel, done: make(chan struct{})}
	c.gens[id] = g
	c.mu.Unlock()

	c.logger.Debug("counting request",
		zap.Uint64("generation", uint64(id)),
		zap.Int("files", len(items)))

	go c.dispatch(g, items)
	return id
}

// Cancel stops a generation and blocks until its workers have observed
// the cancellation or completed. Cancelling an unknown or finished
// generation returns immediately.
func (c *Counter) Cancel(gen Generation) {
	c.mu.Lock()
	g, ok := c.gens[gen]
	c.mu.Unlock()
	if !ok {
		return
	}
	g.cancel()
	<-g.done
}

// Invalidate drops any cached counts for path, regardless of
// signature.
func (c *Counter) Invalidate(path string) {
	prefix := path + "|"
	for _, key := range c.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.cache.Remove(key)
		}
	}
}

func (c *Counter) isCurrent(gen Generation) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.lastGen
}

type fileResult struct {
	path   string
	tokens int
	err    error
}

// dispatch fans a generation's files out over the worker pool and
// folds results into the aggregate.
func (c *Counter) dispatch(g *generation, items []FileItem) {
	defer func() {
		g.cancel()
		c.mu.Lock()
		delete(c.gens, g.id)
		c.mu.Unlock()
		close(g.done)
	}()

	jobs := make(chan FileItem, len(items))
	results := make(chan fileResult, len(items))

	var wg sync.WaitGroup
	for w := 0; w < c.workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c.work(g.ctx, jobs, results)
		}(w)
	}
	for _, item := range items {
		jobs <- item
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	var agg Aggregate
	for res := range results {
		if res.err != nil {
			agg.Errors++
		} else {
			agg.Files++
			agg.Tokens += res.tokens
		}
		c.emit(g, res)
	}

	// A cancellation that lands after the last file has been accounted
	// for changes nothing; the generation is complete either way.
	if agg.Files+agg.Errors < len(items) {
		c.emitFinal(g, Update{Generation: g.id, Kind: Cancelled, Aggregate: agg})
		c.logger.Debug("counting cancelled", zap.Uint64("generation", uint64(g.id)))
		return
	}
	c.emitFinal(g, Update{Generation: g.id, Kind: Done, Aggregate: agg})
	c.logger.Debug("counting done",
		zap.Uint64("generation", uint64(g.id)),
		zap.Int("files", agg.Files),
		zap.Int("errors", agg.Errors),
		zap.Int("tokens", agg.Tokens))
}

// work processes jobs until the channel drains or the generation is
// cancelled. The cancellation flag is checked between files; a file
// already in flight is allowed to finish.
func (c *Counter) work(ctx context.Context, jobs <-chan FileItem, results chan<- fileResult) {
	for item := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}
		tokens, err := c.countFile(item)
		results <- fileResult{path: item.Path, tokens: tokens, err: err}
	}
}

func (c *Counter) countFile(item FileItem) (int, error) {
	key := cacheKey(item)
	if tokens, ok := c.cache.Get(key); ok {
		return tokens, nil
	}
	data, err := os.ReadFile(item.Path)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", item.Path, err)
	}
	tokens, err := c.tok.Count(string(data))
	if err != nil {
		return 0, fmt.Errorf("failed to tokenize %s: %w", item.Path, err)
	}
	c.cache.Add(key, tokens)
	return tokens, nil
}

// emit forwards a per-file result unless the generation has been
// superseded or cancelled in the meantime.
func (c *Counter) emit(g *generation, res fileResult) {
	if !c.isCurrent(g.id) {
		return
	}
	u := Update{Generation: g.id, Path: res.path, Tokens: res.tokens, Err: res.err}
	u.Kind = FileCounted
	if res.err != nil {
		u.Kind = FileFailed
	}
	select {
	case c.updates <- u:
	case <-g.ctx.Done():
	}
}

// emitFinal always delivers the closing update for a generation that is
// still current; superseded generations finish silently.
func (c *Counter) emitFinal(g *generation, u Update) {
	if !c.isCurrent(g.id) {
		return
	}
	c.updates <- u
}

func cacheKey(item FileItem) string {
	return fmt.Sprintf("%s|%d|%d", item.Path, item.Size, item.ModTime.UnixNano())
}
