package workerpool

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/pdfcast/html2pdf/browser"
	"github.com/pdfcast/html2pdf/devtools"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Converter is called once per queued item by the worker that owns
// sess. It is supplied by the caller (the root html2pdf package)
// rather than imported here, so this package stays independent of C5
// and C6's concrete types.
type Converter func(ctx context.Context, sess *devtools.Session, item *ConversionItem) error

// Options configures a Pool.
type Options struct {
	// MaxConcurrency is the worker count; 0 defaults to
	// runtime.NumCPU(), per spec §4.8.
	MaxConcurrency int
	// QueueSize bounds the pending-item channel. 0 means
	// MaxConcurrency*4, a generous but finite default so a runaway
	// producer cannot exhaust memory.
	QueueSize int

	ExecPath      string
	BrowserOpts   browser.Options
	PortRangeLow  int
	PortRangeHigh int

	Convert Converter
	Logger  *logrus.Logger
}

// Pool runs Options.MaxConcurrency workers, each owning a private
// browser process and DevTools session for its lifetime (spec §4.8).
type Pool struct {
	opts  Options
	queue chan *ConversionItem
	group *errgroup.Group
	ctx   context.Context

	mu      sync.Mutex
	results []*ConversionItem
}

// New constructs a Pool bound to ctx: cancelling ctx is the pool-wide
// cancellation token described in spec §5.
func New(ctx context.Context, opts Options) *Pool {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = runtime.NumCPU()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = opts.MaxConcurrency * 4
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.MaxConcurrency)

	p := &Pool{
		opts:  opts,
		queue: make(chan *ConversionItem, opts.QueueSize),
		group: g,
		ctx:   gctx,
	}
	for i := 0; i < opts.MaxConcurrency; i++ {
		workerID := i
		g.Go(func() error {
			p.runWorker(workerID)
			return nil
		})
	}
	return p
}

// Submit enqueues item. It blocks if the queue is full, and returns
// immediately with an error if the pool's context is already done.
func (p *Pool) Submit(item *ConversionItem) error {
	item.Status = StatusQueued
	select {
	case p.queue <- item:
		return nil
	case <-p.ctx.Done():
		item.markDone(ErrCancelled)
		return p.ctx.Err()
	}
}

// CloseQueue signals that no more items will be submitted; workers
// drain the remainder of the queue and then exit.
func (p *Pool) CloseQueue() { close(p.queue) }

// Wait blocks until every worker has drained the queue (or the pool's
// context was cancelled) and returns the completed items, in
// completion order (spec §4.8: "not input order").
func (p *Pool) Wait() []*ConversionItem {
	_ = p.group.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.results
}

func (p *Pool) runWorker(id int) {
	logger := p.opts.Logger.WithField("worker", id)

	sess, proc, err := p.launchWorkerBrowser(logger)
	if err != nil {
		logger.WithError(err).Error("workerpool: failed to launch worker browser")
		p.drainCancelled()
		return
	}
	defer func() {
		sess.Close()
		proc.Close(nil)
	}()

	for {
		select {
		case <-p.ctx.Done():
			// Items still buffered in the queue will never run;
			// record them as Cancelled before exiting.
			for {
				select {
				case item, ok := <-p.queue:
					if !ok {
						return
					}
					item.markDone(ErrCancelled)
					p.mu.Lock()
					p.results = append(p.results, item)
					p.mu.Unlock()
				default:
					return
				}
			}
		case item, ok := <-p.queue:
			if !ok {
				return
			}
			p.runItem(logger, &sess, &proc, item)
		}
	}
}

// runItem converts one item with the worker's current session,
// rebuilding the session together with the whole browser process when
// the conversion error wraps devtools.ErrConnectionClosed or
// devtools.ErrTimeout, per spec §7's propagation policy: "session/
// browser errors cause the worker to rebuild ... and resume
// dequeuing".
func (p *Pool) runItem(logger *logrus.Entry, sess **devtools.Session, proc **browser.Process, item *ConversionItem) {
	item.markRunning()
	err := p.opts.Convert(p.ctx, *sess, item)
	item.markDone(err)

	p.mu.Lock()
	p.results = append(p.results, item)
	p.mu.Unlock()

	if err != nil && isFatalToSession(err) {
		logger.WithError(err).Warn("workerpool: rebuilding session after fatal error")
		(*sess).Close()
		newSess, newProc, rerr := p.launchWorkerBrowser(logger)
		if rerr != nil {
			logger.WithError(rerr).Error("workerpool: failed to rebuild worker browser")
			return
		}
		(*proc).Close(nil)
		*sess, *proc = newSess, newProc
	}
}

func isFatalToSession(err error) bool {
	return errors.Is(err, devtools.ErrConnectionClosed) || errors.Is(err, devtools.ErrTimeout)
}

func (p *Pool) launchWorkerBrowser(logger *logrus.Entry) (*devtools.Session, *browser.Process, error) {
	execPath := p.opts.ExecPath
	if execPath == "" {
		path, err := browser.Locate("")
		if err != nil {
			return nil, nil, err
		}
		execPath = path
	}

	opts := p.opts.BrowserOpts
	if p.opts.PortRangeLow > 0 {
		port, err := browser.AllocatePort(p.opts.PortRangeLow, p.opts.PortRangeHigh)
		if err != nil {
			return nil, nil, err
		}
		opts.Port = port
	}
	opts.Logger = logger.Logger

	proc, err := browser.Start(p.ctx, execPath, opts)
	if err != nil {
		return nil, nil, err
	}

	target, err := devtools.NewTarget(p.ctx, proc.Endpoint())
	if err != nil {
		proc.Close(nil)
		return nil, nil, err
	}
	sess, err := devtools.Open(p.ctx, target.WebSocketDebuggerURL, devtools.WithLogger(logger.Logger))
	if err != nil {
		proc.Close(nil)
		return nil, nil, err
	}
	return sess, proc, nil
}

// drainCancelled marks every item already queued (or still arriving,
// until the queue is closed) as Cancelled, used when a worker could
// never launch its browser at all.
func (p *Pool) drainCancelled() {
	for item := range p.queue {
		item.markDone(ErrCancelled)
		p.mu.Lock()
		p.results = append(p.results, item)
		p.mu.Unlock()
	}
}
