package smtp

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/credprobe-dev/credprobe/domain/entities"
	"github.com/credprobe-dev/credprobe/domain/errors"
	"github.com/credprobe-dev/credprobe/domain/ports"
	"github.com/credprobe-dev/credprobe/infrastructure/netconn"
)

// SuccessCallback is invoked once per accepted credential. Callbacks may
// interleave across workers; callers handle their own synchronization.
type SuccessCallback func(entities.AuthOutcome)

// ProgressCallback is invoked after every attempt with the planned total
// and the number of attempts completed so far.
type ProgressCallback func(total, completed uint64)

// ProberOption configures a Prober.
type ProberOption func(*Prober)

// WithStreamFactory sets the byte stream constructor. Tests inject
// scripted streams here; the default dials real TCP connections.
func WithStreamFactory(f ports.StreamFactory) ProberOption {
	return func(p *Prober) {
		if f != nil {
			p.factory = f
		}
	}
}

// WithLogger sets the logger. The prober logs attempt-level events only;
// credential material is never attached to records.
func WithLogger(logger *slog.Logger) ProberOption {
	return func(p *Prober) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithSuccessCallback registers a callback for accepted credentials.
func WithSuccessCallback(cb SuccessCallback) ProberOption {
	return func(p *Prober) {
		p.onSuccess = cb
	}
}

// WithProgressCallback registers a per-attempt progress callback.
func WithProgressCallback(cb ProgressCallback) ProberOption {
	return func(p *Prober) {
		p.onProgress = cb
	}
}

// WithRateLimiter installs a client-side limiter that every worker waits
// on before pulling a credential. Nil disables limiting (the default).
func WithRateLimiter(l *rate.Limiter) ProberOption {
	return func(p *Prober) {
		p.limiter = l
	}
}

// Prober runs connection tasks over the usernames x passwords space with
// a fixed number of workers. Construct with NewProber; a Prober is good
// for a single Run.
type Prober struct {
	cfg    Config
	params Params

	factory    ports.StreamFactory
	logger     *slog.Logger
	limiter    *rate.Limiter
	onSuccess  SuccessCallback
	onProgress ProgressCallback

	cursor   credentialCursor
	stop     atomic.Bool
	attempts atomic.Uint64
	wg       sync.WaitGroup

	mu       sync.Mutex
	results  []entities.AuthOutcome
	abortErr error
}

// NewProber validates the config and params and builds a Prober.
func NewProber(cfg Config, params Params, opts ...ProberOption) (*Prober, error) {
	if cfg.AuthMethod == "" {
		cfg.AuthMethod = AuthAuto
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	p := &Prober{
		cfg:    cfg,
		params: params,
		logger: slog.Default(),
		cursor: credentialCursor{
			usernames: params.Usernames,
			passwords: params.Passwords,
		},
	}
	p.factory = func() ports.ByteStream {
		return netconn.NewStream()
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run executes the probe and blocks until all workers have exited. It
// returns a copy of the accepted outcomes and the terminal status. The
// returned error is non-nil only for Aborted runs.
func (p *Prober) Run(ctx context.Context) ([]entities.AuthOutcome, entities.ProbeStatus, error) {
	total := p.params.Total()
	p.logger.Info("probe started",
		"host", p.cfg.Host, "port", p.cfg.Port,
		"credentials", total, "parallelism", p.params.Parallelism)

	for i := uint16(0); i < p.params.Parallelism; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.worker(ctx)
		}()
	}
	p.wg.Wait()

	p.mu.Lock()
	results := make([]entities.AuthOutcome, len(p.results))
	copy(results, p.results)
	abortErr := p.abortErr
	p.mu.Unlock()

	status := entities.ProbeCompleted
	switch {
	case abortErr != nil:
		status = entities.ProbeAborted
	case p.attempts.Load() < total:
		status = entities.ProbeStoppedEarly
	}

	p.logger.Info("probe finished",
		"status", string(status),
		"attempts", p.attempts.Load(), "successes", len(results))
	return results, status, abortErr
}

// Stop requests an early stop and blocks until all workers have exited.
// In-flight attempts complete normally. Idempotent.
func (p *Prober) Stop() {
	p.stop.Store(true)
	p.wg.Wait()
}

// Attempts returns the number of attempts completed so far.
func (p *Prober) Attempts() uint64 {
	return p.attempts.Load()
}

func (p *Prober) worker(ctx context.Context) {
	for {
		if p.stop.Load() || ctx.Err() != nil {
			return
		}
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return
			}
		}
		username, password, ok := p.cursor.next()
		if !ok {
			return
		}

		task := newConnTask(p.cfg, p.factory, p.logger)
		outcome, err := task.run(username, password)
		completed := p.attempts.Add(1)

		switch {
		case err != nil:
			var authErr *errors.AuthError
			if stderrors.As(err, &authErr) {
				// Negotiation failure condemns the whole probe
				// against this host, not just one credential.
				p.abort(err)
				if p.onProgress != nil {
					p.onProgress(p.params.Total(), completed)
				}
				return
			}
			p.logger.Debug("attempt errored",
				"host", p.cfg.Host, "username", username, "error", err)

		case outcome.Success:
			p.mu.Lock()
			p.results = append(p.results, outcome)
			p.mu.Unlock()
			p.logger.Info("credential accepted",
				"host", p.cfg.Host, "username", outcome.Username,
				"code", outcome.ResponseCode)
			if p.onSuccess != nil {
				p.onSuccess(outcome)
			}
			if p.params.StopOnFirstSuccess {
				p.stop.Store(true)
			}
		}

		if p.onProgress != nil {
			p.onProgress(p.params.Total(), completed)
		}
	}
}

func (p *Prober) abort(err error) {
	p.stop.Store(true)
	p.mu.Lock()
	if p.abortErr == nil {
		p.abortErr = err
	}
	p.mu.Unlock()
}

// credentialCursor hands out the cartesian product in row-major order:
// the username is the outer loop. Each pair goes to exactly one worker.
type credentialCursor struct {
	mu        sync.Mutex
	usernames []string
	passwords []string
	userIdx   int
	passIdx   int
}

func (c *credentialCursor) next() (string, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.passwords) == 0 || c.userIdx >= len(c.usernames) {
		return "", "", false
	}
	username := c.usernames[c.userIdx]
	password := c.passwords[c.passIdx]
	c.passIdx++
	if c.passIdx >= len(c.passwords) {
		c.passIdx = 0
		c.userIdx++
	}
	return username, password, true
}
