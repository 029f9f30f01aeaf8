package keystore

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/mahdiidarabi/chainkey/pkg/keys"
)

// EncryptRequest is one key to seal.
type EncryptRequest struct {
	KeyPair  *keys.KeyPair
	Password string
	KDF      KDFConfig
}

// EncryptResult carries the record for the request at Index.
type EncryptResult struct {
	Index  int
	Record *Record
	Err    error
}

// DecryptRequest is one record to open.
type DecryptRequest struct {
	Record   *Record
	Password string
}

// DecryptResult carries the key pair for the request at Index.
type DecryptResult struct {
	Index   int
	KeyPair *keys.KeyPair
	Err     error
}

// Pool runs KDF-bound keystore operations on a fixed number of workers.
type Pool struct {
	workers int
	logger  *zap.Logger
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithWorkers sets the worker count. Zero or less means runtime.NumCPU().
func WithWorkers(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithPoolLogger sets the pool's logger.
func WithPoolLogger(logger *zap.Logger) PoolOption {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPool creates a pool.
func NewPool(opts ...PoolOption) *Pool {
	p := &Pool{
		workers: runtime.NumCPU(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Workers returns the configured worker count.
func (p *Pool) Workers() int {
	return p.workers
}

// EncryptAll encrypts every request. Results are returned in request order.
// If ctx is cancelled the remaining requests are skipped and ctx.Err() is
// returned alongside the results gathered so far.
func (p *Pool) EncryptAll(ctx context.Context, reqs []EncryptRequest) ([]EncryptResult, error) {
	results := make([]EncryptResult, len(reqs))
	err := p.run(ctx, len(reqs), func(i int) {
		rec, err := Encrypt(reqs[i].KeyPair, reqs[i].Password, reqs[i].KDF)
		results[i] = EncryptResult{Index: i, Record: rec, Err: err}
	})
	return results, err
}

// DecryptAll decrypts every request. Results are returned in request order.
func (p *Pool) DecryptAll(ctx context.Context, reqs []DecryptRequest) ([]DecryptResult, error) {
	results := make([]DecryptResult, len(reqs))
	err := p.run(ctx, len(reqs), func(i int) {
		kp, err := Decrypt(reqs[i].Record, reqs[i].Password)
		results[i] = DecryptResult{Index: i, KeyPair: kp, Err: err}
	})
	return results, err
}

// run feeds indices 0..n-1 to the workers and waits for them to drain.
func (p *Pool) run(ctx context.Context, n int, job func(i int)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	workers := p.workers
	if workers > n {
		workers = n
	}
	p.logger.Debug("starting keystore pool", zap.Int("jobs", n), zap.Int("workers", workers))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	work := make(chan int, workers)
	var done int64

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case i, ok := <-work:
					if !ok {
						return
					}
					job(i)
					atomic.AddInt64(&done, 1)
				}
			}
		}()
	}

	err := func() error {
		defer close(work)
		for i := 0; i < n; i++ {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case work <- i:
			}
		}
		return nil
	}()

	wg.Wait()
	completed := atomic.LoadInt64(&done)
	p.logger.Debug("keystore pool finished", zap.Int64("completed", completed))
	if completed < int64(n) {
		if err == nil {
			err = ctx.Err()
		}
		return err
	}
	return nil
}
