package datasets

import (
	"context"
	"io"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Noofbiz/datagen/config"
	"github.com/Noofbiz/datagen/manifest"
	"github.com/Noofbiz/datagen/preprocess"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

var (
	// ErrClosed is returned by Next after Close.
	ErrClosed = errors.New("generator closed")
	// ErrStopped is returned by a Next call whose epoch was stopped by
	// Reset or Close while it was waiting.
	ErrStopped = errors.New("epoch stopped")
)

// Generator yields batches of processed images listed in a manifest.
//
// Batches are produced one epoch at a time: Next returns io.EOF at the end
// of the epoch, and Reset starts a new one. A sample that fails to load
// fails the batch containing it, and the remaining of the epoch.
//
// Next calls are serialized. Reset and Close may be called from any
// goroutine: they don't wait for a pending Next, which returns ErrStopped.
type Generator struct {
	cfg      config.Config
	data     *manifest.Dataset
	pipeline *preprocess.Pipeline

	// muRng protects rng, the source of the worker and shuffle seeds.
	muRng sync.Mutex
	rng   *rand.Rand

	// muNext serializes Next, which owns the epoch's sample stream.
	muNext sync.Mutex

	// mu protects the fields below. It is never held while waiting for samples.
	mu     sync.Mutex
	epoch  *epoch
	count  int // epochs started
	closed bool
}

// NewGenerator loads the manifest and prepares the sample pipeline. No
// image is read until the first batch is requested.
func NewGenerator(cfg config.Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pipeline, err := preprocess.New(cfg)
	if err != nil {
		return nil, err
	}
	data, err := manifest.Load(cfg.ManifestPath, cfg.RootDir)
	if err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	g := &Generator{
		cfg:      cfg,
		data:     data,
		pipeline: pipeline,
		rng:      rand.New(rand.NewSource(seed)),
	}
	if cfg.Shuffle {
		data.ShuffleWith(rand.New(rand.NewSource(g.nextSeed())))
	}
	klog.V(1).Infof("dataset %q: %d images, %d classes, mode=%s, batch_size=%d, augmentations=%s",
		g.Name(), data.Len(), cfg.NumClasses, cfg.Mode, cfg.BatchSize, pipeline.Chain)
	return g, nil
}

func (g *Generator) nextSeed() int64 {
	g.muRng.Lock()
	defer g.muRng.Unlock()
	return g.rng.Int63()
}

// Name implements train.Dataset.
func (g *Generator) Name() string { return g.cfg.DatasetName() }

// Len returns the number of images per epoch.
func (g *Generator) Len() int { return g.data.Len() }

// NumBatches returns the number of batches per epoch, counting the last
// short one.
func (g *Generator) NumBatches() int {
	return (g.data.Len() + g.cfg.BatchSize - 1) / g.cfg.BatchSize
}

// Mode returns whether samples are augmented.
func (g *Generator) Mode() config.Mode { return g.cfg.Mode }

// Manifest returns the (possibly shuffled) paths and labels. It must not
// be modified.
func (g *Generator) Manifest() *manifest.Dataset { return g.data }

// Example processes the i-th image directly, outside of any epoch. If rng
// is nil a new one is seeded from the generator.
func (g *Generator) Example(i int, rng *rand.Rand) (*preprocess.Sample, error) {
	entry, err := g.data.Entry(i)
	if err != nil {
		return nil, err
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(g.nextSeed()))
	}
	return g.pipeline.Transform(entry.Path, entry.Label, rng)
}

// Next returns the next batch of the current epoch, starting one if
// needed. It returns io.EOF once the epoch is exhausted. Any other error,
// including the cancellation of ctx, ends the epoch: it is returned again
// until Reset is called.
func (g *Generator) Next(ctx context.Context) (*Batch, error) {
	g.muNext.Lock()
	defer g.muNext.Unlock()
	e, err := g.currentEpoch()
	if err != nil {
		return nil, err
	}
	if e.err != nil {
		return nil, e.err
	}

	samples := make([]*preprocess.Sample, 0, g.cfg.BatchSize)
	for len(samples) < g.cfg.BatchSize {
		s, err := e.next(ctx)
		if err == io.EOF {
			break
		}
		if err == ErrStopped {
			return nil, err
		}
		if err != nil {
			klog.Errorf("dataset %q: epoch %d failed: %v", g.Name(), e.number, err)
			e.err = err
			e.stop()
			return nil, err
		}
		samples = append(samples, s)
	}
	if len(samples) == 0 {
		klog.V(1).Infof("dataset %q: epoch %d finished", g.Name(), e.number)
		e.err = io.EOF
		e.stop()
		return nil, io.EOF
	}
	batch, err := MakeBatch(samples)
	if err != nil {
		e.err = err
		e.stop()
		return nil, err
	}
	klog.V(2).Infof("dataset %q: epoch %d yielded batch of %d", g.Name(), e.number, batch.BatchSize)
	return batch, nil
}

// currentEpoch returns the running epoch, starting one if needed.
func (g *Generator) currentEpoch() (*epoch, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, ErrClosed
	}
	if g.epoch == nil {
		g.epoch = g.startEpoch()
	}
	return g.epoch, nil
}

// Yield implements train.Dataset. It returns the images batch as the only
// input and the one-hot labels as the only label. The spec is always nil.
func (g *Generator) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	batch, err := g.Next(context.Background())
	if err != nil {
		return nil, nil, nil, err
	}
	images, onehot, err := batch.ToGomlxTensors()
	if err != nil {
		return nil, nil, nil, err
	}
	return nil, []*tensors.Tensor{images}, []*tensors.Tensor{onehot}, nil
}

// Reset implements train.Dataset: it stops the current epoch, if any, and
// the next call to Next starts a new one.
func (g *Generator) Reset() {
	g.mu.Lock()
	e := g.epoch
	g.epoch = nil
	g.mu.Unlock()
	if e != nil {
		e.stop()
	}
}

// Close stops all background work. The Generator can't be used afterwards.
func (g *Generator) Close() error {
	g.mu.Lock()
	e := g.epoch
	g.epoch = nil
	g.closed = true
	g.mu.Unlock()
	if e != nil {
		e.stop()
	}
	return nil
}

// startEpoch launches the dispatcher and the workers of a new epoch.
func (g *Generator) startEpoch() *epoch {
	g.count++
	ctx, cancel := context.WithCancel(context.Background())
	group, groupCtx := errgroup.WithContext(ctx)
	parallelism := g.cfg.Parallelism
	e := &epoch{
		number:   g.count,
		cancel:   cancel,
		group:    group,
		groupCtx: groupCtx,
		results:  make(chan chan result, 2*parallelism),
		shuffle:  g.cfg.Shuffle,
		capacity: g.cfg.ShuffleBufferSize,
		rng:      rand.New(rand.NewSource(g.nextSeed())),
	}
	klog.V(1).Infof("dataset %q: starting epoch %d with %d workers", g.Name(), e.number, parallelism)

	jobs := make(chan job)
	group.Go(func() error {
		defer close(jobs)
		defer close(e.results)
		for pos := range g.data.Len() {
			r := make(chan result, 1)
			select {
			case e.results <- r:
			case <-groupCtx.Done():
				return nil
			}
			select {
			case jobs <- job{pos: pos, result: r}:
			case <-groupCtx.Done():
				return nil
			}
		}
		return nil
	})
	for range parallelism {
		rng := rand.New(rand.NewSource(g.nextSeed()))
		group.Go(func() error {
			for j := range jobs {
				sample, err := g.pipeline.Transform(g.data.Paths[j.pos], g.data.Labels[j.pos], rng)
				if err != nil {
					err = errors.WithMessagef(err, "sample %d", j.pos)
				}
				j.result <- result{sample: sample, err: err}
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	return e
}

type job struct {
	pos    int
	result chan<- result
}

type result struct {
	sample *preprocess.Sample
	err    error
}

// epoch holds the state of one pass over the data.
type epoch struct {
	number   int
	cancel   context.CancelFunc
	group    *errgroup.Group
	groupCtx context.Context

	// results holds one channel per dispatched sample, in manifest order.
	results chan chan result

	// Shuffle buffer.
	shuffle   bool
	capacity  int
	buffer    []*preprocess.Sample
	exhausted bool
	rng       *rand.Rand

	// err is the sticky outcome of the epoch, owned by Next.
	err error

	stopped  atomic.Bool
	waitOnce sync.Once
	waitErr  error
}

// next returns the next sample, through the shuffle buffer if enabled.
func (e *epoch) next(ctx context.Context) (*preprocess.Sample, error) {
	if !e.shuffle {
		return e.pull(ctx)
	}
	for !e.exhausted && len(e.buffer) < e.capacity {
		s, err := e.pull(ctx)
		if err == io.EOF {
			e.exhausted = true
			break
		}
		if err != nil {
			return nil, err
		}
		e.buffer = append(e.buffer, s)
	}
	if len(e.buffer) == 0 {
		return nil, io.EOF
	}
	i := e.rng.Intn(len(e.buffer))
	s := e.buffer[i]
	last := len(e.buffer) - 1
	e.buffer[i] = e.buffer[last]
	e.buffer[last] = nil
	e.buffer = e.buffer[:last]
	return s, nil
}

// pull returns the next processed sample in manifest order.
func (e *epoch) pull(ctx context.Context) (*preprocess.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.stopped.Load() {
		return nil, ErrStopped
	}
	var r chan result
	select {
	case next, ok := <-e.results:
		if !ok {
			if e.stopped.Load() {
				return nil, ErrStopped
			}
			if err := e.wait(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		r = next
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-r:
		return res.sample, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.groupCtx.Done():
		if e.stopped.Load() {
			return nil, ErrStopped
		}
		// A worker failed: once everything settled, this sample either
		// made it or never will.
		err := e.wait()
		select {
		case res := <-r:
			return res.sample, res.err
		default:
		}
		if err == nil {
			err = ErrStopped
		}
		return nil, err
	}
}

func (e *epoch) wait() error {
	e.waitOnce.Do(func() {
		e.waitErr = e.group.Wait()
	})
	return e.waitErr
}

// stop cancels the epoch and waits for its goroutines to exit. It may run
// concurrently with next.
func (e *epoch) stop() {
	e.stopped.Store(true)
	e.cancel()
	_ = e.wait()
}
