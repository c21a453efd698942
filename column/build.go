package column

import (
	"runtime"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/astei/sectiontree/config"
	"github.com/astei/sectiontree/octree"
	"github.com/astei/sectiontree/palette"
	"github.com/astei/sectiontree/voxel"
)

// Option configures Build.
type Option func(*options)

type options struct {
	workers int
	logger  golog.Logger
}

// WithWorkers bounds how many sections are built concurrently. n <= 1 builds sequentially.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = 1
		}
		o.workers = n
	}
}

// WithLogger sets the logger build progress is reported to.
func WithLogger(logger golog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithConfig applies the worker settings of cfg.
func WithConfig(cfg config.Config) Option {
	return WithWorkers(cfg.WorkerCount())
}

func newOptions(opts []Option) options {
	o := options{
		workers: runtime.GOMAXPROCS(0),
		logger:  zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Build compresses 24 sections of 4096 voxels each, laid out x + z*16 + y*256.
// The palette is built first; then every section is translated and built into
// its own tree in parallel. On error no column is returned.
func Build[T voxel.Type](sections [][]T, opts ...Option) (*Column[T], error) {
	o := newOptions(opts)
	if err := checkShape(sections); err != nil {
		return nil, err
	}

	p, err := palette.Build(sections)
	if err != nil {
		return nil, err
	}

	var c *Column[T]
	if p.Width() == palette.Narrow {
		trees, err := buildTrees[T, uint8](p, sections, o.workers)
		if err != nil {
			return nil, err
		}
		c = &Column[T]{palette: p, narrow: trees}
	} else {
		trees, err := buildTrees[T, uint16](p, sections, o.workers)
		if err != nil {
			return nil, err
		}
		c = &Column[T]{palette: p, wide: trees}
	}

	s := c.Stats()
	o.logger.Debugw("built column",
		"palette", p.Len(),
		"width", p.Width(),
		"nodes", s.Nodes(),
		"dense", s.Dense,
		"bytes", s.Bytes,
	)
	return c, nil
}

// checkShape reports every malformed section, not just the first.
func checkShape[T any](sections [][]T) error {
	var err error
	if len(sections) != SectionCount {
		err = multierr.Append(err, errors.Wrapf(ErrShapeMismatch, "got %d sections, want %d", len(sections), SectionCount))
	}
	for i, s := range sections {
		if len(s) != SectionVolume {
			err = multierr.Append(err, errors.Wrapf(ErrShapeMismatch, "section %d has %d voxels, want %d", i, len(s), SectionVolume))
		}
	}
	return err
}

func buildTrees[T voxel.Type, I octree.Index](p *palette.Palette[T], sections [][]T, workers int) ([]octree.Tree[I], error) {
	trees := make([]octree.Tree[I], len(sections))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, section := range sections {
		g.Go(func() error {
			indices := make([]I, len(section))
			for j, t := range section {
				indices[j] = I(p.IndexOf(t))
			}
			tree, err := octree.Build(indices, SectionEdge)
			if err != nil {
				return errors.Wrapf(err, "section %d", i)
			}
			// each goroutine owns its slot
			trees[i] = tree
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return trees, nil
}
