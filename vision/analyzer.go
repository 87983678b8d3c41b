package vision

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hupe1980/archmesh/core"
	"github.com/hupe1980/archmesh/logging"
)

// DefaultCacheSize is the number of analyses kept by an Analyzer.
const DefaultCacheSize = 64

// Observer receives analysis outcomes, typically a metrics recorder.
type Observer interface {
	ObserveAnalysis(fallback bool, d time.Duration)
}

type noopObserver struct{}

func (noopObserver) ObserveAnalysis(bool, time.Duration) {}

// AnalyzerOptions configures an Analyzer.
type AnalyzerOptions struct {
	Params    Params
	CacheSize int
	Clock     core.Clock
	Logger    logging.Logger
	Observer  Observer
}

// Analyzer runs the pipeline with timing, logging and result caching. It
// holds no lock while the pipeline runs, so concurrent analyses proceed in
// parallel.
type Analyzer struct {
	params   Params
	cache    *lru.Cache[string, core.RoomAnalysis]
	clock    core.Clock
	logger   *logging.StructuredLogger
	observer Observer
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(optFns ...func(o *AnalyzerOptions)) (*Analyzer, error) {
	opts := AnalyzerOptions{
		Params:    DefaultParams(),
		CacheSize: DefaultCacheSize,
		Clock:     core.SystemClock{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.Observer == nil {
		opts.Observer = noopObserver{}
	}
	cache, err := lru.New[string, core.RoomAnalysis](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("vision: create cache: %w", err)
	}
	return &Analyzer{
		params:   opts.Params,
		cache:    cache,
		clock:    opts.Clock,
		logger:   logging.NewStructuredLogger(opts.Logger).WithComponent("vision"),
		observer: opts.Observer,
	}, nil
}

// Params returns the pipeline parameters in use.
func (a *Analyzer) Params() Params { return a.params }

// Analyze returns the RoomAnalysis of img. The only error is ctx's, reported
// when the context is done before the analysis starts.
func (a *Analyzer) Analyze(ctx context.Context, img Image) (core.RoomAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return core.RoomAnalysis{}, err
	}

	key := a.cacheKey(img)
	if cached, ok := a.cache.Get(key); ok {
		a.logger.Debug("vision.analyze.cache_hit", "key", key[:12])
		return cached.Clone(), nil
	}

	start := a.clock.Now()
	res := Run(img, a.params)
	dur := a.clock.Now().Sub(start)
	res.ProcessingDurationMs = dur.Milliseconds()

	if res.Fallback {
		a.logger.Warn("vision.analyze.fallback", "width", img.Width, "height", img.Height)
	}
	a.logger.LogAnalysis(len(res.Elements), res.OverallConfidence, dur, res.Fallback)
	a.observer.ObserveAnalysis(res.Fallback, dur)

	a.cache.Add(key, res.Clone())
	return res, nil
}

// AnalyzeBytes decodes data and analyzes it. Undecodable input yields the
// fallback analysis.
func (a *Analyzer) AnalyzeBytes(ctx context.Context, data []byte) (core.RoomAnalysis, error) {
	img, format, err := Decode(data)
	if err != nil {
		a.logger.Warn("vision.decode.failed", "error", err.Error(), "bytes", len(data))
		return a.Analyze(ctx, Image{})
	}
	a.logger.Debug("vision.decode.ok", "format", format, "width", img.Width, "height", img.Height)
	return a.Analyze(ctx, img)
}

// cacheKey hashes geometry, pixels and parameters.
func (a *Analyzer) cacheKey(img Image) string {
	h := sha256.New()
	var dims [16]byte
	binary.LittleEndian.PutUint64(dims[:8], uint64(img.Width))
	binary.LittleEndian.PutUint64(dims[8:], uint64(img.Height))
	h.Write(dims[:])
	h.Write(img.Pix)
	fmt.Fprintf(h, "%+v", a.params)
	return hex.EncodeToString(h.Sum(nil))
}
