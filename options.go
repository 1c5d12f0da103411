package exr

import (
	"log/slog"
	"runtime"
)

// Option configures reading and writing.
type Option func(*options)

type options struct {
	workers  int
	progress Progress
	logger   *slog.Logger
	maxAlloc int64
	zipLevel int
}

func newOptions(opts []Option) *options {
	o := &options{maxAlloc: DefaultMaxAllocation, zipLevel: defaultZipLevel}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

func (o *options) log() *slog.Logger {
	if o.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.logger
}

// workerCount resolves the worker setting for n chunks. 0 means sequential.
func (o *options) workerCount(n int) int {
	if o.workers < 0 || n <= 1 {
		return 0
	}
	w := o.workers
	if w == 0 {
		w = runtime.GOMAXPROCS(0)
	}
	return min(w, n)
}

// WithWorkers sets the number of chunks compressed or decompressed in
// parallel. Negative values select the sequential low-memory mode, 0 uses
// GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithProgress installs a progress callback that may cancel the operation.
func WithProgress(p Progress) Option {
	return func(o *options) {
		o.progress = p
	}
}

// WithLogger sets the logger for debug events. Logging is off by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMaxAllocation bounds every allocation whose size comes from file
// contents (default 1 GiB). Non-positive values disable the limit.
func WithMaxAllocation(bytes int64) Option {
	return func(o *options) {
		o.maxAlloc = bytes
	}
}

// WithZipLevel sets the deflate level of the ZIP and ZIPS codecs.
func WithZipLevel(level int) Option {
	return func(o *options) {
		o.zipLevel = level
	}
}
