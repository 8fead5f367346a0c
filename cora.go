// Package cora provides a high-level façade over the retrieval-augmented
// support assistant: multilingual question answering grounded in a vector
// indexed knowledge base, with per-session conversation memory. Most
// applications interact with this package by:
//  1. Creating an Assistant via New() with a model and a vector index
//     (optionally overriding the default in-memory services)
//  2. Calling Ask (blocking), AskStream (incremental) or Classify
//
// All defaults are safe for local development and testing; production
// deployments typically supply the Weaviate-backed index, the HTTP
// translation client and a structured logger.
package cora

import (
	"time"

	"github.com/rayied/cora/config"
	"github.com/rayied/cora/core"
	"github.com/rayied/cora/logging"
	"github.com/rayied/cora/memory"
	"github.com/rayied/cora/model"
	"github.com/rayied/cora/retriever"
	"github.com/rayied/cora/session"
	"github.com/rayied/cora/translate"
)

// Options configures the Assistant instance.
type Options struct {
	// Config carries pipeline tunables (retrieval knobs, session lifecycle,
	// prompts). Defaults to config.Default().
	Config config.Config

	// Services (default to in-memory / passthrough implementations if not
	// provided).
	SessionStore core.SessionStore
	Retriever    *retriever.Retriever
	Translator   core.Translator
	Compressor   *memory.Compressor

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger

	// Now supplies the current time; override in tests to control turn
	// timestamps and session expiry.
	Now func() time.Time
}

// Assistant is the high-level façade aggregating the answer pipeline and its
// services.
type Assistant struct {
	cfg        config.Config
	model      model.Model
	index      core.VectorIndex
	sessions   core.SessionStore
	retriever  *retriever.Retriever
	translator core.Translator
	compressor *memory.Compressor
	logger     logging.Logger
	now        func() time.Time
}

// New creates an Assistant over the given model and vector index. Any unset
// service is initialized with a default implementation: an in-memory session
// store, a retriever over the index, a passthrough translator and a
// background memory compressor sharing the model.
func New(m model.Model, index core.VectorIndex, optFns ...func(o *Options)) *Assistant {
	opts := Options{
		Config: config.Default(),
		Logger: logging.NoOpLogger{},
		Now:    time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.SessionStore == nil {
		opts.SessionStore = session.NewInMemoryStore(func(o *session.Options) {
			o.Timeout = opts.Config.SessionTimeout
			o.Now = opts.Now
			o.Logger = opts.Logger
		})
	}
	if opts.Retriever == nil {
		opts.Retriever = retriever.New(index, func(o *retriever.Options) {
			o.TopN = opts.Config.TopN
			o.SimilarityThreshold = opts.Config.SimilarityThreshold
			o.Logger = opts.Logger
		})
	}
	if opts.Translator == nil {
		opts.Translator = translate.Noop{}
	}
	if opts.Compressor == nil {
		opts.Compressor = memory.NewCompressor(m, func(o *memory.Options) {
			o.SummaryWindow = opts.Config.SummaryWindow
			o.Logger = opts.Logger
		})
	}

	return &Assistant{
		cfg:        opts.Config,
		model:      m,
		index:      index,
		sessions:   opts.SessionStore,
		retriever:  opts.Retriever,
		translator: opts.Translator,
		compressor: opts.Compressor,
		logger:     opts.Logger,
		now:        opts.Now,
	}
}

// Sessions exposes the session store (active-count reporting, test access).
func (a *Assistant) Sessions() core.SessionStore { return a.sessions }

// FlushMemory blocks until every queued background memory task has finished.
// Intended for tests and shutdown.
func (a *Assistant) FlushMemory() { a.compressor.Flush() }

// Close drains the background memory workers.
func (a *Assistant) Close() { a.compressor.Close() }
