// Package session implements the proxy's core: four concurrent tasks
// (client reader/writer, backend reader/writer) wired through bounded
// channels, the correlation tables that let reverse requests and
// proxy-originated backend requests find their responses, and the event
// gate that lets an async handler hold back backend events while it
// finishes a multi-step handshake.
//
// Grounded on ElleNajt-acp-multiplex's proxy.go (pending/pendingReverse
// sync.Map tables, classify-and-route reader loop) and the teacher's
// pkg/debugger/dap_server.go (the single reader/writer message loop this
// generalizes into four cooperating tasks); supervised with
// golang.org/x/sync/errgroup so the first task to fail determines the
// session's terminal error.
package session

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jomof/kdap/internal/dap/message"
	"github.com/jomof/kdap/internal/dap/transport"
	"github.com/jomof/kdap/internal/kdaperr"
	"github.com/jomof/kdap/internal/kdaplog"
)

// reverseSeqBase and backendSeqBase keep proxy-originated sequence numbers
// out of the range a real IDE or backend would plausibly generate on its
// own, making a stray mismatch easy to spot in a capture (spec.md §3).
const (
	reverseSeqBase = 1_000_000
	backendSeqBase = 2_000_000
	// clientMessageSeqBase seeds the counter the orchestrator draws from
	// when it synthesizes a message bound for the client directly (a
	// launch/configurationDone response, a continued/terminated event) —
	// distinct from a forwarded backend message, which keeps its original
	// seq untouched per the identity-passthrough invariant (spec.md §3).
	clientMessageSeqBase = 500_000
)

// Router is one proxied debug session: one client connection, one backend
// connection, and everything needed to correlate messages between them.
type Router struct {
	ID string

	client  Endpoint
	backend Endpoint

	clientReader  *transport.Reader
	clientWriter  *transport.Writer
	backendReader *transport.Reader
	backendWriter *transport.Writer

	toClient  chan []byte
	toBackend chan []byte

	interceptor Interceptor
	logger      *kdaplog.SessionLogger

	reverseSeq       atomic.Int64
	backendSeq       atomic.Int64
	clientMessageSeq atomic.Int64

	pendingReverseResponses    *promiseTable[int, *message.Response]
	pendingBackendResponses    *promiseTable[int, *message.Response]
	pendingClientInterceptions *promiseTable[string, json.RawMessage]

	silentMu           sync.Mutex
	silentRequestSeqs  map[int]struct{}
	pendingSilentCount atomic.Int64
	// deferredSilentDecrements holds decrements a resolved silent request
	// staged but that must not take effect until after the *next* backend
	// message has been processed — see takePendingSilentDecrement.
	deferredSilentDecrements atomic.Int64

	eventGatePtr atomic.Pointer[gate]

	rootCtx      context.Context
	closing      chan struct{}
	shutdownOnce sync.Once
}

// Config bundles the tunables a Router needs beyond its endpoints.
type Config struct {
	ChannelCapacity int
}

// SetInterceptor replaces the router's interception chain. Used by wiring
// code (cmd/kdap) that needs the Router itself, as an AsyncContext, to
// construct the orchestrator's handlers before the chain that references
// them can be built — call it any time before Run.
func (r *Router) SetInterceptor(interceptor Interceptor) {
	r.interceptor = interceptor
}

// NewRouter constructs a Router wired to the given client/backend
// endpoints and interception chain. interceptor may be nil if the caller
// intends to call SetInterceptor before Run. Run must be called to
// actually pump messages.
func NewRouter(client, backend Endpoint, interceptor Interceptor, logger *kdaplog.SessionLogger, cfg Config) *Router {
	capacity := cfg.ChannelCapacity
	if capacity <= 0 {
		capacity = 64
	}

	r := &Router{
		ID:                         uuid.NewString(),
		client:                     client,
		backend:                    backend,
		clientReader:               transport.NewReader(client.Reader),
		clientWriter:               transport.NewWriter(client.Writer),
		backendReader:              transport.NewReader(backend.Reader),
		backendWriter:              transport.NewWriter(backend.Writer),
		toClient:                   make(chan []byte, capacity),
		toBackend:                  make(chan []byte, capacity),
		interceptor:                interceptor,
		logger:                     logger,
		pendingReverseResponses:    newPromiseTable[int, *message.Response](),
		pendingBackendResponses:    newPromiseTable[int, *message.Response](),
		pendingClientInterceptions: newPromiseTable[string, json.RawMessage](),
		silentRequestSeqs:          make(map[int]struct{}),
		closing:                    make(chan struct{}),
	}
	r.reverseSeq.Store(reverseSeqBase)
	r.backendSeq.Store(backendSeqBase)
	r.clientMessageSeq.Store(clientMessageSeqBase)
	return r
}

// Run pumps messages until either endpoint closes or a task fails, then
// runs the shutdown sequence and returns the session's terminal error (nil
// on ordinary client or backend disconnect).
func (r *Router) Run(ctx context.Context) error {
	r.rootCtx = ctx

	// An external cancellation (e.g. the CLI process receiving SIGINT)
	// runs the same shutdown sequence as either reader hitting EOF.
	go func() {
		select {
		case <-ctx.Done():
			r.shutdown()
		case <-r.closing:
		}
	}()

	eg, _ := errgroup.WithContext(ctx)
	eg.Go(r.runClientReader)
	eg.Go(r.runBackendReader)
	eg.Go(r.runClientWriter)
	eg.Go(r.runBackendWriter)
	return eg.Wait()
}

// shutdown runs exactly once per session, triggered by whichever reader
// task ends first (or by context cancellation). It does not close the
// to-client/to-backend channels — readers and handlers keep selecting on
// r.closing instead, which avoids a send-on-closed-channel race against a
// task still mid-dispatch — and closes the four streams in the order
// spec.md §4.3 mandates: backend-output, client-output, backend-input,
// client-input. Closing backend-output first gives a well-behaved backend
// process a chance to see EOF on its stdin and exit before anything else
// goes away, which in turn unblocks the backend reader even on a stream
// that ignores context cancellation.
func (r *Router) shutdown() {
	r.shutdownOnce.Do(func() {
		close(r.closing)
		_ = r.backend.closeWriter()
		_ = r.client.closeWriter()
		_ = r.backend.closeReader()
		_ = r.client.closeReader()
	})
}

func (r *Router) markSilent(seq int) {
	r.silentMu.Lock()
	r.silentRequestSeqs[seq] = struct{}{}
	r.silentMu.Unlock()
}

// takeSilent reports whether seq was registered as a silent request and,
// if so, clears the registration. Called at most once per seq, from the
// backend reader when that seq's response arrives.
func (r *Router) takeSilent(seq int) bool {
	r.silentMu.Lock()
	_, ok := r.silentRequestSeqs[seq]
	if ok {
		delete(r.silentRequestSeqs, seq)
	}
	r.silentMu.Unlock()
	return ok
}

// stageSilentDecrement records that pendingSilentCount should drop by one,
// but defers applying it until takePendingSilentDecrement is next called —
// which happens while dispatching the backend message that follows this
// one, not this one itself. That one-message delay is what keeps
// suppression elevated for a trailing output event arriving immediately
// after a silent request's response (spec.md §5, §8).
func (r *Router) stageSilentDecrement() {
	r.deferredSilentDecrements.Add(1)
}

// takePendingSilentDecrement claims whatever stageSilentDecrement recorded
// while processing the previous backend message, for the caller to apply
// once the current message has been fully processed.
func (r *Router) takePendingSilentDecrement() int64 {
	return r.deferredSilentDecrements.Swap(0)
}

func (r *Router) runClientWriter() error {
	for {
		select {
		case raw := <-r.toClient:
			if err := r.clientWriter.WriteMessage(raw); err != nil {
				r.shutdown()
				return kdaperr.NewIOError("session: write to client", err)
			}
		case <-r.closing:
			return r.drainToClient()
		}
	}
}

func (r *Router) runBackendWriter() error {
	for {
		select {
		case raw := <-r.toBackend:
			if err := r.backendWriter.WriteMessage(raw); err != nil {
				r.shutdown()
				return kdaperr.NewIOError("session: write to backend", err)
			}
		case <-r.closing:
			return r.drainToBackend()
		}
	}
}

// drainToClient and drainToBackend flush whatever was already buffered in
// the channel at the moment shutdown began, matching spec.md §4.3's
// "writers drain all enqueued messages before exit".
func (r *Router) drainToClient() error {
	for {
		select {
		case raw := <-r.toClient:
			if err := r.clientWriter.WriteMessage(raw); err != nil {
				return kdaperr.NewIOError("session: write to client", err)
			}
		default:
			return nil
		}
	}
}

func (r *Router) drainToBackend() error {
	for {
		select {
		case raw := <-r.toBackend:
			if err := r.backendWriter.WriteMessage(raw); err != nil {
				return kdaperr.NewIOError("session: write to backend", err)
			}
		default:
			return nil
		}
	}
}
