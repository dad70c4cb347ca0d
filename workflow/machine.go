package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/indieinfra/mediadrop/media"
	"github.com/indieinfra/mediadrop/storage/content"
	vendor "github.com/indieinfra/mediadrop/storage/objectstore"
)

var (
	// ErrClosed is returned by Send once the machine has stopped.
	ErrClosed = errors.New("workflow is closed")

	errNoExtractor = errors.New("no extractor configured")
	errNoVendor    = errors.New("no storage vendor configured")
	errNoRegistrar = errors.New("no content store configured")
)

// Logger is the subset of *log.Logger the machine writes to.
type Logger interface {
	Printf(format string, v ...any)
}

// Dependencies are the collaborators the Machine runs effects against.
type Dependencies struct {
	Extractor   media.Extractor
	Vendor      vendor.Adapter
	Credentials vendor.Credentials
	Registrar   content.Registrar
	Logger      Logger

	// ExtractionTimeout bounds a single extraction; zero leaves it to the extractor.
	ExtractionTimeout time.Duration

	// Observer is called from the event loop after every handled event. It must not block
	// and must not call back into the Machine.
	Observer func(Change)
}

// Snapshot is a consistent copy of the workflow at one point in time.
type Snapshot struct {
	State   State   `json:"state"`
	Context Context `json:"context"`
}

// Change describes one handled event.
type Change struct {
	Event EventKind
	From  State
	To    Snapshot
}

// Outcome is the result of delivering an event through Send.
type Outcome struct {
	Snapshot Snapshot
	// Handled is false when the state had no transition for the event.
	Handled bool
	// Notices are transient user-facing messages, such as a rejected selection.
	Notices []string
}

type envelope struct {
	ev    Event
	task  bool
	gen   uint64
	reply chan Outcome
}

// Machine drives one upload workflow. All state is owned by the goroutine running Run; other
// goroutines interact through Send and Snapshot.
type Machine struct {
	policy Policy
	deps   Dependencies
	logger Logger

	events    chan envelope
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	started   atomic.Bool

	mu   sync.RWMutex
	snap Snapshot

	// owned by the loop
	runCtx context.Context
	state  State
	ctx    Context
	gen    uint64
	cancel func()
}

func New(policy Policy, deps Dependencies) *Machine {
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Machine{
		policy: policy,
		deps:   deps,
		logger: logger,
		events: make(chan envelope, 64),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		snap:   Snapshot{State: Idle},
	}
}

// Run processes events until ctx is done or Close is called. In-flight work is released
// before Run returns. A Machine runs at most once.
func (m *Machine) Run(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return errors.New("workflow already started or closed")
	}
	defer close(m.done)

	m.runCtx = ctx
	defer m.releaseTask()

	for {
		select {
		case <-m.quit:
			return nil
		default:
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.quit:
			return nil
		case env := <-m.events:
			m.handle(env)
		}
	}
}

// Send delivers ev and waits for the resulting snapshot.
func (m *Machine) Send(ctx context.Context, ev Event) (Outcome, error) {
	env := envelope{ev: ev, reply: make(chan Outcome, 1)}

	select {
	case m.events <- env:
	case <-m.done:
		return Outcome{}, ErrClosed
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}

	select {
	case out := <-env.reply:
		return out, nil
	case <-m.done:
		return Outcome{}, ErrClosed
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

// Close stops the loop and waits for it to release in-flight work. A machine closed before
// Run starts never runs.
func (m *Machine) Close() {
	m.closeOnce.Do(func() {
		close(m.quit)
		if m.started.CompareAndSwap(false, true) {
			close(m.done)
		}
	})
	<-m.done
}

// Done is closed once Run has returned.
func (m *Machine) Done() <-chan struct{} {
	return m.done
}

// post queues an event produced by the task of generation gen.
func (m *Machine) post(gen uint64, ev Event) {
	select {
	case m.events <- envelope{ev: ev, task: true, gen: gen}:
	case <-m.done:
	}
}

func (m *Machine) handle(env envelope) {
	if env.task && env.gen != m.gen {
		m.logger.Printf("dropping stale %v event (generation %d, current %d)", env.ev.Kind(), env.gen, m.gen)
		return
	}

	from := m.state
	handled := Handles(from, env.ev)

	if env.task && handled && terminal(env.ev) {
		m.finishTask()
	}

	state, next, effects := m.policy.Transition(from, m.ctx, env.ev)
	m.state, m.ctx = state, next

	var notices []string
	for _, eff := range effects {
		if notice := m.execute(eff); notice != "" {
			notices = append(notices, notice)
		}
	}

	snap := Snapshot{State: m.state, Context: m.ctx}
	m.mu.Lock()
	m.snap = snap
	m.mu.Unlock()

	if handled && from != state {
		m.logger.Printf("workflow %v -> %v on %v", from, state, env.ev.Kind())
	}

	if handled && m.deps.Observer != nil {
		m.deps.Observer(Change{Event: env.ev.Kind(), From: from, To: snap})
	}

	if env.reply != nil {
		env.reply <- Outcome{Snapshot: snap, Handled: handled, Notices: notices}
	}
}

func terminal(ev Event) bool {
	return ev.Kind() != KindVendorProgress
}

func (m *Machine) execute(eff Effect) string {
	switch e := eff.(type) {
	case ExtractVideo:
		m.extractVideo(e.File)
	case ExtractAudio:
		m.extractAudio(e.File)
	case UploadToVendor:
		m.uploadToVendor(e.File)
	case RegisterAsset:
		m.registerAsset(e.Registration)
	case ReleaseInFlight:
		m.logger.Printf("releasing in-flight work of %v", e.From)
		m.releaseTask()
	case DiscardFile:
		if err := e.File.Remove(); err != nil {
			m.logger.Printf("failed to remove %v: %v", e.File.Path, err)
		}
	case NotifyRejected:
		m.logger.Printf("rejected selection: %v", e.Message)
		return e.Message
	case NotifyRetryExhausted:
		m.logger.Printf("retry refused after %d of %d attempts", e.Retries, e.MaxRetries)
		return fmt.Sprintf("Retry limit reached (%d of %d attempts used)", e.Retries, e.MaxRetries)
	}
	return ""
}

// beginTask releases any previous task and starts a new generation.
func (m *Machine) beginTask() (context.Context, uint64) {
	m.releaseTask()

	ctx, cancel := context.WithCancel(m.runCtx)
	m.cancel = cancel
	return ctx, m.gen
}

// releaseTask aborts the current task and invalidates every event it may still deliver.
func (m *Machine) releaseTask() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.gen++
}

// finishTask frees the resources of a task that reported its result.
func (m *Machine) finishTask() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m *Machine) extractionContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.deps.ExtractionTimeout > 0 {
		return context.WithTimeout(ctx, m.deps.ExtractionTimeout)
	}
	return context.WithCancel(ctx)
}

func (m *Machine) extractVideo(file *media.File) {
	ctx, gen := m.beginTask()

	go func() {
		if m.deps.Extractor == nil {
			m.post(gen, VideoExtracted{Err: errNoExtractor})
			return
		}

		ctx, cancel := m.extractionContext(ctx)
		defer cancel()

		preview, err := m.deps.Extractor.ExtractVideoPreview(ctx, file)
		if err != nil {
			m.logger.Printf("video extraction failed for %v, continuing without preview: %v", file.Name, err)
		}
		m.post(gen, VideoExtracted{Preview: preview, Err: err})
	}()
}

func (m *Machine) extractAudio(file *media.File) {
	ctx, gen := m.beginTask()

	go func() {
		if m.deps.Extractor == nil {
			m.post(gen, AudioExtracted{Err: errNoExtractor})
			return
		}

		ctx, cancel := m.extractionContext(ctx)
		defer cancel()

		md, err := m.deps.Extractor.ExtractAudioMetadata(ctx, file)
		if err != nil {
			m.logger.Printf("audio extraction failed for %v, continuing without metadata: %v", file.Name, err)
		}
		m.post(gen, AudioExtracted{Metadata: md, Err: err})
	}()
}

func (m *Machine) uploadToVendor(file *media.File) {
	ctx, gen := m.beginTask()

	if m.deps.Vendor == nil {
		go m.post(gen, VendorFailed{Err: errNoVendor})
		return
	}

	stop := m.deps.Vendor.UploadFile(ctx, file, file.Name, m.deps.Credentials,
		func(p int) { m.post(gen, VendorProgress{Percent: p}) },
		func(stored *vendor.StoredFile) { m.post(gen, VendorSucceeded{Stored: stored}) },
		func(err error) { m.post(gen, VendorFailed{Err: err}) },
	)

	cancel := m.cancel
	m.cancel = func() {
		stop()
		cancel()
	}
}

func (m *Machine) registerAsset(reg *content.Registration) {
	ctx, gen := m.beginTask()

	go func() {
		if m.deps.Registrar == nil {
			m.post(gen, RegistrationFailed{Err: errNoRegistrar})
			return
		}

		record, err := m.deps.Registrar.Register(ctx, reg)
		if err != nil {
			m.post(gen, RegistrationFailed{Err: err})
			return
		}
		m.post(gen, RegistrationSucceeded{Record: record})
	}()
}
