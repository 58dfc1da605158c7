package chatsync

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/Anurag-122004/CIRC/internal/chat"
	"github.com/Anurag-122004/CIRC/internal/store"
)

// Snapshot is the immutable view emitted after every state transition. The
// presentation layer renders from snapshots and never reaches into engine
// state directly.
type Snapshot struct {
	SessionID string
	Messages  []chat.Message
	Awaiting  bool
	Channel   ChannelState
	Sessions  []*store.Session
}

type cmdKind int

const (
	cmdSend cmdKind = iota
	cmdSelect
)

type command struct {
	kind  cmdKind
	text  string
	id    string
	reply chan error
}

// Orchestrator composes the bootstrapper, channel, reconciler and store
// behind one contract. All state transitions run on a single event loop, so
// no two transitions ever interleave: user actions and transport events are
// funneled into the same goroutine and each handler runs to completion.
type Orchestrator struct {
	boot    *Bootstrapper
	channel *Channel
	store   *store.Store

	mu          sync.Mutex
	initialized bool
	closed      bool
	loopStarted bool

	rec *Reconciler
	// transportID is the backend session the socket is bound to; activeID is
	// the registry session mutations are persisted to. They start equal and
	// diverge when the user selects a stored session.
	transportID string
	activeID    string

	commands chan command
	events   chan Event
	done     chan struct{}
	loopDone chan struct{}

	current atomic.Pointer[Snapshot]

	subMu sync.Mutex
	subs  []chan Snapshot
}

// NewOrchestrator wires an orchestrator for one feature instance. The store
// must be exclusive to this feature; registries are never shared.
func NewOrchestrator(boot *Bootstrapper, ch *Channel, st *store.Store) *Orchestrator {
	o := &Orchestrator{
		boot:     boot,
		channel:  ch,
		store:    st,
		rec:      NewReconciler(),
		commands: make(chan command),
		events:   make(chan Event, 16),
		done:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	o.current.Store(&Snapshot{Sessions: st.Sessions()})
	return o
}

// Initialize runs bootstrap, connect and history load, in that order. It is
// guarded so at most one bootstrap is ever in flight per instance; a failed
// bootstrap leaves the orchestrator inert and retryable.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	if o.initialized {
		o.mu.Unlock()
		return ErrAlreadyInitialized
	}
	o.initialized = true
	o.mu.Unlock()

	sid, err := o.boot.StartSession(ctx)

	o.mu.Lock()
	if o.closed {
		// Torn down while the bootstrap round-trip was in flight: the result
		// is discarded, never applied.
		o.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		o.initialized = false
		o.mu.Unlock()
		return err
	}
	o.transportID = sid
	o.activeID = sid
	o.mu.Unlock()

	o.channel.SetListener(func(ev Event) {
		select {
		case o.events <- ev:
		case <-o.done:
		}
	})

	if err := o.channel.Connect(ctx, sid); err != nil {
		// Degraded mode: history still works, sending does not until the
		// caller reconnects.
		log.Warn().Err(err).Str("component", "chatsync").Msg("channel connect failed")
	}

	o.mu.Lock()
	if o.closed {
		// Torn down while the dial was in flight: release whatever Connect
		// opened and report closed.
		o.mu.Unlock()
		o.channel.SetListener(nil)
		o.channel.Close()
		return ErrClosed
	}
	o.loopStarted = true
	o.mu.Unlock()

	// The initial snapshot goes out before the loop starts; a frame that
	// arrived during Connect waits buffered in events until the loop owns
	// the reconciler.
	o.publish()
	go o.loop()
	return nil
}

func (o *Orchestrator) loop() {
	defer close(o.loopDone)
	for {
		select {
		case <-o.done:
			return
		case cmd := <-o.commands:
			switch cmd.kind {
			case cmdSend:
				cmd.reply <- o.handleSend(cmd.text)
			case cmdSelect:
				cmd.reply <- o.handleSelect(cmd.id)
			}
		case ev := <-o.events:
			o.handleEvent(ev)
		}
	}
}

func (o *Orchestrator) handleSend(text string) error {
	if o.channel.State() != StateOpen {
		return ErrChannelNotOpen
	}
	msg, err := o.rec.AppendUser(text)
	if err != nil {
		return err
	}
	if err := o.channel.Send(text); err != nil {
		// The optimistic message stays visible; the pending flag is dropped
		// so the user can retry once the channel is back.
		o.rec.ClearAwaiting()
		o.persist(msg)
		o.publish()
		return err
	}
	o.persist(msg)
	o.publish()
	return nil
}

func (o *Orchestrator) handleSelect(id string) error {
	sess, err := o.store.Select(id)
	if err != nil {
		return err
	}
	o.rec.Reset(sess.Messages)
	o.mu.Lock()
	o.activeID = sess.ID
	o.mu.Unlock()
	o.publish()
	return nil
}

func (o *Orchestrator) handleEvent(ev Event) {
	switch ev.Kind {
	case EventMessage:
		msg, err := o.rec.ApplyReply(ev.Payload)
		if err != nil {
			// Malformed frame: state stays awaiting, nothing to persist.
			return
		}
		o.persist(msg)
	case EventError:
		log.Warn().Str("component", "chatsync").Msg("transport error")
	case EventClosed:
		log.Info().Str("component", "chatsync").Msg("channel closed")
		o.rec.ClearAwaiting()
	}
	o.publish()
}

func (o *Orchestrator) persist(msg chat.Message) {
	o.mu.Lock()
	id := o.activeID
	o.mu.Unlock()
	if id == "" {
		return
	}
	o.store.Upsert(id, func(s *store.Session) {
		s.Append(msg)
	})
	if err := o.store.Save(); err != nil {
		// Degrades to "works this session only".
		log.Warn().Err(err).Str("component", "chatsync").Msg("persist registry failed")
	}
}

// SendUserMessage appends the user's message optimistically and dispatches it
// on the channel. It fails fast while a reply is pending or the channel is
// not open.
func (o *Orchestrator) SendUserMessage(text string) error {
	return o.submit(command{kind: cmdSend, text: text, reply: make(chan error, 1)})
}

// SelectSession replaces the visible message list with the stored session's
// history, abandoning any in-progress draft.
func (o *Orchestrator) SelectSession(id string) error {
	return o.submit(command{kind: cmdSelect, id: id, reply: make(chan error, 1)})
}

func (o *Orchestrator) submit(cmd command) error {
	o.mu.Lock()
	closed, initialized := o.closed, o.initialized
	o.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if !initialized {
		return ErrNotInitialized
	}
	select {
	case o.commands <- cmd:
	case <-o.done:
		return ErrClosed
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-o.done:
		return ErrClosed
	}
}

// Messages returns the current visible message list.
func (o *Orchestrator) Messages() []chat.Message {
	return o.current.Load().Messages
}

// IsAwaitingReply reports whether a reply is pending.
func (o *Orchestrator) IsAwaitingReply() bool {
	return o.current.Load().Awaiting
}

// Sessions returns the registry in insertion order.
func (o *Orchestrator) Sessions() []*store.Session {
	return o.current.Load().Sessions
}

// Current returns the latest snapshot.
func (o *Orchestrator) Current() *Snapshot {
	return o.current.Load()
}

// Subscribe registers an observer. Every state transition delivers a fresh
// snapshot; slow consumers miss intermediate snapshots instead of blocking
// the engine. The channel is closed on teardown.
func (o *Orchestrator) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 16)
	o.subMu.Lock()
	o.subs = append(o.subs, ch)
	o.subMu.Unlock()
	return ch
}

func (o *Orchestrator) publish() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	snap := &Snapshot{
		SessionID: o.activeID,
		Messages:  o.rec.Messages(),
		Awaiting:  o.rec.IsAwaiting(),
		Channel:   o.channel.State(),
		Sessions:  o.store.Sessions(),
	}
	o.mu.Unlock()

	o.current.Store(snap)

	o.subMu.Lock()
	for _, sub := range o.subs {
		select {
		case sub <- *snap:
		default:
		}
	}
	o.subMu.Unlock()
}

// Close tears the instance down: the listener is deregistered, the socket is
// released, and any late transport event or in-flight bootstrap result is
// discarded without mutating state.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	started := o.loopStarted
	o.mu.Unlock()

	o.channel.SetListener(nil)
	o.channel.Close()
	close(o.done)
	if started {
		<-o.loopDone
	}

	o.subMu.Lock()
	for _, sub := range o.subs {
		close(sub)
	}
	o.subs = nil
	o.subMu.Unlock()
}
