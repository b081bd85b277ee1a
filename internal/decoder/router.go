package decoder

import (
	"sync"

	"go.uber.org/zap"

	"carhack/internal/frame"
	"carhack/internal/pubsub"
)

// Publisher receives decoded signals. Topics are bare signal names.
type Publisher interface {
	Publish(topic string, ts float64, value any)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(topic string, ts float64, value any)

func (f PublisherFunc) Publish(topic string, ts float64, value any) { f(topic, ts, value) }

// Subscriber is the subscribe half of a topic bus carrying raw frames.
type Subscriber interface {
	Subscribe(topic string, h pubsub.Handler) (unsubscribe func())
}

// Router dispatches frames to their decoders and forwards the decoded
// signals to a Publisher. Route calls are serialised.
type Router struct {
	reg *Registry
	pub Publisher

	mu        sync.Mutex
	onDrop    func(frame.Frame, error)
	onUnknown func(frame.Frame)
	onDecoded func(frame.Frame, int)
	log       *zap.Logger
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithDropHook is called for every frame dropped with a decode error.
func WithDropHook(fn func(frame.Frame, error)) RouterOption {
	return func(r *Router) { r.onDrop = fn }
}

// WithUnknownHook is called for every frame whose ID has no decoder.
func WithUnknownHook(fn func(frame.Frame)) RouterOption {
	return func(r *Router) { r.onUnknown = fn }
}

// WithDecodedHook is called after a frame is decoded with the number of
// signals it published.
func WithDecodedHook(fn func(frame.Frame, int)) RouterOption {
	return func(r *Router) { r.onDecoded = fn }
}

// WithLogger sets the router's logger. The default discards everything.
func WithLogger(l *zap.Logger) RouterOption {
	return func(r *Router) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRouter returns a router over reg publishing to pub.
func NewRouter(reg *Registry, pub Publisher, opts ...RouterOption) *Router {
	r := &Router{
		reg: reg,
		pub: pub,
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route decodes one frame and publishes its signals in decoder order.
// Frames with unregistered IDs, and extended frames, go to the unknown
// hook. Frames with the wrong payload length are dropped and reported to
// the drop hook; Route itself never fails.
//
// The router lock is held while the publisher and hooks run, so they must
// not call Route on the same Router.
func (r *Router) Route(f frame.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.reg.Match(f)
	if !ok {
		if r.onUnknown != nil {
			r.onUnknown(f)
		}
		return
	}

	if len(f.Data) != reg.Length {
		err := &PayloadLengthMismatchError{ID: f.ID, Want: reg.Length, Got: len(f.Data)}
		r.log.Debug("dropping frame",
			zap.String("id", f.IDString()),
			zap.Int("want", reg.Length),
			zap.Int("got", len(f.Data)))
		if r.onDrop != nil {
			r.onDrop(f, err)
		}
		return
	}

	signals := reg.Decode(f)
	for _, s := range signals {
		r.pub.Publish(s.Name, s.Timestamp, s.Value)
	}
	if r.onDecoded != nil {
		r.onDecoded(f, len(signals))
	}
}

// Attach subscribes the router to "<source>.<bus>.<id>" for every registered
// ID. Values published on those topics must be frame.Frame; anything else
// is logged and ignored. The returned function detaches all subscriptions.
func (r *Router) Attach(sub Subscriber, source, bus string) (detach func()) {
	regs := r.reg.Registrations()
	unsubs := make([]func(), 0, len(regs))
	for _, reg := range regs {
		topic := Topic(source, bus, reg.ID)
		unsubs = append(unsubs, sub.Subscribe(topic, func(topic string, _ float64, value any) {
			f, ok := value.(frame.Frame)
			if !ok {
				r.log.Warn("ignoring non-frame value", zap.String("topic", topic))
				return
			}
			r.Route(f)
		}))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
