// Package nodestream owns one jitter.InboundStream per remote node,
// tagging each with a stable identity for logging and metrics.
package nodestream

import (
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/binaryvr/hifi/internal/metrics"
	"github.com/binaryvr/hifi/pkg/jitter"
)

// Stream wraps a jitter.InboundStream with the bookkeeping a
// per-remote-node owner needs: an identity for logs and metrics, and
// the address it was last seen from.
type Stream struct {
	ID     string
	Addr   string
	Stream *jitter.InboundStream

	log *log.Entry
}

// New creates a Stream for a newly-seen remote node.
func New(addr string, cfg jitter.StreamConfig) (*Stream, error) {
	s, err := jitter.NewInboundStream(cfg)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	n := &Stream{
		ID:     id,
		Addr:   addr,
		Stream: s,
		log:    log.WithField("node", id).WithField("addr", addr),
	}

	metrics.NodeAdded()
	n.log.Info("node stream started")
	return n, nil
}

// Feed decodes one inbound packet for this node.
func (n *Stream) Feed(packet []byte) {
	consumed := n.Stream.ParseData(packet)
	if consumed == 0 {
		n.log.Warn("dropped malformed packet")
	}
}

// Tick runs the per-second maintenance pass and republishes metrics.
func (n *Stream) Tick() {
	n.Stream.PerSecondCallbackForUpdatingStats()
	metrics.Observe(n.ID, n.Stream.GetAudioStreamStats())
}

// Close tears down the node, removing its metrics series.
func (n *Stream) Close() {
	metrics.Unregister(n.ID)
	metrics.NodeRemoved()
	n.log.Info("node stream closed")
}

// Registry tracks one Stream per remote address, creating them lazily
// on first packet and removing them when the caller decides a node has
// gone away.
type Registry struct {
	mu      sync.Mutex
	streams map[string]*Stream
	cfg     func() jitter.StreamConfig
}

// NewRegistry constructs an empty Registry. cfg is called once per new
// node to build its StreamConfig, so callers can pick up live settings
// changes without restarting the daemon.
func NewRegistry(cfg func() jitter.StreamConfig) *Registry {
	return &Registry{
		streams: make(map[string]*Stream),
		cfg:     cfg,
	}
}

// Get returns the Stream for addr, creating one if this is the first
// packet seen from it.
func (r *Registry) Get(addr string) (*Stream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.streams[addr]; ok {
		return s, nil
	}

	s, err := New(addr, r.cfg())
	if err != nil {
		return nil, err
	}
	r.streams[addr] = s
	return s, nil
}

// Remove closes and drops the Stream for addr, if any.
func (r *Registry) Remove(addr string) {
	r.mu.Lock()
	s, ok := r.streams[addr]
	if ok {
		delete(r.streams, addr)
	}
	r.mu.Unlock()

	if ok {
		s.Close()
	}
}

// Each runs f over every currently-registered Stream's own value, for
// the daemon's per-second tick driver.
func (r *Registry) Each(f func(*Stream)) {
	r.mu.Lock()
	snapshot := make([]*Stream, 0, len(r.streams))
	for _, s := range r.streams {
		snapshot = append(snapshot, s)
	}
	r.mu.Unlock()

	for _, s := range snapshot {
		f(s)
	}
}
