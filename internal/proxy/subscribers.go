package proxy

import (
	"sync"
	"time"
)

// SubscriberKind 订阅者类型
type SubscriberKind string

const (
	KindStream  SubscriberKind = "stream"
	KindControl SubscriberKind = "control"
)

// Subscriber 代理侧的一个活跃客户端
type Subscriber struct {
	ID          string         `json:"id"`
	Kind        SubscriberKind `json:"kind"`
	RemoteAddr  string         `json:"remote_addr"`
	ConnectedAt time.Time      `json:"connected_at"`
	LastSeen    time.Time      `json:"last_seen"`
}

// subscriberRegistry 订阅者注册表
type subscriberRegistry struct {
	mu   sync.RWMutex
	subs map[string]*Subscriber
}

func newSubscriberRegistry() *subscriberRegistry {
	return &subscriberRegistry{
		subs: make(map[string]*Subscriber),
	}
}

func (r *subscriberRegistry) Add(id string, kind SubscriberKind, remoteAddr string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.subs[id] = &Subscriber{
		ID:          id,
		Kind:        kind,
		RemoteAddr:  remoteAddr,
		ConnectedAt: now,
		LastSeen:    now,
	}
}

func (r *subscriberRegistry) Touch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sub, ok := r.subs[id]; ok {
		sub.LastSeen = time.Now()
	}
}

func (r *subscriberRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.subs, id)
}

func (r *subscriberRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.subs)
}

// List 返回当前订阅者快照
func (r *subscriberRegistry) List() []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Subscriber, 0, len(r.subs))
	for _, sub := range r.subs {
		out = append(out, *sub)
	}
	return out
}
