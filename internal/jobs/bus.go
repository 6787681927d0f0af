package jobs

import (
	"sync"
	"time"
)

// Event is one progress notification emitted by the Workflow Engine,
// matching the WS message catalogue.
type Event struct {
	JobID     string    `json:"job_id"`
	Type      string    `json:"type"`
	Agent     string    `json:"agent,omitempty"`
	Status    string    `json:"status,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// JobChannel is one job's isolated event stream, unlike the teacher's
// single global Hub: every job gets its own publish function and
// independent subscriber set, so a slow reader on job A never drops
// events for job B and a late subscriber never replays history.
type JobChannel struct {
	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
}

type subscriber struct {
	ch chan Event
}

const subscriberBufferSize = 64

func newJobChannel() *JobChannel {
	return &JobChannel{subscribers: make(map[*subscriber]struct{})}
}

// Publish fans event out to every current subscriber. A subscriber
// whose buffer is full is skipped rather than blocking the publisher —
// the same send-or-drop discipline as the teacher's Hub.broadcast
// select/default.
func (jc *JobChannel) Publish(event Event) {
	jc.mu.Lock()
	defer jc.mu.Unlock()
	for sub := range jc.subscribers {
		select {
		case sub.ch <- event:
		default:
		}
	}
}

// Subscribe registers a new subscriber and returns its event channel
// plus a cancel function to unregister and release it.
func (jc *JobChannel) Subscribe() (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, subscriberBufferSize)}

	jc.mu.Lock()
	jc.subscribers[sub] = struct{}{}
	jc.mu.Unlock()

	cancel := func() {
		jc.mu.Lock()
		if _, ok := jc.subscribers[sub]; ok {
			delete(jc.subscribers, sub)
			close(sub.ch)
		}
		jc.mu.Unlock()
	}
	return sub.ch, cancel
}

func (jc *JobChannel) subscriberCount() int {
	jc.mu.Lock()
	defer jc.mu.Unlock()
	return len(jc.subscribers)
}

// Bus owns one JobChannel per job ID, created on first use and
// discarded only when Close is called for that job, whether or not
// subscribers remain.
type Bus struct {
	mu       sync.Mutex
	channels map[string]*JobChannel
}

func NewBus() *Bus {
	return &Bus{channels: make(map[string]*JobChannel)}
}

func (b *Bus) channelFor(jobID string) *JobChannel {
	b.mu.Lock()
	defer b.mu.Unlock()
	jc, ok := b.channels[jobID]
	if !ok {
		jc = newJobChannel()
		b.channels[jobID] = jc
	}
	return jc
}

// Publish emits event on jobID's channel, creating the channel if no
// subscriber has connected yet (the publish is simply dropped in that
// case — there is no replay buffer).
func (b *Bus) Publish(jobID string, event Event) {
	b.channelFor(jobID).Publish(event)
}

// Subscribe returns a read channel of events for jobID from this point
// forward, plus a cancel function the caller must invoke when done.
func (b *Bus) Subscribe(jobID string) (<-chan Event, func()) {
	return b.channelFor(jobID).Subscribe()
}

// Close removes jobID's channel once it's no longer needed (e.g. the
// job reached a terminal state and was later deleted).
func (b *Bus) Close(jobID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.channels, jobID)
}
