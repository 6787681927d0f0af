package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversToSubscriber(t *testing.T) {
	b := NewBus()
	ch, cancel := b.Subscribe("job-1")
	defer cancel()

	b.Publish("job-1", Event{JobID: "job-1", Type: "status"})

	select {
	case ev := <-ch:
		assert.Equal(t, "job-1", ev.JobID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBusIsolatesJobs(t *testing.T) {
	b := NewBus()
	chA, cancelA := b.Subscribe("a")
	defer cancelA()
	chB, cancelB := b.Subscribe("b")
	defer cancelB()

	b.Publish("a", Event{JobID: "a"})

	select {
	case ev := <-chA:
		assert.Equal(t, "a", ev.JobID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for job a event")
	}

	select {
	case ev := <-chB:
		t.Fatalf("job b channel should not have received an event, got %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusDropsWhenSubscriberBufferFull(t *testing.T) {
	b := NewBus()
	ch, cancel := b.Subscribe("job-1")
	defer cancel()

	for i := 0; i < subscriberBufferSize+10; i++ {
		b.Publish("job-1", Event{JobID: "job-1", Type: "tick"})
	}

	count := 0
	for {
		select {
		case <-ch:
			count++
		default:
			require.LessOrEqual(t, count, subscriberBufferSize)
			return
		}
	}
}

func TestJobChannelSubscribeCancelUnregisters(t *testing.T) {
	jc := newJobChannel()
	_, cancel := jc.Subscribe()
	assert.Equal(t, 1, jc.subscriberCount())
	cancel()
	assert.Equal(t, 0, jc.subscriberCount())
}
