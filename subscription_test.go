package livemetro

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type countingFetch struct {
	mu    sync.Mutex
	calls map[string]int
	data  *RealtimeTrainData
	err   error
}

func (c *countingFetch) fetch(ctx context.Context, key string) (*RealtimeTrainData, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.calls == nil {
		c.calls = map[string]int{}
	}
	c.calls[key]++

	return c.data, c.err
}

func (c *countingFetch) count(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.calls[key]
}

type recordingCallback struct {
	mu      sync.Mutex
	results []*RealtimeTrainData
}

func (r *recordingCallback) cb(v *RealtimeTrainData) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.results = append(r.results, v)
}

func (r *recordingCallback) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.results)
}

func (r *recordingCallback) first() *RealtimeTrainData {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.results[0]
}

func TestSubscribeDeliversImmediately(t *testing.T) {
	src := &countingFetch{data: realtimePayload("Gangnam", TrainArrival{TrainNo: "1234"})}
	mgr := NewSubscriptionManager(src.fetch, zerolog.Nop())

	rec := &recordingCallback{}
	cancel := mgr.Subscribe("Gangnam", time.Hour, rec.cb)
	defer cancel()

	// The first delivery does not wait for the first tick.
	assert.Eventually(t, func() bool { return rec.count() >= 1 }, time.Second, time.Millisecond)
	assert.Equal(t, "1234", rec.first().Trains[0].TrainNo)
}

func TestSubscribersShareOnePoller(t *testing.T) {
	src := &countingFetch{data: realtimePayload("Gangnam")}
	mgr := NewSubscriptionManager(src.fetch, zerolog.Nop())

	rec1 := &recordingCallback{}
	rec2 := &recordingCallback{}

	cancel1 := mgr.Subscribe("Gangnam", 50*time.Millisecond, rec1.cb)
	cancel2 := mgr.Subscribe("Gangnam", 5*time.Millisecond, rec2.cb)
	defer cancel1()
	defer cancel2()

	assert.Equal(t, 1, mgr.ActivePollers())

	// Both callbacks see results, but there is only one fetch per tick:
	// the second subscriber's shorter interval is ignored.
	assert.Eventually(t, func() bool { return rec1.count() >= 2 && rec2.count() >= 2 }, 2*time.Second, 5*time.Millisecond)
	assert.LessOrEqual(t, src.count("Gangnam"), rec1.count()+1)
}

func TestUnsubscribeStopsPolling(t *testing.T) {
	src := &countingFetch{data: realtimePayload("Gangnam")}
	mgr := NewSubscriptionManager(src.fetch, zerolog.Nop())

	rec := &recordingCallback{}
	cancel := mgr.Subscribe("Gangnam", 10*time.Millisecond, rec.cb)

	assert.Eventually(t, func() bool { return rec.count() >= 2 }, time.Second, time.Millisecond)

	cancel()
	assert.Equal(t, 0, mgr.ActivePollers())

	settled := src.count("Gangnam")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, src.count("Gangnam"))

	// Cancelling twice is harmless.
	cancel()
}

func TestLastUnsubscribeTearsDownPoller(t *testing.T) {
	src := &countingFetch{data: realtimePayload("Gangnam")}
	mgr := NewSubscriptionManager(src.fetch, zerolog.Nop())

	cancel1 := mgr.Subscribe("Gangnam", 10*time.Millisecond, func(*RealtimeTrainData) {})
	cancel2 := mgr.Subscribe("Gangnam", 10*time.Millisecond, func(*RealtimeTrainData) {})

	cancel1()
	assert.Equal(t, 1, mgr.ActivePollers())

	cancel2()
	assert.Equal(t, 0, mgr.ActivePollers())

	// A fresh subscription after teardown starts a new poller.
	rec := &recordingCallback{}
	cancel3 := mgr.Subscribe("Gangnam", time.Hour, rec.cb)
	defer cancel3()

	assert.Equal(t, 1, mgr.ActivePollers())
	assert.Eventually(t, func() bool { return rec.count() >= 1 }, time.Second, time.Millisecond)
}

func TestSubscribeDeliversNilOnTotalFailure(t *testing.T) {
	src := &countingFetch{err: &ExhaustedError{Key: "Gangnam"}}
	mgr := NewSubscriptionManager(src.fetch, zerolog.Nop())

	rec := &recordingCallback{}
	cancel := mgr.Subscribe("Gangnam", time.Hour, rec.cb)
	defer cancel()

	assert.Eventually(t, func() bool { return rec.count() >= 1 }, time.Second, time.Millisecond)
	assert.Nil(t, rec.first())
}
