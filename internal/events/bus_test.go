package events

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_EmitReachesSubscribersOfType(t *testing.T) {
	bus := NewBus()

	var started, finished []*Event
	bus.Subscribe(JobStarted, func(e *Event) { started = append(started, e) })
	bus.Subscribe(JobFinished, func(e *Event) { finished = append(finished, e) })

	bus.Emit(JobStarted, "inference", map[string]interface{}{"request_id": "abc"})

	require.Len(t, started, 1)
	assert.Empty(t, finished)
	assert.Equal(t, JobStarted, started[0].Type)
	assert.Equal(t, "inference", started[0].Module)
	assert.Equal(t, "abc", started[0].Data["request_id"])
	assert.False(t, started[0].Timestamp.IsZero())
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()

	calls := 0
	id := bus.Subscribe(JobRejected, func(*Event) { calls++ })
	other := 0
	bus.Subscribe(JobRejected, func(*Event) { other++ })

	bus.Emit(JobRejected, "inference", nil)
	bus.Unsubscribe(id)
	bus.Unsubscribe(id)
	bus.Emit(JobRejected, "inference", nil)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, other)
}

func TestBus_ConcurrentSubscribeAndEmit(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	count := 0
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := bus.Subscribe(JobFinished, func(*Event) {
				mu.Lock()
				count++
				mu.Unlock()
			})
			bus.Emit(JobFinished, "test", nil)
			bus.Unsubscribe(id)
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, count, 16)
}

func TestManager_EmitTypedConvertsPayload(t *testing.T) {
	bus := NewBus()
	manager := NewManager(bus, zerolog.Nop())

	var got *Event
	bus.Subscribe(JobFinished, func(e *Event) { got = e })

	manager.EmitTyped("inference", &JobFinishedData{
		RequestID: "req-1",
		Trigger:   "periodic",
		Result:    "failure",
		Category:  "network_failure",
		ExitCode:  1,
		Delivered: true,
	})

	require.NotNil(t, got)
	assert.Equal(t, JobFinished, got.Type)
	assert.Equal(t, "req-1", got.Data["request_id"])
	assert.Equal(t, "failure", got.Data["result"])
	assert.Equal(t, float64(1), got.Data["exit_code"])
	assert.Equal(t, true, got.Data["delivered"])
}
