package pubsub

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type event struct {
	topic string
	ts    float64
	value any
}

func TestPublishExactTopic(t *testing.T) {
	b := New()
	var got []event
	b.Subscribe("vehicle_speed", func(topic string, ts float64, value any) {
		got = append(got, event{topic, ts, value})
	})

	b.Publish("vehicle_speed", 1.0, 100.0)
	b.Publish("rpm_a", 1.0, 800)

	require.Len(t, got, 1)
	assert.Equal(t, event{"vehicle_speed", 1.0, 100.0}, got[0])
}

func TestPublishOrder(t *testing.T) {
	b := New()
	var order []string
	b.Subscribe("x", func(string, float64, any) { order = append(order, "first") })
	b.Subscribe("x", func(string, float64, any) { order = append(order, "second") })
	b.Subscribe(Wildcard, func(string, float64, any) { order = append(order, "wildcard") })

	b.Publish("x", 0, 1)
	assert.Equal(t, []string{"first", "second", "wildcard"}, order)
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	calls := 0
	unsub := b.Subscribe("x", func(string, float64, any) { calls++ })

	b.Publish("x", 0, 1)
	unsub()
	unsub() // idempotent
	b.Publish("x", 0, 1)

	assert.Equal(t, 1, calls)
	assert.Empty(t, b.subs)
}

func TestHandlerMayPublish(t *testing.T) {
	b := New()
	var got []any
	b.Subscribe("raw", func(_ string, ts float64, v any) {
		b.Publish("decoded", ts, v.(int)*2)
	})
	b.Subscribe("decoded", func(_ string, _ float64, v any) { got = append(got, v) })

	b.Publish("raw", 0, 21)
	assert.Equal(t, []any{42}, got)
}

func TestConcurrentPublish(t *testing.T) {
	b := New()
	var mu sync.Mutex
	count := 0
	b.Subscribe("x", func(string, float64, any) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.Publish("x", 0, j)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 800, count)
}
