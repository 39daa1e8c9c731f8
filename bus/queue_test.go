package bus_test

import (
	"testing"
	"time"

	"github.com/adrianfalk/rga/bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualQueueDefersUntilDrain(t *testing.T) {
	q := bus.NewManualQueue()
	var ran bool
	q.Schedule(func() { ran = true })

	assert.False(t, ran)
	assert.Equal(t, 1, q.Pending())

	q.Drain()
	assert.True(t, ran)
	assert.Equal(t, 0, q.Pending())
}

func TestManualQueueDrainLeavesNestedTasksForNextRound(t *testing.T) {
	q := bus.NewManualQueue()
	var order []string
	q.Schedule(func() {
		order = append(order, "first")
		q.Schedule(func() { order = append(order, "nested") })
	})

	q.Drain()
	assert.Equal(t, []string{"first"}, order)
	require.Equal(t, 1, q.Pending())

	q.Drain()
	assert.Equal(t, []string{"first", "nested"}, order)
}

func TestManualQueueDrainAllReachesQuiescence(t *testing.T) {
	q := bus.NewManualQueue()
	var count int
	var schedule func()
	schedule = func() {
		count++
		if count < 5 {
			q.Schedule(schedule)
		}
	}
	q.Schedule(schedule)

	q.DrainAll()
	assert.Equal(t, 5, count)
	assert.Equal(t, 0, q.Pending())
}

func TestManualQueueFIFOOrder(t *testing.T) {
	q := bus.NewManualQueue()
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		q.Schedule(func() { order = append(order, i) })
	}
	q.Drain()
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestGoQueueRunsScheduledTasks(t *testing.T) {
	q := bus.NewGoQueue(8)
	defer q.Close()

	done := make(chan struct{})
	q.Schedule(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
}

func TestGoQueuePreservesFIFOOrder(t *testing.T) {
	q := bus.NewGoQueue(8)
	defer q.Close()

	results := make(chan int, 3)
	for i := 0; i < 3; i++ {
		i := i
		q.Schedule(func() { results <- i })
	}

	for want := 0; want < 3; want++ {
		select {
		case got := <-results:
			assert.Equal(t, want, got)
		case <-time.After(time.Second):
			t.Fatal("task never ran")
		}
	}
}
