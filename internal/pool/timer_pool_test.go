package pool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerPool(t *testing.T) {
	assert := assert.New(t)

	t.Run("Get and Put", func(t *testing.T) {
		timer1 := GetTimer(1 * time.Second)
		assert.NotNil(timer1)

		PutTimer(timer1)

		timer2 := GetTimer(50 * time.Millisecond)
		assert.NotNil(timer2)

		<-timer2.C
		PutTimer(timer2)
	})

	t.Run("Put Active Timer", func(t *testing.T) {
		timer1 := GetTimer(100 * time.Millisecond)
		time.Sleep(50 * time.Millisecond)
		PutTimer(timer1)

		begin := time.Now()
		timer2 := GetTimer(300 * time.Millisecond)

		select {
		case tt := <-timer2.C:
			if tt.Sub(begin) < 270*time.Millisecond {
				t.Error("timer2 fired with a stale deadline")
			}
		case <-time.After(500 * time.Millisecond):
			t.Error("timer2 did not fire")
		}
		PutTimer(timer2)
	})

	t.Run("Concurrency", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				timer := GetTimer(10 * time.Millisecond)
				defer PutTimer(timer)
				<-timer.C
			}()
		}
		wg.Wait()
	})
}

func TestSleep(t *testing.T) {
	assert := assert.New(t)

	t.Run("Full Duration", func(t *testing.T) {
		begin := time.Now()
		err := Sleep(context.Background(), 50*time.Millisecond)
		assert.NoError(err)
		assert.GreaterOrEqual(time.Since(begin), 50*time.Millisecond)
	})

	t.Run("Zero Duration", func(t *testing.T) {
		assert.NoError(Sleep(context.Background(), 0))
	})

	t.Run("Canceled Context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		begin := time.Now()
		err := Sleep(ctx, time.Minute)
		assert.ErrorIs(err, context.Canceled)
		assert.Less(time.Since(begin), time.Second)
	})

	t.Run("Deadline", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		err := Sleep(ctx, time.Minute)
		assert.ErrorIs(err, context.DeadlineExceeded)
	})
}
