package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestRealClock(t *testing.T) {
	clk := Real()

	start := clk.Now()
	select {
	case <-clk.After(time.Millisecond):
	case <-time.After(time.Second):
		t.Fatal("After did not fire")
	}
	if clk.Since(start) <= 0 {
		t.Error("Since should be positive after waiting")
	}
}

func TestFakeClock_Advance(t *testing.T) {
	clk := NewFakeClock(epoch)

	ch := clk.After(30 * time.Second)

	clk.Advance(29 * time.Second)
	select {
	case <-ch:
		t.Fatal("After fired before its deadline")
	default:
	}

	clk.Advance(time.Second)
	select {
	case got := <-ch:
		if want := epoch.Add(30 * time.Second); !got.Equal(want) {
			t.Errorf("After sent %v, want %v", got, want)
		}
	default:
		t.Fatal("After did not fire at its deadline")
	}

	if clk.Waiters() != 0 {
		t.Errorf("Waiters() = %d, want 0", clk.Waiters())
	}
}

func TestFakeClock_FiresInDeadlineOrder(t *testing.T) {
	clk := NewFakeClock(epoch)

	late := clk.After(2 * time.Minute)
	early := clk.After(time.Minute)

	clk.Advance(time.Minute)
	select {
	case <-early:
	default:
		t.Fatal("early waiter did not fire")
	}
	select {
	case <-late:
		t.Fatal("late waiter fired too soon")
	default:
	}
	if clk.Waiters() != 1 {
		t.Errorf("Waiters() = %d, want 1", clk.Waiters())
	}
}

func TestFakeClock_SleepUnblocksOnAdvance(t *testing.T) {
	clk := NewFakeClock(epoch)
	done := make(chan struct{})

	go func() {
		clk.Sleep(10 * time.Second)
		close(done)
	}()

	clk.BlockUntilWaiters(1)
	clk.Advance(10 * time.Second)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Sleep did not return after Advance")
	}
}

func TestFakeClockAuto(t *testing.T) {
	clk := NewFakeClockAuto(epoch)

	<-clk.After(30 * time.Second)
	clk.Sleep(15 * time.Second)

	if got, want := clk.Now(), epoch.Add(45*time.Second); !got.Equal(want) {
		t.Errorf("Now() = %v, want %v", got, want)
	}
	if got := clk.Since(epoch); got != 45*time.Second {
		t.Errorf("Since() = %v, want 45s", got)
	}

	waits := clk.Waits()
	if len(waits) != 2 || waits[0] != 30*time.Second || waits[1] != 15*time.Second {
		t.Errorf("Waits() = %v, want [30s 15s]", waits)
	}
}

func TestFakeClock_ZeroDuration(t *testing.T) {
	clk := NewFakeClock(epoch)

	select {
	case <-clk.After(0):
	default:
		t.Fatal("After(0) should fire immediately")
	}
	if !clk.Now().Equal(epoch) {
		t.Error("After(0) should not move the clock")
	}
}
