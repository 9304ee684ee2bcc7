// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestFakeNowMovesOnlyOnAdvance(t *testing.T) {
	fake := Fake(epoch)
	if !fake.Now().Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", fake.Now(), epoch)
	}
	fake.Advance(time.Second)
	if want := epoch.Add(time.Second); !fake.Now().Equal(want) {
		t.Errorf("Now() = %v, want %v", fake.Now(), want)
	}
}

func TestAfterFuncFiresAtDeadline(t *testing.T) {
	fake := Fake(epoch)
	fired := 0
	fake.AfterFunc(250*time.Millisecond, func() { fired++ })

	fake.Advance(249 * time.Millisecond)
	if fired != 0 {
		t.Fatalf("fired early: %d", fired)
	}
	fake.Advance(time.Millisecond)
	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}
	fake.Advance(time.Second)
	if fired != 1 {
		t.Errorf("one-shot fired again: %d", fired)
	}
}

func TestAfterFuncStopAndReset(t *testing.T) {
	fake := Fake(epoch)
	fired := 0
	timer := fake.AfterFunc(100*time.Millisecond, func() { fired++ })

	if !timer.Reset(200 * time.Millisecond) {
		t.Error("Reset on pending timer returned false")
	}
	fake.Advance(150 * time.Millisecond)
	if fired != 0 {
		t.Fatalf("fired before reset deadline")
	}
	if !timer.Stop() {
		t.Error("Stop on pending timer returned false")
	}
	fake.Advance(time.Second)
	if fired != 0 {
		t.Errorf("stopped timer fired")
	}
	if timer.Stop() {
		t.Error("second Stop returned true")
	}
}

func TestAfterFuncResetAfterFiring(t *testing.T) {
	fake := Fake(epoch)
	fired := 0
	timer := fake.AfterFunc(10*time.Millisecond, func() { fired++ })
	fake.Advance(10 * time.Millisecond)

	if timer.Reset(10 * time.Millisecond) {
		t.Error("Reset after firing reported pending")
	}
	fake.Advance(10 * time.Millisecond)
	if fired != 2 {
		t.Errorf("fired = %d, want 2", fired)
	}
}

func TestTimersFireInDeadlineOrder(t *testing.T) {
	fake := Fake(epoch)
	var order []int
	fake.AfterFunc(30*time.Millisecond, func() { order = append(order, 3) })
	fake.AfterFunc(10*time.Millisecond, func() { order = append(order, 1) })
	fake.AfterFunc(20*time.Millisecond, func() { order = append(order, 2) })

	fake.Advance(time.Second)
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("order = %v, want [1 2 3]", order)
	}
}

func TestWaitForTimers(t *testing.T) {
	fake := Fake(epoch)
	done := make(chan struct{})
	go fake.AfterFunc(time.Second, func() { close(done) })

	fake.WaitForTimers(1)
	if fake.PendingCount() != 1 {
		t.Fatalf("PendingCount() = %d, want 1", fake.PendingCount())
	}
	fake.Advance(time.Second)
	select {
	case <-done:
	default:
		t.Fatal("callback registered from another goroutine did not run")
	}
	if fake.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d after firing, want 0", fake.PendingCount())
	}
}

func TestClocksImplementInterface(t *testing.T) {
	var _ Clock = Fake(epoch)
	var _ Clock = Real()
}
