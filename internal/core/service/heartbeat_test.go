package service

import (
	"sync"
	"testing"
	"time"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestHeartbeatWritesImmediatelyOnStart(t *testing.T) {
	presence := &stubPresence{}
	hb := NewHeartbeat(presence, time.Hour, testLogger())
	defer hb.Stop()

	hb.Start("u1")

	waitFor(t, time.Second, func() bool {
		online, _ := presence.writes()
		return online >= 1
	})
}

func TestHeartbeatWritesOnEachTick(t *testing.T) {
	presence := &stubPresence{}
	hb := NewHeartbeat(presence, 10*time.Millisecond, testLogger())
	defer hb.Stop()

	hb.Start("u1")

	waitFor(t, time.Second, func() bool {
		online, _ := presence.writes()
		return online >= 3
	})
}

func TestHeartbeatStopWritesOfflineExactlyOnce(t *testing.T) {
	presence := &stubPresence{}
	hb := NewHeartbeat(presence, time.Hour, testLogger())

	hb.Start("u1")
	hb.Stop()
	hb.Stop()

	if _, offline := presence.writes(); offline != 1 {
		t.Fatalf("expected exactly one offline write, got %d", offline)
	}
}

func TestHeartbeatNoOnlineWriteAfterStop(t *testing.T) {
	presence := &stubPresence{}
	hb := NewHeartbeat(presence, 10*time.Millisecond, testLogger())

	hb.Start("u1")
	waitFor(t, time.Second, func() bool {
		online, _ := presence.writes()
		return online >= 1
	})

	hb.Stop()
	online, _ := presence.writes()

	time.Sleep(50 * time.Millisecond)
	if after, _ := presence.writes(); after != online {
		t.Fatalf("online writes continued after stop: %d -> %d", online, after)
	}
}

func TestHeartbeatStopBeforeStartIsNoop(t *testing.T) {
	presence := &stubPresence{}
	hb := NewHeartbeat(presence, time.Hour, testLogger())

	hb.Stop()

	if online, offline := presence.writes(); online != 0 || offline != 0 {
		t.Fatalf("expected no writes, got online=%d offline=%d", online, offline)
	}
}

func TestHeartbeatConcurrentStartsLeaveOneLoop(t *testing.T) {
	presence := &stubPresence{}
	hb := NewHeartbeat(presence, 10*time.Millisecond, testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hb.Start("u1")
		}()
	}
	wg.Wait()

	hb.Stop()
	online, _ := presence.writes()

	// A leaked loop would keep ticking past the stop.
	time.Sleep(50 * time.Millisecond)
	if after, _ := presence.writes(); after != online {
		t.Fatalf("online writes continued after stop: %d -> %d", online, after)
	}
}

func TestHeartbeatRestartStopsPreviousSubject(t *testing.T) {
	presence := &stubPresence{}
	hb := NewHeartbeat(presence, time.Hour, testLogger())
	defer hb.Stop()

	hb.Start("u1")
	hb.Start("u2")

	// Restarting for a new subject tears the first loop down, including its
	// offline write.
	waitFor(t, time.Second, func() bool {
		_, offline := presence.writes()
		return offline == 1
	})
}
