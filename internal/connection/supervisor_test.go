package connection

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yuronglin/bililive-feed/internal/event"
)

func TestRetryPolicyEscalation(t *testing.T) {
	r := retryPolicy{
		base:        10 * time.Second,
		max:         300 * time.Second,
		stableAfter: 30 * time.Minute,
	}

	want := []time.Duration{
		10 * time.Second,
		20 * time.Second,
		40 * time.Second,
		80 * time.Second,
		160 * time.Second,
		300 * time.Second,
		300 * time.Second,
	}

	prev := time.Duration(0)
	for i, w := range want {
		got := r.next()
		if got != w {
			t.Errorf("delay %d = %v, want %v", i, got, w)
		}
		if got < prev {
			t.Errorf("delay %d decreased: %v after %v", i, got, prev)
		}
		prev = got
	}
}

func TestRetryPolicyStabilityReset(t *testing.T) {
	r := retryPolicy{
		base:        10 * time.Second,
		max:         300 * time.Second,
		stableAfter: 30 * time.Minute,
	}

	r.next()
	r.next()
	r.next()

	// A short-lived session does not forgive escalation.
	r.observeActive(5 * time.Minute)
	if got := r.next(); got != 80*time.Second {
		t.Errorf("delay after short session = %v, want 80s", got)
	}

	// Thirty minutes of unbroken health resets to base.
	r.observeActive(31 * time.Minute)
	if got := r.next(); got != 10*time.Second {
		t.Errorf("delay after stable session = %v, want 10s", got)
	}
}

func fastConfig() Config {
	cfg := testConfig()
	cfg.ReconnectBaseDelay = 10 * time.Millisecond
	cfg.ReconnectMaxDelay = 50 * time.Millisecond
	return cfg
}

func TestSupervisorReconnectTransparent(t *testing.T) {
	var attempt atomic.Int32

	server := mockFeedServer(t, func(conn *websocket.Conn) {
		n := attempt.Add(1)
		if !ackLogin(t, conn, 0) {
			return
		}
		sendNotification(conn, fmt.Sprintf(`{"cmd":"WATCHED_CHANGE","data":{"num":%d}}`, n))
		if n == 1 {
			return // drop the connection mid-stream
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	sup := NewSupervisor(fastConfig(), StaticProvider{P: testParams(server)}, nil)
	sup.Start(context.Background())

	// First session's event, then — across the drop, with no channel close
	// and no consumer-visible error — the second session's.
	for want := int64(1); want <= 2; want++ {
		ev := waitEvent(t, sup.Events())
		w, ok := ev.(event.Notification).Payload.(event.WatchedChange)
		if !ok {
			t.Fatalf("payload: %T", ev.(event.Notification).Payload)
		}
		if w.Num != want {
			t.Fatalf("Num = %d, want %d", w.Num, want)
		}
	}

	sup.Stop()

	if _, ok := <-sup.Events(); ok {
		t.Error("event channel should be closed after Stop")
	}
	if got := attempt.Load(); got < 2 {
		t.Errorf("attempts = %d, want >= 2", got)
	}
}

func TestSupervisorFatalAuthClosesChannel(t *testing.T) {
	var attempt atomic.Int32

	server := mockFeedServer(t, func(conn *websocket.Conn) {
		attempt.Add(1)
		ackLogin(t, conn, CodeTokenRevoked)
	})
	defer server.Close()

	sup := NewSupervisor(fastConfig(), StaticProvider{P: testParams(server)}, nil)
	sup.Start(context.Background())

	select {
	case _, ok := <-sup.Events():
		if ok {
			t.Fatal("unexpected event before terminal close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event channel not closed after fatal auth failure")
	}

	var sawClosed bool
	for st := range sup.Status() {
		if st.State == StateClosed {
			sawClosed = true
			var authErr *AuthError
			if !errors.As(st.Err, &authErr) {
				t.Errorf("closed status error = %v, want AuthError", st.Err)
			}
		}
	}
	if !sawClosed {
		t.Error("no Closed status observed")
	}

	if got := attempt.Load(); got != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on revoked token)", got)
	}
}

func TestSupervisorRetryableAuthBacksOff(t *testing.T) {
	var attempt atomic.Int32

	server := mockFeedServer(t, func(conn *websocket.Conn) {
		n := attempt.Add(1)
		if n == 1 {
			ackLogin(t, conn, 1) // transient rejection
			return
		}
		if !ackLogin(t, conn, 0) {
			return
		}
		sendNotification(conn, `{"cmd":"LIVE","roomid":1}`)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	sup := NewSupervisor(fastConfig(), StaticProvider{P: testParams(server)}, nil)
	sup.Start(context.Background())
	defer sup.Stop()

	ev := waitEvent(t, sup.Events())
	if ev.(event.Notification).Payload.Cmd() != "LIVE" {
		t.Errorf("event after retry: %+v", ev)
	}
	if got := attempt.Load(); got < 2 {
		t.Errorf("attempts = %d, want >= 2", got)
	}
}

func TestSupervisorStopDuringBackoff(t *testing.T) {
	cfg := testConfig()
	cfg.ReconnectBaseDelay = time.Hour // Stop must not wait this out
	cfg.ReconnectMaxDelay = time.Hour

	sup := NewSupervisor(cfg, StaticProvider{P: Params{Endpoints: []string{"ws://127.0.0.1:1/sub"}}}, nil)
	sup.Start(context.Background())

	// Give the first attempt time to fail into backoff.
	time.Sleep(100 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		sup.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not cancel the backoff timer")
	}

	if _, ok := <-sup.Events(); ok {
		t.Error("event channel should be closed")
	}
}

func TestSupervisorStopDuringLogin(t *testing.T) {
	loginSeen := make(chan struct{}, 1)
	release := make(chan struct{})
	server := mockFeedServer(t, func(conn *websocket.Conn) {
		// Hold the handshake open: read the login frame, never ack.
		conn.ReadMessage()
		select {
		case loginSeen <- struct{}{}:
		default:
		}
		<-release
	})
	defer server.Close()
	defer close(release)

	cfg := testConfig()
	cfg.HandshakeTimeout = 5 * time.Second

	sup := NewSupervisor(cfg, StaticProvider{P: testParams(server)}, nil)
	sup.Start(context.Background())

	select {
	case <-loginSeen:
	case <-time.After(2 * time.Second):
		t.Fatal("login frame never arrived")
	}

	start := time.Now()
	done := make(chan struct{})
	go func() {
		sup.Stop()
		close(done)
	}()

	select {
	case <-done:
		if elapsed := time.Since(start); elapsed >= cfg.HandshakeTimeout {
			t.Errorf("Stop took %v, must not wait out the handshake deadline", elapsed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop stalled in the login handshake")
	}

	if _, ok := <-sup.Events(); ok {
		t.Error("event channel should be closed")
	}
}

func TestSupervisorStopWithoutStart(t *testing.T) {
	sup := NewSupervisor(DefaultConfig(), StaticProvider{}, nil)

	done := make(chan struct{})
	go func() {
		sup.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a never-started supervisor")
	}

	if _, ok := <-sup.Events(); ok {
		t.Error("event channel should be closed")
	}
	if _, ok := <-sup.Status(); ok {
		t.Error("status channel should be closed")
	}

	// Start after Stop must not resurrect the loop.
	sup.Start(context.Background())
	if _, ok := <-sup.Events(); ok {
		t.Error("event channel reopened by Start after Stop")
	}
}

func TestSupervisorStopWhileActive(t *testing.T) {
	server := mockFeedServer(t, func(conn *websocket.Conn) {
		if !ackLogin(t, conn, 0) {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	sup := NewSupervisor(fastConfig(), StaticProvider{P: testParams(server)}, nil)
	sup.Start(context.Background())

	// Wait for the session to come up, then stop it mid-read.
	deadline := time.After(2 * time.Second)
	for active := false; !active; {
		select {
		case st := <-sup.Status():
			active = st.State == StateActive
		case <-deadline:
			t.Fatal("session never became active")
		}
	}

	done := make(chan struct{})
	go func() {
		sup.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not abort the in-flight read")
	}
}

type flakyProvider struct {
	calls atomic.Int32
	good  Params
}

func (p *flakyProvider) Resolve(context.Context) (Params, error) {
	if p.calls.Add(1) == 1 {
		return Params{}, errors.New("resolve endpoint list: 502")
	}
	return p.good, nil
}

func TestSupervisorRetriesProviderFailure(t *testing.T) {
	server := mockFeedServer(t, func(conn *websocket.Conn) {
		if !ackLogin(t, conn, 0) {
			return
		}
		sendNotification(conn, `{"cmd":"LIVE","roomid":1}`)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	provider := &flakyProvider{good: testParams(server)}
	sup := NewSupervisor(fastConfig(), provider, nil)
	sup.Start(context.Background())
	defer sup.Stop()

	ev := waitEvent(t, sup.Events())
	if ev.(event.Notification).Payload.Cmd() != "LIVE" {
		t.Errorf("event after provider retry: %+v", ev)
	}
	if provider.calls.Load() < 2 {
		t.Errorf("provider calls = %d, want >= 2", provider.calls.Load())
	}
}
