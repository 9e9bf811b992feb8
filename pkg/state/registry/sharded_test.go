package registry_test

import (
	"log/slog"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/00vDragos/RealTime-Chat/pkg/state"
	"github.com/00vDragos/RealTime-Chat/pkg/state/registry"
	"github.com/00vDragos/RealTime-Chat/pkg/state/statetest"
)

// --- Test Suite Setup ---

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func newTestRegistry() *registry.Sharded {
	return registry.NewSharded(newTestLogger(), 4, nil)
}

// --- Connection Lifecycle Tests ---

func TestConnectionLifecycle(t *testing.T) {
	r := newTestRegistry()
	conn, _ := statetest.NewConnection("user-1")

	if !r.Connect("user-1", conn) {
		t.Fatal("first connection should bring the user online")
	}
	if !r.IsOnline("user-1") {
		t.Fatal("user should be online")
	}
	if !r.Disconnect("user-1", conn) {
		t.Fatal("removing the only connection should take the user offline")
	}
	if r.IsOnline("user-1") {
		t.Error("user should be offline after last disconnect")
	}
}

func TestMultipleConnections(t *testing.T) {
	r := newTestRegistry()
	c1, _ := statetest.NewConnection("u")
	c2, _ := statetest.NewConnection("u")

	if !r.Connect("u", c1) {
		t.Error("first connect should report came online")
	}
	if r.Connect("u", c2) {
		t.Error("second connect should not report came online")
	}
	if got := r.ConnectionCount("u"); got != 2 {
		t.Errorf("ConnectionCount = %d, want 2", got)
	}

	if r.Disconnect("u", c1) {
		t.Error("removing one of two connections should not report offline")
	}
	if !r.IsOnline("u") {
		t.Error("user with a remaining connection should still be online")
	}
	if !r.Disconnect("u", c2) {
		t.Error("removing the last connection should report offline")
	}
}

func TestDuplicateConnectIsNoop(t *testing.T) {
	r := newTestRegistry()
	conn, _ := statetest.NewConnection("u")

	r.Connect("u", conn)
	if r.Connect("u", conn) {
		t.Error("re-registering the same connection should not report came online")
	}
	if got := r.ConnectionCount("u"); got != 1 {
		t.Errorf("ConnectionCount = %d, want 1", got)
	}
}

func TestDisconnectUnknown(t *testing.T) {
	r := newTestRegistry()
	conn, _ := statetest.NewConnection("ghost")

	if r.Disconnect("ghost", conn) {
		t.Error("unknown user should not report offline")
	}

	known, _ := statetest.NewConnection("u")
	r.Connect("u", known)
	if r.Disconnect("u", conn) {
		t.Error("unknown connection of a known user should not report offline")
	}
	if !r.IsOnline("u") {
		t.Error("unrelated disconnect must not affect the user")
	}
}

func TestDisconnectTwice(t *testing.T) {
	r := newTestRegistry()
	conn, _ := statetest.NewConnection("u")
	r.Connect("u", conn)

	if !r.Disconnect("u", conn) {
		t.Fatal("first disconnect should report offline")
	}
	if r.Disconnect("u", conn) {
		t.Error("second disconnect should be a no-op")
	}
}

// --- Send Tests ---

func TestSendReachesEveryConnection(t *testing.T) {
	r := newTestRegistry()
	c1, s1 := statetest.NewConnection("u")
	c2, s2 := statetest.NewConnection("u")
	r.Connect("u", c1)
	r.Connect("u", c2)

	if got := r.Send("u", []byte(`{"event":"x"}`)); got != 2 {
		t.Errorf("Send delivered to %d connections, want 2", got)
	}
	for i, s := range []*statetest.Sink{s1, s2} {
		if diff := cmp.Diff([][]byte{[]byte(`{"event":"x"}`)}, s.Frames()); diff != "" {
			t.Errorf("sink %d frames mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestSendToOfflineUser(t *testing.T) {
	r := newTestRegistry()
	if got := r.Send("nobody", []byte("x")); got != 0 {
		t.Errorf("Send to offline user delivered %d, want 0", got)
	}
}

func TestSendFailureEvictsConnection(t *testing.T) {
	r := newTestRegistry()
	offline := make(chan string, 1)
	r.SetOfflineHandler(func(userID string) { offline <- userID })

	good, goodSink := statetest.NewConnection("u")
	bad := state.NewConnection("u", "127.0.0.1", statetest.NewFailingSink())
	r.Connect("u", good)
	r.Connect("u", bad)

	if got := r.Send("u", []byte("x")); got != 1 {
		t.Errorf("Send delivered %d, want 1", got)
	}
	if got := r.ConnectionCount("u"); got != 1 {
		t.Errorf("ConnectionCount after eviction = %d, want 1", got)
	}
	if !bad.Transport.(*statetest.Sink).Closed() {
		t.Error("failed connection should be closed")
	}
	if len(goodSink.Frames()) != 1 {
		t.Error("healthy connection should still receive the frame")
	}

	select {
	case id := <-offline:
		t.Errorf("offline handler fired for %s while a connection remains", id)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSendFailureOnLastConnectionGoesOffline(t *testing.T) {
	r := newTestRegistry()
	offline := make(chan string, 2)
	r.SetOfflineHandler(func(userID string) { offline <- userID })

	bad := state.NewConnection("u", "127.0.0.1", statetest.NewFailingSink())
	r.Connect("u", bad)
	r.Send("u", []byte("x"))

	select {
	case id := <-offline:
		if id != "u" {
			t.Errorf("offline handler got %q, want u", id)
		}
	case <-time.After(time.Second):
		t.Fatal("offline handler was not called")
	}

	// a later close from the transport side must not transition again
	if r.Disconnect("u", bad) {
		t.Error("disconnect after eviction should be a no-op")
	}
	if r.IsOnline("u") {
		t.Error("user should be offline")
	}
}

// --- Query Tests ---

func TestTryConnectHonoursLimit(t *testing.T) {
	r := newTestRegistry()
	c1, _ := statetest.NewConnection("u")
	c2, _ := statetest.NewConnection("u")

	if cameOnline, admitted := r.TryConnect("u", c1, 1); !cameOnline || !admitted {
		t.Fatalf("first connection: cameOnline=%v admitted=%v", cameOnline, admitted)
	}
	if _, admitted := r.TryConnect("u", c2, 1); admitted {
		t.Error("second connection should be refused at limit 1")
	}
	if got := r.ConnectionCount("u"); got != 1 {
		t.Errorf("refused connection was registered, count = %d", got)
	}
	if _, admitted := r.TryConnect("u", c2, 0); !admitted {
		t.Error("limit 0 should admit every connection")
	}
}

func TestConcurrentTryConnectNeverExceedsLimit(t *testing.T) {
	r := newTestRegistry()
	const limit = 3

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, _ := statetest.NewConnection("u")
			if _, ok := r.TryConnect("u", conn, limit); ok {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if admitted != limit {
		t.Errorf("admitted %d connections, want %d", admitted, limit)
	}
	if got := r.ConnectionCount("u"); got != limit {
		t.Errorf("registry holds %d connections, want %d", got, limit)
	}
}

func TestOldestConnection(t *testing.T) {
	r := newTestRegistry()
	if _, ok := r.OldestConnection("u"); ok {
		t.Error("offline user should have no oldest connection")
	}

	c1, _ := statetest.NewConnection("u")
	c1.CreatedAt = time.Now().Add(-time.Minute)
	c2, _ := statetest.NewConnection("u")
	r.Connect("u", c2)
	r.Connect("u", c1)

	oldest, ok := r.OldestConnection("u")
	if !ok || oldest.ID != c1.ID {
		t.Errorf("OldestConnection = %v, want %v", oldest, c1.ID)
	}
}

func TestOnlineUsersSorted(t *testing.T) {
	r := newTestRegistry()
	for _, id := range []string{"carol", "alice", "bob"} {
		conn, _ := statetest.NewConnection(id)
		r.Connect(id, conn)
	}

	if diff := cmp.Diff([]string{"alice", "bob", "carol"}, r.OnlineUsers()); diff != "" {
		t.Errorf("OnlineUsers mismatch (-want +got):\n%s", diff)
	}
	if got := len(r.Connections()); got != 3 {
		t.Errorf("Connections = %d, want 3", got)
	}
}

// --- Concurrency Tests ---

func TestConcurrentConnectDisconnect(t *testing.T) {
	r := newTestRegistry()
	const users = 20
	const perUser = 10

	var online, offline sync.Map
	var wg sync.WaitGroup
	for u := 0; u < users; u++ {
		userID := "user-" + strconv.Itoa(u)
		for i := 0; i < perUser; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				conn, _ := statetest.NewConnection(userID)
				if r.Connect(userID, conn) {
					countTransition(&online, userID)
				}
				r.Send(userID, []byte("ping"))
				if r.Disconnect(userID, conn) {
					countTransition(&offline, userID)
				}
			}()
		}
	}
	wg.Wait()

	for u := 0; u < users; u++ {
		userID := "user-" + strconv.Itoa(u)
		if r.IsOnline(userID) {
			t.Errorf("%s still online after all disconnects", userID)
		}
		on, _ := online.Load(userID)
		off, _ := offline.Load(userID)
		if on == nil || off == nil || *on.(*int64) != *off.(*int64) {
			t.Errorf("%s online/offline transitions unbalanced", userID)
		}
	}
}

var transitionMu sync.Mutex

func countTransition(m *sync.Map, userID string) {
	transitionMu.Lock()
	defer transitionMu.Unlock()
	v, _ := m.LoadOrStore(userID, new(int64))
	*v.(*int64)++
}
