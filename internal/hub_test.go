package internal

import "testing"

func testSession(id string) *Session {
	return newSession(id, nil)
}

func TestJoinCreatesRoomOnDemand(t *testing.T) {
	hub := NewHub()
	if hub.Exists("abc123") {
		t.Fatal("room should not exist before first join")
	}
	session := testSession("s1")
	hub.Join(session, "abc123")
	if !hub.Exists("abc123") {
		t.Fatal("room should exist after join")
	}
	if hub.size("abc123") != 1 {
		t.Fatalf("expected 1 member, got %d", hub.size("abc123"))
	}
	if hub.RoomKey(session) != "abc123" {
		t.Fatalf("session room is %q", hub.RoomKey(session))
	}
}

func TestJoinIsIdempotent(t *testing.T) {
	hub := NewHub()
	session := testSession("s1")
	hub.Join(session, "abc123")
	hub.Join(session, "abc123")
	if hub.size("abc123") != 1 {
		t.Fatalf("double join must keep one membership, got %d", hub.size("abc123"))
	}
	// exactly one delivery per member on broadcast
	hub.Broadcast("abc123", []byte("hello"), nil)
	if got := len(session.send); got != 1 {
		t.Fatalf("expected exactly 1 queued delivery, got %d", got)
	}
}

func TestJoinMovesSessionBetweenRooms(t *testing.T) {
	hub := NewHub()
	session := testSession("s1")
	hub.Join(session, "roomA")
	hub.Join(session, "roomB")
	if hub.Exists("roomA") {
		t.Fatal("roomA should be garbage-collected once empty")
	}
	if hub.size("roomB") != 1 {
		t.Fatalf("expected session in roomB, size=%d", hub.size("roomB"))
	}
	if hub.RoomKey(session) != "roomB" {
		t.Fatalf("session room is %q", hub.RoomKey(session))
	}
}

func TestLeaveRemovesMembershipSilently(t *testing.T) {
	hub := NewHub()
	alice := testSession("alice")
	bob := testSession("bob")
	hub.Join(alice, "abc123")
	hub.Join(bob, "abc123")

	hub.Leave(alice)
	if hub.size("abc123") != 1 {
		t.Fatalf("expected 1 member after leave, got %d", hub.size("abc123"))
	}
	if got := len(bob.send); got != 0 {
		t.Fatalf("leave must not broadcast, bob has %d queued frames", got)
	}
	// leaving twice is a no-op
	hub.Leave(alice)

	hub.Leave(bob)
	if hub.Exists("abc123") {
		t.Fatal("empty room should be deleted")
	}
}

func TestBroadcastExcludesSender(t *testing.T) {
	hub := NewHub()
	alice := testSession("alice")
	bob := testSession("bob")
	carl := testSession("carl")
	hub.Join(alice, "abc123")
	hub.Join(bob, "abc123")
	hub.Join(carl, "abc123")

	hub.Broadcast("abc123", []byte("joined"), alice)
	if len(alice.send) != 0 {
		t.Fatal("excluded sender must not receive the payload")
	}
	if len(bob.send) != 1 || len(carl.send) != 1 {
		t.Fatalf("other members must receive once, got bob=%d carl=%d", len(bob.send), len(carl.send))
	}
}

func TestBroadcastIncludesEveryoneWithoutExclusion(t *testing.T) {
	hub := NewHub()
	members := []*Session{testSession("a"), testSession("b"), testSession("c")}
	for _, member := range members {
		hub.Join(member, "abc123")
	}
	hub.Broadcast("abc123", []byte("chat"), nil)
	for i, member := range members {
		if len(member.send) != 1 {
			t.Fatalf("member %d received %d deliveries, want 1", i, len(member.send))
		}
	}
}

func TestBroadcastUnknownRoomIsNoop(t *testing.T) {
	hub := NewHub()
	// must not panic or create the room
	hub.Broadcast("ghost-town", []byte("anyone?"), nil)
	if hub.Exists("ghost-town") {
		t.Fatal("broadcast must not create rooms")
	}
}

func TestBroadcastDropsSlowMember(t *testing.T) {
	hub := NewHub()
	slow := testSession("slow")
	hub.Join(slow, "abc123")
	for i := 0; i < sendQueueDepth; i++ {
		slow.send <- []byte("fill")
	}

	hub.Broadcast("abc123", []byte("overflow"), nil)
	if hub.size("abc123") != 0 {
		t.Fatal("member with a full queue should be dropped")
	}
	// its send queue must be closed so the write pump can exit
	drained := 0
	for range slow.send {
		drained++
	}
	if drained != sendQueueDepth {
		t.Fatalf("expected %d queued frames, drained %d", sendQueueDepth, drained)
	}
}

func TestEnqueueAfterDropIsSafe(t *testing.T) {
	hub := NewHub()
	slow := testSession("slow")
	hub.Join(slow, "abc123")
	for i := 0; i < sendQueueDepth; i++ {
		slow.send <- []byte("fill")
	}

	// the drop closes the queue; a concurrent dispatch on the same
	// session must observe the close instead of panicking
	hub.Broadcast("abc123", []byte("overflow"), nil)
	if slow.enqueue([]byte("late")) {
		t.Fatal("enqueue on a dropped session should report failure")
	}
	slow.close() // repeated close is a no-op
}

func TestOccupancy(t *testing.T) {
	hub := NewHub()
	hub.Join(testSession("a"), "room1")
	hub.Join(testSession("b"), "room1")
	hub.Join(testSession("c"), "room2")

	counts := hub.Occupancy()
	if counts["room1"] != 2 || counts["room2"] != 1 {
		t.Fatalf("unexpected occupancy: %v", counts)
	}
}
