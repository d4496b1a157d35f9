package ws

import "testing"

func TestRegistryRegisterAndUnregister(t *testing.T) {
	registry := NewRegistry()

	client := NewClient("c1", 1, "student", &fakeSocket{})
	registry.Register(client)

	if got := len(registry.ConnectionsFor(1)); got != 1 {
		t.Fatalf("expected 1 connection, got %d", got)
	}

	removed := registry.Unregister("c1")
	if removed == nil {
		t.Fatalf("expected removed client")
	}
	if got := len(registry.ConnectionsFor(1)); got != 0 {
		t.Fatalf("expected no connections, got %d", got)
	}
	if registry.Unregister("c1") != nil {
		t.Fatalf("expected nil for unknown connection")
	}
}

func TestRegistryMultiDevice(t *testing.T) {
	registry := NewRegistry()

	registry.Register(NewClient("c1", 1, "student", &fakeSocket{}))
	registry.Register(NewClient("c2", 1, "student", &fakeSocket{}))

	if got := len(registry.ConnectionsFor(1)); got != 2 {
		t.Fatalf("expected 2 connections, got %d", got)
	}

	registry.Unregister("c1")
	if got := len(registry.ConnectionsFor(1)); got != 1 {
		t.Fatalf("expected 1 connection after unregister, got %d", got)
	}
}

func TestRegistryJoinAndLeaveRoom(t *testing.T) {
	registry := NewRegistry()
	registry.Register(NewClient("c1", 1, "student", &fakeSocket{}))

	if !registry.JoinRoom("c1", 5) {
		t.Fatalf("expected join to succeed")
	}
	if !registry.InRoom("c1", 5) {
		t.Fatalf("expected connection in room")
	}
	if got := len(registry.RoomMembers(5)); got != 1 {
		t.Fatalf("expected 1 room member, got %d", got)
	}

	registry.LeaveRoom("c1", 5)
	if registry.InRoom("c1", 5) {
		t.Fatalf("expected connection out of room")
	}
	if got := len(registry.RoomMembers(5)); got != 0 {
		t.Fatalf("expected empty room, got %d", got)
	}
}

func TestRegistryJoinUnknownConnectionIsNoop(t *testing.T) {
	registry := NewRegistry()

	if registry.JoinRoom("ghost", 5) {
		t.Fatalf("expected join to be a no-op for unknown connection")
	}
	if got := len(registry.RoomMembers(5)); got != 0 {
		t.Fatalf("expected no room members, got %d", got)
	}
}

func TestRegistryUnregisterDropsRoomMemberships(t *testing.T) {
	registry := NewRegistry()
	registry.Register(NewClient("c1", 1, "student", &fakeSocket{}))
	registry.JoinRoom("c1", 5)
	registry.JoinRoom("c1", 6)

	registry.Unregister("c1")

	if len(registry.RoomMembers(5)) != 0 || len(registry.RoomMembers(6)) != 0 {
		t.Fatalf("expected room memberships dropped on unregister")
	}
}
