package core

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/peternagy/mongoexplorer/internal/types"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []ServerStatusEvent
}

func (r *recordingEmitter) Emit(eventName string, data interface{}) {
	if eventName != EventServerStatus {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, data.(ServerStatusEvent))
}

func newTestWorkspace() (*Workspace, *recordingEmitter) {
	rec := &recordingEmitter{}
	ws := NewWorkspace()
	ws.Emitter = rec
	return ws, rec
}

func TestWorkspaceRegisterAndLookup(t *testing.T) {
	ws, _ := newTestWorkspace()

	ws.RegisterServer(types.ServerConfiguration{ID: "a", Label: "first"})
	ws.RegisterServer(types.ServerConfiguration{ID: "b", Label: "second"})

	servers := ws.Servers()
	if len(servers) != 2 {
		t.Fatalf("expected 2 servers, got %d", len(servers))
	}
	if servers[0].ID() != "a" || servers[1].ID() != "b" {
		t.Errorf("servers not in registration order: %s, %s", servers[0].ID(), servers[1].ID())
	}

	s, err := ws.Server("b")
	if err != nil {
		t.Fatalf("Server(b): %v", err)
	}
	if s.Configuration.Label != "second" {
		t.Errorf("got label %q", s.Configuration.Label)
	}

	_, err = ws.Server("missing")
	var notFound *ServerNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("expected ServerNotFoundError, got %v", err)
	}
}

func TestWorkspaceUpsertServer(t *testing.T) {
	ws, _ := newTestWorkspace()
	first := ws.UpsertServer(types.ServerConfiguration{ID: "a", Label: "old"})
	first.Databases = []types.MongoDatabase{{Name: "shop"}}

	updated := ws.UpsertServer(types.ServerConfiguration{ID: "a", Label: "new"})
	if updated != first {
		t.Error("upsert with a known ID should update the registered server")
	}
	if updated.Configuration.Label != "new" || len(updated.Databases) != 1 {
		t.Errorf("unexpected server after upsert: %+v", updated)
	}

	ws.UpsertServer(types.ServerConfiguration{ID: "b"})
	configs := ws.Configurations()
	if len(configs) != 2 || configs[0].Label != "new" || configs[1].ID != "b" {
		t.Errorf("unexpected configurations: %+v", configs)
	}
}

func TestWorkspaceServersReturnsSnapshot(t *testing.T) {
	ws, _ := newTestWorkspace()
	ws.RegisterServer(types.ServerConfiguration{ID: "a"})

	snapshot := ws.Servers()
	ws.RegisterServer(types.ServerConfiguration{ID: "b"})

	if len(snapshot) != 1 {
		t.Errorf("snapshot changed after registration: %d entries", len(snapshot))
	}
}

func TestWorkspaceRemoveAndCleanUp(t *testing.T) {
	ws, _ := newTestWorkspace()
	ws.RegisterServer(types.ServerConfiguration{ID: "a"})
	ws.RegisterServer(types.ServerConfiguration{ID: "b"})
	ws.RegisterServer(types.ServerConfiguration{ID: "c"})

	if err := ws.RemoveServer("b"); err != nil {
		t.Fatalf("RemoveServer: %v", err)
	}
	if err := ws.RemoveServer("b"); err == nil {
		t.Error("removing twice should fail")
	}

	servers := ws.Servers()
	if len(servers) != 2 || servers[0].ID() != "a" || servers[1].ID() != "c" {
		t.Errorf("unexpected servers after removal: %+v", servers)
	}

	ws.CleanUpServers()
	if len(ws.Servers()) != 0 {
		t.Error("CleanUpServers should empty the catalog")
	}
}

func TestWorkspaceStatusTransitions(t *testing.T) {
	ws, rec := newTestWorkspace()
	server := ws.RegisterServer(types.ServerConfiguration{ID: "srv"})

	ws.MarkLoading(server)
	if server.Status != types.StatusLoading {
		t.Fatalf("status = %s, want LOADING", server.Status)
	}

	dbs := []types.MongoDatabase{{Name: "shop"}}
	ws.MarkLoaded(server, dbs)
	if server.Status != types.StatusOK {
		t.Errorf("status = %s, want OK", server.Status)
	}
	if len(server.Databases) != 1 || server.Databases[0].Name != "shop" {
		t.Errorf("databases not replaced: %+v", server.Databases)
	}

	ws.MarkLoading(server)
	ws.MarkFailed(server, fmt.Errorf("boom"))
	if server.Status != types.StatusFailed {
		t.Errorf("status = %s, want FAILED", server.Status)
	}
	if server.LastError != "boom" {
		t.Errorf("LastError = %q", server.LastError)
	}
	if len(server.Databases) != 1 {
		t.Error("failed load should keep the previous database list")
	}

	want := []types.ServerStatus{types.StatusLoading, types.StatusOK, types.StatusLoading, types.StatusFailed}
	if len(rec.events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(rec.events))
	}
	for i, ev := range rec.events {
		if ev.Status != want[i] || ev.ServerID != "srv" {
			t.Errorf("event %d = %+v, want status %s", i, ev, want[i])
		}
	}
	if rec.events[3].Error != "boom" {
		t.Errorf("failure event error = %q", rec.events[3].Error)
	}
}

func TestWorkspaceDisableEvents(t *testing.T) {
	ws, rec := newTestWorkspace()
	ws.DisableEvents = true
	server := ws.RegisterServer(types.ServerConfiguration{ID: "srv"})

	ws.MarkLoading(server)
	ws.MarkLoaded(server, nil)

	if len(rec.events) != 0 {
		t.Errorf("expected no events, got %d", len(rec.events))
	}
}

func TestWorkspaceConcurrentRegistration(t *testing.T) {
	ws, _ := newTestWorkspace()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ws.RegisterServer(types.ServerConfiguration{ID: fmt.Sprintf("srv-%d", i)})
			_ = ws.Servers()
		}(i)
	}
	wg.Wait()

	if got := len(ws.Servers()); got != 50 {
		t.Errorf("expected 50 servers, got %d", got)
	}
}
