package httpapi

import (
	"sync"
	"testing"

	"github.com/asemyonov/jarvis/internal/orchestrator"
)

func testFactory() func(string) *orchestrator.Conversation {
	return func(projectID string) *orchestrator.Conversation {
		return orchestrator.New(orchestrator.Config{ProjectID: projectID})
	}
}

func TestConversationRegistry_GetCaches(t *testing.T) {
	cr := NewConversationRegistry(testFactory())

	a := cr.Get("p1")
	if a == nil {
		t.Fatal("Get should create a conversation on first access")
	}
	if b := cr.Get("p1"); b != a {
		t.Error("Get should return the same conversation for the same project")
	}
	if c := cr.Get("p2"); c == a {
		t.Error("different projects must get different conversations")
	}
}

func TestConversationRegistry_Remove(t *testing.T) {
	cr := NewConversationRegistry(testFactory())

	a := cr.Get("p1")
	cr.Remove("p1")
	if b := cr.Get("p1"); b == a {
		t.Error("Get after Remove should build a fresh conversation")
	}
}

func TestConversationRegistry_AcquireAndRelease(t *testing.T) {
	cr := NewConversationRegistry(testFactory())

	if cr.ActiveCount() != 0 {
		t.Errorf("ActiveCount() = %d, want 0", cr.ActiveCount())
	}

	if !cr.Acquire() {
		t.Error("Acquire() should return true when not draining")
	}
	if !cr.Acquire() {
		t.Error("Acquire() should return true when not draining")
	}
	if cr.ActiveCount() != 2 {
		t.Errorf("ActiveCount() = %d, want 2", cr.ActiveCount())
	}

	cr.Release()
	cr.Release()
	if cr.ActiveCount() != 0 {
		t.Errorf("ActiveCount() = %d, want 0 after releases", cr.ActiveCount())
	}
}

func TestConversationRegistry_Draining(t *testing.T) {
	cr := NewConversationRegistry(testFactory())

	if cr.IsDraining() {
		t.Error("new registry should not be draining")
	}

	cr.StartDraining()

	if !cr.IsDraining() {
		t.Error("IsDraining() should report true after StartDraining")
	}
	if cr.Acquire() {
		t.Error("Acquire() should return false while draining")
	}
	if cr.Get("p1") != nil {
		t.Error("Get() should return nil while draining")
	}
}

func TestConversationRegistry_WaitBlocksUntilReleased(t *testing.T) {
	cr := NewConversationRegistry(testFactory())

	if !cr.Acquire() {
		t.Fatal("Acquire() failed")
	}

	released := make(chan struct{})
	returned := make(chan struct{})
	go func() {
		cr.Wait()
		select {
		case <-released:
		default:
			t.Error("Wait() returned before Release()")
		}
		close(returned)
	}()

	cr.StartDraining()
	close(released)
	cr.Release()
	<-returned
}

func TestConversationRegistry_ConcurrentAcquireDuringDrain(t *testing.T) {
	cr := NewConversationRegistry(testFactory())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if cr.Acquire() {
				cr.Release()
			}
		}()
	}
	cr.StartDraining()
	wg.Wait()

	// Every successful Acquire was released; Wait must not hang.
	cr.Wait()
	if cr.ActiveCount() != 0 {
		t.Errorf("ActiveCount() = %d, want 0", cr.ActiveCount())
	}
}
