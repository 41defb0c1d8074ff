package realtime

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskboard-dev/taskboard/internal/middleware"
)

func testSession(hub *Hub, userID uint) *Session {
	return NewSession(hub, nil, middleware.AuthenticatedUser{ID: userID})
}

func receive(t *testing.T, s *Session) Event {
	t.Helper()

	select {
	case payload := <-s.send:
		var event Event
		require.NoError(t, json.Unmarshal(payload, &event))
		return event
	default:
		t.Fatal("expected a queued event")
		return Event{}
	}
}

func TestPublishReachesSubscribers(t *testing.T) {
	hub := NewHub()

	first := testSession(hub, 1)
	second := testSession(hub, 2)

	hub.Join(first, ProjectTopic(42))
	hub.Join(second, ProjectTopic(42))

	hub.Publish(ProjectTopic(42), Event{Type: "task_created", Data: map[string]interface{}{"task_id": float64(7)}})

	for _, s := range []*Session{first, second} {
		event := receive(t, s)
		assert.Equal(t, "task_created", event.Type)
	}
}

func TestPublishSkipsOtherTopics(t *testing.T) {
	hub := NewHub()

	subscriber := testSession(hub, 1)
	bystander := testSession(hub, 2)

	hub.Join(subscriber, ProjectTopic(1))
	hub.Join(bystander, ProjectTopic(2))

	hub.Publish(ProjectTopic(1), Event{Type: "task_created"})

	assert.Len(t, subscriber.send, 1)
	assert.Empty(t, bystander.send)
}

func TestPublishPreservesOrder(t *testing.T) {
	hub := NewHub()

	s := testSession(hub, 1)
	hub.Join(s, ProjectTopic(1))

	for i := 0; i < 5; i++ {
		hub.Publish(ProjectTopic(1), Event{Type: fmt.Sprintf("event_%d", i)})
	}

	for i := 0; i < 5; i++ {
		event := receive(t, s)
		assert.Equal(t, fmt.Sprintf("event_%d", i), event.Type)
	}
}

func TestLeaveStopsDelivery(t *testing.T) {
	hub := NewHub()

	s := testSession(hub, 1)
	hub.Join(s, ProjectTopic(1))
	hub.Leave(s, ProjectTopic(1))

	hub.Publish(ProjectTopic(1), Event{Type: "task_created"})

	assert.Empty(t, s.send)
	assert.Empty(t, hub.TopicsOf(s))
}

func TestUnregisterReleasesAllTopics(t *testing.T) {
	hub := NewHub()

	s := testSession(hub, 1)
	hub.Join(s, ProjectTopic(1))
	hub.Join(s, ProjectTopic(2))
	hub.Join(s, UserTopic(1))

	hub.Unregister(s)

	assert.Empty(t, hub.TopicsOf(s))
	assert.Empty(t, hub.Subscribers(ProjectTopic(1)))
	assert.Empty(t, hub.Subscribers(ProjectTopic(2)))
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	hub := NewHub()

	slow := testSession(hub, 1)
	healthy := testSession(hub, 2)

	hub.Join(slow, ProjectTopic(1))
	hub.Join(healthy, ProjectTopic(1))

	for i := 0; i < sendBufferSize; i++ {
		require.True(t, slow.enqueue([]byte("{}")))
	}

	hub.Publish(ProjectTopic(1), Event{Type: "task_created"})

	// The slow session is gone; the healthy one got the event.
	assert.Empty(t, hub.TopicsOf(slow))
	assert.Len(t, healthy.send, 1)

	select {
	case <-slow.done:
	default:
		t.Fatal("expected slow session to be closed")
	}
}

func TestCloseDisconnectsEverySession(t *testing.T) {
	hub := NewHub()

	s := testSession(hub, 1)
	hub.Join(s, ProjectTopic(1))

	hub.Close()

	select {
	case <-s.done:
	default:
		t.Fatal("expected session to be closed")
	}

	// Joining and publishing after Close are no-ops.
	late := testSession(hub, 2)
	hub.Join(late, ProjectTopic(1))
	hub.Publish(ProjectTopic(1), Event{Type: "task_created"})

	assert.Empty(t, late.send)
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	hub := NewHub()

	s := testSession(hub, 1)
	hub.Join(s, ProjectTopic(1))

	s.Close()
	s.Close()

	assert.False(t, s.enqueue([]byte("{}")))
}
