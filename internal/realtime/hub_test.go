package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(h *Hub, id string) *Client {
	return &Client{ID: id, Room: CommunityRoom, hub: h, send: make(chan WSMessage, 4)}
}

func TestBroadcastReachesRoomMembers(t *testing.T) {
	h := NewHub(nil, nil, nil)
	a, b := testClient(h, "a"), testClient(h, "b")
	h.Register(a)
	h.Register(b)
	assert.Equal(t, 2, h.SubscriberCount(CommunityRoom))

	h.Publish(CommunityRoom, EventChatMessage, map[string]string{"text": "hi"})

	for _, c := range []*Client{a, b} {
		require.Len(t, c.send, 1)
		msg := <-c.send
		assert.Equal(t, EventChatMessage, msg.Event)
		assert.JSONEq(t, `{"text":"hi"}`, string(msg.Data))
	}

	h.Unregister(a)
	h.Unregister(a)
	assert.Equal(t, 1, h.SubscriberCount(CommunityRoom))
	h.BroadcastToRoom(CommunityRoom, EventPollResults, nil)
	assert.Empty(t, a.send)
	assert.Len(t, b.send, 1)
}

func TestBroadcastDropsForFullBuffer(t *testing.T) {
	h := NewHub(nil, nil, nil)
	c := testClient(h, "slow")
	h.Register(c)
	for i := 0; i < cap(c.send)+3; i++ {
		h.BroadcastToRoom(CommunityRoom, EventChatMessage, i)
	}
	assert.Len(t, c.send, cap(c.send))
}

func TestSendToClientTargetsOne(t *testing.T) {
	h := NewHub(nil, nil, nil)
	a, b := testClient(h, "a"), testClient(h, "b")
	h.Register(a)
	h.Register(b)

	h.SendToClient(CommunityRoom, "b", EventChatBacklog, []int{1, 2})
	h.SendToClient(CommunityRoom, "missing", EventChatBacklog, nil)

	assert.Empty(t, a.send)
	require.Len(t, b.send, 1)
	assert.Equal(t, EventChatBacklog, (<-b.send).Event)
}

type fakePubSub struct {
	mu        sync.Mutex
	handlers  map[string]func(string, []byte)
	cancelled []string
	fail      bool
	subErr    error
}

func (f *fakePubSub) PublishRoomEvent(room, event string, payload []byte) error {
	if f.fail {
		return errors.New("redis down")
	}
	f.mu.Lock()
	h := f.handlers[room]
	f.mu.Unlock()
	if h != nil {
		h(event, payload)
	}
	return nil
}

func (f *fakePubSub) SubscribeRoom(room string, handler func(string, []byte)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil {
		return nil, f.subErr
	}
	if f.handlers == nil {
		f.handlers = make(map[string]func(string, []byte))
	}
	f.handlers[room] = handler
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers, room)
		f.cancelled = append(f.cancelled, room)
	}, nil
}

func TestPublishThroughRedisDeliversOnce(t *testing.T) {
	ps := &fakePubSub{}
	h := NewHub(nil, ps, ps)
	c := testClient(h, "a")
	h.Register(c)

	h.Publish(CommunityRoom, EventChatMessage, map[string]int{"id": 43})

	require.Len(t, c.send, 1)
	msg := <-c.send
	var got map[string]int
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, 43, got["id"])

	h.Unregister(c)
	assert.Equal(t, []string{CommunityRoom}, ps.cancelled)
}

func TestPublishFallsBackLocallyWhenRedisFails(t *testing.T) {
	ps := &fakePubSub{fail: true}
	h := NewHub(nil, ps, ps)
	c := testClient(h, "a")
	h.Register(c)

	h.Publish(CommunityRoom, EventChatMessage, "x")
	assert.Len(t, c.send, 1)
}

func TestPublishDeliversLocallyWhileSubscriptionIsDown(t *testing.T) {
	ps := &fakePubSub{subErr: errors.New("subscribe refused")}
	h := NewHub(nil, ps, ps)
	a, b := testClient(h, "a"), testClient(h, "b")
	h.Register(a)
	h.Register(b)

	h.Publish(CommunityRoom, EventChatMessage, map[string]int{"id": 45})
	assert.Len(t, a.send, 1)
	assert.Len(t, b.send, 1)
	<-a.send
	<-b.send

	ps.mu.Lock()
	ps.subErr = nil
	ps.mu.Unlock()
	c := testClient(h, "c")
	h.Register(c)

	h.Publish(CommunityRoom, EventChatMessage, map[string]int{"id": 46})
	for _, cl := range []*Client{a, b, c} {
		assert.Len(t, cl.send, 1, "client %s receives the event exactly once", cl.ID)
	}
}
