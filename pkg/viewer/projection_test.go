package viewer

import (
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/seminar-portal/internal/models"
	"github.com/aura-webinar/seminar-portal/internal/realtime"
)

func event(t *testing.T, name string, payload interface{}) realtime.WSMessage {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return realtime.WSMessage{Event: name, Data: raw}
}

func TestProjectionStatusAndDerivedAutoEnd(t *testing.T) {
	p := NewProjection(models.SchedulePublic{Status: models.StatusUpcoming, AutoEndHours: 3}, nil)
	start := time.Date(2026, 5, 1, 19, 0, 0, 0, time.UTC)

	require.NoError(t, p.Apply(event(t, models.EventStatusChange, models.StatusChangePayload{Status: models.StatusLive, ActualStart: &start})))
	assert.Equal(t, models.StatusLive, p.DisplayedStatus(start.Add(2*time.Hour)))
	assert.Equal(t, models.StatusEnded, p.DisplayedStatus(start.Add(3*time.Hour)))
	assert.Equal(t, models.StatusLive, p.State().Status, "stored status is untouched")

	assert.True(t, p.ChatOpen(start.Add(time.Hour)))
	assert.False(t, p.ChatOpen(start.Add(4*time.Hour)))

	require.NoError(t, p.Apply(event(t, models.EventStatusChange, models.StatusChangePayload{Status: models.StatusEnded, ActualStart: &start})))
	_, ok := p.AutoEndAt()
	assert.False(t, ok)
}

func TestProjectionTestLiveOpensChat(t *testing.T) {
	p := NewProjection(models.SchedulePublic{Status: models.StatusUpcoming}, nil)
	assert.False(t, p.ChatOpen(time.Now()))
	require.NoError(t, p.Apply(event(t, models.EventTestLiveChange, models.TestLiveChangePayload{IsTestLive: true})))
	assert.True(t, p.ChatOpen(time.Now()))
	assert.Equal(t, models.StatusUpcoming, p.DisplayedStatus(time.Now()))
}

func TestProjectionMessages(t *testing.T) {
	first := models.ChatMessageItem{ID: uuid.New(), Content: "hello"}
	p := NewProjection(models.SchedulePublic{Status: models.StatusLive}, []models.ChatMessageItem{first})

	second := models.ChatMessageItem{ID: uuid.New(), Content: "question"}
	require.NoError(t, p.Apply(event(t, models.EventNewMessage, second)))
	require.NoError(t, p.Apply(event(t, models.EventNewMessage, second)))
	require.Len(t, p.State().Messages, 2)

	require.NoError(t, p.Apply(event(t, models.EventDeleteMessage, models.DeleteMessagePayload{ID: first.ID})))
	require.NoError(t, p.Apply(event(t, models.EventDeleteMessage, models.DeleteMessagePayload{ID: uuid.New()})))
	msgs := p.State().Messages
	require.Len(t, msgs, 1)
	assert.Equal(t, second.ID, msgs[0].ID)

	p.Reset(models.SchedulePublic{Status: models.StatusLive}, nil)
	assert.Empty(t, p.State().Messages)
}

func TestProjectionPresenceAndIgnoredEvents(t *testing.T) {
	p := NewProjection(models.SchedulePublic{}, nil)
	require.NoError(t, p.Apply(event(t, realtime.EventPresenceSync, realtime.PresenceSync{
		Members: []realtime.Member{{Key: "a"}, {Key: "b"}}, Count: 2,
	})))
	assert.Equal(t, 2, p.State().PresenceCount)

	require.NoError(t, p.Apply(event(t, models.EventAutoEndDue, models.AutoEndDuePayload{})))
	require.NoError(t, p.Apply(realtime.WSMessage{Event: "something_else"}))
	assert.Error(t, p.Apply(realtime.WSMessage{Event: models.EventNewMessage, Data: []byte("{")}))
}

func TestAutoEndTimer(t *testing.T) {
	start := time.Date(2026, 5, 1, 19, 0, 0, 0, time.UTC)
	p := NewProjection(models.SchedulePublic{Status: models.StatusLive, ActualStart: &start, AutoEndHours: 1}, nil)

	var fired atomic.Int32
	a := &AutoEnd{p: p, fire: func() { fired.Add(1) }, now: func() time.Time { return start.Add(2 * time.Hour) }}
	assert.True(t, a.Rearm())
	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)

	a.now = func() time.Time { return start }
	assert.True(t, a.Rearm())
	a.Stop()

	require.NoError(t, p.Apply(event(t, models.EventStatusChange, models.StatusChangePayload{Status: models.StatusEnded})))
	assert.False(t, a.Rearm())
	assert.Equal(t, int32(1), fired.Load())
}

func TestChannelURL(t *testing.T) {
	u, err := channelURL("http://localhost:8080/", "schedule:abc:chat", "tok")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/ws?token=tok&topic=schedule%3Aabc%3Achat", u)

	_, err = channelURL("ftp://x", "t", "k")
	assert.Error(t, err)
}
