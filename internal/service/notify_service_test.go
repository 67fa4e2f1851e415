package service_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/cwrk-planet/realtime-service/internal/domain"
	"github.com/cwrk-planet/realtime-service/internal/protocol"
	"github.com/cwrk-planet/realtime-service/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	userID string
	frame  protocol.Frame
}

type fakeSender struct {
	online map[string]bool
	out    []sent
}

func (f *fakeSender) Send(userID string, fr protocol.Frame) bool {
	if !f.online[userID] {
		return false
	}
	f.out = append(f.out, sent{userID: userID, frame: fr})
	return true
}

func intPtr(v int) *int { return &v }

func TestNotify_ChatMessage(t *testing.T) {
	s := &fakeSender{online: map[string]bool{"b": true}}
	svc := service.NewNotifyService(s, nil)

	ok, err := svc.Notify(context.Background(), domain.Envelope{
		TargetUserID: "b",
		Kind:         domain.KindChatMessage,
		Payload:      json.RawMessage(`{"id":"m1","text":"hi"}`),
		UnreadCount:  intPtr(4),
	})
	require.NoError(t, err)
	assert.True(t, ok)

	require.Len(t, s.out, 1)
	f := s.out[0].frame
	assert.Equal(t, protocol.TypeNewMessage, f.Type)
	assert.JSONEq(t, `{"id":"m1","text":"hi"}`, string(f.Message))
	require.NotNil(t, f.UnreadCount)
	assert.Equal(t, 4, *f.UnreadCount)
}

func TestNotify_SystemNotification(t *testing.T) {
	s := &fakeSender{online: map[string]bool{"b": true}}
	svc := service.NewNotifyService(s, nil)

	ok, err := svc.Notify(context.Background(), domain.Envelope{
		TargetUserID: "b",
		Kind:         domain.KindNotification,
		Payload:      json.RawMessage(`{"title":"Booking confirmed"}`),
	})
	require.NoError(t, err)
	assert.True(t, ok)

	f := s.out[0].frame
	assert.Equal(t, protocol.TypeNotification, f.Type)
	assert.JSONEq(t, `{"title":"Booking confirmed"}`, string(f.Data))
	assert.Nil(t, f.UnreadCount)
}

func TestNotify_OfflineIsNotAnError(t *testing.T) {
	s := &fakeSender{}
	svc := service.NewNotifyService(s, nil)

	ok, err := svc.Notify(context.Background(), domain.Envelope{TargetUserID: "b", Kind: domain.KindNotification})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNotify_NoDedup(t *testing.T) {
	s := &fakeSender{online: map[string]bool{"b": true}}
	svc := service.NewNotifyService(s, nil)
	env := domain.Envelope{TargetUserID: "b", Kind: domain.KindChatMessage, Payload: json.RawMessage(`{}`)}

	for i := 0; i < 2; i++ {
		_, err := svc.Notify(context.Background(), env)
		require.NoError(t, err)
	}
	assert.Len(t, s.out, 2)
}

func TestNotify_InvalidEnvelope(t *testing.T) {
	svc := service.NewNotifyService(&fakeSender{}, nil)

	cases := map[string]domain.Envelope{
		"no target":      {Kind: domain.KindNotification},
		"no kind":        {TargetUserID: "b"},
		"negative count": {TargetUserID: "b", Kind: domain.KindChatMessage, UnreadCount: intPtr(-1)},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Notify(context.Background(), env)
			require.ErrorIs(t, err, domain.ErrInvalidEnvelope)
		})
	}
}
