package rpc

import (
	"context"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/livecoach/internal/adapter/llm"
	"github.com/xiaot623/gogo/livecoach/internal/clock"
	"github.com/xiaot623/gogo/livecoach/internal/coach"
	"github.com/xiaot623/gogo/livecoach/internal/domain"
	"github.com/xiaot623/gogo/livecoach/internal/service"
	"github.com/xiaot623/gogo/livecoach/tests/helpers"
)

func newTestClient(t *testing.T) *rpc.Client {
	t.Helper()
	db := helpers.NewTestSQLiteStore(t)
	svc := service.New(db, llm.NewMockClient(), service.Options{
		Coach: coach.DefaultConfig(),
		Clock: clock.NewFake(time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)),
	})
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })

	srv, err := NewServer(svc)
	require.NoError(t, err)

	serverConn, clientConn := net.Pipe()
	go srv.ServeConn(serverConn)
	client := jsonrpc.NewClient(clientConn)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestCoachSessionRoundTrip(t *testing.T) {
	client := newTestClient(t)

	var session domain.Session
	err := client.Call("Coach.StartSession", &StartSessionArgs{
		UserID:  "alice",
		Request: domain.StartSessionRequest{Type: domain.SessionTypeInterview},
	}, &session)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionTypeInterview, session.Type)

	var snap domain.SessionSnapshot
	require.NoError(t, client.Call("Coach.Snapshot", &UserArgs{UserID: "alice"}, &snap))
	assert.Equal(t, session.ID, snap.Session.ID)

	var fb domain.FeedbackEvent
	err = client.Call("Coach.DismissFeedback", &ItemArgs{UserID: "alice", ID: "fb_missing"}, &fb)
	require.Error(t, err)
	assert.Contains(t, err.Error(), domain.ErrNotFound.Error())

	var stopped StopSessionResponse
	require.NoError(t, client.Call("Coach.StopSession", &UserArgs{UserID: "alice"}, &stopped))
	assert.Equal(t, domain.SessionStatusCompleted, stopped.Session.Status)
	assert.Empty(t, stopped.FlushError)

	err = client.Call("Coach.StopSession", &UserArgs{UserID: "alice"}, &stopped)
	require.Error(t, err)
	assert.Contains(t, err.Error(), domain.ErrNoActiveSession.Error())
}

func TestCoachRequiresUser(t *testing.T) {
	client := newTestClient(t)
	var sg domain.Suggestion
	err := client.Call("Coach.MarkSuggestionUsed", &ItemArgs{ID: "sug_1"}, &sg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user_id is required")
}
