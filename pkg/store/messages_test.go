package store

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chitchat/chitchat/pkg/domain"
)

func loadedRooms(t *testing.T, srv *fakeServer, rooms ...domain.Room) *Rooms {
	t.Helper()
	srv.rooms = rooms
	r := newTestRooms(t, srv, newClock())
	require.NoError(t, r.LoadRooms(context.Background()))
	return r
}

func TestSendMessage_Hello(t *testing.T) {
	srv := newFakeServer()
	r := loadedRooms(t, srv, directRoom("R", "a"))

	var provisional domain.Message
	srv.sendHook = func(int) {
		rm, _ := r.Room("R")
		require.Len(t, rm.Messages, 1)
		provisional = rm.Messages[0]
	}

	sent, err := r.SendMessage(context.Background(), "R", "hello", domain.MessageText)
	require.NoError(t, err)
	assert.Equal(t, domain.StateProvisional, provisional.State)
	assert.Equal(t, me.ID, provisional.SenderID)

	assert.Equal(t, domain.StateConfirmed, sent.State)
	assert.NotEmpty(t, sent.ID)

	rm, _ := r.Room("R")
	require.Len(t, rm.Messages, 1)
	got := rm.Messages[0]
	assert.Equal(t, me.ID, got.SenderID)
	assert.Equal(t, "hello", got.Body)
	assert.Equal(t, domain.MessageText, got.Type)
	assert.False(t, got.Pending())
	assert.Equal(t, provisional.ClientID, got.ClientID)
}

func TestSendMessage_NoDuplicationNoLoss(t *testing.T) {
	srv := newFakeServer()
	srv.history["R"] = []domain.Message{serverMsg("h1", "R", "a", "before", 0)}
	r := loadedRooms(t, srv, groupRoom("R", "team", "a"))
	ctx := context.Background()
	require.NoError(t, r.LoadMessages(ctx, "R"))

	bodies := []string{"one", "two", "three", "four", "five"}
	for _, b := range bodies {
		_, err := r.SendMessage(ctx, "R", b, domain.MessageText)
		require.NoError(t, err)
	}

	rm, _ := r.Room("R")
	require.Len(t, rm.Messages, 1+len(bodies))
	seen := make(map[string]bool)
	for _, m := range rm.Messages {
		assert.False(t, seen[m.ID], "duplicate %s", m.ID)
		seen[m.ID] = true
		assert.Equal(t, domain.StateConfirmed, m.State)
	}
	for i, b := range bodies {
		assert.Equal(t, b, rm.Messages[i+1].Body)
	}
}

func TestSendMessage_FailureRestoresRoom(t *testing.T) {
	srv := newFakeServer()
	srv.history["R"] = []domain.Message{
		serverMsg("h1", "R", "a", "first", 1),
		serverMsg("h2", "R", me.ID, "second", 2),
	}
	r := loadedRooms(t, srv, directRoom("R", "a"))
	ctx := context.Background()
	require.NoError(t, r.LoadMessages(ctx, "R"))

	before, _ := r.Room("R")
	srv.sendErr = httpErr(http.StatusInternalServerError)

	msg, err := r.SendMessage(ctx, "R", "lost", domain.MessageText)
	require.Error(t, err)
	assert.Equal(t, KindTransport, KindOf(err))
	assert.Equal(t, domain.StateDiscarded, msg.State)
	assert.Equal(t, "lost", msg.Body)

	after, _ := r.Room("R")
	assert.Equal(t, before, after)
}

func TestSendMessage_FailureOnEmptyRoom(t *testing.T) {
	srv := newFakeServer()
	srv.sendErr = httpErr(http.StatusForbidden)
	r := loadedRooms(t, srv, directRoom("R", "a"))

	before, _ := r.Room("R")
	_, err := r.SendMessage(context.Background(), "R", "hi", domain.MessageText)
	assert.True(t, IsKind(err, KindAuth))
	after, _ := r.Room("R")
	assert.Equal(t, before, after)
	assert.Empty(t, after.Messages)
}

func TestSendMessage_Validation(t *testing.T) {
	srv := newFakeServer()
	r := loadedRooms(t, srv, directRoom("R", "a"))
	ctx := context.Background()

	_, err := r.SendMessage(ctx, "R", "   ", domain.MessageText)
	assert.True(t, IsKind(err, KindValidation))
	_, err = r.SendMessage(ctx, "R", "x", domain.MessageType("video"))
	assert.True(t, IsKind(err, KindValidation))
	_, err = r.SendMessage(ctx, "missing", "x", domain.MessageText)
	assert.True(t, IsKind(err, KindNotFound))
	assert.Zero(t, srv.count("SendMessage"))

	sent, err := r.SendMessage(ctx, "R", "https://example.com", "")
	require.NoError(t, err)
	assert.Equal(t, domain.MessageText, sent.Type)
}

// A history fetch issued before a send and resolving after it must not
// erase the confirmed message.
func TestLoadMessages_StaleFetchKeepsConfirmedSend(t *testing.T) {
	srv := newFakeServer()
	r := loadedRooms(t, srv, directRoom("R", "a"))
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	srv.getHook = func(call int) {
		if call == 1 {
			close(started)
			<-release
		}
	}

	var wg sync.WaitGroup
	var loadErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		loadErr = r.LoadMessages(ctx, "R")
	}()
	<-started

	sent, err := r.SendMessage(ctx, "R", "durable", domain.MessageText)
	require.NoError(t, err)

	close(release)
	wg.Wait()
	require.NoError(t, loadErr)

	rm, _ := r.Room("R")
	require.Len(t, rm.Messages, 1)
	assert.Equal(t, sent.ID, rm.Messages[0].ID)
	assert.Equal(t, domain.StateConfirmed, rm.Messages[0].State)
}

// A history page read before an edit must not roll the edit back, whether
// the edit came from this client or over the push channel.
func TestLoadMessages_StaleFetchKeepsLaterEdit(t *testing.T) {
	for _, tc := range []struct {
		name string
		edit func(t *testing.T, r *Rooms)
	}{
		{"local edit", func(t *testing.T, r *Rooms) {
			_, err := r.EditMessage(context.Background(), "h1", "new")
			require.NoError(t, err)
		}},
		{"pushed edit", func(t *testing.T, r *Rooms) {
			r.ApplyEvent(domain.Event{Type: domain.EventMessageEdited, RoomID: "R", MessageID: "h1", Message: &domain.Message{ID: "h1", Body: "new"}})
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			srv := newFakeServer()
			srv.history["R"] = []domain.Message{serverMsg("h1", "R", me.ID, "old", 1)}
			r := loadedRooms(t, srv, directRoom("R", "a"))
			ctx := context.Background()
			require.NoError(t, r.LoadMessages(ctx, "R"))

			started := make(chan struct{})
			release := make(chan struct{})
			srv.getHook = func(call int) {
				if call == 2 {
					close(started)
					<-release
				}
			}

			var wg sync.WaitGroup
			var loadErr error
			wg.Add(1)
			go func() {
				defer wg.Done()
				loadErr = r.LoadMessages(ctx, "R")
			}()
			<-started

			tc.edit(t, r)

			close(release)
			wg.Wait()
			require.NoError(t, loadErr)

			rm, _ := r.Room("R")
			require.Len(t, rm.Messages, 1)
			assert.Equal(t, "new", rm.Messages[0].Body)
			assert.True(t, rm.Messages[0].Edited())
		})
	}
}

// A fetch resolving while a send is still in flight keeps the provisional
// message; the send then confirms it exactly once.
func TestLoadMessages_KeepsProvisionalDuringSend(t *testing.T) {
	srv := newFakeServer()
	srv.history["R"] = []domain.Message{serverMsg("h1", "R", "a", "earlier", 1)}
	r := loadedRooms(t, srv, directRoom("R", "a"))
	ctx := context.Background()

	inSend := make(chan struct{})
	release := make(chan struct{})
	srv.sendHook = func(int) {
		close(inSend)
		<-release
	}

	var wg sync.WaitGroup
	var sendErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, sendErr = r.SendMessage(ctx, "R", "pending", domain.MessageText)
	}()
	<-inSend

	require.NoError(t, r.LoadMessages(ctx, "R"))
	rm, _ := r.Room("R")
	require.Len(t, rm.Messages, 2)
	assert.Equal(t, "h1", rm.Messages[0].ID)
	assert.Equal(t, domain.StateProvisional, rm.Messages[1].State)

	close(release)
	wg.Wait()
	require.NoError(t, sendErr)

	rm, _ = r.Room("R")
	require.Len(t, rm.Messages, 2)
	assert.Equal(t, "pending", rm.Messages[1].Body)
	assert.Equal(t, domain.StateConfirmed, rm.Messages[1].State)
}

func TestLoadMessages_DedupesAndOrders(t *testing.T) {
	srv := newFakeServer()
	srv.history["R"] = []domain.Message{
		serverMsg("h3", "R", "a", "third", 3),
		serverMsg("h1", "R", "a", "first", 1),
		serverMsg("h3", "R", "a", "third again", 3),
		serverMsg("h2", "R", me.ID, "second", 2),
	}
	r := loadedRooms(t, srv, directRoom("R", "a"))
	require.NoError(t, r.LoadMessages(context.Background(), "R"))

	rm, _ := r.Room("R")
	require.Len(t, rm.Messages, 3)
	assert.Equal(t, []string{"h1", "h2", "h3"}, []string{rm.Messages[0].ID, rm.Messages[1].ID, rm.Messages[2].ID})
	require.NotNil(t, rm.LastMessage)
	assert.Equal(t, "h3", rm.LastMessage.ID)
}

func TestLoadMessages_ResultDroppedAfterReset(t *testing.T) {
	srv := newFakeServer()
	srv.history["R"] = []domain.Message{serverMsg("h1", "R", "a", "hi", 1)}
	r := loadedRooms(t, srv, directRoom("R", "a"))

	started := make(chan struct{})
	release := make(chan struct{})
	srv.getHook = func(int) {
		close(started)
		<-release
	}
	done := make(chan error, 1)
	go func() { done <- r.LoadMessages(context.Background(), "R") }()
	<-started

	r.Reset()
	close(release)
	require.NoError(t, <-done)
	assert.Empty(t, r.Rooms())
	_, ok := r.Room("R")
	assert.False(t, ok)
}

func TestDeleteMessage_TombstoneIsSticky(t *testing.T) {
	srv := newFakeServer()
	srv.history["R"] = []domain.Message{serverMsg("h1", "R", me.ID, "oops", 1)}
	r := loadedRooms(t, srv, directRoom("R", "a"))
	ctx := context.Background()
	require.NoError(t, r.LoadMessages(ctx, "R"))

	require.NoError(t, r.DeleteMessage(ctx, "h1"))
	rm, _ := r.Room("R")
	require.Len(t, rm.Messages, 1)
	assert.True(t, rm.Messages[0].Deleted())
	assert.Empty(t, rm.Messages[0].Body)

	// The server still reports the original body; the tombstone wins.
	require.NoError(t, r.LoadMessages(ctx, "R"))
	rm, _ = r.Room("R")
	require.Len(t, rm.Messages, 1)
	assert.True(t, rm.Messages[0].Deleted())
	assert.Equal(t, "message deleted", rm.Messages[0].Preview())

	err := r.DeleteMessage(ctx, "h1")
	assert.True(t, IsKind(err, KindValidation))
}

func TestDeleteMessage_FailureLeavesMessage(t *testing.T) {
	srv := newFakeServer()
	srv.history["R"] = []domain.Message{serverMsg("h1", "R", me.ID, "keep", 1)}
	srv.deleteErr = httpErr(http.StatusForbidden)
	r := loadedRooms(t, srv, directRoom("R", "a"))
	ctx := context.Background()
	require.NoError(t, r.LoadMessages(ctx, "R"))

	before, _ := r.Room("R")
	err := r.DeleteMessage(ctx, "h1")
	assert.True(t, IsKind(err, KindAuth))
	after, _ := r.Room("R")
	assert.Equal(t, before, after)
}

func TestEditMessage(t *testing.T) {
	srv := newFakeServer()
	srv.history["R"] = []domain.Message{serverMsg("h1", "R", me.ID, "helo", 1)}
	r := loadedRooms(t, srv, directRoom("R", "a"))
	ctx := context.Background()
	require.NoError(t, r.LoadMessages(ctx, "R"))

	edited, err := r.EditMessage(ctx, "h1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", edited.Body)
	assert.True(t, edited.Edited())

	srv.editErr = httpErr(http.StatusUnprocessableEntity)
	before, _ := r.Room("R")
	_, err = r.EditMessage(ctx, "h1", "nope")
	assert.True(t, IsKind(err, KindValidation))
	after, _ := r.Room("R")
	assert.Equal(t, before, after)

	_, err = r.EditMessage(ctx, "h1", " ")
	assert.True(t, IsKind(err, KindValidation))
	_, err = r.EditMessage(ctx, "missing", "x")
	assert.True(t, IsKind(err, KindNotFound))
	assert.Equal(t, 2, srv.count("EditMessage"))
}

func TestEditMessage_OnlyConfirmed(t *testing.T) {
	srv := newFakeServer()
	r := loadedRooms(t, srv, directRoom("R", "a"))
	ctx := context.Background()

	release := make(chan struct{})
	inSend := make(chan struct{})
	srv.sendHook = func(int) {
		close(inSend)
		<-release
	}
	go r.SendMessage(ctx, "R", "draft", domain.MessageText) //nolint:errcheck
	<-inSend

	rm, _ := r.Room("R")
	require.Len(t, rm.Messages, 1)
	_, err := r.EditMessage(ctx, rm.Messages[0].ClientID, "edited")
	assert.True(t, IsKind(err, KindValidation))
	assert.Zero(t, srv.count("EditMessage"))
	close(release)

	require.Eventually(t, func() bool {
		rm, _ := r.Room("R")
		return len(rm.Messages) == 1 && rm.Messages[0].State == domain.StateConfirmed
	}, time.Second, 5*time.Millisecond)
}

func TestSearchMessages(t *testing.T) {
	srv := newFakeServer()
	srv.history["R"] = []domain.Message{serverMsg("h1", "R", "a", "Lunch at noon?", 1)}
	srv.history["S"] = []domain.Message{serverMsg("s1", "S", "b", "lunch tomorrow", 2)}
	r := loadedRooms(t, srv, directRoom("R", "a"), directRoom("S", "b"))
	ctx := context.Background()

	page, err := r.SearchMessages(ctx, domain.SearchQuery{Query: "lunch"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, defaultPageSize, page.Size)

	page, err = r.SearchMessages(ctx, domain.SearchQuery{Query: "lunch", RoomID: "S"})
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, "s1", page.Messages[0].ID)

	_, err = r.SearchMessages(ctx, domain.SearchQuery{Query: "  "})
	assert.True(t, IsKind(err, KindValidation))

	// Search results never leak into room state.
	rm, _ := r.Room("S")
	assert.Empty(t, rm.Messages)
}
