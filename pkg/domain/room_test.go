package domain

import (
	"errors"
	"testing"
)

func human(id string) Participant {
	return Participant{User: User{ID: id, DisplayName: "user " + id}}
}

func bot(id string) Participant {
	return Participant{User: User{ID: id, DisplayName: "bot " + id, Bot: &BotProfile{Provider: ProviderGemini}}}
}

func TestRoomValidate(t *testing.T) {
	tests := []struct {
		name  string
		room  Room
		self  string
		valid bool
	}{
		{"direct ok", Room{ID: "1", Name: "dm", Kind: RoomDirect, Participants: []Participant{human("a"), human("b")}}, "a", true},
		{"direct three", Room{ID: "1", Name: "dm", Kind: RoomDirect, Participants: []Participant{human("a"), human("b"), human("c")}}, "a", false},
		{"missing id", Room{Name: "x", Kind: RoomGroup, Participants: []Participant{human("a")}}, "a", false},
		{"missing name", Room{ID: "1", Kind: RoomGroup, Participants: []Participant{human("a")}}, "a", false},
		{"no participants", Room{ID: "1", Name: "x", Kind: RoomGroup}, "", false},
		{"group ok", Room{ID: "1", Name: "x", Kind: RoomGroup, Participants: []Participant{human("a"), human("b"), human("c")}}, "c", true},
		{"self missing", Room{ID: "1", Name: "x", Kind: RoomGroup, Participants: []Participant{human("a")}}, "z", false},
		{"self unknown", Room{ID: "1", Name: "x", Kind: RoomGroup, Participants: []Participant{human("a")}}, "", true},
		{"bot ok", Room{ID: "1", Name: "b", Kind: RoomBot, Participants: []Participant{human("a"), bot("g")}}, "a", true},
		{"bot two bots", Room{ID: "1", Name: "b", Kind: RoomBot, Participants: []Participant{bot("h"), bot("g")}}, "", false},
		{"bot no bot", Room{ID: "1", Name: "b", Kind: RoomBot, Participants: []Participant{human("a"), human("b")}}, "a", false},
		{"unknown kind", Room{ID: "1", Name: "b", Kind: "channel", Participants: []Participant{human("a")}}, "a", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.room.Validate(tt.self)
			if tt.valid && err != nil {
				t.Errorf("Validate() error: %v", err)
			}
			if !tt.valid {
				if err == nil {
					t.Fatal("expected validation error")
				}
				if !errors.Is(err, ErrInvalidRoom) {
					t.Errorf("error = %v, want ErrInvalidRoom", err)
				}
			}
		})
	}
}

func TestRoomTitleAndCounterpart(t *testing.T) {
	r := Room{ID: "1", Name: "ignored", Kind: RoomDirect, Participants: []Participant{human("a"), human("b")}}
	if got := r.Title("a"); got != "user b" {
		t.Errorf("Title(a) = %q, want %q", got, "user b")
	}
	g := Room{ID: "2", Name: "team", Kind: RoomGroup, Participants: []Participant{human("a"), human("b")}}
	if got := g.Title("a"); got != "team" {
		t.Errorf("Title(a) = %q, want %q", got, "team")
	}
	if _, ok := g.Counterpart("a"); ok {
		t.Error("group room should have no counterpart")
	}
}

func TestRoomMembersSkipsDeparted(t *testing.T) {
	gone := human("b")
	gone.Departed = true
	r := Room{Participants: []Participant{human("a"), gone, human("c")}}
	if got := len(r.Members()); got != 2 {
		t.Errorf("len(Members()) = %d, want 2", got)
	}
	if got := len(r.Participants); got != 3 {
		t.Errorf("len(Participants) = %d, want 3", got)
	}
}

func TestRoomMessageByClientID(t *testing.T) {
	r := Room{Messages: []Message{{ClientID: "c1", Body: "hi"}, {ID: "7", Body: "yo"}}}
	if m, ok := r.Message("c1"); !ok || m.Body != "hi" {
		t.Errorf("Message(c1) = %+v, %v", m, ok)
	}
	if m, ok := r.Message("7"); !ok || m.Body != "yo" {
		t.Errorf("Message(7) = %+v, %v", m, ok)
	}
	if _, ok := r.Message(""); ok {
		t.Error("empty key should not match")
	}
}
