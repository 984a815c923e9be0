package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chitchat/chitchat/pkg/domain"
)

// fakeServer answers the handful of endpoints the commands below touch.
func fakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/profile", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]any{"message": "bad credentials"}) //nolint:errcheck
			return
		}
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"id":       "u1",
			"fullName": "Ada Lovelace",
			"username": "ada",
			"email":    "ada@example.com",
		})
	})
	mux.HandleFunc("/api/chat/rooms", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode([]any{}) //nolint:errcheck
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// isolate points config, token and log files at a temp home.
func isolate(t *testing.T, apiURL, token string) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("CHITCHAT_CONFIG", filepath.Join(home, "missing.yaml"))
	t.Setenv("CHITCHAT_API_URL", apiURL)
	t.Setenv("CHITCHAT_TOKEN", token)
	t.Setenv("CHITCHAT_LOG_FILE", filepath.Join(home, "chitchat.log"))
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{
		{"login"}, {"register"}, {"logout"}, {"whoami"},
		{"rooms"}, {"rooms", "history"}, {"rooms", "create"},
		{"send"}, {"search"},
		{"friends"}, {"friends", "requests"}, {"friends", "add"}, {"friends", "accept"},
		{"friends", "reject"}, {"friends", "remove"}, {"friends", "find"},
		{"files", "ls"}, {"files", "upload"}, {"files", "download"}, {"files", "rm"},
		{"bot", "list"}, {"bot", "configure"}, {"bot", "ask"},
		{"version"},
	} {
		cmd, rest, err := root.Find(path)
		if err != nil || len(rest) != 0 || cmd.Name() != path[len(path)-1] {
			t.Errorf("command %q not found (got %v, rest %v, err %v)", strings.Join(path, " "), cmd.Name(), rest, err)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if out != "chitchat dev\n" {
		t.Errorf("version output = %q", out)
	}
}

func TestWhoami(t *testing.T) {
	srv := fakeServer(t)
	isolate(t, srv.URL, "test-token")

	out, err := run(t, "whoami")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Ada Lovelace (@ada)", "ada@example.com", "u1", srv.URL} {
		if !strings.Contains(out, want) {
			t.Errorf("whoami output missing %q:\n%s", want, out)
		}
	}
}

func TestSignedOutCommandsFail(t *testing.T) {
	srv := fakeServer(t)
	isolate(t, srv.URL, "")

	for _, args := range [][]string{{"whoami"}, {"rooms"}, {"friends"}} {
		_, err := run(t, args...)
		if !errors.Is(err, errSignedOut) {
			t.Errorf("%v: err = %v, want errSignedOut", args, err)
		}
	}
}

func TestRejectedTokenIsReported(t *testing.T) {
	srv := fakeServer(t)
	isolate(t, srv.URL, "stale-token")

	_, err := run(t, "whoami")
	if err == nil || errors.Is(err, errSignedOut) {
		t.Fatalf("err = %v, want restore failure", err)
	}
}

func TestRootWithoutSessionGreets(t *testing.T) {
	srv := fakeServer(t)
	isolate(t, srv.URL, "")

	out, err := run(t)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "chitchat login") || !strings.Contains(out, "CHITCHAT") {
		t.Errorf("greeting = %q", out)
	}
}

func TestRoomsEmpty(t *testing.T) {
	srv := fakeServer(t)
	isolate(t, srv.URL, "test-token")

	out, err := run(t, "rooms")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No rooms yet") {
		t.Errorf("rooms output = %q", out)
	}
}

func TestSendRejectsUnknownType(t *testing.T) {
	srv := fakeServer(t)
	isolate(t, srv.URL, "test-token")

	_, err := run(t, "send", "r1", "hi", "--type", "video")
	if err == nil || !strings.Contains(err.Error(), "unknown message type") {
		t.Errorf("err = %v", err)
	}
}

func TestPrintRooms(t *testing.T) {
	self := domain.User{ID: "u1", DisplayName: "Ada"}
	grace := domain.User{ID: "u2", DisplayName: "Grace"}
	last := domain.Message{ID: "m1", Body: "see you   tomorrow", CreatedAt: time.Now().Add(-2 * time.Hour)}
	rooms := []domain.Room{{
		ID:           "r1",
		Kind:         domain.RoomDirect,
		Name:         "dm",
		Participants: []domain.Participant{{User: self}, {User: grace}},
		LastMessage:  &last,
	}}

	var b bytes.Buffer
	printRooms(&b, rooms, "u1")
	out := b.String()
	for _, want := range []string{"r1", "direct", "Grace", "2 hours ago", "see you tomorrow"} {
		if !strings.Contains(out, want) {
			t.Errorf("printRooms missing %q:\n%s", want, out)
		}
	}

	b.Reset()
	printRooms(&b, nil, "u1")
	if !strings.Contains(b.String(), "No rooms yet") {
		t.Errorf("empty rooms = %q", b.String())
	}
}

func TestPrintMessage(t *testing.T) {
	ts := time.Date(2026, 3, 4, 15, 4, 0, 0, time.Local)
	edited := ts.Add(time.Minute)
	rm := domain.Room{Participants: []domain.Participant{{User: domain.User{ID: "u2", DisplayName: "Grace"}}}}

	tests := []struct {
		name string
		msg  domain.Message
		want string
	}{
		{"plain", domain.Message{SenderID: "u2", Body: "hello", CreatedAt: ts}, "Mar 4 15:04  Grace: hello\n"},
		{"edited", domain.Message{SenderID: "u2", Body: "fixed", CreatedAt: ts, EditedAt: &edited}, "Mar 4 15:04  Grace: fixed (edited)\n"},
		{"deleted", domain.Message{SenderID: "u2", Body: "gone", CreatedAt: ts, DeletedAt: &edited}, "Mar 4 15:04  Grace: message deleted\n"},
		{"unknown sender", domain.Message{SenderID: "u9", Body: "hi", CreatedAt: ts}, "Mar 4 15:04  u9: hi\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b bytes.Buffer
			printMessage(&b, rm, tt.msg)
			if b.String() != tt.want {
				t.Errorf("got %q, want %q", b.String(), tt.want)
			}
		})
	}
}

func TestPrintRequests(t *testing.T) {
	in := []domain.FriendRequest{{ID: "fr1", Sender: domain.User{ID: "u2", DisplayName: "Grace"}, CreatedAt: time.Now()}}
	out := []domain.FriendRequest{{ID: "fr2", ReceiverID: "u3", CreatedAt: time.Now()}}

	var b bytes.Buffer
	printRequests(&b, in, out)
	got := b.String()
	if !strings.Contains(got, "from Grace") || !strings.Contains(got, "fr1") {
		t.Errorf("incoming not listed:\n%s", got)
	}
	if !strings.Contains(got, "to   u3") || !strings.Contains(got, "fr2") {
		t.Errorf("outgoing not listed:\n%s", got)
	}

	b.Reset()
	printRequests(&b, nil, nil)
	if b.String() != "No pending requests.\n" {
		t.Errorf("empty = %q", b.String())
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate short = %q", got)
	}
	if got := truncate("abcdefghij", 5); got != "abcd…" {
		t.Errorf("truncate long = %q", got)
	}
}

func TestPrompterUsesCurrentValue(t *testing.T) {
	var out bytes.Buffer
	p := newPrompter(strings.NewReader("typed\n"), &out)

	got, err := p.Line("Name", "preset")
	if err != nil || got != "preset" {
		t.Fatalf("Line with preset = %q, %v", got, err)
	}
	if out.Len() != 0 {
		t.Errorf("prompted despite preset: %q", out.String())
	}

	got, err = p.Secret("Password", "")
	if err != nil || got != "typed" {
		t.Fatalf("Secret from pipe = %q, %v", got, err)
	}
	if out.String() != "Password: " {
		t.Errorf("prompt = %q", out.String())
	}
}
