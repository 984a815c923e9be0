package main

import (
	"fmt"
	"io"
	"math/rand/v2"

	"github.com/charmbracelet/lipgloss"
)

var signedOutGreetings = [...]string{
	"Your friends are talking. You are not in the room.",
	"Three unread rooms, probably. Sign in to find out.",
	"The bots are idle. They hate being idle.",
	"Someone just typed your name. Or maybe not. Only one way to know.",
	"Conversations don't wait, but this one might.",
	"Your last message is still sitting there, confirmed and lonely.",
	"A friend request could be waiting. Statistically speaking.",
	"The group chat moved on without you. It always does.",
}

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#2dd4bf")).Bold(true)
	quoteStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// printSignedOut greets a user who started the TUI without a session.
func printSignedOut(w io.Writer) {
	msg := signedOutGreetings[rand.IntN(len(signedOutGreetings))]
	fmt.Fprintf(w, "\n%s\n\n%s\n\n%s\n%s\n\n",
		titleStyle.Render("CHITCHAT"),
		quoteStyle.Render(msg),
		hintStyle.Render("To sign in:      chitchat login"),
		hintStyle.Render("New here?        chitchat register"))
}
