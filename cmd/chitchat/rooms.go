package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/chitchat/chitchat/pkg/domain"
)

func newRoomsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "List your rooms",
		Args:  cobra.NoArgs,
		RunE: withSession(func(cmd *cobra.Command, a *app, _ []string) error {
			if err := a.rooms.LoadRooms(cmd.Context()); err != nil {
				return err
			}
			printRooms(cmd.OutOrStdout(), a.rooms.Rooms(), a.selfID())
			return nil
		}),
	}
	cmd.AddCommand(newRoomsHistoryCmd(), newRoomsCreateCmd())
	return cmd
}

func newRoomsHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <room-id>",
		Short: "Print the latest messages of a room",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(cmd *cobra.Command, a *app, args []string) error {
			ctx := cmd.Context()
			if err := a.rooms.LoadRooms(ctx); err != nil {
				return err
			}
			if err := a.rooms.SetActiveRoom(ctx, args[0]); err != nil {
				return err
			}
			rm, _ := a.rooms.Room(args[0])
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n\n", rm.Title(a.selfID()))
			if len(rm.Messages) == 0 {
				fmt.Fprintln(out, "No messages yet.")
			}
			for _, m := range rm.Messages {
				printMessage(out, rm, m)
			}
			return nil
		}),
	}
}

func newRoomsCreateCmd() *cobra.Command {
	var members []string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a group room",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(cmd *cobra.Command, a *app, args []string) error {
			rm, err := a.rooms.CreateRoom(cmd.Context(), args[0], domain.RoomGroup, members)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s) with %d members.\n", rm.Name, rm.ID, len(rm.Members()))
			return nil
		}),
	}
	cmd.Flags().StringSliceVarP(&members, "member", "m", nil, "user id to add (repeatable)")
	return cmd
}

func newSendCmd() *cobra.Command {
	var typ string
	cmd := &cobra.Command{
		Use:   "send <room-id> <message>",
		Short: "Send a message to a room",
		Args:  cobra.MinimumNArgs(2),
		RunE: withSession(func(cmd *cobra.Command, a *app, args []string) error {
			mt, err := domain.ParseMessageType(typ)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := a.rooms.LoadRooms(ctx); err != nil {
				return err
			}
			m, err := a.rooms.SendMessage(ctx, args[0], strings.Join(args[1:], " "), mt)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent (%s).\n", m.ID)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&typ, "type", "t", "text", "message type: text, image or link")
	return cmd
}

func newSearchCmd() *cobra.Command {
	var roomID string
	var page int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search messages in all rooms or one room",
		Args:  cobra.MinimumNArgs(1),
		RunE: withSession(func(cmd *cobra.Command, a *app, args []string) error {
			q := domain.SearchQuery{Query: strings.Join(args, " "), RoomID: roomID}
			q.Page = page
			res, err := a.rooms.SearchMessages(cmd.Context(), q)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(res.Messages) == 0 {
				fmt.Fprintln(out, "No matches.")
				return nil
			}
			for _, m := range res.Messages {
				fmt.Fprintf(out, "%-12s  %s  %s\n", truncate(m.RoomID, 12), senderName(m), m.Preview())
			}
			fmt.Fprintf(out, "\n%d %s · page %d of %d\n", res.Total, pluralize(res.Total, "match", "matches"), res.Page+1, max(res.TotalPages, 1))
			return nil
		}),
	}
	cmd.Flags().StringVarP(&roomID, "room", "r", "", "only search this room")
	cmd.Flags().IntVarP(&page, "page", "p", 0, "zero-based result page")
	return cmd
}

func (a *app) selfID() string {
	u, _ := a.session.Current()
	return u.ID
}

func printRooms(w io.Writer, rooms []domain.Room, selfID string) {
	if len(rooms) == 0 {
		fmt.Fprintln(w, "No rooms yet. Add a friend with chitchat friends add.")
		return
	}
	for _, rm := range rooms {
		last, when := "", ""
		if rm.LastMessage != nil {
			last = rm.LastMessage.Preview()
			when = humanize.Time(rm.LastMessage.CreatedAt)
		}
		fmt.Fprintf(w, "%-24s  %-6s  %-24s  %-14s  %s\n",
			truncate(rm.ID, 24), rm.Kind, truncate(rm.Title(selfID), 24), when, truncate(last, 40))
	}
}

func printMessage(w io.Writer, rm domain.Room, m domain.Message) {
	body := m.Body
	switch {
	case m.Deleted():
		body = "message deleted"
	case m.Edited():
		body += " (edited)"
	}
	name := senderName(m)
	if p, ok := rm.Participant(m.SenderID); ok {
		name = p.User.Name()
	}
	fmt.Fprintf(w, "%s  %s: %s\n", m.CreatedAt.Local().Format("Jan 2 15:04"), name, body)
}

func senderName(m domain.Message) string {
	if m.Sender != nil {
		return m.Sender.Name()
	}
	return m.SenderID
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
