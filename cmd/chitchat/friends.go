package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/chitchat/chitchat/pkg/domain"
)

func newFriendsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "friends",
		Short: "List friends and manage friend requests",
		Args:  cobra.NoArgs,
		RunE: withSession(func(cmd *cobra.Command, a *app, _ []string) error {
			if err := a.dir.LoadFriends(cmd.Context()); err != nil {
				return err
			}
			printFriends(cmd.OutOrStdout(), a.dir.Friends())
			return nil
		}),
	}
	cmd.AddCommand(
		newFriendRequestsCmd(),
		newFriendAddCmd(),
		newFriendAnswerCmd("accept", "Accept a friend request", true),
		newFriendAnswerCmd("reject", "Reject a friend request", false),
		newFriendRemoveCmd(),
		newFriendFindCmd(),
	)
	return cmd
}

func newFriendRequestsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "requests",
		Short: "Show incoming and outgoing friend requests",
		Args:  cobra.NoArgs,
		RunE: withSession(func(cmd *cobra.Command, a *app, _ []string) error {
			if err := a.dir.LoadFriendRequests(cmd.Context()); err != nil {
				return err
			}
			printRequests(cmd.OutOrStdout(), a.dir.Incoming(), a.dir.Outgoing())
			return nil
		}),
	}
}

func newFriendAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <email-or-username>",
		Short: "Send a friend request",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(cmd *cobra.Command, a *app, args []string) error {
			if err := a.dir.SendFriendRequest(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Friend request sent to %s.\n", args[0])
			return nil
		}),
	}
}

func newFriendAnswerCmd(use, short string, accept bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <request-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(cmd *cobra.Command, a *app, args []string) error {
			ctx := cmd.Context()
			if err := a.dir.LoadFriendRequests(ctx); err != nil {
				return err
			}
			answer := a.dir.RejectFriendRequest
			if accept {
				answer = a.dir.AcceptFriendRequest
			}
			if err := answer(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Request %sed.\n", use)
			return nil
		}),
	}
}

func newFriendRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <user-id>",
		Short: "Remove a friend",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(cmd *cobra.Command, a *app, args []string) error {
			ctx := cmd.Context()
			if err := a.dir.LoadFriends(ctx); err != nil {
				return err
			}
			if err := a.dir.RemoveFriend(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Friend removed.")
			return nil
		}),
	}
}

func newFriendFindCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "find <email-or-username>",
		Short: "Look up a user",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(cmd *cobra.Command, a *app, args []string) error {
			ctx := cmd.Context()
			if err := a.dir.LoadFriends(ctx); err != nil {
				return err
			}
			m, found, err := a.dir.FindUser(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !found {
				fmt.Fprintln(out, "User Not Found")
				return nil
			}
			fmt.Fprintf(out, "%s (@%s)  %s  id %s\n", m.User.Name(), m.User.Handle, relationText(m.Relationship), m.User.ID)
			return nil
		}),
	}
}

func printFriends(w io.Writer, friends []domain.User) {
	if len(friends) == 0 {
		fmt.Fprintln(w, "No friends yet. Send a request with chitchat friends add.")
		return
	}
	for _, f := range friends {
		status := "offline"
		if f.Online {
			status = "online"
		}
		fmt.Fprintf(w, "%-24s  @%-20s  %-7s  %s\n", truncate(f.Name(), 24), truncate(f.Handle, 20), status, f.ID)
	}
}

func printRequests(w io.Writer, incoming, outgoing []domain.FriendRequest) {
	if len(incoming) == 0 && len(outgoing) == 0 {
		fmt.Fprintln(w, "No pending requests.")
		return
	}
	for _, r := range incoming {
		fmt.Fprintf(w, "from %-24s  %-14s  %s\n", truncate(r.Sender.Name(), 24), humanize.Time(r.CreatedAt), r.ID)
	}
	for _, r := range outgoing {
		fmt.Fprintf(w, "to   %-24s  %-14s  %s\n", truncate(r.ReceiverID, 24), humanize.Time(r.CreatedAt), r.ID)
	}
}

func relationText(r domain.Relationship) string {
	switch r {
	case domain.RelationFriends:
		return "friends"
	case domain.RelationPending:
		return "request sent"
	case domain.RelationReceived:
		return "wants to be friends"
	default:
		return "not connected"
	}
}
