package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chitchat/chitchat/pkg/domain"
)

var errSignedOut = errors.New("not signed in · run chitchat login")

func newLoginCmd() *cobra.Command {
	var identifier, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email or username and password",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			id, err := p.Line("Email or username", identifier)
			if err != nil {
				return err
			}
			pw, err := p.Secret("Password", password)
			if err != nil {
				return err
			}
			u, err := a.session.Login(cmd.Context(), domain.Credentials{Identifier: id, Password: pw})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (@%s)\n", u.Name(), u.Handle)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&identifier, "user", "u", "", "email or username")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when empty)")
	return cmd
}

func newRegisterCmd() *cobra.Command {
	var reg domain.Registration
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			var err error
			if reg.Username, err = p.Line("Username", reg.Username); err != nil {
				return err
			}
			if reg.Email, err = p.Line("Email", reg.Email); err != nil {
				return err
			}
			if reg.DisplayName, err = p.Line("Display name", reg.DisplayName); err != nil {
				return err
			}
			if reg.Password, err = p.Secret("Password", reg.Password); err != nil {
				return err
			}
			u, err := a.session.Register(cmd.Context(), reg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Welcome, %s. You are signed in.\n", u.Name())
			return nil
		}),
	}
	cmd.Flags().StringVar(&reg.Username, "username", "", "username")
	cmd.Flags().StringVar(&reg.Email, "email", "", "email address")
	cmd.Flags().StringVar(&reg.DisplayName, "name", "", "display name")
	cmd.Flags().StringVar(&reg.Password, "password", "", "password (prompted when empty)")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear your session",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			if _, ok, _ := a.session.Restore(cmd.Context()); !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Already logged out.")
				return nil
			}
			a.session.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		}),
	}
}

func newWhoamiCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show, or with --name change, your profile",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			u, err := a.requireSession(cmd.Context())
			if err != nil {
				return err
			}
			if name != "" {
				if u, err = a.session.UpdateProfile(cmd.Context(), domain.ProfileUpdate{DisplayName: name}); err != nil {
					return err
				}
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (@%s)\n", u.Name(), u.Handle)
			if u.Email != "" {
				fmt.Fprintf(out, "  email  %s\n", u.Email)
			}
			fmt.Fprintf(out, "  id     %s\n", u.ID)
			fmt.Fprintf(out, "  server %s\n", a.cfg.APIURL)
			return nil
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "new display name")
	return cmd
}
