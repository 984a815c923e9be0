package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chitchat/chitchat/pkg/domain"
)

func newBotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Configure and talk to AI bots",
	}
	cmd.AddCommand(newBotListCmd(), newBotConfigureCmd(), newBotAskCmd())
	return cmd
}

func newBotListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured bots",
		Args:  cobra.NoArgs,
		RunE: withSession(func(cmd *cobra.Command, a *app, _ []string) error {
			bots, err := a.client.ListBots(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(bots) == 0 {
				fmt.Fprintln(out, "No bots yet. Add one with chitchat bot configure.")
				return nil
			}
			for _, b := range bots {
				fmt.Fprintf(out, "%-20s  %-8s  %-24s  %s\n", truncate(b.Name, 20), b.Provider, truncate(b.Model, 24), b.ID)
			}
			return nil
		}),
	}
}

func newBotConfigureCmd() *cobra.Command {
	var cfg domain.BotConfig
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Register a bot with a provider, model and API key",
		Args:  cobra.NoArgs,
		RunE: withSession(func(cmd *cobra.Command, a *app, _ []string) error {
			p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			var err error
			if cfg.Name, err = p.Line("Bot name", cfg.Name); err != nil {
				return err
			}
			if cfg.Provider, err = p.Line("Provider (gemini, openai, mistral)", cfg.Provider); err != nil {
				return err
			}
			cfg.Provider = strings.ToLower(cfg.Provider)
			if cfg.Model, err = p.Line("Model", cfg.Model); err != nil {
				return err
			}
			if cfg.APIKey, err = p.Secret("API key", cfg.APIKey); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			bot, err := a.client.ConfigureBot(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Bot %s is ready (%s).\n", bot.Name, bot.ID)
			return nil
		}),
	}
	cmd.Flags().StringVar(&cfg.Name, "name", "", "bot name")
	cmd.Flags().StringVar(&cfg.Provider, "provider", "", "gemini, openai or mistral")
	cmd.Flags().StringVar(&cfg.Model, "model", "", "provider model name")
	cmd.Flags().StringVar(&cfg.APIKey, "api-key", "", "provider API key (prompted when empty)")
	return cmd
}

func newBotAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <bot-id> <prompt>",
		Short: "Ask a bot a one-off question",
		Args:  cobra.MinimumNArgs(2),
		RunE: withSession(func(cmd *cobra.Command, a *app, args []string) error {
			reply, err := a.client.GenerateBotResponse(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		}),
	}
}
