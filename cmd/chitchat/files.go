package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newFilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Manage message attachments",
	}
	cmd.AddCommand(newFilesListCmd(), newFilesUploadCmd(), newFilesDownloadCmd(), newFilesRemoveCmd())
	return cmd
}

func newFilesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls <message-id>",
		Short: "List the files attached to a message",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(cmd *cobra.Command, a *app, args []string) error {
			list, err := a.client.ListAttachments(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No attachments.")
				return nil
			}
			for _, f := range list {
				fmt.Fprintf(out, "%-32s  %9s  %-14s  %s\n",
					truncate(f.FileName, 32), humanize.Bytes(uint64(max(f.Size, 0))), humanize.Time(f.UploadedAt), f.ID)
			}
			return nil
		}),
	}
}

func newFilesUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <message-id> <path>",
		Short: "Attach a file to a message",
		Args:  cobra.ExactArgs(2),
		RunE: withSession(func(cmd *cobra.Command, a *app, args []string) error {
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close() //nolint:errcheck // read-only
			att, err := a.client.UploadFile(cmd.Context(), args[0], filepath.Base(args[1]), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s (%s) as %s.\n", att.FileName, humanize.Bytes(uint64(max(att.Size, 0))), att.ID)
			return nil
		}),
	}
}

func newFilesDownloadCmd() *cobra.Command {
	var dest string
	cmd := &cobra.Command{
		Use:   "download <file-name>",
		Short: "Download a stored file",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(cmd *cobra.Command, a *app, args []string) error {
			if dest == "" {
				dest = filepath.Base(args[0])
			}
			f, err := os.Create(dest)
			if err != nil {
				return err
			}
			n, err := a.client.DownloadFile(cmd.Context(), args[0], f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				os.Remove(dest) //nolint:errcheck // partial download
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s).\n", dest, humanize.Bytes(uint64(n)))
			return nil
		}),
	}
	cmd.Flags().StringVarP(&dest, "output", "o", "", "destination path (defaults to the file name)")
	return cmd
}

func newFilesRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <attachment-id>",
		Short: "Delete an attachment",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(cmd *cobra.Command, a *app, args []string) error {
			if err := a.client.DeleteAttachment(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Attachment deleted.")
			return nil
		}),
	}
}
