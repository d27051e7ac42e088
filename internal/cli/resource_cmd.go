package cli

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/soyeahso/storyforge/internal/domain"
	"github.com/soyeahso/storyforge/internal/library"
	"github.com/spf13/cobra"
)

func newResourceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "resource",
		Aliases: []string{"resources"},
		Short:   "Manage reference resources",
	}

	cmd.AddCommand(newResourceListCmd())
	cmd.AddCommand(newResourceSearchCmd())
	cmd.AddCommand(newResourceShowCmd())
	cmd.AddCommand(newResourceUploadCmd())
	cmd.AddCommand(newResourceDeleteCmd())
	return cmd
}

func newResourceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List resources, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.library.List(cmd.Context())
			if err != nil {
				return err
			}
			printResources(cmd.OutOrStdout(), list)
			return nil
		},
	}
}

func newResourceSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Find resources whose title, description, or content contains the query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.library.Search(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			printResources(cmd.OutOrStdout(), list)
			return nil
		},
	}
}

func newResourceShowCmd() *cobra.Command {
	var content bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			r, err := a.library.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Resource: %s (%s)\n", r.Title, r.ID)
			fmt.Fprintf(w, "  Type:    %s\n", r.Type)
			fmt.Fprintf(w, "  File:    %s (%d bytes)\n", r.FileName, r.FileSize)
			if r.Description != "" {
				fmt.Fprintf(w, "  About:   %s\n", r.Description)
			}
			fmt.Fprintf(w, "  Created: %s\n", r.CreatedAt.Local().Format("2006-01-02 15:04"))
			if content {
				fmt.Fprintln(w)
				fmt.Fprintln(w, r.ParsedContent)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&content, "content", false, "print the parsed content")
	return cmd
}

func newResourceUploadCmd() *cobra.Command {
	var (
		title       string
		description string
		mimeType    string
	)

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Parse a PDF, markdown, or text file and store it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			name := filepath.Base(args[0])
			if mimeType == "" {
				mimeType = mime.TypeByExtension(filepath.Ext(name))
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.library.Upload(cmd.Context(), library.UploadRequest{
				Title:       title,
				Description: description,
				FileName:    name,
				MIMEType:    mimeType,
				Data:        data,
			})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Uploaded %s as %s (%s)\n", name, res.Resource.ID, res.Resource.Type)
			if pages, ok := res.Metadata["pages"]; ok {
				fmt.Fprintf(w, "  %v pages parsed\n", pages)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "resource title")
	cmd.Flags().StringVar(&description, "description", "", "resource description")
	cmd.Flags().StringVar(&mimeType, "type", "", "MIME type (default: from the file extension)")
	cmd.MarkFlagRequired("title")
	return cmd
}

func newResourceDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.library.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Resource deleted successfully")
			return nil
		},
	}
}

func printResources(w io.Writer, list []domain.Resource) {
	if len(list) == 0 {
		fmt.Fprintln(w, "  (no resources)")
		return
	}
	for _, r := range list {
		fmt.Fprintf(w, "  %-36s  %-5s  %s\n", r.ID, r.Type, r.Title)
	}
}
