package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/danmaku/internal/feed"
)

// PostResult is the output of the post command.
type PostResult struct {
	ID      string `json:"id,omitempty"`
	Content string `json:"content,omitempty"`
	TS      int64  `json:"ts,omitempty"`
	Deleted *bool  `json:"deleted,omitempty"`
}

// DeleteResult is the output of the delete command.
type DeleteResult struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// NewPostCommand creates the post command.
func NewPostCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "post <server-url> <content...>",
		Short: "Post a message",
		Long: `Post a message to an event server.

Content of the form "!delete <id>" deletes <id> instead.

Example:
  danmaku post http://localhost:8000 hello wall
  danmaku post http://localhost:8000 '!delete a1b2c3d4'`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPost(rootOpts, args[0], strings.Join(args[1:], " "), cmd)
		},
	}
}

func runPost(opts *RootOptions, baseURL, content string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	client, err := feed.NewClient(baseURL)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "invalid server url", err)
	}

	resp, err := client.Post(cmd.Context(), content)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeRequestFailed, "post failed", err)
	}

	switch {
	case resp.Item != nil:
		formatter.VerboseLog("posted %q", resp.Item.Content)
		return formatter.Success(PostResult{
			ID:      resp.Item.ID,
			Content: resp.Item.Content,
			TS:      resp.Item.TS,
		}, fmt.Sprintf("posted %s", resp.Item.ID))
	case resp.Deleted != nil:
		text := "nothing to delete"
		if *resp.Deleted {
			text = "deleted"
		}
		return formatter.Success(PostResult{Deleted: resp.Deleted}, text)
	default:
		return formatter.Success(PostResult{}, "posted")
	}
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <server-url> <id>",
		Short: "Delete a message",
		Long: `Delete a message from an event server. Deleting an unknown id
succeeds and reports deleted=false.

Example:
  danmaku delete http://localhost:8000 a1b2c3d4`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(rootOpts, args[0], args[1], cmd)
		},
	}
}

func runDelete(opts *RootOptions, baseURL, id string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	client, err := feed.NewClient(baseURL)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "invalid server url", err)
	}

	deleted, err := client.Delete(cmd.Context(), id)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeRequestFailed, "delete failed", err)
	}

	text := fmt.Sprintf("%s: nothing to delete", id)
	if deleted {
		text = fmt.Sprintf("%s: deleted", id)
	}
	return formatter.Success(DeleteResult{ID: id, Deleted: deleted}, text)
}
