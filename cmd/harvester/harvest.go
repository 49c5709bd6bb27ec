package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/replythread/harvester/internal/model"
)

// newHarvestCmd groups the two harvest entry points under one parent, the
// way the teacher groups its crawl subcommands.
func newHarvestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Run a one-shot harvest against an account or a single post.",
	}
	cmd.AddCommand(newHarvestAccountCmd())
	cmd.AddCommand(newHarvestPostCmd())
	return cmd
}

func commonFlags(cmd *cobra.Command) {
	cmd.Flags().String("method", "auto", "harvest method: auto, browser, api (or legacy alias puppeteer)")
	cmd.Flags().String("sort", string(model.SortRecent), "reply sort order: recent or top")
	cmd.Flags().Bool("expand-folded", true, "click \"Show more replies\" to expand folded replies")
}

func optionsFromFlags(cmd *cobra.Command) (model.ReplyScrapeOptions, string, error) {
	method, err := cmd.Flags().GetString("method")
	if err != nil {
		return model.ReplyScrapeOptions{}, "", err
	}
	sort, err := cmd.Flags().GetString("sort")
	if err != nil {
		return model.ReplyScrapeOptions{}, "", err
	}
	expand, err := cmd.Flags().GetBool("expand-folded")
	if err != nil {
		return model.ReplyScrapeOptions{}, "", err
	}

	sortMode := model.SortRecent
	if sort == string(model.SortTop) {
		sortMode = model.SortTop
	}

	return model.ReplyScrapeOptions{
		SortMode:            sortMode,
		ExpandFoldedReplies: expand,
	}, method, nil
}

func newHarvestAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account <handle>",
		Short: "Harvest the monitored account's recent posts and their reply threads.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			opts, method, err := optionsFromFlags(cmd)
			if err != nil {
				return err
			}
			maxPosts, err := cmd.Flags().GetInt("max-posts")
			if err != nil {
				return err
			}
			if maxPosts <= 0 {
				maxPosts = appInstance.GetConfig().DefaultMaxPosts
			}

			result := appInstance.GetOrchestrator().ScrapeAccount(cmd.Context(), args[0], maxPosts, opts, method)
			return reportResult(cmd, result)
		},
	}
	commonFlags(cmd)
	cmd.Flags().Int("max-posts", 0, "maximum number of recent posts to harvest (0 = use configured default)")
	return cmd
}

func newHarvestPostCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post <rootID>",
		Short: "Harvest a single root post's reply thread.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			opts, method, err := optionsFromFlags(cmd)
			if err != nil {
				return err
			}

			result := appInstance.GetOrchestrator().ScrapeRootPost(cmd.Context(), args[0], opts, method)
			return reportResult(cmd, result)
		},
	}
	commonFlags(cmd)
	return cmd
}

func reportResult(cmd *cobra.Command, result model.HarvestResult) error {
	if !result.Success {
		return fmt.Errorf("harvest failed via %s: %s", result.Method, result.Error)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "harvest %s complete via %s: %d posts, %d replies\n", result.RunID, result.Method, result.PostsFound, result.RepliesFound)
	return nil
}
