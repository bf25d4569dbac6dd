package main

import (
	"fmt"
	"strconv"

	"character-studio/backend/internal/models"
	"character-studio/backend/internal/repository"

	"github.com/spf13/cobra"
)

func newStatusesCommand(ctx *commandContext) *cobra.Command {
	statusesCmd := &cobra.Command{
		Use:   "statuses",
		Short: "Inspect and repair statuses",
	}

	var characterID string
	var genStatus string
	var page int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List statuses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ctx.services(cmd.Context())
			if err != nil {
				return err
			}
			statuses, err := c.Services.Statuses.List(cmd.Context(), repository.StatusFilter{
				CharacterID:      characterID,
				GenerationStatus: models.GenerationStatus(genStatus),
				Page:             page,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), statusTable(statuses))
			return nil
		},
	}
	listCmd.Flags().StringVar(&characterID, "character", "", "Only statuses of this character")
	listCmd.Flags().StringVar(&genStatus, "generation-status", "", "Only statuses in this generation status")
	listCmd.Flags().IntVar(&page, "page", 1, "Page number")
	statusesCmd.AddCommand(listCmd)

	statusesCmd.AddCommand(&cobra.Command{
		Use:   "backfill",
		Short: "Recompute generation_status from generation_step for drifted rows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ctx.services(cmd.Context())
			if err != nil {
				return err
			}
			n, err := c.Services.Statuses.Backfill(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d statuses updated\n", n)
			return nil
		},
	})

	statusesCmd.AddCommand(&cobra.Command{
		Use:   "set-default <status-id>",
		Short: "Make a status its character's feed entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ctx.services(cmd.Context())
			if err != nil {
				return err
			}
			st, err := c.Services.Statuses.SetDefault(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now the default status of character %s\n", st.ID, st.CharacterID)
			return nil
		},
	})

	return statusesCmd
}

func statusTable(statuses []models.Status) string {
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		def := ""
		if s.IsDefault {
			def = "yes"
		}
		rows = append(rows, []string{
			s.ID,
			s.Title,
			string(s.Mood),
			strconv.Itoa(s.GenerationStep),
			string(s.GenerationStatus),
			strconv.Itoa(len(s.VideosPlaylist)),
			def,
		})
	}
	return renderTable(
		[]string{"ID", "Title", "Mood", "Step", "Status", "Videos", "Default"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft},
	)
}

func newDashboardCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show content counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ctx.services(cmd.Context())
			if err != nil {
				return err
			}
			counts, err := c.Services.Dashboard.Counts(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), countsTable(counts))
			return nil
		},
	}
}

func countsTable(c *models.Counts) string {
	n := func(v int64) string { return strconv.FormatInt(v, 10) }
	return renderTable(
		[]string{"Content", "Count"},
		[][]string{
			{"Characters", n(c.Characters)},
			{"Statuses", n(c.Statuses)},
			{"Completed statuses", n(c.CompletedStatuses)},
			{"Prompts", n(c.Prompts)},
			{"Assets", n(c.Assets)},
			{"Templates", n(c.Templates)},
			{"Transformations", n(c.Transformations)},
		},
		[]columnAlignment{alignLeft, alignRight},
	)
}
