package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"character-studio/backend/internal/onboarding"

	"github.com/spf13/cobra"
)

func newOnboardingCommand(ctx *commandContext) *cobra.Command {
	onboardingCmd := &cobra.Command{
		Use:   "onboarding",
		Short: "Manage the consumer onboarding flow",
	}

	var dryRun bool
	seedCmd := &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Validate a YAML file of step configs and store it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := readSeed(args[0])
			if err != nil {
				return err
			}
			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "%d step configs are valid\n", len(seed))
				return nil
			}

			c, err := ctx.services(cmd.Context())
			if err != nil {
				return err
			}
			for _, id := range onboarding.Steps {
				raw, ok := seed[id]
				if !ok {
					continue
				}
				if _, err := c.Services.Onboarding.Put(cmd.Context(), id, raw); err != nil {
					return fmt.Errorf("store %s: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "stored %s\n", id)
			}
			return nil
		},
	}
	seedCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate only")
	onboardingCmd.AddCommand(seedCmd)

	var seedFile string
	previewCmd := &cobra.Command{
		Use:   "preview",
		Short: "Play the flow in the terminal; press enter to advance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configs := onboarding.Defaults()
			if seedFile != "" {
				seed, err := readSeed(seedFile)
				if err != nil {
					return err
				}
				for id, raw := range seed {
					cfg, err := onboarding.Decode(id, raw)
					if err != nil {
						return err
					}
					configs[id] = cfg
				}
			}
			return preview(cmd.Context(), configs, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	previewCmd.Flags().StringVarP(&seedFile, "file", "f", "", "Seed file to preview instead of the defaults")
	onboardingCmd.AddCommand(previewCmd)

	onboardingCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the stored configs as the app receives them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ctx.services(cmd.Context())
			if err != nil {
				return err
			}
			steps, err := c.Services.Onboarding.Steps(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(steps)
		},
	})

	return onboardingCmd
}

var errInputClosed = errors.New("input ended before onboarding completed")

func readSeed(path string) (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	return onboarding.ParseSeed(data)
}

// preview runs the sequencer with each input line as one interaction
func preview(ctx context.Context, configs map[string]any, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	input := make(chan struct{})
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case input <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
		cancel(errInputClosed)
	}()

	show := func(msg string) {
		if msg != "" {
			fmt.Fprintln(out, "  "+msg)
		}
	}
	seq := onboarding.NewSequencer(onboarding.Players(configs, show, input))
	seq.OnStep = func(id string) {
		fmt.Fprintf(out, "== %s ==\n", id)
	}
	if err := seq.Run(ctx); err != nil {
		if cause := context.Cause(ctx); cause != nil {
			return cause
		}
		return err
	}
	fmt.Fprintln(out, "onboarding complete")
	return nil
}
