package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

const (
	defaultAddr = "http://127.0.0.1:8080"
	tokenEnv    = "CRONCLAW_TOKEN"
)

// clientFlags are shared by every jobs subcommand.
type clientFlags struct {
	addr    string
	token   string
	retries int
}

func (f *clientFlags) client() (*apiClient, error) {
	return newAPIClient(f.addr, f.token, f.retries)
}

func jobsCmd() *cobra.Command {
	flags := &clientFlags{}
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage scheduled jobs on a running daemon",
	}
	cmd.PersistentFlags().StringVar(&flags.addr, "addr", defaultAddr, "Gateway address of the running daemon")
	cmd.PersistentFlags().StringVar(&flags.token, "token", os.Getenv(tokenEnv), "Bearer token (default $"+tokenEnv+")")
	cmd.PersistentFlags().IntVar(&flags.retries, "retries", 2, "Retries on connection errors and 5xx responses")
	cmd.AddCommand(jobsListCmd(flags), jobsAddCmd(flags), jobsRemoveCmd(flags))
	return cmd
}

func jobsListCmd(flags *clientFlags) *cobra.Command {
	var channelID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scheduled jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := flags.client()
			if err != nil {
				return err
			}
			jobs, err := c.listJobs(cmd.Context(), channelID)
			if err != nil {
				return err
			}
			renderJobs(cmd.OutOrStdout(), jobs)
			return nil
		},
	}
	cmd.Flags().StringVar(&channelID, "channel", "", "Only list jobs of this channel")
	return cmd
}

func jobsAddCmd(flags *clientFlags) *cobra.Command {
	var (
		in      jobInput
		noInput bool
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Schedule a prompt on a channel",
		Long: `Schedule a prompt on a channel. The schedule is a cron expression with
five fields, an optional leading seconds field, or a descriptor such as @daily.
Missing fields are asked for interactively unless --no-input is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !in.complete() {
				if noInput {
					return errors.New("--channel, --schedule and --prompt are required with --no-input")
				}
				if err := promptJob(&in); err != nil {
					return err
				}
			}
			if err := in.validate(); err != nil {
				return err
			}

			c, err := flags.client()
			if err != nil {
				return err
			}
			job, err := c.addJob(cmd.Context(), in.channelID, newJob{
				Schedule:    in.schedule,
				Prompt:      in.prompt,
				Description: in.description,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Scheduled job %s on channel %s\n", job.ID, job.ChannelID)
			if job.NextRun != nil {
				fmt.Fprintf(out, "Next run: %s\n", job.NextRun.Local().Format(time.RFC1123))
			}
			if job.Warning != "" {
				fmt.Fprintf(out, "Warning: %s\n", job.Warning)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&in.channelID, "channel", "", "Target channel ID")
	cmd.Flags().StringVar(&in.schedule, "schedule", "", "Cron expression")
	cmd.Flags().StringVar(&in.prompt, "prompt", "", "Prompt sent to the agent")
	cmd.Flags().StringVar(&in.description, "description", "", "Optional description")
	cmd.Flags().BoolVar(&noInput, "no-input", false, "Fail instead of asking for missing fields")
	return cmd
}

func jobsRemoveCmd(flags *clientFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <job-id>",
		Aliases: []string{"rm"},
		Short:   "Remove a scheduled job",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.client()
			if err != nil {
				return err
			}
			if err := c.removeJob(cmd.Context(), args[0]); err != nil {
				if isNotFound(err) {
					return fmt.Errorf("job %s not found", args[0])
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed job %s\n", args[0])
			return nil
		},
	}
}

// maxPromptWidth truncates prompts in the list table.
const maxPromptWidth = 40

func renderJobs(w io.Writer, jobs []jobView) {
	if len(jobs) == 0 {
		fmt.Fprintln(w, "No scheduled jobs.")
		return
	}
	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		next := "-"
		if j.NextRun != nil {
			next = j.NextRun.Local().Format("2006-01-02 15:04:05")
		}
		text := j.Description
		if text == "" {
			text = j.Prompt
		}
		rows = append(rows, []string{j.ID, j.ChannelID, j.Schedule, next, truncate(text, maxPromptWidth)})
	}
	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "CHANNEL", "SCHEDULE", "NEXT RUN", "PROMPT").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})
	fmt.Fprintln(w, t.String())
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
