package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/recapd/recapd/internal/jobstore"
	"github.com/recapd/recapd/internal/models"
	"github.com/recapd/recapd/internal/storage"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and manage job history",
}

var jobsListFlags struct {
	limit  int
	status string
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent jobs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		history, _, err := openStores()
		if err != nil {
			return err
		}

		records, err := history.List(jobstore.ListOptions{
			Limit:  jobsListFlags.limit,
			Status: models.JobStatus(jobsListFlags.status),
		})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "JOB ID\tSTATUS\tSTARTED\tINPUT")
		for _, rec := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				rec.JobID, rec.Status, rec.StartedAt.Format(time.RFC3339), rec.InputFile)
		}
		return w.Flush()
	},
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show one job record as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		history, _, err := openStores()
		if err != nil {
			return err
		}

		rec, err := history.Get(args[0])
		if err != nil {
			return err
		}
		if rec == nil {
			return fmt.Errorf("job %s not found", args[0])
		}

		data, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

var jobsCleanupDays int

var jobsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete job records older than the retention period",
	RunE: func(cmd *cobra.Command, _ []string) error {
		history, _, err := openStores()
		if err != nil {
			return err
		}

		retention := cfg.Jobs.HistoryRetention()
		if cmd.Flags().Changed("days") {
			retention = time.Duration(jobsCleanupDays) * 24 * time.Hour
		}

		n, err := history.CleanupOlderThan(retention)
		if err != nil {
			return err
		}
		fmt.Printf("removed %d job record(s)\n", n)
		return nil
	},
}

var jobsResumeCheckCmd = &cobra.Command{
	Use:   "resume-check",
	Short: "List jobs a previous process left interrupted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, layout, err := openStores()
		if err != nil {
			return err
		}

		states, err := jobstore.InterruptedJobs(layout, logger)
		if err != nil {
			return err
		}
		if len(states) == 0 {
			fmt.Println("no interrupted jobs")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "JOB ID\tLAST UPDATE\tLAST STEP")
		for _, s := range states {
			step, _ := s.Fields["current_step"].(string)
			fmt.Fprintf(w, "%s\t%s\t%s\n", s.JobID, s.UpdatedAt.Format(time.RFC3339), step)
		}
		return w.Flush()
	},
}

var jobsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate job history statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		history, _, err := openStores()
		if err != nil {
			return err
		}

		stats, err := history.Stats()
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

func openStores() (*jobstore.HistoryStore, *storage.Layout, error) {
	layout, err := storage.NewLayout(cfg.Storage.BaseDir)
	if err != nil {
		return nil, nil, err
	}
	return jobstore.NewHistoryStore(layout, logger), layout, nil
}

func init() {
	jobsListCmd.Flags().IntVar(&jobsListFlags.limit, "limit", 20, "maximum records to list")
	jobsListCmd.Flags().StringVar(&jobsListFlags.status, "status", "", "filter by status (started, completed, failed, interrupted)")
	jobsCleanupCmd.Flags().IntVar(&jobsCleanupDays, "days", 0, "override the retention period in days")

	jobsCmd.AddCommand(jobsListCmd, jobsShowCmd, jobsCleanupCmd, jobsResumeCheckCmd, jobsStatsCmd)
	rootCmd.AddCommand(jobsCmd)
}
