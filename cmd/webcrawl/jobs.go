package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/fwojciec/webcrawl"
)

// Run executes the jobs command.
func (c *JobsCmd) Run(deps *Dependencies) error {
	filter := webcrawl.JobFilter{Limit: c.Limit}
	if c.Status != "" {
		status := webcrawl.JobStatus(c.Status)
		filter.Status = &status
	}

	jobs, err := deps.Jobs.FindJobs(deps.Ctx, filter)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", webcrawl.ErrorMessage(err))
		return err
	}

	if len(jobs) == 0 {
		fmt.Fprintln(deps.Stdout, "No jobs found. Use 'webcrawl crawl' to start one.")
		return nil
	}

	tw := tabwriter.NewWriter(deps.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPAGES\tCREATED\tSEED")
	for _, j := range jobs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			j.ID, j.Status, j.Stats.Pages, j.CreatedAt.Local().Format("2006-01-02 15:04"), j.Spec.SeedURL)
	}
	return tw.Flush()
}

// Run executes the status command.
func (c *StatusCmd) Run(deps *Dependencies) error {
	job, err := deps.Status.FindJobByID(deps.Ctx, c.ID)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", webcrawl.ErrorMessage(err))
		return err
	}

	fmt.Fprintf(deps.Stdout, "Job:        %s\n", job.ID)
	fmt.Fprintf(deps.Stdout, "Seed:       %s\n", job.Spec.SeedURL)
	fmt.Fprintf(deps.Stdout, "Status:     %s\n", job.Status)
	fmt.Fprintf(deps.Stdout, "Pages:      %d (%d failed, %d skipped)\n", job.Stats.Pages, job.Stats.Failed, job.Stats.Skipped)
	fmt.Fprintf(deps.Stdout, "Discovered: %d\n", job.Stats.Discovered)
	fmt.Fprintf(deps.Stdout, "Depth:      %d of %d\n", job.Stats.DepthReached, job.Spec.MaxDepth)
	if job.Message != "" {
		fmt.Fprintf(deps.Stdout, "Message:    %s\n", job.Message)
	}
	return nil
}
