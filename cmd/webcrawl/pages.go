package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fwojciec/webcrawl"
)

// Run executes the pages command.
func (c *PagesCmd) Run(deps *Dependencies) error {
	pages, err := findPages(deps, c.ID, c.Matched)
	if err != nil {
		return err
	}

	if len(pages) == 0 {
		fmt.Fprintln(deps.Stdout, "No pages found.")
		return nil
	}
	return writeTable(deps.Stdout, webcrawl.Rows(pages))
}

// Run executes the export command.
func (c *ExportCmd) Run(deps *Dependencies) error {
	pages, err := findPages(deps, c.ID, c.Matched)
	if err != nil {
		return err
	}

	var w io.Writer = deps.Stdout
	if c.Output != "" {
		f, err := os.Create(c.Output)
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", err)
			return err
		}
		defer f.Close()
		w = f
	}

	if err := writeCSV(w, webcrawl.Rows(pages)); err != nil {
		return err
	}
	if c.Output != "" {
		fmt.Fprintf(deps.Stderr, "Wrote %d rows to %s\n", len(pages), c.Output)
	}
	return nil
}

// findPages checks that the job exists before listing its pages.
func findPages(deps *Dependencies, id string, matchedOnly bool) ([]*webcrawl.PageResult, error) {
	if _, err := deps.Jobs.FindJobByID(deps.Ctx, id); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", webcrawl.ErrorMessage(err))
		return nil, err
	}

	filter := webcrawl.PageFilter{JobID: &id}
	if matchedOnly {
		matched := true
		filter.Matched = &matched
	}
	pages, err := deps.Pages.FindPages(deps.Ctx, filter)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", webcrawl.ErrorMessage(err))
		return nil, err
	}
	return pages, nil
}
