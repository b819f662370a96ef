package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/fwojciec/webcrawl"
	"github.com/fwojciec/webcrawl/crawl"
)

// writeCSV writes rows with a header line.
func writeCSV(w io.Writer, rows []webcrawl.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(webcrawl.RowHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.Strings()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeTable renders rows as aligned columns.
func writeTable(w io.Writer, rows []webcrawl.Row) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "URL\tDEPTH\tSTATUS\tLINKS\tMATCHES\tTITLE")
	for _, r := range rows {
		matches := "-"
		if r.Matched {
			matches = strconv.Itoa(r.MatchCount)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%s\t%s\n",
			crawl.ShortURL(r.URL, 70), r.Depth, r.Status, r.LinkCount, matches, r.Title)
	}
	return tw.Flush()
}
