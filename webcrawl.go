// Package webcrawl provides a polite, breadth-first web crawler.
// Given a seed URL it walks a site up to a configurable depth, honours
// robots.txt, deduplicates pages, extracts links and searches page text
// for target terms while streaming results and progress to its caller.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., http/, goquery/, sqlite/).
package webcrawl
