// Package main provides the airline entry CLI.
//
// It opens the airline booking page in a real browser, fills the search form,
// waits for the person at the keyboard to run the search and saves a
// screenshot and the HTML of the results page.
//
// Usage:
//
//	entry
//	entry --origin ORD --destination HND --date 06/01/2026
//	entry --config entry.yaml --keep-open
package main

func main() {
	Execute()
}
