// Package e2e provides end-to-end tests over a generated directory tree and multiple queries.
package e2e

import (
	"fmt"
	"path"
)

// Entry is one directory or file of the corpus tree, relative to the tree root.
type Entry struct {
	Path string
	Dir  bool
	// Link, when set, makes the entry a symlink to this root-relative path.
	Link string
}

// QueryTestCase defines query terms and the entries that must appear in the results.
// When Top is set it must be the highest ranked result.
type QueryTestCase struct {
	Terms         []string
	ExpectedPaths []string
	Top           string
	Description   string
}

// Corpus holds the tree and query test cases for E2E tests.
type Corpus struct {
	Entries      []Entry
	TestCases    []QueryTestCase
	TotalEntries int
	TotalQueries int
}

// BuildCorpus returns a tree of named entries plus filler files, and query test cases whose
// expected entries are known by construction.
func BuildCorpus() *Corpus {
	entries := buildEntries(fillerFiles)
	cases := buildQueryTestCases()
	return &Corpus{
		Entries:      entries,
		TestCases:    cases,
		TotalEntries: len(entries),
		TotalQueries: len(cases),
	}
}

const fillerFiles = 80

// namedEntries carry distinctive names the query cases look for.
var namedEntries = []Entry{
	{Path: "photos", Dir: true},
	{Path: "photos/2023", Dir: true},
	{Path: "photos/2023/beach-sunset.jpg"},
	{Path: "photos/2023/cat-on-sofa.jpg"},
	{Path: "photos/2024", Dir: true},
	{Path: "photos/2024/dog-park.png"},
	{Path: "photos/2024/cat.jpg"},
	{Path: "docs", Dir: true},
	{Path: "docs/invoices", Dir: true},
	{Path: "docs/invoices/invoice-2024-01.pdf"},
	{Path: "docs/invoices/invoice-2024-02.pdf"},
	{Path: "docs/taxes", Dir: true},
	{Path: "docs/taxes/tax-return-2023.pdf"},
	{Path: "music", Dir: true},
	{Path: "music/jazz", Dir: true},
	{Path: "music/jazz/blue-in-green.flac"},
	{Path: "music/jazz/so-what.flac"},
	{Path: "projects", Dir: true},
	{Path: "projects/seek", Dir: true},
	{Path: "projects/seek/README.md"},
	{Path: "projects/seek/main.go"},
	{Path: "shortcuts", Dir: true},
	{Path: "shortcuts/jazz-library", Link: "music/jazz"},
	{Path: ".cache", Dir: true},
	{Path: ".cache/invoice-draft.pdf"},
}

func buildEntries(fillers int) []Entry {
	entries := append([]Entry(nil), namedEntries...)
	entries = append(entries, Entry{Path: "archive", Dir: true})
	for i := 0; i < fillers; i++ {
		batch := fmt.Sprintf("archive/batch-%d", i/20)
		if i%20 == 0 {
			entries = append(entries, Entry{Path: batch, Dir: true})
		}
		entries = append(entries, Entry{Path: path.Join(batch, fmt.Sprintf("note-%03d.txt", i))})
	}
	return entries
}

func buildQueryTestCases() []QueryTestCase {
	return []QueryTestCase{
		{
			Terms:         []string{"invoice"},
			ExpectedPaths: []string{"docs/invoices", "docs/invoices/invoice-2024-01.pdf", "docs/invoices/invoice-2024-02.pdf"},
			Description:   "substring matches files and the directory",
		},
		{
			Terms:         []string{"sunset"},
			ExpectedPaths: []string{"photos/2023/beach-sunset.jpg"},
			Top:           "photos/2023/beach-sunset.jpg",
			Description:   "single file",
		},
		{
			Terms:         []string{"cat"},
			ExpectedPaths: []string{"photos/2024/cat.jpg", "photos/2023/cat-on-sofa.jpg"},
			Top:           "photos/2024/cat.jpg",
			Description:   "exact base name ranks first",
		},
		{
			Terms:         []string{"dog", "sunset"},
			ExpectedPaths: []string{"photos/2024/dog-park.png", "photos/2023/beach-sunset.jpg"},
			Description:   "terms are OR-ed",
		},
		{
			Terms:         []string{"*.flac"},
			ExpectedPaths: []string{"music/jazz/blue-in-green.flac", "music/jazz/so-what.flac"},
			Description:   "glob term",
		},
		{
			Terms:         []string{"JAZZ"},
			ExpectedPaths: []string{"music/jazz", "shortcuts/jazz-library"},
			Top:           "music/jazz",
			Description:   "case-insensitive, symlinks included",
		},
		{
			Terms:         []string{"note-07"},
			ExpectedPaths: []string{"archive/batch-3/note-070.txt", "archive/batch-3/note-079.txt"},
			Description:   "filler files",
		},
		{
			Terms:         []string{"readme"},
			ExpectedPaths: []string{"projects/seek/README.md"},
			Top:           "projects/seek/README.md",
			Description:   "extension ignored for base name",
		},
	}
}
