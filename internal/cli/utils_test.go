package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hyperjump/seek/internal/models"
)

func testReport() *SearchReport {
	return &SearchReport{
		Query:     "cat | dog",
		Directory: "/data",
		ElapsedMS: 42,
		Total:     2,
		Results: []*models.SearchResult{
			{
				Object:     &models.FileSystemObject{Name: "cat.jpg", Path: "/data/photos/cat.jpg", Parent: "/data/photos", Kind: models.KindFile},
				Relevance:  65,
				Highlights: []models.MatchSpan{{Start: 0, End: 3}},
			},
			{
				Object: &models.FileSystemObject{
					Name: "dogs", Path: "/data/dogs", Parent: "/data", Kind: models.KindSymlink,
					LinkTarget: &models.FileSystemObject{Name: "dogs", Path: "/media/dogs", Kind: models.KindDirectory},
				},
				Relevance: 65,
			},
		},
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"JSON", OutputJSON, false},
		{"compact", OutputCompact, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseOutputFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWriteSearchResults_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, testReport(), OutputJSON); err != nil {
		t.Fatalf("WriteSearchResults(json): %v", err)
	}
	var decoded SearchReport
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Query != "cat | dog" || decoded.Total != 2 || len(decoded.Results) != 2 {
		t.Errorf("decoded = %+v", decoded)
	}
	if decoded.Results[1].Object.LinkTarget == nil || decoded.Results[1].Object.LinkTarget.Path != "/media/dogs" {
		t.Errorf("link target lost: %+v", decoded.Results[1].Object)
	}
}

func TestWriteSearchResults_JSON_empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, &SearchReport{Query: "q"}, OutputJSON); err != nil {
		t.Fatalf("WriteSearchResults(json): %v", err)
	}
	if !strings.Contains(buf.String(), `"results": []`) {
		t.Errorf("empty results should encode as []:\n%s", buf.String())
	}
}

func TestWriteSearchResults_compact(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, testReport(), OutputCompact); err != nil {
		t.Fatalf("WriteSearchResults(compact): %v", err)
	}
	want := "/data/photos/cat.jpg\n/data/dogs\n"
	if buf.String() != want {
		t.Errorf("compact output = %q, want %q", buf.String(), want)
	}
}

func TestWriteSearchResults_text(t *testing.T) {
	report := testReport()
	report.Cancelled = true
	report.SnapshotID = "snap-1"
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, report, OutputText); err != nil {
		t.Fatalf("WriteSearchResults(text): %v", err)
	}
	out := buf.String()
	for _, sub := range []string{"Found 2 results", "cat | dog", "42ms", "(cancelled)", "[cat].jpg", "symlink -> /media/dogs", "/data/photos", "seek restore snap-1"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
}

func TestHighlightName(t *testing.T) {
	tests := []struct {
		name  string
		spans []models.MatchSpan
		want  string
	}{
		{"cat.jpg", nil, "cat.jpg"},
		{"cat.jpg", []models.MatchSpan{{Start: 0, End: 3}}, "[cat].jpg"},
		{"cat.jpg", []models.MatchSpan{{Start: 0, End: 3}, {Start: 4, End: 7}}, "[cat].[jpg]"},
		{"cat.jpg", []models.MatchSpan{{Start: 5, End: 20}}, "cat.jpg"},
		{"cat.jpg", []models.MatchSpan{{Start: 2, End: 2}}, "cat.jpg"},
	}
	for _, tt := range tests {
		if got := HighlightName(tt.name, tt.spans); got != tt.want {
			t.Errorf("HighlightName(%q, %v) = %q, want %q", tt.name, tt.spans, got, tt.want)
		}
	}
}

func TestWriteRecentQueries(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRecentQueries(&buf, []string{"photo", "invoice"}, OutputText); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "photo\ninvoice\n" {
		t.Errorf("text output = %q", buf.String())
	}

	buf.Reset()
	if err := WriteRecentQueries(&buf, nil, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No recent queries") {
		t.Errorf("empty text output = %q", buf.String())
	}

	buf.Reset()
	if err := WriteRecentQueries(&buf, nil, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded map[string][]string
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["queries"] == nil || len(decoded["queries"]) != 0 {
		t.Errorf("json output = %s", buf.String())
	}
}

func TestWriteSnapshots(t *testing.T) {
	snaps := []*models.Snapshot{
		{ID: "a", Directory: "/data", Query: models.NewQuery([]string{"cat"}, false), CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{ID: "b", Directory: "/media", Query: models.NewQuery([]string{"dog", "bird"}, false), Results: []*models.SearchResult{{}}},
	}
	var buf bytes.Buffer
	if err := WriteSnapshots(&buf, snaps, OutputCompact); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff("a\nb\n", buf.String()); diff != "" {
		t.Errorf("compact mismatch (-want +got):\n%s", diff)
	}

	buf.Reset()
	if err := WriteSnapshots(&buf, snaps, OutputText); err != nil {
		t.Fatal(err)
	}
	for _, sub := range []string{"dog | bird", "/media", "1 results"} {
		if !strings.Contains(buf.String(), sub) {
			t.Errorf("text output missing %q:\n%s", sub, buf.String())
		}
	}

	buf.Reset()
	if err := WriteSnapshots(&buf, nil, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No saved snapshots") {
		t.Errorf("empty output = %q", buf.String())
	}
}

func TestAskConfirmation(t *testing.T) {
	tests := []struct {
		input   string
		want    bool
		wantErr error
	}{
		{"y\n", true, nil},
		{"YES\n", true, nil},
		{"yes", true, nil},
		{"n\n", false, nil},
		{"\n", false, nil},
		{"", false, ErrNoAnswer},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		got, err := AskConfirmation(strings.NewReader(tt.input), &out, []string{"ab"}, 3)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("AskConfirmation(%q) error = %v, want %v", tt.input, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("AskConfirmation(%q) = %v, want %v", tt.input, got, tt.want)
		}
		if !strings.Contains(out.String(), `"ab"`) || !strings.Contains(out.String(), "3 characters") {
			t.Errorf("prompt = %q", out.String())
		}
	}
}

func TestTerminalObserver(t *testing.T) {
	var buf bytes.Buffer
	o := NewTerminalObserver(&buf, false)
	o.SearchStarted(models.NewQuery([]string{"cat"}, false), "/data")
	o.Progress(3)
	if err := o.DismissProgress(); err != nil {
		t.Fatal(err)
	}
	select {
	case <-o.Finished():
		t.Fatal("finished before results")
	default:
	}
	o.ResultsRendered(nil)
	o.EmptyResults()
	o.EmptyResults()
	select {
	case <-o.Finished():
	default:
		t.Fatal("not finished after results")
	}
	cause := errors.New("boom")
	o.Notify(cause)
	if !errors.Is(o.Err(), cause) {
		t.Errorf("Err() = %v", o.Err())
	}
	for _, sub := range []string{"Searching /data for cat", "Found 3 items", "Search failed: boom"} {
		if !strings.Contains(buf.String(), sub) {
			t.Errorf("output missing %q:\n%s", sub, buf.String())
		}
	}
}

func TestTerminalObserver_FinishesOnFailure(t *testing.T) {
	var buf bytes.Buffer
	o := NewTerminalObserver(&buf, true)
	o.Notify(errors.New("permission denied"))
	select {
	case <-o.Finished():
	default:
		t.Fatal("not finished after failure")
	}
	if !strings.Contains(buf.String(), "permission denied") {
		t.Errorf("failure not written in quiet mode: %q", buf.String())
	}
}

func TestTerminalObserver_Quiet(t *testing.T) {
	var buf bytes.Buffer
	o := NewTerminalObserver(&buf, true)
	o.SearchStarted(models.NewQuery([]string{"cat"}, false), "/data")
	o.Progress(3)
	if err := o.DismissProgress(); err != nil {
		t.Fatal(err)
	}
	o.EmptyResults()
	if buf.Len() != 0 {
		t.Errorf("quiet observer wrote %q", buf.String())
	}
}
