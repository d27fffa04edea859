package trend

import (
	"encoding/json"
	"testing"
)

func sampleRows() []any {
	return []any{
		[]any{"Hollow Knight Silksong", "500K+", "+1,200%", "2 hours ago", []any{"silksong release date", "silksong review"}},
		[]any{nil, "Elden Ring DLC", "200K+", "+800%", "5 hours ago", "Active"},
		[]any{"EA FC 26", "100K+", "+400%", "1 day ago", "Lasted 8 hrs", "ended"},
	}
}

// envelopeLine marshals a trends document into the framed envelope the
// source would send it in.
func envelopeLine(t *testing.T, doc any) string {
	t.Helper()

	inner, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal trends doc: %v", err)
	}
	line, err := json.Marshal([]any{
		[]any{"wrb.fr", "i0OFE", string(inner), nil, nil, nil, "generic"},
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return string(line)
}

func assertSampleRecords(t *testing.T, records []Record) {
	t.Helper()

	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}

	first := records[0]
	if first.Title != "Hollow Knight Silksong" || first.Rank != 1 {
		t.Errorf("first record = %q rank %d, want Hollow Knight Silksong rank 1", first.Title, first.Rank)
	}
	if first.NormalizedTitle != "hollow knight silksong" {
		t.Errorf("normalized title = %q", first.NormalizedTitle)
	}
	if first.SearchVolume != "500K+" || first.GrowthPercent != "+1,200%" {
		t.Errorf("first volume/growth = %q/%q", first.SearchVolume, first.GrowthPercent)
	}
	if first.StartedTime != "2 hours ago" || first.Status != StatusActive {
		t.Errorf("first started/status = %q/%q", first.StartedTime, first.Status)
	}
	if len(first.RelatedQueries) != 2 || first.RelatedQueries[0] != "silksong release date" {
		t.Errorf("first related queries = %v", first.RelatedQueries)
	}

	second := records[1]
	if second.Title != "Elden Ring DLC" || second.Rank != 2 || second.Status != StatusActive {
		t.Errorf("second record = %q rank %d status %q", second.Title, second.Rank, second.Status)
	}

	third := records[2]
	if third.Title != "EA FC 26" || third.Rank != 3 {
		t.Errorf("third record = %q rank %d", third.Title, third.Rank)
	}
	if third.Status != StatusEnded || third.Duration != "Lasted 8 hrs" {
		t.Errorf("third status/duration = %q/%q", third.Status, third.Duration)
	}
	if third.StartedTime != "1 day ago" {
		t.Errorf("third started = %q", third.StartedTime)
	}
}

func TestParsePayload(t *testing.T) {
	payload := ")]}'\n\n" + envelopeLine(t, []any{nil, sampleRows()})

	assertSampleRecords(t, ParsePayload(payload, "US"))
}

func TestParsePayloadWithStructuralNoise(t *testing.T) {
	// Extra table nesting plus numeric framing lines between chunks.
	doc := []any{nil, []any{sampleRows()}}
	payload := ")]}'\n\n1581\n" + envelopeLine(t, doc) + "\n25\n[\"garbage\"]\n"

	assertSampleRecords(t, ParsePayload(payload, "US"))
}

func TestParsePayloadNoSentinel(t *testing.T) {
	payloads := []string{
		")]}'\n\n[[\"xx.yy\",\"zzz\",\"[]\"]]",
		"<html>service unavailable</html>",
		"",
		")]}'\n\n42\n",
	}
	for _, payload := range payloads {
		if records := ParsePayload(payload, "US"); len(records) != 0 {
			t.Errorf("ParsePayload(%.30q) returned %d records, want 0", payload, len(records))
		}
	}
}

func TestParsePayloadScanFallback(t *testing.T) {
	// Junk welded onto the envelope line defeats the structured decode and
	// forces the raw-text scan.
	payload := ")]}'\n\ngarbage-prefix " + envelopeLine(t, []any{nil, sampleRows()}) + " trailing junk"

	assertSampleRecords(t, ParsePayload(payload, "US"))
}

func TestParsePayloadDropsRowsWithoutTitle(t *testing.T) {
	rows := []any{
		[]any{nil, 12.5, 33},
		[]any{"Valid Topic", "10K+"},
	}
	payload := ")]}'\n" + envelopeLine(t, []any{nil, rows})

	records := ParsePayload(payload, "GB")
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	// Rank keeps the source row position even when earlier rows drop.
	if records[0].Title != "Valid Topic" || records[0].Rank != 2 {
		t.Errorf("record = %q rank %d, want Valid Topic rank 2", records[0].Title, records[0].Rank)
	}
}

func TestParsePayloadCapsRelatedQueries(t *testing.T) {
	rows := []any{
		[]any{"Busy Topic", "1K+", []any{"one one", "two two", "three three", "four four"}, []any{"five five", "six six"}},
	}
	payload := ")]}'\n" + envelopeLine(t, []any{nil, rows})

	records := ParsePayload(payload, "ID")
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if len(records[0].RelatedQueries) != 5 {
		t.Errorf("related queries = %v, want 5 entries", records[0].RelatedQueries)
	}
	if records[0].RelatedQueries[4] != "five five" {
		t.Errorf("fifth related query = %q, want five five", records[0].RelatedQueries[4])
	}
}

func TestRecordsFromRows(t *testing.T) {
	rows := []RenderedRow{
		{
			TitleText:  "Hollow Knight Silksong\nGaming",
			VolumeText: "500K+\n+1,200%",
			TimeText:   "2 hours ago\nLasted 6 hrs",
		},
		{TitleText: " \n"},
		{
			TitleText:  "NBA Draft",
			VolumeText: "100K+",
			TimeText:   "4 hours ago",
		},
	}

	records := RecordsFromRows(rows, "US")
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	first := records[0]
	if first.Title != "Hollow Knight Silksong" || first.Rank != 1 {
		t.Errorf("first = %q rank %d", first.Title, first.Rank)
	}
	if first.SearchVolume != "500K+" || first.GrowthPercent != "+1,200%" {
		t.Errorf("first volume/growth = %q/%q", first.SearchVolume, first.GrowthPercent)
	}
	if first.Status != StatusEnded || first.Duration != "Lasted 6 hrs" {
		t.Errorf("first status/duration = %q/%q", first.Status, first.Duration)
	}

	second := records[1]
	if second.Title != "NBA Draft" || second.Rank != 3 {
		t.Errorf("second = %q rank %d, want NBA Draft rank 3 (source position)", second.Title, second.Rank)
	}
	if second.Status != StatusActive || second.GrowthPercent != "" {
		t.Errorf("second status/growth = %q/%q", second.Status, second.GrowthPercent)
	}
}
