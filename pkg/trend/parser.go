package trend

import (
	"encoding/json"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"
)

// payloadPrefix is the anti-JSON guard the source prepends to responses.
const payloadPrefix = ")]}'"

// The trend table hides inside a framed envelope: a 3-tuple tagged with the
// envelope marker and the RPC id, whose third element is an embedded JSON
// document string.
const (
	sentinelEnvelope = "wrb.fr"
	sentinelRPC      = "i0OFE"
)

// ParsePayload extracts trend records from a raw batchexecute response.
// Best effort by contract: malformed or unexpected input degrades to fewer
// records (or none), never to an error.
func ParsePayload(raw, region string) []Record {
	body := strings.TrimSpace(strings.TrimPrefix(raw, payloadPrefix))

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || isFramingLine(line) {
			continue
		}

		var decoded []any
		if err := json.Unmarshal([]byte(line), &decoded); err != nil {
			continue
		}
		if records := recordsFromEnvelope(decoded, region); len(records) > 0 {
			return records
		}
	}

	return parseWithScan(body, region)
}

// recordsFromEnvelope walks a decoded response line looking for the
// sentinel-tagged frame carrying the trends document.
func recordsFromEnvelope(decoded []any, region string) []Record {
	for _, item := range decoded {
		frame, ok := item.([]any)
		if !ok || len(frame) < 3 {
			continue
		}
		if frame[0] != sentinelEnvelope || frame[1] != sentinelRPC {
			continue
		}
		doc, ok := frame[2].(string)
		if !ok || doc == "" {
			continue
		}
		if records := parseTrendsDoc(doc, region); len(records) > 0 {
			return records
		}
	}
	return nil
}

// parseTrendsDoc decodes the embedded trends document and converts each row
// into a Record. Rows that cannot be understood are dropped.
func parseTrendsDoc(doc, region string) []Record {
	var data []any
	if err := json.Unmarshal([]byte(doc), &data); err != nil {
		return nil
	}

	rows := trendRows(data)
	records := make([]Record, 0, len(rows))
	for i, item := range rows {
		row, ok := item.([]any)
		if !ok {
			continue
		}
		rec := recordFromRow(row, region, i+1)
		if !rec.Valid() {
			slog.Debug("dropping unparseable trend row", "region", region, "rank", i+1)
			continue
		}
		records = append(records, *rec)
	}
	return records
}

// trendRows locates the row table inside the decoded document. The document
// is [ignored, rows], but some responses wrap rows in one extra array level;
// the wrapping is detected by whether the first row element is itself a list
// of lists.
func trendRows(data []any) []any {
	if len(data) < 2 {
		return nil
	}
	outer, ok := data[1].([]any)
	if !ok || len(outer) == 0 {
		return nil
	}
	first, ok := outer[0].([]any)
	if !ok {
		return nil
	}
	if len(first) > 0 {
		if _, nested := first[0].([]any); nested {
			return first
		}
	}
	return outer
}

// recordFromRow shape-sniffs one row. The title is the first non-trivial
// string among the leading elements; the remaining strings are classified by
// the token table; nested lists contribute related queries.
func recordFromRow(row []any, region string, rank int) *Record {
	if len(row) < 2 {
		return nil
	}

	rec := &Record{Region: region, Rank: rank, Status: StatusActive}

	titleIdx := -1
	for i := 0; i < min(3, len(row)); i++ {
		if s, ok := row[i].(string); ok && utf8.RuneCountInString(s) > 1 {
			rec.Title = s
			titleIdx = i
			break
		}
	}
	if titleIdx < 0 {
		return nil
	}

	var related []string
	for i, item := range row {
		if i == titleIdx {
			continue
		}
		switch v := item.(type) {
		case string:
			applyToken(rec, v)
		case []any:
			related = append(related, relatedQueries(v)...)
		}
	}
	if len(related) > maxRelatedQueries {
		related = related[:maxRelatedQueries]
	}
	rec.RelatedQueries = related
	rec.NormalizedTitle = Normalize(rec.Title)

	return rec
}

// applyToken fills the record field a classified token belongs to. Fields
// keep their first value; only status is re-assignable.
func applyToken(rec *Record, s string) {
	switch classifyToken(s) {
	case tokenVolume:
		if rec.SearchVolume == "" {
			rec.SearchVolume = s
		}
	case tokenGrowth:
		if rec.GrowthPercent == "" {
			rec.GrowthPercent = s
		}
	case tokenStarted:
		if rec.StartedTime == "" {
			rec.StartedTime = s
		}
	case tokenDuration:
		if rec.Duration == "" {
			rec.Duration = s
		}
	case tokenStatus:
		if strings.EqualFold(s, "ended") {
			rec.Status = StatusEnded
		} else {
			rec.Status = StatusActive
		}
	}
}

func relatedQueries(items []any) []string {
	var queries []string
	for _, item := range items {
		if s, ok := item.(string); ok && utf8.RuneCountInString(s) > 2 {
			queries = append(queries, s)
		}
	}
	return queries
}

// parseWithScan is the fallback when no response line decodes cleanly: find
// the sentinel-tagged frame in the raw text, cut out the embedded document
// up to its closing quote, unescape it, and decode that.
func parseWithScan(body, region string) []Record {
	const marker = `["wrb.fr","i0OFE","`
	start := strings.Index(body, marker)
	if start < 0 {
		return nil
	}

	rest := body[start+len(marker):]
	end := unescapedQuoteIndex(rest)
	if end < 0 {
		return nil
	}

	doc := rest[:end]
	doc = strings.ReplaceAll(doc, `\"`, `"`)
	doc = strings.ReplaceAll(doc, `\\`, `\`)

	return parseTrendsDoc(doc, region)
}

func unescapedQuoteIndex(s string) int {
	escaped := false
	for i := 0; i < len(s); i++ {
		switch {
		case escaped:
			escaped = false
		case s[i] == '\\':
			escaped = true
		case s[i] == '"':
			return i
		}
	}
	return -1
}

// isFramingLine reports the bare numeric length markers interleaved between
// response chunks.
func isFramingLine(line string) bool {
	for _, r := range line {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return line != ""
}

// RecordsFromRows converts already-rendered row cells into records. Cell
// layout: title cell line 1 is the title; volume cell lines 1/2 are volume
// and growth; time cell lines 1/2 are started-time and duration. A duration
// mentioning "lasted" marks the trend as ended.
func RecordsFromRows(rows []RenderedRow, region string) []Record {
	records := make([]Record, 0, len(rows))
	for i, row := range rows {
		titleLines := cellLines(row.TitleText)
		if len(titleLines) == 0 {
			continue
		}

		rec := Record{
			Title:  titleLines[0],
			Region: region,
			Rank:   i + 1,
			Status: StatusActive,
		}

		if volumeLines := cellLines(row.VolumeText); len(volumeLines) > 0 {
			rec.SearchVolume = volumeLines[0]
			if len(volumeLines) > 1 {
				rec.GrowthPercent = volumeLines[1]
			}
		}
		if timeLines := cellLines(row.TimeText); len(timeLines) > 0 {
			rec.StartedTime = timeLines[0]
			if len(timeLines) > 1 {
				rec.Duration = timeLines[1]
			}
		}
		if strings.Contains(strings.ToLower(rec.Duration), "lasted") {
			rec.Status = StatusEnded
		}
		rec.NormalizedTitle = Normalize(rec.Title)

		if !rec.Valid() {
			continue
		}
		records = append(records, rec)
	}
	return records
}

func cellLines(cell string) []string {
	var lines []string
	for _, line := range strings.Split(cell, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
