package trend

// Status indicates whether a trend is still gathering searches.
type Status string

const (
	StatusActive Status = "Active"
	StatusEnded  Status = "Ended"
)

// maxRelatedQueries caps how many related-query strings one record keeps.
const maxRelatedQueries = 5

// Record is one observed trending topic at fetch time.
type Record struct {
	Title           string   `json:"title" db:"title"`
	NormalizedTitle string   `json:"normalized_title" db:"normalized_title"`
	Rank            int      `json:"rank" db:"rank"`
	SearchVolume    string   `json:"search_volume" db:"search_volume"`
	GrowthPercent   string   `json:"growth_percent" db:"growth_percent"`
	StartedTime     string   `json:"started_time" db:"started_time"`
	Status          Status   `json:"status" db:"status"`
	Duration        string   `json:"duration" db:"duration"`
	Region          string   `json:"region" db:"region"`
	RelatedQueries  []string `json:"related_queries" db:"-"`
}

// Valid reports whether the record may enter the pipeline. Records without
// a title or region are parser noise and get dropped.
func (r *Record) Valid() bool {
	return r != nil && r.Title != "" && r.Region != ""
}

// RenderedRow is trend data delivered as already-rendered cell text by
// fetchers that extract from a displayed page instead of the raw feed.
// Cells may span multiple lines.
type RenderedRow struct {
	TitleText  string `json:"title_text"`
	VolumeText string `json:"volume_text"`
	TimeText   string `json:"time_text"`
}
