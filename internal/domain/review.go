package domain

// Record is one review as rendered by the review console. It is built once by
// the extractor and never mutated afterwards.
type Record struct {
	Stars   int    `json:"stars"`
	Author  string `json:"author"`
	Date    string `json:"date"` // as rendered, e.g. "July 22, 2014"
	Time    string `json:"time"` // 12-hour clock, e.g. "1:20 PM"
	Title   string `json:"title"`
	Text    string `json:"text"`
	Version string `json:"version"`
	Device  string `json:"device"`
}

// SameAs reports whether r and o are two renderings of the same review.
// Title, text, version and device are ignored: re-renders may differ in
// whitespace there but never in the identifying fields.
func (r Record) SameAs(o Record) bool {
	return r.Stars == o.Stars &&
		r.Author == o.Author &&
		r.Date == o.Date &&
		r.Time == o.Time
}
