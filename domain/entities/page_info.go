package entities

// PageInfo is a snapshot of the page taken when a run fails
type PageInfo struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	TextContent string `json:"text_content"` // visible text, truncated
}

// MaxPageText bounds TextContent in snapshots
const MaxPageText = 3000

// TruncateText - truncates s to at most max bytes, marking the cut
func TruncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
