package dataset

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/xuri/excelize/v2"
)

// VideoRow is one input row of a batch workbook.
type VideoRow struct {
	VideoID  string
	Language string
	Title    string
}

// LoadVideos reads video ids from the first sheet, detecting the id,
// language and title columns by header heuristics.
func LoadVideos(path string) ([]VideoRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, fmt.Errorf("no data rows")
	}

	header := rows[0]
	videoIdx := -1
	langIdx := -1
	titleIdx := -1
	for i, h := range header {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "video") || strings.Contains(l, "url") || strings.Contains(l, "link") || l == "id":
			if videoIdx == -1 {
				videoIdx = i
			}
		case strings.Contains(l, "lang"):
			if langIdx == -1 {
				langIdx = i
			}
		case strings.Contains(l, "title") || strings.Contains(l, "name"):
			if titleIdx == -1 {
				titleIdx = i
			}
		}
	}
	// fallback: first column holds the ids
	if videoIdx == -1 {
		videoIdx = 0
	}

	var out []VideoRow
	seen := map[string]bool{}
	for i, r := range rows {
		if i == 0 {
			continue
		}
		var row VideoRow
		if videoIdx < len(r) {
			row.VideoID = NormalizeVideoID(r[videoIdx])
		}
		if langIdx >= 0 && langIdx < len(r) {
			row.Language = strings.TrimSpace(r[langIdx])
		}
		if titleIdx >= 0 && titleIdx < len(r) {
			row.Title = strings.TrimSpace(r[titleIdx])
		}
		if row.Language == "" {
			row.Language = "en"
		}
		key := row.VideoID + "/" + row.Language
		if row.VideoID == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, row)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no video ids found")
	}
	return out, nil
}

// NormalizeVideoID accepts a bare id or a YouTube watch/short link.
func NormalizeVideoID(raw string) string {
	s := strings.TrimSpace(raw)
	lower := strings.ToLower(s)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return s
	}
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	if v := u.Query().Get("v"); v != "" {
		return v
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	return parts[len(parts)-1]
}
