package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/stillherehq/stillhere-backend/internal/models"
)

const (
	calendarCells        = 42 // 6 weeks, Sunday-first
	calendarPostsPerCell = 2
)

type calendarCell struct {
	Date    string        `json:"date"` // YYYY-MM-DD
	InMonth bool          `json:"in_month"`
	Posts   []models.Post `json:"posts"`
	More    int           `json:"more"`
}

type calendarResponse struct {
	Month string         `json:"month"` // YYYY-MM
	Cells []calendarCell `json:"cells"`
}

// buildCalendarGrid lays a month out as a fixed 6x7 Sunday-first grid. The
// first of the month lands at the cell index matching its weekday; leading
// and trailing cells carry the neighbor months' dates with in_month false.
// Each cell keeps at most calendarPostsPerCell posts and counts the rest.
func buildCalendarGrid(year int, month time.Month, posts []models.Post) []calendarCell {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	start := first.AddDate(0, 0, -int(first.Weekday()))

	byDay := make(map[string][]models.Post)
	for _, p := range posts {
		if p.ScheduledFor == nil {
			continue
		}
		key := p.ScheduledFor.UTC().Format("2006-01-02")
		byDay[key] = append(byDay[key], p)
	}

	cells := make([]calendarCell, 0, calendarCells)
	for i := 0; i < calendarCells; i++ {
		day := start.AddDate(0, 0, i)
		key := day.Format("2006-01-02")
		cell := calendarCell{
			Date:    key,
			InMonth: day.Month() == month,
			Posts:   []models.Post{},
		}
		dayPosts := byDay[key]
		if len(dayPosts) > calendarPostsPerCell {
			cell.Posts = dayPosts[:calendarPostsPerCell]
			cell.More = len(dayPosts) - calendarPostsPerCell
		} else if len(dayPosts) > 0 {
			cell.Posts = dayPosts
		}
		cells = append(cells, cell)
	}
	return cells
}

// GetCalendarForUser renders the scheduling calendar for one month
// (?month=YYYY-MM, defaulting to the current month).
func (h *Handler) GetCalendarForUser(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	userID := pathVar(r, "userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	monthStr := r.URL.Query().Get("month")
	var first time.Time
	if monthStr == "" {
		now := time.Now().UTC()
		first = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	} else {
		var err error
		first, err = time.Parse("2006-01", monthStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
			return
		}
	}

	// The grid shows up to a week before and after the month itself.
	rangeStart := first.AddDate(0, 0, -int(first.Weekday()))
	rangeEnd := rangeStart.AddDate(0, 0, calendarCells)

	rows, err := h.db.Query(`
		SELECT `+postColumns+` FROM posts
		WHERE user_id = $1 AND status = $2
		  AND scheduled_for >= $3 AND scheduled_for < $4
		ORDER BY scheduled_for ASC
	`, userID, models.PostStatusScheduled, rangeStart, rangeEnd)
	if err != nil {
		log.Printf("[Calendar][Get] query error userId=%s err=%v", userID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			log.Printf("[Calendar][Get] scan error userId=%s err=%v", userID, err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		log.Printf("[Calendar][Get] rows error userId=%s err=%v", userID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, calendarResponse{
		Month: first.Format("2006-01"),
		Cells: buildCalendarGrid(first.Year(), first.Month(), posts),
	})
}
