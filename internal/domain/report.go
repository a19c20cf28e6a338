package domain

import (
	"time"

	"github.com/google/uuid"
)

// MaxReportPapers bounds the number of papers one synthesis call accepts.
const MaxReportPapers = 50

// Report is a synthesized literature review. It is created once per
// synthesis call and never incrementally updated.
type Report struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Title     string    `json:"title"`
	Papers    []Paper   `json:"papers"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}
