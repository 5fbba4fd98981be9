package engine

import (
	"time"

	"github.com/lazypower/synapse/internal/store"
)

// defaultSessionGap is the silence that ends a conversation session.
const defaultSessionGap = 30 * time.Minute

// Segmenter splits the message stream into sessions by gap detection: a
// silence of at least Gap between consecutive messages starts a new session.
type Segmenter struct {
	DB  *store.DB
	Gap time.Duration

	now func() time.Time // injectable clock for tests
}

// NewSegmenter creates a Segmenter. A non-positive gap selects the default.
func NewSegmenter(db *store.DB, gap time.Duration) *Segmenter {
	if gap <= 0 {
		gap = defaultSessionGap
	}
	return &Segmenter{DB: db, Gap: gap, now: time.Now}
}

// SessionInfo describes where the current moment falls relative to the
// ongoing session.
type SessionInfo struct {
	IsNew               bool      `json:"is_new_session"`
	CurrentSessionStart time.Time `json:"current_session_start"`
	LastMessageTime     time.Time `json:"last_message_time"`
	GapMinutes          float64   `json:"gap_minutes"`
}

// DetectSession reports whether a message arriving now would start a new
// session, and when the current session began. With no recorded messages
// the next message trivially opens a new session.
func (s *Segmenter) DetectSession() (*SessionInfo, error) {
	last, err := s.DB.LatestMessage()
	if err != nil {
		return nil, err
	}
	now := s.now()
	if last == nil {
		return &SessionInfo{IsNew: true, CurrentSessionStart: now}, nil
	}

	lastAt := time.UnixMilli(last.CreatedAt)
	gap := now.Sub(lastAt)
	info := &SessionInfo{
		IsNew:           gap >= s.Gap,
		LastMessageTime: lastAt,
		GapMinutes:      gap.Minutes(),
	}
	if info.IsNew {
		info.CurrentSessionStart = now
		return info, nil
	}

	start, err := s.currentSessionStart()
	if err != nil {
		return nil, err
	}
	info.CurrentSessionStart = start
	return info, nil
}

// currentSessionStart walks the message stream backwards until it crosses a
// gap, returning the timestamp of the first message after that gap.
func (s *Segmenter) currentSessionStart() (time.Time, error) {
	msgs, err := s.DB.MessagesDescending()
	if err != nil {
		return time.Time{}, err
	}
	if len(msgs) == 0 {
		return s.now(), nil
	}

	start := time.UnixMilli(msgs[0].CreatedAt)
	for i := 1; i < len(msgs); i++ {
		cur := time.UnixMilli(msgs[i].CreatedAt)
		if start.Sub(cur) >= s.Gap {
			break
		}
		start = cur
	}
	return start, nil
}

// SessionWindow is a closed run of messages between two session boundaries.
type SessionWindow struct {
	Start    time.Time
	End      time.Time
	Messages []store.Message
}

// UnsummarizedPreviousSession returns the window of closed, unsummarized
// messages after coversUntil, or nil when nothing has closed yet. The most
// recent gap meeting the threshold marks the end of the window, so a short
// run that was too small to summarize on its own is absorbed once a later
// session closes behind it.
func (s *Segmenter) UnsummarizedPreviousSession(coversUntil time.Time) (*SessionWindow, error) {
	msgs, err := s.DB.MessagesAfter(coversUntil.UnixMilli())
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	// Everything before the most recent qualifying gap is closed. The
	// silence after the last message counts as a gap too; once the tail run
	// goes quiet the whole backlog closes.
	boundary := -1
	for i := 1; i < len(msgs); i++ {
		prev := time.UnixMilli(msgs[i-1].CreatedAt)
		cur := time.UnixMilli(msgs[i].CreatedAt)
		if cur.Sub(prev) >= s.Gap {
			boundary = i
		}
	}
	lastAt := time.UnixMilli(msgs[len(msgs)-1].CreatedAt)
	if s.now().Sub(lastAt) >= s.Gap {
		boundary = len(msgs)
	}
	if boundary < 0 {
		return nil, nil
	}

	window := msgs[:boundary]
	return &SessionWindow{
		Start:    time.UnixMilli(window[0].CreatedAt),
		End:      time.UnixMilli(window[len(window)-1].CreatedAt),
		Messages: window,
	}, nil
}
