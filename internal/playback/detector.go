package playback

import "time"

// DefaultThreshold played fraction that counts a lesson as watched
const DefaultThreshold = 0.9

// State completion state of a playback session
type State int

const (
	Playing State = iota
	ThresholdReached
	Completed
)

func (s State) String() string {
	switch s {
	case ThresholdReached:
		return "THRESHOLD_REACHED"
	case Completed:
		return "COMPLETED"
	default:
		return "PLAYING"
	}
}

// MarshalText encodes the state by name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "THRESHOLD_REACHED":
		*s = ThresholdReached
	case "COMPLETED":
		*s = Completed
	default:
		*s = Playing
	}
	return nil
}

// Session one viewing of a lesson by a learner
type Session struct {
	ID        string    `json:"id"`
	LearnerID string    `json:"learner_id"`
	CourseID  string    `json:"course_id"`
	LessonID  string    `json:"lesson_id"`
	Duration  float64   `json:"duration"` // seconds, from the catalog, 0 if unknown
	State     State     `json:"state"`
	StartedAt time.Time `json:"started_at"`
}

// Detector decides when a session completes. Observe and Ended report true
// exactly once per session: on the signal that completes it.
type Detector struct {
	Threshold float64
}

// NewDetector threshold outside (0, 1] falls back to DefaultThreshold
func NewDetector(threshold float64) *Detector {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Detector{Threshold: threshold}
}

// Observe a playback position, in seconds. A non positive duration never
// reaches the threshold.
func (d *Detector) Observe(s *Session, position, duration float64) bool {
	if s.State == Playing {
		if duration <= 0 || position/duration < d.Threshold {
			return false
		}
		s.State = ThresholdReached
	}
	if s.State == ThresholdReached {
		s.State = Completed
		return true
	}
	return false
}

// Ended natural end of the media
func (d *Detector) Ended(s *Session) bool {
	if s.State == Completed {
		return false
	}
	s.State = Completed
	return true
}
