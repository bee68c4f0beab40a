package unlock

import (
	"github.com/pot-code/coursegate/internal/course"
	"github.com/pot-code/coursegate/internal/progress"
)

// EffectiveLock state of lesson for the learner owning records. Without a record
// the first lesson is unlocked and every other lesson is locked.
func EffectiveLock(lesson *course.LessonModel, records map[string]*progress.WatchRecord) progress.LockState {
	if r, ok := records[lesson.ID]; ok && r != nil {
		return r.State
	}
	if lesson.Position == 1 {
		return progress.Unlocked
	}
	return progress.Locked
}

// ActiveLesson furthest lesson that is not locked, the first lesson if none is.
// Nil for a course without lessons.
func ActiveLesson(c *course.CourseModel, records map[string]*progress.WatchRecord) *course.LessonModel {
	if len(c.Lessons) == 0 {
		return nil
	}
	for i := len(c.Lessons) - 1; i >= 0; i-- {
		if EffectiveLock(c.Lessons[i], records) != progress.Locked {
			return c.Lessons[i]
		}
	}
	return c.Lessons[0]
}

func CanPlay(lesson *course.LessonModel, records map[string]*progress.WatchRecord) bool {
	return EffectiveLock(lesson, records) != progress.Locked
}

// IsQuizUnlocked every lesson is completed, trivially true for a course without lessons
func IsQuizUnlocked(c *course.CourseModel, records map[string]*progress.WatchRecord) bool {
	for _, l := range c.Lessons {
		if EffectiveLock(l, records) != progress.Completed {
			return false
		}
	}
	return true
}
