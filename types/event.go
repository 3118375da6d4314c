package types

import "time"

// Event types published on the user events channel.
const (
	EventUserCreated           = "user.created"
	EventUserDeleted           = "user.deleted"
	EventProfileUpdated        = "user.profile_updated"
	EventEducationUpdated      = "user.education_updated"
	EventPortfolioUpdated      = "user.portfolio_updated"
	EventWorkExperienceUpdated = "user.work_experience_updated"
	EventSkillsUpdated         = "user.skills_updated"
)

// UserEvent is emitted after a user mutation is committed to the store.
type UserEvent struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	OccurredAt time.Time `json:"occurred_at"`
}
