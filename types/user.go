package types

import "time"

// User represents an account together with its profile sub-documents.
type User struct {
	// ID is the opaque identifier assigned by the store on creation.
	ID string `json:"_id" bson:"-"`

	FirstName string `json:"first_name" bson:"first_name"`
	LastName  string `json:"last_name" bson:"last_name"`

	// Username is the unique login name. Uniqueness covers soft-deleted
	// accounts too.
	Username string `json:"username" bson:"username"`

	// PasswordHash stores the bcrypt hash of the user's password. It is
	// returned to clients under the legacy "userPassword" key unless
	// redaction is enabled.
	PasswordHash string `json:"userPassword" bson:"userPassword"`

	// Deleted marks a soft-deleted account. Such accounts are hidden from
	// listings and cannot log in, but stay addressable by ID.
	Deleted bool `json:"deleted" bson:"deleted"`

	Profile        []ProfileBlock   `json:"profile" bson:"profile"`
	Education      []Education      `json:"education" bson:"education"`
	WorkExperience []WorkExperience `json:"work_experience" bson:"work_experience"`
	Skills         []Skill          `json:"skills" bson:"skills"`
	Portfolio      []PortfolioItem  `json:"portfolio" bson:"portfolio"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// ProfileBlock holds the public profile of a user. Phone is the only
// required field.
type ProfileBlock struct {
	Photo   string `json:"photo" bson:"photo,omitempty"`
	Bio     string `json:"bio" bson:"bio,omitempty"`
	Phone   string `json:"phone" bson:"phone" validate:"required"`
	Address string `json:"address" bson:"address,omitempty"`
}

type Education struct {
	SchoolName string `json:"school_name" bson:"school_name,omitempty"`
	Course     string `json:"course" bson:"course,omitempty"`
}

type WorkExperience struct {
	Company     string `json:"company" bson:"company,omitempty"`
	Position    string `json:"position" bson:"position,omitempty"`
	Year        string `json:"year" bson:"year,omitempty"`
	Description string `json:"description" bson:"description,omitempty"`
}

type Skill struct {
	SkillName string  `json:"skill_name" bson:"skill_name,omitempty"`
	Level     float64 `json:"level" bson:"level,omitempty"`
}

type PortfolioItem struct {
	Image        string `json:"image" bson:"image,omitempty"`
	ProjectTitle string `json:"project_title" bson:"project_title,omitempty"`
	ProjectURL   string `json:"project_url" bson:"project_url,omitempty"`
}

// UserUpdate describes a single-document update. Nil fields are left
// untouched; a non-nil slice pointer replaces the whole sub-sequence.
type UserUpdate struct {
	Profile        *[]ProfileBlock
	Education      *[]Education
	WorkExperience *[]WorkExperience
	Skills         *[]Skill
	Portfolio      *[]PortfolioItem
	Deleted        *bool
}

// IsEmpty reports whether the update sets no fields.
func (u UserUpdate) IsEmpty() bool {
	return u.Profile == nil &&
		u.Education == nil &&
		u.WorkExperience == nil &&
		u.Skills == nil &&
		u.Portfolio == nil &&
		u.Deleted == nil
}

// Normalize replaces nil sub-sequences with empty ones so the user always
// serializes as arrays.
func (u *User) Normalize() {
	if u.Profile == nil {
		u.Profile = []ProfileBlock{}
	}
	if u.Education == nil {
		u.Education = []Education{}
	}
	if u.WorkExperience == nil {
		u.WorkExperience = []WorkExperience{}
	}
	if u.Skills == nil {
		u.Skills = []Skill{}
	}
	if u.Portfolio == nil {
		u.Portfolio = []PortfolioItem{}
	}
}

// Clone returns a deep copy of the user.
func (u User) Clone() User {
	out := u
	out.Profile = append([]ProfileBlock(nil), u.Profile...)
	out.Education = append([]Education(nil), u.Education...)
	out.WorkExperience = append([]WorkExperience(nil), u.WorkExperience...)
	out.Skills = append([]Skill(nil), u.Skills...)
	out.Portfolio = append([]PortfolioItem(nil), u.Portfolio...)
	out.Normalize()
	return out
}

// Redacted returns a copy of the user without the password hash.
func (u User) Redacted() User {
	out := u
	out.PasswordHash = ""
	return out
}
