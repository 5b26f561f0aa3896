package models

import "time"

// Applicant is the person behind an application. Immutable once the
// application is submitted.
type Applicant struct {
	ApplicantID        int       `gorm:"primaryKey;column:applicant_id" json:"applicant_id"`
	UserID             int       `gorm:"column:user_id" json:"user_id"`
	FirstName          string    `gorm:"column:first_name" json:"first_name"`
	LastName           string    `gorm:"column:last_name" json:"last_name"`
	DateOfBirth        time.Time `gorm:"column:date_of_birth;type:date" json:"date_of_birth"`
	Gender             string    `gorm:"column:gender" json:"gender"`
	EducationLevel     string    `gorm:"column:education_level" json:"education_level"`
	CitizenshipCountry string    `gorm:"column:citizenship_country" json:"citizenship_country"`
	ResidenceCountry   string    `gorm:"column:residence_country" json:"residence_country"`
	CreatedAt          time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt          time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Applicant) TableName() string {
	return "applicants"
}

const (
	GenderFemale = "female"
	GenderMale   = "male"
	GenderOther  = "other"
)

// FullName joins first and last name.
func (a Applicant) FullName() string {
	switch {
	case a.FirstName == "":
		return a.LastName
	case a.LastName == "":
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}

// AgeOn returns the exact age in whole years on the given day: the calendar
// year difference minus one when the birthday has not occurred yet that year.
func (a Applicant) AgeOn(day time.Time) int {
	return AgeOn(a.DateOfBirth, day)
}

// AgeOn computes the exact age for a birth date on day. Both dates are
// compared by calendar fields only.
func AgeOn(birth, day time.Time) int {
	if birth.IsZero() {
		return 0
	}
	by, bm, bd := birth.Date()
	dy, dm, dd := day.Date()
	age := dy - by
	if dm < bm || (dm == bm && dd < bd) {
		age--
	}
	return age
}
