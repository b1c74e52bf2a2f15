package dto

import "time"

// Applicant user types.
const (
	UserTypeStudent = "student"
	UserTypeStaff   = "staff"
)

// ApplicationRequest is the text part of a contest application.
// PhotoTitles arrives as a JSON encoded array in a multipart field.
type ApplicationRequest struct {
	FullName    string   `json:"fullName" validate:"required,min=2,max=120"`
	IDNumber    string   `json:"idNumber" validate:"required,max=64"`
	Email       string   `json:"email" validate:"required,email,max=254"`
	UserType    string   `json:"userType" validate:"required,oneof=student staff"`
	PhotoTitles []string `json:"photoTitles" validate:"required,min=1,dive,required,max=200"`
}

// ApplicationResponse acknowledges an accepted application.
type ApplicationResponse struct {
	ReferenceID string    `json:"referenceId"`
	Attachments []string  `json:"attachments"`
	ReceivedAt  time.Time `json:"receivedAt"`
}

// ValidationDetail pinpoints the rule an application failed.
type ValidationDetail struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}
