package forum

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// FormError is a user correctable problem with submitted input.
type FormError struct {
	Field   string
	Message string
}

func (e *FormError) Error() string { return e.Message }

const (
	msgTopicTooShort    = "Title and content must be at least 3 characters."
	msgReplyEmpty       = "Reply can’t be empty."
	msgUsernameShort    = "Username must be at least 3 characters."
	msgEmailInvalid     = "Please enter a valid email."
	msgPasswordShort    = "Password must be at least 8 characters."
	msgDuplicateUser    = "Username or email already in use."
	msgBadCredentials   = "Invalid email or password."
	msgReporterName     = "Please enter your name (at least 2 characters)."
	msgReportType       = "Please choose a valid report type."
	msgWhatSighted      = "Please describe what you saw (at least 10 characters)."
	msgOccurredAt       = "Please provide the date and time of the sighting."
	msgLocation         = "Please provide a location."
	msgInvalidFormInput = "Could not read the submitted form."
)

// check runs the struct's validate tags. Fields are checked in declaration
// order, so the first FieldError is the first rule that failed.
func check(form any, messages map[string]string) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	first := verrs[0]
	msg, ok := messages[first.Field()]
	if !ok {
		msg = msgInvalidFormInput
	}
	return &FormError{Field: first.Field(), Message: msg}
}

func formValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.PostFormValue(key))
}

type RegisterForm struct {
	Username string `validate:"min=3"`
	Email    string `validate:"contains=@"`
	Password string `validate:"min=8"`
}

// ParseRegisterForm trims the username and normalises the email. The
// password is taken as sent.
func ParseRegisterForm(r *http.Request) RegisterForm {
	return RegisterForm{
		Username: formValue(r, "username"),
		Email:    strings.ToLower(formValue(r, "email")),
		Password: r.PostFormValue("password"),
	}
}

func (f RegisterForm) Validate() error {
	return check(f, map[string]string{
		"Username": msgUsernameShort,
		"Email":    msgEmailInvalid,
		"Password": msgPasswordShort,
	})
}

type LoginForm struct {
	Email    string
	Password string
}

func ParseLoginForm(r *http.Request) LoginForm {
	return LoginForm{
		Email:    strings.ToLower(formValue(r, "email")),
		Password: r.PostFormValue("password"),
	}
}

type TopicForm struct {
	Title   string `validate:"min=3"`
	Content string `validate:"min=3"`
}

func ParseTopicForm(r *http.Request) TopicForm {
	return TopicForm{Title: formValue(r, "title"), Content: formValue(r, "content")}
}

func (f TopicForm) Validate() error {
	return check(f, map[string]string{
		"Title":   msgTopicTooShort,
		"Content": msgTopicTooShort,
	})
}

type ReplyForm struct {
	Content string `validate:"min=2"`
}

func ParseReplyForm(r *http.Request) ReplyForm {
	return ReplyForm{Content: formValue(r, "content")}
}

func (f ReplyForm) Validate() error {
	return check(f, map[string]string{"Content": msgReplyEmpty})
}

// SightingForm field order is the order the rules are applied in.
type SightingForm struct {
	ReporterName  string `validate:"required,min=2"`
	ReportType    string `validate:"oneof=ghost animal other"`
	WhatSighted   string `validate:"required,min=10"`
	OccurredAt    string `validate:"required"`
	Location      string `validate:"required,min=2"`
	Contact       string
	SubjectChoice string
}

func ParseSightingForm(r *http.Request) SightingForm {
	return SightingForm{
		ReporterName:  formValue(r, "reporter_name"),
		Contact:       formValue(r, "contact"),
		ReportType:    formValue(r, "report_type"),
		SubjectChoice: formValue(r, "subject_choice"),
		WhatSighted:   formValue(r, "what_sighted"),
		OccurredAt:    formValue(r, "occurred_at"),
		Location:      formValue(r, "location"),
	}
}

func (f SightingForm) Validate() error {
	return check(f, map[string]string{
		"ReporterName": msgReporterName,
		"ReportType":   msgReportType,
		"WhatSighted":  msgWhatSighted,
		"OccurredAt":   msgOccurredAt,
		"Location":     msgLocation,
	})
}

// Sighting converts a validated form, storing blank optional fields as nil.
func (f SightingForm) Sighting() *Sighting {
	return &Sighting{
		ReporterName:  f.ReporterName,
		Contact:       optional(f.Contact),
		ReportType:    ReportType(f.ReportType),
		SubjectChoice: optional(f.SubjectChoice),
		WhatSighted:   f.WhatSighted,
		OccurredAt:    f.OccurredAt,
		Location:      f.Location,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
