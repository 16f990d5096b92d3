//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/publicsuffix"
)

const (
	// ItemStatusProcessed is the terminal status written by the batch engine.
	ItemStatusProcessed = "PROCESSED"
	// ItemStatusPending is the status used for freshly seeded items.
	ItemStatusPending = "PENDING"

	maxItemNameLen   = 255
	maxItemStatusLen = 64
)

// Item is a stored record.
type Item struct {
	ID          string    `json:"id"          db:"id"`
	Name        string    `json:"name"        db:"name"`
	Description string    `json:"description" db:"description"`
	Status      string    `json:"status"      db:"status"`
	Email       string    `json:"email"       db:"email"`
	CreatedAt   time.Time `json:"created_at"  db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"  db:"updated_at"`
}

// Clone returns a copy safe to mutate without affecting the original.
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	cp := *i
	return &cp
}

// CreateItemRequest represents parameters to create an Item.
type CreateItemRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Email       string `json:"email"`
}

// UpdateItemRequest replaces every mutable field of an Item.
type UpdateItemRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Email       string `json:"email"`
}

// Validate validates and normalizes CreateItemRequest.
func (r *CreateItemRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Status = strings.TrimSpace(r.Status)
	r.Email = strings.TrimSpace(r.Email)
	return validateItemFields(r.Name, r.Status, r.Email)
}

// Validate validates and normalizes UpdateItemRequest.
func (r *UpdateItemRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Status = strings.TrimSpace(r.Status)
	r.Email = strings.TrimSpace(r.Email)
	return validateItemFields(r.Name, r.Status, r.Email)
}

// ItemsListOptions controls paging for listing items.
type ItemsListOptions struct {
	Limit  int
	Offset int
}

func validateItemFields(name, status, email string) error {
	var errs ValidationErrors
	if utf8.RuneCountInString(name) > maxItemNameLen {
		errs = append(errs, FieldError{Field: "name", Message: "cannot exceed 255 characters"})
	}
	switch {
	case status == "":
		errs = append(errs, FieldError{Field: "status", Message: "must not be blank"})
	case utf8.RuneCountInString(status) > maxItemStatusLen:
		errs = append(errs, FieldError{Field: "status", Message: "cannot exceed 64 characters"})
	}
	if email == "" {
		errs = append(errs, FieldError{Field: "email", Message: "must not be blank"})
	} else if err := validateEmail(email); err != nil {
		errs = append(errs, FieldError{Field: "email", Message: err.Error()})
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

var errMalformedEmail = errors.New("must be a well-formed email address")

// validateEmail accepts a bare address whose domain has a registrable suffix.
func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return errMalformedEmail
	}
	at := strings.LastIndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return errMalformedEmail
	}
	domain := strings.ToLower(email[at+1:])
	if _, err := publicsuffix.EffectiveTLDPlusOne(domain); err != nil {
		return errMalformedEmail
	}
	return nil
}

// FieldError describes a single invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) String() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors collects field-level validation failures.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	return strings.Join(v.Messages(), "; ")
}

// Messages renders each failure as "field: message".
func (v ValidationErrors) Messages() []string {
	out := make([]string, len(v))
	for i, fe := range v {
		out[i] = fe.String()
	}
	return out
}
