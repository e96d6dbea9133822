package model

import "time"

// Respondent is the person whose survey answers produced staged ratings.
// A respondent belongs to exactly one community at a time.
type Respondent struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email,omitempty" db:"email"`
	Community string    `json:"community" db:"community"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// StagedRating is one claim that a respondent used a named vendor in a
// category. It stays pending until approval links it to a vendor and flips
// Rated.
type StagedRating struct {
	ID           string  `json:"id" db:"id"`
	RespondentID string  `json:"respondent_id" db:"respondent_id"`
	VendorName   string  `json:"vendor_name" db:"vendor_name"`
	Category     string  `json:"category" db:"category"`
	Phone        string  `json:"phone,omitempty" db:"phone"`
	Rating       *int    `json:"rating,omitempty" db:"rating"`
	Comment      string  `json:"comment,omitempty" db:"comment"`
	VendorID     *string `json:"vendor_id,omitempty" db:"vendor_id"`
	Rated        bool    `json:"rated" db:"rated"`

	// Community is inherited from the respondent; populated on reads.
	Community string `json:"community,omitempty" db:"-"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Consumed reports whether the rating has been linked and excluded from matching.
func (r *StagedRating) Consumed() bool {
	return r.Rated && r.VendorID != nil
}

// Counts are the raw progress counters for a community.
type Counts struct {
	Respondents int64 `json:"respondents"`
	Ratings     int64 `json:"ratings"`
	Consumed    int64 `json:"consumed"`
}

// Preference is an explicit client-side preference with an expiry,
// e.g. a dismissed banner.
type Preference struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}
