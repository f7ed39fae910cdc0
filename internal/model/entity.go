package model

import "time"

// Entity is the part of a host framework entity the annotation service
// reads: identity, classification and the contact details used for owner
// notifications.
type Entity struct {
	GUID        int64     `json:"guid"`
	Type        string    `json:"type"`
	Subtype     string    `json:"subtype,omitempty"`
	OwnerGUID   int64     `json:"owner_guid"`
	AccessID    int64     `json:"access_id"`
	ExternalID  string    `json:"-"`
	Email       string    `json:"-"`
	DisplayName string    `json:"display_name"`
	TimeCreated time.Time `json:"time_created"`
}
