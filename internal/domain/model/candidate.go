package model

import "time"

// Candidate: профиль соискателя.
type Candidate struct {
	// ID: UUID профиля
	ID string `json:"id"`
	// UserID: sub соискателя в Keycloak
	UserID   string `json:"userId"`
	FullName string `json:"fullName"`
	// Headline: краткое описание («Go-разработчик, 5 лет»)
	Headline  string    `json:"headline,omitempty"`
	Location  string    `json:"location,omitempty"`
	Skills    []string  `json:"skills"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
