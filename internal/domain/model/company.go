// Пакет model: доменные модели jobboard.
package model

import "time"

// Company: профиль компании-работодателя.
// Одна компания на одного владельца (субъект IdP с ролью company).
type Company struct {
	// ID: UUID компании
	ID string `json:"id"`
	// OwnerID: sub владельца в Keycloak
	OwnerID string `json:"ownerId"`
	Name    string `json:"name"`
	// Website: сайт компании (опционально)
	Website string `json:"website,omitempty"`
	// ContactEmail: адрес для откликов
	ContactEmail string    `json:"contactEmail,omitempty"`
	Description  string    `json:"description,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
