package models

import (
	"encoding/json"

	"gorm.io/gorm"
)

type Property struct {
	gorm.Model
	HostID       uint    `json:"hostID" gorm:"not null;index"`
	Host         User    `json:"host" gorm:"foreignKey:HostID;references:ID"`
	Title        string  `json:"title"`
	AddressLine1 string  `json:"addressLine1"`
	City         string  `json:"city"`
	Country      string  `json:"country"`
	Lat          float32 `json:"lat"`
	Lng          float32 `json:"lng"`
	Images       string  `json:"images"` // JSON array of URLs
	IsActive     *bool   `json:"isActive"`
}

// PropertySummary annotates chat rooms without dragging the full listing.
type PropertySummary struct {
	ID       uint   `json:"id"`
	Title    string `json:"title"`
	Address  string `json:"address"`
	City     string `json:"city"`
	ImageURL string `json:"imageURL"`
}

func (p *Property) Summary() PropertySummary {
	return PropertySummary{
		ID:       p.ID,
		Title:    p.Title,
		Address:  p.AddressLine1,
		City:     p.City,
		ImageURL: p.FirstImage(),
	}
}

func (p *Property) FirstImage() string {
	if p.Images == "" {
		return ""
	}
	var imgs []string
	if err := json.Unmarshal([]byte(p.Images), &imgs); err != nil || len(imgs) == 0 {
		return ""
	}
	return imgs[0]
}
