package models

import (
	"time"
)

// CarImageRef is the persisted reference to an uploaded car image.
type CarImageRef struct {
	Name    string `bson:"name" json:"name"`       // object file name, e.g. "550e8400-....jpg"
	OwnerID string `bson:"uid" json:"uid"`         // uploading user
	Path    string `bson:"path" json:"path"`       // object key, "{uid}/{name}"
	URL     string `bson:"url" json:"url"`         // public URL
}

// Car represents a published car listing.
// Year, Km and Price are kept as free-text strings: they carry whatever the
// seller typed ("2016/2017", "23.000", "R$ 45.900").
type Car struct {
	Base        `bson:",inline"`
	Name        string        `bson:"name" json:"name"`
	Model       string        `bson:"model" json:"model"`
	Year        string        `bson:"year" json:"year"`
	Km          string        `bson:"km" json:"km"`
	Price       string        `bson:"price" json:"price"`
	City        string        `bson:"city" json:"city"`
	UF          string        `bson:"uf" json:"uf"`
	Whatsapp    string        `bson:"whatsapp" json:"whatsapp"`
	Description string        `bson:"description" json:"description"`
	Owner       string        `bson:"owner" json:"owner"` // seller display name
	UserID      string        `bson:"user_id" json:"uid"`
	Images      []CarImageRef `bson:"images" json:"images"`
	CreatedAt   time.Time     `bson:"created_at" json:"created_at"`
}
