package models

import "time"

// ReleaseDateLayout is the only release date precision accepted by the aggregator.
const ReleaseDateLayout = "2006-01-02"

// Album is a release that passed the time window and name deduplication.
type Album struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Artist      string    `json:"artist"` // primary artist
	ReleaseDate time.Time `json:"release_date"`
}

// Released formats the release date as YYYY-MM-DD.
func (a Album) Released() string {
	return a.ReleaseDate.Format(ReleaseDateLayout)
}

// Playlist is a playlist created on the provider.
type Playlist struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	URL    string `json:"url"`
	Public bool   `json:"public"`
}
