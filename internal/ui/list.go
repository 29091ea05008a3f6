package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/nrx/internal/models"
)

var _ list.Item = albumItem{}

// albumItem wraps [models.Album] to implement [list.Item].
type albumItem struct {
	album models.Album
}

func (i albumItem) FilterValue() string { return i.album.Artist + " " + i.album.Name }
func (i albumItem) Title() string       { return i.album.Name }
func (i albumItem) Description() string {
	if i.album.ReleaseDate.IsZero() {
		return i.album.Artist
	}
	return fmt.Sprintf("%s • %s", i.album.Artist, i.album.Released())
}

func albumItems(albums []models.Album) []list.Item {
	items := make([]list.Item, len(albums))
	for i, a := range albums {
		items[i] = albumItem{album: a}
	}
	return items
}
