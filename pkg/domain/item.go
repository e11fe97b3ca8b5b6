package domain

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultIcon is shown for items the backend returned without an icon.
const DefaultIcon = "https://cdn-icons-png.flaticon.com/512/5968/5968804.png"

// maxDisplayName is the longest item name rendered without truncation.
const maxDisplayName = 20

// ErrInvalidItemRef is returned when an item reference cannot be parsed.
var ErrInvalidItemRef = errors.New("invalid item reference")

// Item is one collectible in a user's inventory.
type Item struct {
	ID   string `json:"id"`
	Link string `json:"link"`
	Icon string `json:"icon,omitempty"`
}

// IconURL returns the item icon, falling back to DefaultIcon.
func (i Item) IconURL() string {
	if strings.TrimSpace(i.Icon) == "" {
		return DefaultIcon
	}
	return i.Icon
}

// DisplayName returns the item ID shortened for list rendering.
// Names longer than 20 runes keep their first 17 runes plus "...".
func (i Item) DisplayName() string {
	if utf8.RuneCountInString(i.ID) <= maxDisplayName {
		return i.ID
	}
	runes := []rune(i.ID)
	return string(runes[:maxDisplayName-3]) + "..."
}

// ItemLinkBase is the canonical link prefix every item ID resolves to.
const ItemLinkBase = "https://t.me/nft/"

var (
	itemLinkPattern = regexp.MustCompile(`^(?:https?://)?t\.me/nft/([A-Za-z0-9_-]+)/?$`)
	itemIDPattern   = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// ParseItemRef normalizes a link ("https://t.me/nft/Name-1", "t.me/nft/Name-1")
// or a bare ID ("Name-1") into the item ID and its canonical link.
func ParseItemRef(ref string) (Item, error) {
	ref = strings.TrimSpace(ref)
	id := ""
	if m := itemLinkPattern.FindStringSubmatch(ref); m != nil {
		id = m[1]
	} else if itemIDPattern.MatchString(ref) {
		id = ref
	}
	if id == "" {
		return Item{}, ErrInvalidItemRef
	}
	return Item{ID: id, Link: ItemLinkBase + id}, nil
}

// FindItem returns the item with the given ID.
func FindItem(items []Item, id string) (Item, bool) {
	for _, it := range items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}
