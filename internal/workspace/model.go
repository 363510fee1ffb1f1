// Package workspace keeps a signed-in user's private activity record — four
// ordered collections under users/{uid}/workspace — synchronized live from
// the document store, and exposes the mutation operations the UI issues.
package workspace

// ItemType distinguishes the kinds of catalog items a workspace entry can
// reference.
type ItemType string

const (
	TypeNote  ItemType = "note"
	TypePaper ItemType = "paper"
	TypeDCET  ItemType = "dcet"
)

// Item is the caller-supplied identity of a catalog item being logged.
type Item struct {
	ItemID    string   `json:"itemId"`
	Type      ItemType `json:"type"`
	Title     string   `json:"title"`
	Chapter   string   `json:"chapter,omitempty"`
	Year      string   `json:"year,omitempty"`
	PaperType string   `json:"paperType,omitempty"`
}

// Entry is one stored workspace record. ID is the store-assigned push key.
// Search-history entries carry Query instead of the item fields.
type Entry struct {
	ID        string   `json:"id"`
	ItemID    string   `json:"itemId,omitempty"`
	Type      ItemType `json:"type,omitempty"`
	Title     string   `json:"title,omitempty"`
	Chapter   string   `json:"chapter,omitempty"`
	Year      string   `json:"year,omitempty"`
	PaperType string   `json:"paperType,omitempty"`
	Query     string   `json:"query,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

// Collections are the four live-ordered workspace sequences, newest first.
type Collections struct {
	RecentlyViewed []Entry `json:"recentlyViewed"`
	Downloads      []Entry `json:"downloads"`
	SearchHistory  []Entry `json:"searchHistory"`
	Favorites      []Entry `json:"favorites"`
}
