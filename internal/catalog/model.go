// Package catalog manages the admin-curated resource tree: links and folders
// under resources/{category}, with live subscription, CRUD and move
// operations, and the visibility filter that scopes listings to a viewer's
// folder, year, and branch.
package catalog

import "errors"

// Category names the top-level resource buckets.
const (
	CategoryNotes  = "notes"
	CategoryPapers = "papers"
	CategoryDCET   = "dcet"
)

// RootFolder is the ParentID of top-level resources. Folders themselves
// always live at root; only a single level of nesting is supported.
const RootFolder = "root"

// ErrInvalid is returned when a required field is missing before a write is
// attempted.
var ErrInvalid = errors.New("catalog: invalid resource")

// ErrNotFound is returned when an operation names a resource that does not
// exist.
var ErrNotFound = errors.New("catalog: resource not found")

// Resource is an admin-curated reference to study material, or a folder
// grouping such references. Which optional fields are populated depends on
// the category: notes carry Chapter, papers carry Year/PaperType, dcet
// resources carry Topic.
type Resource struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	URL          string `json:"url,omitempty"`
	IsFolder     bool   `json:"isFolder,omitempty"`
	ParentID     string `json:"parentId"`
	Branch       string `json:"branch,omitempty"`
	AcademicYear string `json:"academicYear,omitempty"`
	Semester     string `json:"semester,omitempty"`
	Chapter      string `json:"chapter,omitempty"`
	Year         string `json:"year,omitempty"`
	Topic        string `json:"topic,omitempty"`
	Type         string `json:"type,omitempty"`
	Timestamp    int64  `json:"timestamp"`
}

// Tag is a titled taxonomy entry (a branch or a syllabus).
type Tag struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}
