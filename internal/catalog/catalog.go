package catalog

import (
	"context"
	"fmt"

	"github.com/techastra/studyhub/internal/docstore"
	"go.uber.org/zap"
)

const resourceCounterPath = "stats/totalResources"

// Catalog performs reads and writes against the resource tree. Admin-only by
// convention; this layer does not enforce authorization.
type Catalog struct {
	db     docstore.Store
	logger *zap.Logger
}

// New creates a Catalog.
func New(db docstore.Store, logger *zap.Logger) *Catalog {
	return &Catalog{db: db, logger: logger}
}

// Subscribe delivers the live resource listing for a category, newest first,
// on every change. The store hands back insertion order; the listing is
// reversed here because every consumer wants the latest additions on top.
func (c *Catalog) Subscribe(ctx context.Context, category string, fn func([]Resource)) (docstore.Disposer, error) {
	return c.db.Subscribe(ctx, categoryPath(category), func(snap docstore.Snapshot) {
		fn(listFrom(snap))
	})
}

// List returns the current listing for a category, newest first.
func (c *Catalog) List(ctx context.Context, category string) ([]Resource, error) {
	snap, err := c.db.Read(ctx, categoryPath(category))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", category, err)
	}
	return listFrom(snap), nil
}

// Folders returns the folder subset of a category listing. Folders are not
// stored separately; this is a filter over the full listing.
func (c *Catalog) Folders(ctx context.Context, category string) ([]Resource, error) {
	all, err := c.List(ctx, category)
	if err != nil {
		return nil, err
	}
	folders := make([]Resource, 0)
	for _, r := range all {
		if r.IsFolder {
			folders = append(folders, r)
		}
	}
	return folders, nil
}

// Create stores a new resource and returns its assigned id. ParentID defaults
// to root, the timestamp comes from the store clock, and the resource counter
// is bumped afterwards as a best-effort side effect: the create and the
// increment are independent writes, so the counter can drift and is repaired
// by the stats sync job.
func (c *Catalog) Create(ctx context.Context, category string, res Resource) (string, error) {
	if err := validate(res); err != nil {
		return "", err
	}

	childPath, id, err := c.db.Push(ctx, categoryPath(category))
	if err != nil {
		return "", fmt.Errorf("push resource: %w", err)
	}
	if err := c.db.Write(ctx, childPath, record(res)); err != nil {
		return "", fmt.Errorf("create resource: %w", err)
	}

	if _, err := c.db.AtomicIncrement(ctx, resourceCounterPath, 1); err != nil {
		c.logger.Warn("resource counter increment failed",
			zap.String("category", category),
			zap.Error(err),
		)
	}
	return id, nil
}

// Update overwrites the full record at id. There is no partial-field patch;
// edits and moves both go through whole-record replacement, except the
// narrower Move below.
func (c *Catalog) Update(ctx context.Context, category, id string, res Resource) error {
	if err := validate(res); err != nil {
		return err
	}
	if err := c.mustExist(ctx, category, id); err != nil {
		return err
	}
	if err := c.db.Write(ctx, resourcePath(category, id), record(res)); err != nil {
		return fmt.Errorf("update resource: %w", err)
	}
	return nil
}

// Move rewrites only the parentId field, leaving the rest of the record
// untouched.
func (c *Catalog) Move(ctx context.Context, category, id, folderID string) error {
	if folderID == "" {
		folderID = RootFolder
	}
	if err := c.mustExist(ctx, category, id); err != nil {
		return err
	}
	path := docstore.JoinPath(resourcePath(category, id), "parentId")
	if err := c.db.Write(ctx, path, folderID); err != nil {
		return fmt.Errorf("move resource: %w", err)
	}
	return nil
}

// Delete removes the resource node and decrements the counter, clamping at
// zero. Deleting a folder does not cascade to its children; they keep the
// dangling parentId and drop out of folder-scoped views until moved.
func (c *Catalog) Delete(ctx context.Context, category, id string) error {
	if err := c.mustExist(ctx, category, id); err != nil {
		return err
	}
	if err := c.db.Write(ctx, resourcePath(category, id), nil); err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}

	n, err := c.db.AtomicIncrement(ctx, resourceCounterPath, -1)
	if err != nil {
		c.logger.Warn("resource counter decrement failed", zap.Error(err))
		return nil
	}
	if n < 0 {
		if err := c.db.Write(ctx, resourceCounterPath, int64(0)); err != nil {
			c.logger.Warn("resource counter clamp failed", zap.Error(err))
		}
	}
	return nil
}

// Get returns a single resource.
func (c *Catalog) Get(ctx context.Context, category, id string) (Resource, error) {
	snap, err := c.db.Read(ctx, resourcePath(category, id))
	if err != nil {
		return Resource{}, fmt.Errorf("read resource: %w", err)
	}
	if !snap.Exists() {
		return Resource{}, ErrNotFound
	}
	return resourceFrom(id, snap), nil
}

func (c *Catalog) mustExist(ctx context.Context, category, id string) error {
	snap, err := c.db.Read(ctx, resourcePath(category, id))
	if err != nil {
		return fmt.Errorf("read resource: %w", err)
	}
	if !snap.Exists() {
		return ErrNotFound
	}
	return nil
}

// ── Branch / syllabus taxonomy ────────────────────────────────────────────

// Branches lists the configured branches.
func (c *Catalog) Branches(ctx context.Context) ([]Tag, error) {
	return c.listTags(ctx, "branches")
}

// Syllabuses lists the configured syllabuses.
func (c *Catalog) Syllabuses(ctx context.Context) ([]Tag, error) {
	return c.listTags(ctx, "syllabuses")
}

// AddBranch stores a new branch title.
func (c *Catalog) AddBranch(ctx context.Context, title string) (string, error) {
	return c.addTag(ctx, "branches", title)
}

// AddSyllabus stores a new syllabus title.
func (c *Catalog) AddSyllabus(ctx context.Context, title string) (string, error) {
	return c.addTag(ctx, "syllabuses", title)
}

// RemoveBranch deletes a branch entry. Resources tagged with the removed
// branch keep their tag string; visibility falls back to the filter rule.
func (c *Catalog) RemoveBranch(ctx context.Context, id string) error {
	return c.db.Write(ctx, docstore.JoinPath("branches", id), nil)
}

// RemoveSyllabus deletes a syllabus entry.
func (c *Catalog) RemoveSyllabus(ctx context.Context, id string) error {
	return c.db.Write(ctx, docstore.JoinPath("syllabuses", id), nil)
}

func (c *Catalog) listTags(ctx context.Context, bucket string) ([]Tag, error) {
	snap, err := c.db.Read(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", bucket, err)
	}
	kids := snap.Children()
	tags := make([]Tag, 0, len(kids))
	for _, kid := range kids {
		tags = append(tags, Tag{ID: kid.Key, Title: kid.Snap.Child("title").String()})
	}
	return tags, nil
}

func (c *Catalog) addTag(ctx context.Context, bucket, title string) (string, error) {
	if title == "" {
		return "", fmt.Errorf("%w: title is required", ErrInvalid)
	}
	childPath, id, err := c.db.Push(ctx, bucket)
	if err != nil {
		return "", fmt.Errorf("push %s: %w", bucket, err)
	}
	if err := c.db.Write(ctx, childPath, map[string]any{"title": title}); err != nil {
		return "", fmt.Errorf("write %s: %w", bucket, err)
	}
	return id, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────

func validate(res Resource) error {
	if res.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if !res.IsFolder && res.URL == "" {
		return fmt.Errorf("%w: url is required for non-folder resources", ErrInvalid)
	}
	return nil
}

// record builds the stored shape: ParentID defaulted, blanks omitted,
// timestamp stamped by the store.
func record(res Resource) map[string]any {
	parent := res.ParentID
	if parent == "" {
		parent = RootFolder
	}
	out := map[string]any{
		"title":     res.Title,
		"parentId":  parent,
		"timestamp": docstore.ServerTimestamp,
	}
	if res.IsFolder {
		out["isFolder"] = true
	}
	for k, v := range map[string]string{
		"url":          res.URL,
		"branch":       res.Branch,
		"academicYear": res.AcademicYear,
		"semester":     res.Semester,
		"chapter":      res.Chapter,
		"year":         res.Year,
		"topic":        res.Topic,
		"type":         res.Type,
	} {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

func listFrom(snap docstore.Snapshot) []Resource {
	kids := snap.Children()
	out := make([]Resource, 0, len(kids))
	// Reverse of ascending-key (insertion) order puts the newest first.
	for i := len(kids) - 1; i >= 0; i-- {
		out = append(out, resourceFrom(kids[i].Key, kids[i].Snap))
	}
	return out
}

func resourceFrom(id string, snap docstore.Snapshot) Resource {
	isFolder, _ := snap.Child("isFolder").Val().(bool)
	return Resource{
		ID:           id,
		Title:        snap.Child("title").String(),
		URL:          snap.Child("url").String(),
		IsFolder:     isFolder,
		ParentID:     snap.Child("parentId").String(),
		Branch:       snap.Child("branch").String(),
		AcademicYear: snap.Child("academicYear").String(),
		Semester:     snap.Child("semester").String(),
		Chapter:      snap.Child("chapter").String(),
		Year:         snap.Child("year").String(),
		Topic:        snap.Child("topic").String(),
		Type:         snap.Child("type").String(),
		Timestamp:    snap.Child("timestamp").Int(),
	}
}

func categoryPath(category string) string {
	return docstore.JoinPath("resources", category)
}

func resourcePath(category, id string) string {
	return docstore.JoinPath("resources", category, id)
}
