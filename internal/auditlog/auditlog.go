// Package auditlog records admin actions in the shared document store so the
// admin console can show who changed what.
package auditlog

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/techastra/studyhub/internal/docstore"
)

const logsPath = "system_logs"

// Actor identifies the admin performing an action.
type Actor struct {
	Name  string
	Email string
	Photo string
}

// Entry is one recorded admin action.
type Entry struct {
	ID         string `json:"id"`
	Action     string `json:"action"`
	Section    string `json:"section"`
	Details    string `json:"details"`
	AdminName  string `json:"adminName"`
	AdminEmail string `json:"adminEmail"`
	AdminPhoto string `json:"adminPhoto,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

// Recorder appends audit entries and lists them back newest first.
type Recorder struct {
	db     docstore.Store
	logger *zap.Logger
}

func NewRecorder(db docstore.Store, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{db: db, logger: logger}
}

// Record writes one entry. Failures are reported but must not abort the
// admin operation they describe, so callers typically log and continue.
func (r *Recorder) Record(ctx context.Context, actor Actor, action, section, details string) error {
	id := uuid.NewString()
	entry := map[string]any{
		"action":     action,
		"section":    section,
		"details":    details,
		"adminName":  actor.Name,
		"adminEmail": actor.Email,
		"timestamp":  docstore.ServerTimestamp,
	}
	if actor.Photo != "" {
		entry["adminPhoto"] = actor.Photo
	}
	if err := r.db.Write(ctx, docstore.JoinPath(logsPath, id), entry); err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}
	return nil
}

// List returns all entries, newest first.
func (r *Recorder) List(ctx context.Context) ([]Entry, error) {
	snap, err := r.db.Read(ctx, logsPath)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	var out []Entry
	for _, child := range snap.Children() {
		out = append(out, Entry{
			ID:         child.Key,
			Action:     child.Snap.Child("action").String(),
			Section:    child.Snap.Child("section").String(),
			Details:    child.Snap.Child("details").String(),
			AdminName:  child.Snap.Child("adminName").String(),
			AdminEmail: child.Snap.Child("adminEmail").String(),
			AdminPhoto: child.Snap.Child("adminPhoto").String(),
			Timestamp:  child.Snap.Child("timestamp").Int(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
