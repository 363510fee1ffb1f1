package catalog

import "sync"

// FolderNav is the folder navigation state machine: either at root or inside
// exactly one folder. The tree is a single level deep, so entering a folder
// while already inside one is ignored rather than flattened — callers must
// Exit back to root first.
type FolderNav struct {
	mu      sync.RWMutex
	current *Resource
}

// NewFolderNav starts at root.
func NewFolderNav() *FolderNav {
	return &FolderNav{}
}

// Enter moves into folder. Returns false without changing state when the
// resource is not a folder or when already inside a folder.
func (n *FolderNav) Enter(folder Resource) bool {
	if !folder.IsFolder {
		return false
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current != nil {
		return false
	}
	f := folder
	n.current = &f
	return true
}

// Exit returns to root. Safe to call at root.
func (n *FolderNav) Exit() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = nil
}

// Current returns the folder being browsed, or nil at root.
func (n *FolderNav) Current() *Resource {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.current == nil {
		return nil
	}
	f := *n.current
	return &f
}

// View builds the ViewContext for the current position combined with the
// viewer's year and branch.
func (n *FolderNav) View(year, branch string) ViewContext {
	view := ViewContext{Year: year, Branch: branch}
	if cur := n.Current(); cur != nil {
		view.FolderID = cur.ID
	}
	return view
}
