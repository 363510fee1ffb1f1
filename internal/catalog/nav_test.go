package catalog_test

import (
	"testing"

	"github.com/techastra/studyhub/internal/catalog"
)

func TestFolderNavSingleLevel(t *testing.T) {
	nav := catalog.NewFolderNav()
	if nav.Current() != nil {
		t.Fatal("expected root start")
	}

	f1 := catalog.Resource{ID: "f1", Title: "Unit 1", IsFolder: true}
	f2 := catalog.Resource{ID: "f2", Title: "Unit 2", IsFolder: true}

	if !nav.Enter(f1) {
		t.Fatal("enter from root rejected")
	}
	if cur := nav.Current(); cur == nil || cur.ID != "f1" {
		t.Fatalf("current = %+v", cur)
	}

	// Only a single level of nesting: a folder click while inside is ignored.
	if nav.Enter(f2) {
		t.Error("enter while inside a folder should be rejected")
	}
	if cur := nav.Current(); cur.ID != "f1" {
		t.Errorf("current changed to %q", cur.ID)
	}

	nav.Exit()
	if nav.Current() != nil {
		t.Fatal("exit did not return to root")
	}
	if !nav.Enter(f2) {
		t.Error("enter after exit rejected")
	}
}

func TestFolderNavRejectsNonFolders(t *testing.T) {
	nav := catalog.NewFolderNav()
	if nav.Enter(catalog.Resource{ID: "n1", Title: "A note"}) {
		t.Error("entered a non-folder resource")
	}
}

func TestFolderNavView(t *testing.T) {
	nav := catalog.NewFolderNav()
	view := nav.View("2nd Year", "Mechanical")
	if view.FolderID != "" || view.Year != "2nd Year" || view.Branch != "Mechanical" {
		t.Errorf("root view = %+v", view)
	}

	nav.Enter(catalog.Resource{ID: "f1", IsFolder: true})
	if view = nav.View("", ""); view.FolderID != "f1" {
		t.Errorf("folder view = %+v", view)
	}
}
