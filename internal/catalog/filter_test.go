package catalog_test

import (
	"testing"

	"github.com/techastra/studyhub/internal/catalog"
)

func TestMatchesYearBranchRule(t *testing.T) {
	tests := []struct {
		name string
		res  catalog.Resource
		view catalog.ViewContext
		want bool
	}{
		{
			name: "common branch falls back for any viewer branch",
			res:  catalog.Resource{ParentID: "root", Branch: "Common", AcademicYear: "2nd Year"},
			view: catalog.ViewContext{Branch: "Mechanical", Year: "2nd Year"},
			want: true,
		},
		{
			name: "year mismatch hides despite common branch",
			res:  catalog.Resource{ParentID: "root", Branch: "Common", AcademicYear: "2nd Year"},
			view: catalog.ViewContext{Branch: "Mechanical", Year: "3rd Year"},
			want: false,
		},
		{
			name: "untagged resource visible to everyone",
			res:  catalog.Resource{ParentID: "root"},
			view: catalog.ViewContext{Branch: "Civil", Year: "1st Year"},
			want: true,
		},
		{
			name: "alumni viewer sees every year",
			res:  catalog.Resource{ParentID: "root", AcademicYear: "1st Year"},
			view: catalog.ViewContext{Year: "Alumni"},
			want: true,
		},
		{
			name: "viewer with no year sees every year",
			res:  catalog.Resource{ParentID: "root", AcademicYear: "3rd Year"},
			view: catalog.ViewContext{Branch: "Electrical"},
			want: true,
		},
		{
			name: "branch mismatch hides",
			res:  catalog.Resource{ParentID: "root", Branch: "Computer Science"},
			view: catalog.ViewContext{Branch: "Mechanical"},
			want: false,
		},
		{
			name: "exact branch and year match",
			res:  catalog.Resource{ParentID: "root", Branch: "Mechanical", AcademicYear: "2nd Year"},
			view: catalog.ViewContext{Branch: "Mechanical", Year: "2nd Year"},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := catalog.Matches(tt.res, tt.view); got != tt.want {
				t.Errorf("Matches(%+v, %+v) = %v, want %v", tt.res, tt.view, got, tt.want)
			}
		})
	}
}

func TestMatchesFolderScoping(t *testing.T) {
	inFolder := catalog.Resource{ParentID: "f1"}
	atRoot := catalog.Resource{ParentID: "root"}
	unset := catalog.Resource{}

	// Resources inside a folder are hidden from root listings.
	if catalog.Matches(inFolder, catalog.ViewContext{}) {
		t.Error("folder child leaked into root listing")
	}
	if !catalog.Matches(inFolder, catalog.ViewContext{FolderID: "f1"}) {
		t.Error("folder child missing from its folder listing")
	}
	if catalog.Matches(atRoot, catalog.ViewContext{FolderID: "f1"}) {
		t.Error("root resource leaked into folder listing")
	}
	// Unset parentId counts as root.
	if !catalog.Matches(unset, catalog.ViewContext{}) {
		t.Error("unset parentId should list at root")
	}
}
