package catalog

// ViewContext is a viewer's position in the catalog: the folder being browsed
// (empty means root) and the viewer's academic year and branch.
type ViewContext struct {
	FolderID string
	Year     string
	Branch   string
}

// Matches reports whether a resource is visible in a viewing context.
//
// The rule is Common-or-match-or-unset in both the year and branch
// dimensions: a resource left untagged, or tagged "Common", stays visible to
// everyone, and a viewer with no year set (or an Alumni viewer) sees every
// year. Admins rely on this to make resources default-visible by leaving the
// tags blank, so the disjunction must hold exactly.
func Matches(res Resource, view ViewContext) bool {
	folder := view.FolderID
	if folder == "" {
		folder = RootFolder
	}
	parent := res.ParentID
	if parent == "" {
		parent = RootFolder
	}
	if parent != folder {
		return false
	}

	yearOK := view.Year == "" || view.Year == "Alumni" ||
		res.AcademicYear == "" || res.AcademicYear == "Common" ||
		res.AcademicYear == view.Year
	if !yearOK {
		return false
	}

	branchOK := view.Branch == "" ||
		res.Branch == "" || res.Branch == "Common" ||
		res.Branch == view.Branch
	return branchOK
}

// Filter returns the subset of resources visible in the viewing context,
// preserving order.
func Filter(resources []Resource, view ViewContext) []Resource {
	out := make([]Resource, 0, len(resources))
	for _, r := range resources {
		if Matches(r, view) {
			out = append(out, r)
		}
	}
	return out
}
