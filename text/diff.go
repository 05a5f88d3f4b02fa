// Package text holds line-diff helpers shared by the engine and the buffer
// layer. The heavy lifting is done by diffmatchpatch in line mode.
package text

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// ChangedRegion is one contiguous run of changed lines: the text it replaced
// and the text it became. Either side may be empty for pure inserts/deletes.
type ChangedRegion struct {
	Original string
	Updated  string
}

// ExtractChangedRegions diffs two line slices and returns one region per
// contiguous change, skipping unchanged context. A delete immediately
// followed by an insert is one modified region.
func ExtractChangedRegions(oldLines, newLines []string) []ChangedRegion {
	oldText := strings.Join(oldLines, "\n")
	newText := strings.Join(newLines, "\n")
	if oldText == newText {
		return nil
	}

	dmp := diffmatchpatch.New()
	chars1, chars2, lineArray := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffMain(chars1, chars2, false)
	lineDiffs := dmp.DiffCharsToLines(diffs, lineArray)

	var regions []ChangedRegion
	for i := 0; i < len(lineDiffs); i++ {
		diff := lineDiffs[i]

		switch diff.Type {
		case diffmatchpatch.DiffEqual:
			continue

		case diffmatchpatch.DiffDelete:
			deleted := strings.TrimSuffix(diff.Text, "\n")
			inserted := ""
			if i+1 < len(lineDiffs) && lineDiffs[i+1].Type == diffmatchpatch.DiffInsert {
				inserted = strings.TrimSuffix(lineDiffs[i+1].Text, "\n")
				i++
			}
			regions = append(regions, ChangedRegion{Original: deleted, Updated: inserted})

		case diffmatchpatch.DiffInsert:
			regions = append(regions, ChangedRegion{Original: "", Updated: strings.TrimSuffix(diff.Text, "\n")})
		}
	}
	return regions
}

// Stats returns the total added and removed line counts across all changed
// regions between the two snapshots.
func Stats(oldLines, newLines []string) (added, removed int) {
	for _, r := range ExtractChangedRegions(oldLines, newLines) {
		if r.Original != "" {
			removed += countLines(r.Original)
		}
		if r.Updated != "" {
			added += countLines(r.Updated)
		}
	}
	return added, removed
}

// Summary renders a short human-readable change report for vim.notify.
func Summary(oldLines, newLines []string) string {
	regions := ExtractChangedRegions(oldLines, newLines)
	if len(regions) == 0 {
		return "no changes"
	}
	added, removed := 0, 0
	for _, r := range regions {
		if r.Original != "" {
			removed += countLines(r.Original)
		}
		if r.Updated != "" {
			added += countLines(r.Updated)
		}
	}
	noun := "region"
	if len(regions) != 1 {
		noun = "regions"
	}
	return fmt.Sprintf("%d %s changed, +%d -%d", len(regions), noun, added, removed)
}

func countLines(text string) int {
	return strings.Count(text, "\n") + 1
}
