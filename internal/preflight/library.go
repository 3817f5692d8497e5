package preflight

import (
	"fmt"
	"os"
	"strings"

	"github.com/Aman-CERP/bibdex/internal/bib"
)

// maxListed bounds the keys named in a check's details.
const maxListed = 5

// CheckPaperDir checks that the paper directory exists.
func (c *Checker) CheckPaperDir(dir string) CheckResult {
	result := CheckResult{
		Name:     "paper_dir",
		Required: true,
		Details:  dir,
	}

	info, err := os.Stat(dir)
	switch {
	case err != nil:
		result.Status = StatusFail
		result.Message = fmt.Sprintf("not accessible: %v", err)
	case !info.IsDir():
		result.Status = StatusFail
		result.Message = "not a directory"
	default:
		result.Status = StatusPass
		result.Message = "OK"
	}
	return result
}

// CheckBibliography parses the bibliography and counts entries whose file
// field names no readable document. Such entries are skipped by sync, so
// they only warn.
func (c *Checker) CheckBibliography(bibFile, paperDir string) CheckResult {
	result := CheckResult{
		Name:     "bibliography",
		Required: true,
	}

	records, err := bib.ParseFile(bibFile)
	if err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		result.Details = bibFile
		return result
	}

	var unreadable []string
	for _, rec := range records {
		if len(bib.ResolveFiles(rec.Field("file"), paperDir)) == 0 {
			unreadable = append(unreadable, rec.Key)
		}
	}

	result.Message = fmt.Sprintf("%d entries", len(records))
	if len(unreadable) == 0 {
		result.Status = StatusPass
		return result
	}

	result.Status = StatusWarn
	result.Message = fmt.Sprintf("%d entries, %d without readable files", len(records), len(unreadable))
	shown := unreadable
	if len(shown) > maxListed {
		shown = shown[:maxListed]
	}
	result.Details = strings.Join(shown, ", ")
	if len(unreadable) > maxListed {
		result.Details += fmt.Sprintf(" and %d more", len(unreadable)-maxListed)
	}
	return result
}
