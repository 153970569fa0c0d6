package ingestion

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/guttosm/flexpulse/internal/flexquery"
	"github.com/guttosm/flexpulse/internal/service"
)

// reportSuffix selects the files picked up from an import directory.
const reportSuffix = ".xml"

// reportFile is one decoded report file.
type reportFile struct {
	path     string
	reportID string
	report   *flexquery.Report
}

// listReports returns the report files of dir in lexical order.
//
// Behavior:
//   - Only regular files ending in ".xml" (case-insensitive) are considered.
//   - Sub-directories are not walked.
//   - An empty directory is an error: there is nothing to import.
func listReports(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), reportSuffix) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no report files in %s", dir)
	}
	sort.Strings(files)
	return files, nil
}

// readReport loads and decodes one report file.
//
// Parameters:
//   - path: file path.
//
// Returns:
//   - the decoded report together with its content hash.
//   - error: I/O failures, or a *flexquery.ParseError for malformed documents.
func readReport(path string) (reportFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return reportFile{}, fmt.Errorf("read: %w", err)
	}
	rep, err := flexquery.ParseBytes(data)
	if err != nil {
		return reportFile{}, err
	}
	return reportFile{path: path, reportID: service.ReportID(data), report: rep}, nil
}
