// Package verify checks that the index artifacts match the hashes recorded
// in the manifest and that the composite checksum is self-consistent. The
// indexer writes every artifact as canonical JSON, so verification hashes
// the raw bytes: any single-byte mutation, including whitespace, surfaces.
package verify

import (
	"bytes"
	"encoding/json"

	"github.com/kb-labs/mind/internal/hashutil"
	"github.com/kb-labs/mind/internal/index"
	"github.com/kb-labs/mind/internal/minderr"
	"github.com/kb-labs/mind/internal/storage"
)

// Inconsistency describes one mismatch.
type Inconsistency struct {
	File     string `json:"file"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// Report is the verification outcome.
type Report struct {
	OK              bool            `json:"ok"`
	Code            string          `json:"code,omitempty"`
	Inconsistencies []Inconsistency `json:"inconsistencies"`
	Hint            string          `json:"hint,omitempty"`
}

// Verify loads the manifest, checks each referenced artifact against its
// recorded hash and canonical form, and recomputes the composite checksum.
func Verify(store storage.Storage) (*Report, error) {
	report := &Report{OK: true, Inconsistencies: []Inconsistency{}}

	manifestData, err := store.Read(index.IndexPath)
	if err != nil {
		if storage.IsNotExist(err) {
			return nil, minderr.New(minderr.CodeNoIndex, "no index manifest found")
		}
		return nil, err
	}
	var manifest index.MindIndex
	if err := json.Unmarshal(manifestData, &manifest); err != nil {
		report.OK = false
		report.Code = minderr.CodeIndexInconsistent
		report.Inconsistencies = append(report.Inconsistencies, Inconsistency{
			File:     index.IndexPath,
			Expected: "valid JSON manifest",
			Actual:   err.Error(),
		})
		report.Hint = "run 'mind init --force' and 'mind update' to rebuild"
		return report, nil
	}

	api := index.NewApiIndex()
	deps := index.NewDepsGraph()
	diff := index.NewRecentDiff()
	meta := index.NewProjectMeta()
	docs := index.NewDocsIndex()

	checks := []struct {
		path     string
		dst      any
		expected string
	}{
		{index.ApiIndexPath, api, manifest.ApiIndexHash},
		{index.DepsPath, deps, manifest.DepsHash},
		{index.RecentDiffPath, diff, manifest.RecentDiffHash},
		{index.MetaPath, meta, ""},
		{index.DocsPath, docs, ""},
	}

	for _, check := range checks {
		data, err := store.Read(check.path)
		if err != nil {
			report.Inconsistencies = append(report.Inconsistencies, Inconsistency{
				File:     check.path,
				Expected: "present",
				Actual:   "missing",
			})
			continue
		}
		if err := json.Unmarshal(data, check.dst); err != nil {
			report.Inconsistencies = append(report.Inconsistencies, Inconsistency{
				File:     check.path,
				Expected: "valid JSON",
				Actual:   err.Error(),
			})
			continue
		}

		// Every artifact must be in canonical form: the canonical
		// re-encoding of its parse equals the bytes on disk.
		canonical, err := hashutil.CanonicalJSON(check.dst)
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(canonical, data) {
			report.Inconsistencies = append(report.Inconsistencies, Inconsistency{
				File:     check.path,
				Expected: "canonical JSON encoding",
				Actual:   "non-canonical bytes",
			})
			continue
		}

		if check.expected == "" {
			continue
		}
		if actual := hashutil.Sha256Bytes(data); actual != check.expected {
			report.Inconsistencies = append(report.Inconsistencies, Inconsistency{
				File:     check.path,
				Expected: check.expected,
				Actual:   actual,
			})
		}
	}

	// The composite checksum covers the artifact set as a whole, so a
	// content mutation in meta.json or docs.json still surfaces here.
	if len(report.Inconsistencies) == 0 {
		checksum, err := hashutil.HashCanonical(map[string]any{
			"apiIndex":   api,
			"deps":       deps,
			"recentDiff": diff,
			"meta":       meta,
			"docs":       docs,
		})
		if err != nil {
			return nil, err
		}
		if checksum != manifest.IndexChecksum {
			report.Inconsistencies = append(report.Inconsistencies, Inconsistency{
				File:     index.IndexPath,
				Expected: manifest.IndexChecksum,
				Actual:   checksum,
			})
		}
	}

	if len(report.Inconsistencies) > 0 {
		report.OK = false
		report.Code = minderr.CodeIndexInconsistent
		report.Hint = "run 'mind update --no-cache' to rebuild the index"
	}
	return report, nil
}
