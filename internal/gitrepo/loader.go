package gitrepo

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xxxsen/mrag/internal/extract"
	"github.com/xxxsen/mrag/internal/model"
)

const DefaultMaxFileBytes = 1 << 20

var excludedNames = map[string]struct{}{
	"package-lock.json": {},
	"yarn.lock":         {},
}

var excludedExts = map[string]struct{}{
	".svg":  {},
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".ico":  {},
}

// LoadFiles reads text files under root/sub. When sub names a file only that
// file is loaded. Every document is tagged with source.
func LoadFiles(root, sub, source string, maxBytes int64) ([]model.SourceDocument, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileBytes
	}
	start := root
	if sub != "" {
		start = filepath.Join(root, filepath.FromSlash(sub))
		rel, err := filepath.Rel(root, start)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil, fmt.Errorf("path %q escapes repository", sub)
		}
	}
	info, err := os.Stat(start)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", sub, err)
	}
	var files []string
	if !info.IsDir() {
		files = append(files, start)
	} else {
		err = filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if d.Name() == ".git" {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || excluded(d.Name()) {
				return nil
			}
			fi, err := d.Info()
			if err != nil {
				return err
			}
			if fi.Size() > maxBytes {
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk repository: %w", err)
		}
	}
	sort.Strings(files)
	docs := make([]model.SourceDocument, 0, len(files))
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if int64(len(data)) > maxBytes || !extract.IsText(data) {
			continue
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		docs = append(docs, model.SourceDocument{Text: string(data), Source: source})
	}
	return docs, nil
}

func excluded(name string) bool {
	if _, ok := excludedNames[strings.ToLower(name)]; ok {
		return true
	}
	_, ok := excludedExts[strings.ToLower(filepath.Ext(name))]
	return ok
}
