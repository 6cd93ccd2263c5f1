// Package discovery walks a project root and decides which files are
// eligible for indexing: include/exclude glob matching, symlink handling,
// and the binary/size pre-checks from spec.md §7.2. Grounded on the
// teacher's FileScanner (internal/indexing/pipeline_scanner.go) and
// GitignoreParser (internal/config/gitignore.go), with the teacher's
// hand-rolled "**" glob matcher replaced by github.com/bmatcuk/doublestar/v4,
// the real glob library the rest of the retrieved pack reaches for.
package discovery

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/trans/xerp-sub001/internal/config"
	"github.com/trans/xerp-sub001/internal/xerrors"
)

// BinaryPreCheckBytes is how many leading bytes are inspected for a null
// byte when classifying a file as binary (spec.md §7.2).
const BinaryPreCheckBytes = 8 * 1024

// Candidate is one file selected for indexing, relative to the project
// root.
type Candidate struct {
	RelPath string
	AbsPath string
	Size    int64
	MTime   int64
}

// Scanner walks a root directory applying the include/exclude glob rules
// and the binary/size rejection policy.
type Scanner struct {
	root           string
	include        []string
	exclude        []string
	maxFileSize    int64
	followSymlinks bool
}

// New builds a Scanner from a loaded Config.
func New(cfg *config.Config) *Scanner {
	return &Scanner{
		root:        cfg.Project.Root,
		include:     cfg.Index.Include,
		exclude:     cfg.Index.Exclude,
		maxFileSize: cfg.Index.MaxFileSizeBytes,
	}
}

// Walk visits every regular file under root that matches the include
// patterns and none of the exclude patterns, calling visit(candidate) for
// each. A file skipped for being binary, oversized, or unreadable is passed
// to onSkip with the reason instead of aborting the walk (spec.md §7.2:
// "file skipped, counted, indexing continues").
func (s *Scanner) Walk(visit func(Candidate) error, onSkip func(relPath string, err error)) error {
	return filepath.WalkDir(s.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if onSkip != nil {
				onSkip(path, err)
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(s.root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && s.matchesExclude(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if !s.matchesInclude(rel) || s.matchesExclude(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			onSkip(rel, xerrors.NewFileError(rel, "stat", err))
			return nil
		}

		if info.Size() > s.maxFileSize {
			onSkip(rel, xerrors.NewFileError(rel, "size-reject", errOversize))
			return nil
		}

		binary, err := looksBinary(path)
		if err != nil {
			onSkip(rel, xerrors.NewFileError(rel, "read", err))
			return nil
		}
		if binary {
			onSkip(rel, xerrors.NewFileError(rel, "binary-reject", errBinary))
			return nil
		}

		return visit(Candidate{
			RelPath: rel,
			AbsPath: path,
			Size:    info.Size(),
			MTime:   info.ModTime().Unix(),
		})
	})
}

func (s *Scanner) matchesInclude(rel string) bool {
	if len(s.include) == 0 {
		return true
	}
	for _, pat := range s.include {
		if ok, _ := doublestar.Match(pat, rel); ok {
			return true
		}
	}
	return false
}

func (s *Scanner) matchesExclude(rel string) bool {
	for _, pat := range s.exclude {
		if ok, _ := doublestar.Match(pat, rel); ok {
			return true
		}
	}
	return false
}

// looksBinary reads up to BinaryPreCheckBytes and reports whether a null
// byte appears, the spec.md §7.2 binary-detection rule.
func looksBinary(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, BinaryPreCheckBytes)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return false, err
	}
	return bytes.IndexByte(buf[:n], 0) >= 0, nil
}

var errOversize = oversizeErr{}
var errBinary = binaryErr{}

type oversizeErr struct{}

func (oversizeErr) Error() string { return "file exceeds max_file_size_bytes" }

type binaryErr struct{}

func (binaryErr) Error() string { return "null byte detected in first 8 KiB" }
