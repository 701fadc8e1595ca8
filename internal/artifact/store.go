package artifact

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"swarmcap/internal/logging"
)

// FileName is the name of the program file inside each run directory.
const FileName = "main.go"

const maxCollisionRetries = 16

// Store writes artifacts under root as
// {root}/{task}/{task}_{YYYYmmdd_HHMMSS_mmm}_{7-digit random}/main.go.
// Leaf directories are created exclusively, so concurrent writers sharing a
// root never overwrite each other.
type Store struct {
	root   string
	now    func() time.Time
	suffix func() int
}

// NewStore creates a store rooted at root.
func NewStore(root string) *Store {
	return &Store{
		root:   root,
		now:    time.Now,
		suffix: func() int { return 1000000 + rand.IntN(9000000) },
	}
}

// Root returns the workspace root.
func (s *Store) Root() string {
	return s.root
}

// Write persists content for task and returns the file path.
func (s *Store) Write(task, content string) (string, error) {
	if task == "" || task == "." || task == ".." || filepath.Base(task) != task {
		return "", fmt.Errorf("invalid task name %q", task)
	}

	taskDir := filepath.Join(s.root, task)
	if err := os.MkdirAll(taskDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create task directory: %w", err)
	}

	for attempt := 0; attempt < maxCollisionRetries; attempt++ {
		dir := filepath.Join(taskDir, fmt.Sprintf("%s_%s_%d", task, timestamp(s.now()), s.suffix()))
		if err := os.Mkdir(dir, 0755); err != nil {
			if errors.Is(err, os.ErrExist) {
				logging.Get(logging.CategoryArtifact).Debug("artifact directory %s exists, drawing a new suffix", dir)
				continue
			}
			return "", fmt.Errorf("failed to create artifact directory: %w", err)
		}

		path := filepath.Join(dir, FileName)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			logging.ArtifactError("write %s: %v", path, err)
			return "", fmt.Errorf("failed to write artifact: %w", err)
		}
		logging.Artifact("wrote %s (%d bytes)", path, len(content))
		return path, nil
	}
	return "", fmt.Errorf("no free artifact directory for %s after %d attempts", task, maxCollisionRetries)
}

// timestamp formats t as YYYYmmdd_HHMMSS_mmm.
func timestamp(t time.Time) string {
	return fmt.Sprintf("%s_%03d", t.Format("20060102_150405"), t.Nanosecond()/int(time.Millisecond))
}
