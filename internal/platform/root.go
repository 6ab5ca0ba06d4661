package platform

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/go-git/go-git/v5"
)

// ErrNoProject is returned by ProjectRoot outside of any git work tree.
var ErrNoProject = errors.New("not inside a git work tree")

// ProjectRoot walks up from startDir to the top of the enclosing git work
// tree and returns its absolute path.
func ProjectRoot(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return "", fmt.Errorf("%w: %s", ErrNoProject, abs)
	}
	if err != nil {
		return "", fmt.Errorf("open git repository: %w", err)
	}

	wt, err := repo.Worktree()
	if errors.Is(err, git.ErrIsBareRepository) {
		return "", fmt.Errorf("%w: %s is a bare repository", ErrNoProject, abs)
	}
	if err != nil {
		return "", fmt.Errorf("open worktree: %w", err)
	}
	return filepath.Clean(wt.Filesystem.Root()), nil
}
