package release

import (
	"context"
	"os/exec"
	"strings"

	"codeberg.org/mutker/wvasim/internal/errors"
)

// VCS reports the revision of the tree being packaged.
type VCS interface {
	ShortCommit(ctx context.Context) (string, error)
}

// GitVCS asks the git binary on PATH about the repository at Dir.
type GitVCS struct {
	Dir string
}

func (g GitVCS) ShortCommit(ctx context.Context) (string, error) {
	errFactory := errors.New()

	bin, err := exec.LookPath("git")
	if err != nil {
		return "", errFactory.Wrap(ErrVCSUnavailable, err)
	}

	cmd := exec.CommandContext(ctx, bin, "rev-parse", "--short", "HEAD")
	cmd.Dir = g.Dir
	out, err := cmd.Output()
	if err != nil {
		return "", errFactory.Wrap(ErrVCSCommand, err)
	}

	sha := strings.TrimSpace(string(out))
	if sha == "" {
		return "", errFactory.WithMessage(ErrVCSCommand, "git printed no commit")
	}
	return sha, nil
}
