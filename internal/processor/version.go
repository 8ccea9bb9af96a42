package processor

import (
	"context"
	"fmt"
	"regexp"

	"github.com/Masterminds/semver/v3"
)

var versionPattern = regexp.MustCompile(`v?\d+\.\d+(\.\d+)?(-[0-9A-Za-z.-]+)?`)

// ParseVersion extracts the first semantic version found in s, which is
// typically the output of `tool --version`.
func ParseVersion(s string) (*semver.Version, error) {
	match := versionPattern.FindString(s)
	if match == "" {
		return nil, fmt.Errorf("no version found in %q", s)
	}

	v, err := semver.NewVersion(match)
	if err != nil {
		return nil, fmt.Errorf("parsing version %q: %w", match, err)
	}

	return v, nil
}

// Version runs `tool --version` and returns the reported version.
func (e *Exec) Version(ctx context.Context) (*semver.Version, error) {
	args := make([]string, 0, len(e.args)+1)
	args = append(args, e.args...)
	args = append(args, "--version")

	out, _, err := e.run(ctx, args)
	if err != nil {
		return nil, commandError(e.name, err, out)
	}

	return ParseVersion(out)
}

// CheckVersion verifies that the installed tool satisfies constraint.
// An exact version such as "0.3.4" is treated as an equality constraint.
func (e *Exec) CheckVersion(ctx context.Context, constraint string) (*semver.Version, error) {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return nil, fmt.Errorf("invalid version constraint %q: %w", constraint, err)
	}

	v, err := e.Version(ctx)
	if err != nil {
		return nil, err
	}

	if !c.Check(v) {
		return v, fmt.Errorf("%s %s does not satisfy %q", e.name, v, constraint)
	}

	return v, nil
}
