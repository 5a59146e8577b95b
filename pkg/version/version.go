// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// Version of jtt, set at build time with
// -ldflags "-X carvel.dev/jtt/pkg/version.Version=x.y.z"
var Version = "develop"

// IsDevelop reports whether this binary was built without a release version.
// Development builds satisfy every constraint.
func IsDevelop() bool { return Version == "develop" }

// RequireAtLeast fails when jtt is older than minimum.
func RequireAtLeast(minimum string) error {
	return Require(">= " + strings.TrimSpace(minimum))
}

// Require fails when jtt does not satisfy constraint (e.g. ">= 0.2, < 1.0").
func Require(constraint string) error {
	constraints, err := goversion.NewConstraint(constraint)
	if err != nil {
		return fmt.Errorf("Parsing version constraint '%s': %w", constraint, err)
	}
	if IsDevelop() {
		return nil
	}
	current, err := goversion.NewVersion(Version)
	if err != nil {
		return fmt.Errorf("Parsing jtt version '%s': %w", Version, err)
	}
	if !constraints.Check(current) {
		return fmt.Errorf("jtt version %s does not meet the required version %s", Version, constraint)
	}
	return nil
}

// AtLeast compares two arbitrary version strings.
func AtLeast(candidate, minimum string) (bool, error) {
	candidateVer, err := goversion.NewVersion(candidate)
	if err != nil {
		return false, err
	}
	minimumVer, err := goversion.NewVersion(minimum)
	if err != nil {
		return false, err
	}
	return candidateVer.GreaterThanOrEqual(minimumVer), nil
}
