// ABOUTME: Option specs shared by push, download and list.
// ABOUTME: Holds the repository scoping flags and the default timeout.
package options

import (
	"strconv"
	"time"
)

// DefaultTimeout bounds a feed transfer when --timeout is absent.
const DefaultTimeout = 1800 * time.Second

func organisationSpec(usage string) Spec {
	return Spec{Name: "organisation", Aliases: []string{"org", "o"}, Usage: usage, Kind: String, Required: true}
}

func repositorySpec(usage string) Spec {
	return Spec{Name: "repository", Aliases: []string{"repo", "r"}, Usage: usage, Kind: String, Required: true}
}

func patSpec(usage string, required bool) Spec {
	return Spec{Name: "pat", Usage: usage, Kind: String, Required: required}
}

func regionSpec() Spec {
	return Spec{Name: "region", Usage: "The region hosting the repository (beta)", Kind: String}
}

func timeoutSpec(usage string) Spec {
	return Spec{
		Name:    "timeout",
		Usage:   usage,
		Kind:    Int,
		Default: strconv.Itoa(int(DefaultTimeout / time.Second)),
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
