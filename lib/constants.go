// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package jsonrelay

import (
	"fmt"
)

const (
	// SemVer is the semantic version of jsonrelay.
	SemVer = "0.1.0-unreleased"
)

var (
	// Ver is the full version of jsonrelay, used in responses to clients.
	Ver = fmt.Sprintf("jsonrelay-%s", SemVer)
)
