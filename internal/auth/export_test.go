// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "io"

// SetRandReader replaces the entropy source and returns a restore func.
func SetRandReader(r io.Reader) func() {
	prev := randReader
	randReader = r
	return func() { randReader = prev }
}
