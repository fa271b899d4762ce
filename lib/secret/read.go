// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bytes"
	"fmt"
	"os"
)

// ReadFile reads a secret from path into a Buffer. Surrounding
// whitespace is trimmed (token files usually end in a newline). An
// empty file is an error. The heap copy read from disk is zeroed
// before returning.
func ReadFile(path string) (*Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	defer Zero(data)

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("secret file %s is empty", path)
	}
	return NewFromBytes(trimmed)
}
