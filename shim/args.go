// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shim

import (
	"bytes"
	"fmt"
)

// EncodeArgs serializes argv with a NUL after every argument. An empty
// argument encodes as a lone NUL, so the result round-trips exactly.
func EncodeArgs(args []string) ([]byte, error) {
	var buffer bytes.Buffer
	for index, arg := range args {
		if bytes.IndexByte([]byte(arg), 0) >= 0 {
			return nil, fmt.Errorf("argument %d contains a NUL byte", index)
		}
		buffer.WriteString(arg)
		buffer.WriteByte(0)
	}
	return buffer.Bytes(), nil
}

// DecodeArgs parses NUL-terminated argv. A final argument without its
// terminator is still accepted. Empty input is an empty argv.
//
// Input alone cannot tell zero arguments from one empty argument when
// the writer is printf '%s\0' "$@", which prints a lone NUL for an
// empty "$@". Shell wrappers therefore go through DecodeArgsCount.
func DecodeArgs(data []byte) []string {
	args := []string{}
	for len(data) > 0 {
		index := bytes.IndexByte(data, 0)
		if index < 0 {
			args = append(args, string(data))
			break
		}
		args = append(args, string(data[:index]))
		data = data[index+1:]
	}
	return args
}

// DecodeArgsCount decodes data and checks it holds exactly argc
// arguments. With argc zero, empty input and a lone NUL both mean no
// arguments. The matching wrapper is:
//
//	printf '%s\0' "$@" | airlock-shim --null-args terraform "$#"
func DecodeArgsCount(data []byte, argc int) ([]string, error) {
	if argc < 0 {
		return nil, fmt.Errorf("negative argument count %d", argc)
	}
	if argc == 0 {
		if len(data) == 0 || (len(data) == 1 && data[0] == 0) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("argument count 0 but %d bytes of arguments on stdin", len(data))
	}
	args := DecodeArgs(data)
	if len(args) != argc {
		return nil, fmt.Errorf("argument count %d but stdin holds %d arguments", argc, len(args))
	}
	return args, nil
}
