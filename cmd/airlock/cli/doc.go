// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command framework for the airlock host CLI: a
// tree of [Command] values with pflag flag sets, help output, and
// typo suggestions for unknown commands and flags.
//
// Commands return errors. A command that has already reported its
// outcome and only needs a specific exit status returns [ExitError].
package cli
