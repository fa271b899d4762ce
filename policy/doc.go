// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package policy decides whether a proxied tool invocation may run.
//
// A decision is a pure function of the tool name and its argument
// list: nothing here touches the filesystem, the network, or the
// clock. The proxy consults [Evaluate] before translating paths or
// spawning anything, and turns a negative [Decision] into a refusal
// with exit code 126.
//
// Infrastructure tools are restricted to read-only and plan-only
// operations. [Terraform] and [Kubectl] use allow lists of
// subcommands, with a second level for subcommands such as
// "terraform state" whose children differ in effect. [AWS] inspects
// the verb prefix of the operation name against a block list. git and
// gh are proxied for credential isolation only and are
// [Unrestricted].
package policy
