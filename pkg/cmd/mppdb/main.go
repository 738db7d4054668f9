// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package main

import "github.com/mppdb/mppdb/pkg/cli"

func main() {
	cli.Main()
}
