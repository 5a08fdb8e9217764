// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Cobraflex - Cobra Flex Motion and Gimbal Teleop
//
// A CLI and terminal UI that turns operator intents into JSON commands for a
// Cobra Flex mecanum robot and its pan/tilt gimbal.

package main

import (
	"os"

	"github.com/Thermoquad/cobraflex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
