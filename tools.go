// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

//go:build tools

package dexingest

import (
	_ "go.uber.org/mock/mockgen"
)
