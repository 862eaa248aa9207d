// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package config holds the settings used to assemble a default
// pipeline.
//
// A Config is an explicit value. Nothing in the pipeline reads the
// process environment on its own: FromEnv is the one place environment
// variables are consulted, and only through the lookup function it is
// given. LoadFile overlays a YAML document on the defaults.
package config
