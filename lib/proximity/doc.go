// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package proximity detects socket intents from object positions.
//
// It is pure geometry: no network, no request state. A [Detector] is
// given spherical trigger [Volume]s around sockets and is fed object
// positions every frame. It reports [Inside] for every frame an object
// is within a volume, the way a physics trigger's stay callback fires,
// and [Left] once when the object exits. Turning that level-triggered
// stream into requests is the job of the request package.
package proximity
