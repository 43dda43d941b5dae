// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import "testing"

func TestStreamOnly(t *testing.T) {
	for _, method := range []string{MethodUnitKvGetAll, MethodContainerEnvGetAll} {
		if !StreamOnly(method) {
			t.Errorf("StreamOnly(%q) = false, want true", method)
		}
	}
	for _, method := range []string{MethodUnitKvGet, MethodTriggerHook, MethodPortGetOpened, "no-such-method"} {
		if StreamOnly(method) {
			t.Errorf("StreamOnly(%q) = true, want false", method)
		}
	}
}
