// SPDX-License-Identifier: Apache-2.0
package sysutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCurrentProcessIDIsPositive(t *testing.T) {
	require.Greater(t, CurrentProcessID(), 0)
}

func TestTempFilePathIncludesNameAndExtension(t *testing.T) {
	p := TempFilePath("turbine", "svg")
	require.True(t, strings.HasPrefix(p, "/"))
	require.True(t, strings.HasSuffix(p, ".svg"))
	require.Contains(t, p, "turbine_")
}

func TestRunProcessReportsMissingBinary(t *testing.T) {
	_, err := RunProcess("turbine-definitely-not-a-real-binary", nil, "")
	require.Error(t, err)
}
