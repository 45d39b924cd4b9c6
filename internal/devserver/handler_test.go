// SPDX-License-Identifier: Apache-2.0
package devserver

import (
	"testing"

	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"turbine/internal/diag"
)

func TestUriToPathStripsFileScheme(t *testing.T) {
	path, err := uriToPath("file:///tmp/example.ir")
	require.NoError(t, err)
	require.Equal(t, "/tmp/example.ir", path)
}

func TestDiagnosticsFromBagMapsSeverity(t *testing.T) {
	var bag diag.Bag
	bag.Errorf("f", "entry", "bad thing")
	bag.Warnf("f", "", "minor thing")

	out := diagnosticsFromBag(&bag)
	require.Len(t, out, 2)
	require.Equal(t, protocol.DiagnosticSeverityError, *out[0].Severity)
	require.Contains(t, out[0].Message, "f.entry")
	require.Equal(t, protocol.DiagnosticSeverityWarning, *out[1].Severity)
}

func TestNewHandlerStartsEmpty(t *testing.T) {
	h := NewHandler()
	require.Empty(t, h.docs)
}
