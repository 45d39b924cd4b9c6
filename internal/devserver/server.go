// SPDX-License-Identifier: Apache-2.0
package devserver

import (
	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"
)

const languageServerName = "turbine-ir"

// NewServer wires a Handler into a glsp server listening on stdio, the
// same construction shape as the teacher's own LSP entry point
// (commonlog.Configure + protocol.Handler + server.NewServer).
func NewServer(debug bool) *server.Server {
	if debug {
		commonlog.Configure(1, nil)
	}

	h := NewHandler()
	ph := protocol.Handler{
		Initialize:                  h.Initialize,
		Initialized:                 h.Initialized,
		Shutdown:                    h.Shutdown,
		TextDocumentDidOpen:         h.TextDocumentDidOpen,
		TextDocumentDidChange:       h.TextDocumentDidChange,
		TextDocumentDidClose:        h.TextDocumentDidClose,
		WorkspaceExecuteCommand:     h.ExecuteCommand,
	}

	return server.NewServer(&ph, languageServerName, debug)
}
