package host

import (
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/go-dap"
	"github.com/stretchr/testify/require"

	"github.com/lambda-tools/samdbg/pkg/testutil"
)

func sessionConfigForTesting() DebugSessionConfig {
	return DebugSessionConfig{
		Name:      ".NET Core Docker Attach: HelloWorld",
		Type:      "coreclr",
		Request:   "attach",
		ProcessID: "1",
		PipeTransport: PipeTransport{
			PipeProgram:  "sh",
			PipeArgs:     []string{"-c", "docker exec -i abc " + DebuggerCommandToken},
			DebuggerPath: "/tmp/lambci_debug_files/vsdbg",
		},
		SourceFileMap: map[string]string{"/var/task": "/work/src/HelloWorld"},
	}
}

// adapterPeer speaks the adapter side of the protocol over the given transport.
type adapterPeer struct {
	transport Transport
	attached  chan DebugSessionConfig
	failed    chan error
}

func newAdapterPeer(conn net.Conn) *adapterPeer {
	return &adapterPeer{
		transport: NewTCPTransport(conn),
		attached:  make(chan DebugSessionConfig, 1),
		failed:    make(chan error, 1),
	}
}

func (p *adapterPeer) serve(rejectInitialize bool) {
	msg, err := p.transport.ReadMessage()
	if err != nil {
		p.failed <- err
		return
	}
	initReq, ok := msg.(*dap.InitializeRequest)
	if !ok {
		p.failed <- fmt.Errorf("expected an initialize request, got %T", msg)
		return
	}

	// Adapters commonly emit output before answering; the client must tolerate it.
	_ = p.transport.WriteMessage(&dap.OutputEvent{
		Event: dap.Event{
			ProtocolMessage: dap.ProtocolMessage{Seq: 1, Type: "event"},
			Event:           "output",
		},
		Body: dap.OutputEventBody{Category: "console", Output: "adapter starting\n"},
	})

	initResp := &dap.InitializeResponse{
		Response: dap.Response{
			ProtocolMessage: dap.ProtocolMessage{Seq: 2, Type: "response"},
			Command:         "initialize",
			RequestSeq:      initReq.Seq,
			Success:         !rejectInitialize,
		},
	}
	if rejectInitialize {
		initResp.Message = "unsupported client"
	}
	if err := p.transport.WriteMessage(initResp); err != nil {
		p.failed <- err
		return
	}
	if rejectInitialize {
		return
	}

	msg, err = p.transport.ReadMessage()
	if err != nil {
		p.failed <- err
		return
	}
	attachReq, ok := msg.(*dap.AttachRequest)
	if !ok {
		p.failed <- fmt.Errorf("expected an attach request, got %T", msg)
		return
	}

	var config DebugSessionConfig
	if err := json.Unmarshal(attachReq.Arguments, &config); err != nil {
		p.failed <- err
		return
	}
	p.attached <- config
}

func TestIssueSessionRequests(t *testing.T) {
	clientConn, adapterConn := net.Pipe()
	defer clientConn.Close()
	defer adapterConn.Close()

	peer := newAdapterPeer(adapterConn)
	go peer.serve(false)

	config := sessionConfigForTesting()
	require.NoError(t, issueSessionRequests(NewTCPTransport(clientConn), config))

	select {
	case received := <-peer.attached:
		require.Equal(t, config, received)
	case err := <-peer.failed:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		require.Fail(t, "adapter peer did not receive the attach request")
	}
}

func TestIssueSessionRequestsInitializeRejected(t *testing.T) {
	clientConn, adapterConn := net.Pipe()
	defer clientConn.Close()
	defer adapterConn.Close()

	peer := newAdapterPeer(adapterConn)
	go peer.serve(true)

	err := issueSessionRequests(NewTCPTransport(clientConn), sessionConfigForTesting())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported client")
}

func TestStartSessionRequiresAdapterCommand(t *testing.T) {
	ctx, cancel := testutil.GetTestContext(t, 30*time.Second)
	defer cancel()

	executor := testutil.NewTestProcessExecutor(ctx)
	starter := NewAdapterSessionStarter(testutil.NewLogForTesting(t.Name()), executor, AdapterConfig{})

	err := starter.StartSession(ctx, sessionConfigForTesting(), "/work")
	require.Error(t, err)
	require.Contains(t, err.Error(), "Args")
}

func TestDefaultAdapterConfig(t *testing.T) {
	config := DefaultAdapterConfig()
	require.Equal(t, []string{"netcoredbg", "--interpreter=vscode"}, config.Args)
}
