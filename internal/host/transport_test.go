package host

import (
	"net"
	"testing"

	"github.com/google/go-dap"
	"github.com/stretchr/testify/require"
)

func TestTransportRoundTrip(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	client := NewTCPTransport(clientConn)
	server := NewTCPTransport(serverConn)
	defer client.Close()
	defer server.Close()

	sent := &dap.InitializeRequest{
		Request: dap.Request{
			ProtocolMessage: dap.ProtocolMessage{Seq: 1, Type: "request"},
			Command:         "initialize",
		},
		Arguments: dap.InitializeRequestArguments{ClientID: "samdbg"},
	}

	writeErr := make(chan error, 1)
	go func() {
		writeErr <- client.WriteMessage(sent)
	}()

	msg, err := server.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, <-writeErr)

	received, ok := msg.(*dap.InitializeRequest)
	require.True(t, ok)
	require.Equal(t, sent.Seq, received.Seq)
	require.Equal(t, sent.Command, received.Command)
	require.Equal(t, "samdbg", received.Arguments.ClientID)
}

func TestTransportClosedOperationsFail(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()

	transport := NewTCPTransport(clientConn)
	require.NoError(t, transport.Close())
	require.NoError(t, transport.Close(), "Close is idempotent")

	_, err := transport.ReadMessage()
	require.Error(t, err)

	err = transport.WriteMessage(&dap.InitializeRequest{})
	require.Error(t, err)
}
