package host

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/go-logr/logr"
	"github.com/google/go-dap"

	"github.com/lambda-tools/samdbg/pkg/process"
)

const (
	clientID   = "samdbg"
	clientName = "samdbg local debugger"
)

// AdapterConfig describes how to launch the debug adapter process.
type AdapterConfig struct {
	// Args contains the adapter executable path followed by its arguments.
	Args []string
}

// DefaultAdapterConfig launches netcoredbg in VS Code interpreter mode, the
// freely available DAP adapter for CoreCLR targets.
func DefaultAdapterConfig() AdapterConfig {
	return AdapterConfig{
		Args: []string{"netcoredbg", "--interpreter=vscode"},
	}
}

// AdapterSessionStarter starts a debug session by launching a DAP debug
// adapter process and issuing initialize + attach requests over its stdio.
// It does not wait for the session to reach "attached" state.
type AdapterSessionStarter struct {
	log      logr.Logger
	executor process.Executor
	config   AdapterConfig
}

func NewAdapterSessionStarter(log logr.Logger, executor process.Executor, config AdapterConfig) *AdapterSessionStarter {
	return &AdapterSessionStarter{
		log:      log,
		executor: executor,
		config:   config,
	}
}

func (s *AdapterSessionStarter) StartSession(ctx context.Context, config DebugSessionConfig, workspaceRoot string) error {
	if len(s.config.Args) == 0 {
		return fmt.Errorf("invalid debug adapter configuration: Args must have at least one element")
	}

	transport, err := s.launchAdapter(ctx)
	if err != nil {
		return err
	}

	if err := issueSessionRequests(transport, config); err != nil {
		_ = transport.Close()
		return err
	}

	// The adapter owns the session from here on. Keep draining its messages so
	// the stdio pipe does not fill up; the process itself is stopped when the
	// caller's context expires.
	go s.drain(transport)

	return nil
}

// launchAdapter starts the adapter process with stdin/stdout pipes attached.
// The process lifetime is tied to ctx via the executor.
func (s *AdapterSessionStarter) launchAdapter(ctx context.Context) (Transport, error) {
	cmd := exec.Command(s.config.Args[0], s.config.Args[1:]...)

	stdin, stdinErr := cmd.StdinPipe()
	if stdinErr != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", stdinErr)
	}

	stdout, stdoutErr := cmd.StdoutPipe()
	if stdoutErr != nil {
		stdin.Close()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", stdoutErr)
	}

	exitHandler := process.ProcessExitHandlerFunc(func(pid process.Pid_t, exitCode int32, err error) {
		if err != nil {
			s.log.V(1).Info("Debug adapter process exited with error", "pid", pid, "exitCode", exitCode, "error", err.Error())
		} else {
			s.log.V(1).Info("Debug adapter process exited", "pid", pid, "exitCode", exitCode)
		}
	})

	pid, startWaitForExit, startErr := s.executor.StartProcess(ctx, cmd, exitHandler)
	if startErr != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("failed to start debug adapter: %w", startErr)
	}
	startWaitForExit()

	s.log.Info("Launched debug adapter process", "command", s.config.Args[0], "args", s.config.Args[1:], "pid", pid)

	return NewStdioTransport(stdout, stdin), nil
}

// issueSessionRequests performs the initialize handshake and then issues the
// attach request. It returns once the attach request has been written, without
// waiting for the attach response.
func issueSessionRequests(transport Transport, config DebugSessionConfig) error {
	seq := 0
	nextSeq := func() int {
		seq++
		return seq
	}

	initReq := &dap.InitializeRequest{
		Request: dap.Request{
			ProtocolMessage: dap.ProtocolMessage{Seq: nextSeq(), Type: "request"},
			Command:         "initialize",
		},
		Arguments: dap.InitializeRequestArguments{
			ClientID:        clientID,
			ClientName:      clientName,
			AdapterID:       config.Type,
			PathFormat:      "path",
			LinesStartAt1:   true,
			ColumnsStartAt1: true,
		},
	}
	if err := transport.WriteMessage(initReq); err != nil {
		return fmt.Errorf("failed to issue initialize request: %w", err)
	}

	// The adapter may emit events before responding; keep reading until the
	// initialize response arrives.
	for {
		msg, readErr := transport.ReadMessage()
		if readErr != nil {
			return fmt.Errorf("debug adapter did not respond to initialize: %w", readErr)
		}

		switch m := msg.(type) {
		case *dap.InitializeResponse:
			if !m.Success {
				return fmt.Errorf("debug adapter rejected initialize request: %s", m.Message)
			}
		case *dap.ErrorResponse:
			return fmt.Errorf("debug adapter returned an error during initialization: %s", m.Message)
		default:
			continue
		}
		break
	}

	attachArgs, marshalErr := json.Marshal(config)
	if marshalErr != nil {
		return fmt.Errorf("failed to serialize attach configuration: %w", marshalErr)
	}

	attachReq := &dap.AttachRequest{
		Request: dap.Request{
			ProtocolMessage: dap.ProtocolMessage{Seq: nextSeq(), Type: "request"},
			Command:         "attach",
		},
		Arguments: json.RawMessage(attachArgs),
	}
	if err := transport.WriteMessage(attachReq); err != nil {
		return fmt.Errorf("failed to issue attach request: %w", err)
	}

	return nil
}

func (s *AdapterSessionStarter) drain(transport Transport) {
	for {
		msg, err := transport.ReadMessage()
		if err != nil {
			return
		}
		s.log.V(1).Info("Debug adapter message", "seq", msg.GetSeq())
	}
}

var _ SessionStarter = (*AdapterSessionStarter)(nil)
