package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/asif-nvc/mcp-chat-visualizer/jsonrpc"
)

// maxMessageSize bounds a single newline-delimited message on the stream
// binding
const maxMessageSize = 16 * 1024 * 1024

// Transport binds a Server to a concrete channel. Serve blocks until the
// channel is exhausted or ctx is cancelled.
type Transport interface {
	Serve(ctx context.Context, server *Server) error
}

// StdioTransport carries newline-delimited JSON-RPC messages over a reader
// and writer pair, normally the process's standard input and output. One
// session spans the whole stream.
type StdioTransport struct {
	in     io.Reader
	out    *bufio.Writer
	writer *json.Encoder
	logger *slog.Logger
}

var _ Transport = (*StdioTransport)(nil)

// NewStdioTransport creates a new stdio transport
func NewStdioTransport(in io.Reader, out io.Writer, logger *slog.Logger) *StdioTransport {
	if logger == nil {
		logger = slog.Default()
	}
	bufOut := bufio.NewWriter(out)
	return &StdioTransport{
		in:     in,
		out:    bufOut,
		writer: json.NewEncoder(bufOut),
		logger: logger,
	}
}

type line struct {
	data []byte
	err  error
}

// Serve starts the transport loop, reading requests from the input and
// writing responses to the output. A write failure means the client went
// away: it is logged, the session is closed and Serve returns nil.
func (t *StdioTransport) Serve(ctx context.Context, server *Server) error {
	session := server.NewSession()
	if err := session.Connect(); err != nil {
		return err
	}
	defer session.Close()

	lines := make(chan line)
	go t.read(ctx, lines)

	for {
		var next line
		select {
		case <-ctx.Done():
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			next = l
		}

		if next.err != nil {
			return fmt.Errorf("scanner error: %w", next.err)
		}

		var request jsonrpc.Request
		if err := json.Unmarshal(next.data, &request); err != nil {
			response := jsonrpc.NewErrorResponse(nil, jsonrpc.NewError(jsonrpc.ErrParse, err.Error()))
			if err := t.write(response); err != nil {
				t.logger.Warn("client went away", "error", err)
				return nil
			}
			continue
		}

		if err := session.Handle(ctx, request, t.write); err != nil {
			t.logger.Warn("client went away", "error", err)
			return nil
		}
	}
}

// read scans lines until EOF and hands them to the serve loop one at a
// time
func (t *StdioTransport) read(ctx context.Context, lines chan<- line) {
	defer close(lines)

	scanner := bufio.NewScanner(t.in)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, maxMessageSize)

	for scanner.Scan() {
		text := scanner.Bytes()
		if len(text) == 0 {
			continue
		}
		data := make([]byte, len(text))
		copy(data, text)

		select {
		case lines <- line{data: data}:
		case <-ctx.Done():
			return
		}
	}

	if err := scanner.Err(); err != nil {
		select {
		case lines <- line{err: err}:
		case <-ctx.Done():
		}
	}
}

func (t *StdioTransport) write(response jsonrpc.Response) error {
	if err := t.writer.Encode(response); err != nil {
		return err
	}
	return t.out.Flush()
}
