// Package ipc is the daemon's control socket: one JSON request and one JSON
// response per unix connection.
package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"os"
	"time"

	"copilot/internal/timeline"
)

const (
	CmdListen  = "listen"
	CmdStop    = "stop"
	CmdCancel  = "cancel"
	CmdAsk     = "ask"
	CmdHistory = "history"
)

// DefaultTimeout covers the longest request, an ask that waits for the
// backend.
const DefaultTimeout = 45 * time.Second

type Request struct {
	Cmd  string `json:"cmd"`
	Text string `json:"text,omitempty"`
}

type Response struct {
	OK       bool               `json:"ok"`
	Error    string             `json:"error,omitempty"`
	Reply    string             `json:"reply,omitempty"`
	Messages []timeline.Message `json:"messages,omitempty"`
}

func Fail(err error) Response {
	return Response{Error: err.Error()}
}

type Handler func(ctx context.Context, req Request) Response

type Server struct {
	ln   net.Listener
	path string
}

// Listen replaces any stale socket at path and serves requests until ctx is
// done or Close is called.
func Listen(ctx context.Context, path string, handler Handler) (*Server, error) {
	os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}

	s := &Server{ln: ln, path: path}
	go func() {
		<-ctx.Done()
		s.Close()
	}()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				log.Warn("ipc accept failed", "err", err)
				continue
			}
			go handleConn(ctx, conn, handler)
		}
	}()

	return s, nil
}

func (s *Server) Close() error {
	err := s.ln.Close()
	os.Remove(s.path)
	return err
}

func handleConn(ctx context.Context, conn net.Conn, handler Handler) {
	defer conn.Close()

	var req Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		log.Debug("ipc bad request", "err", err)
		json.NewEncoder(conn).Encode(Fail(fmt.Errorf("bad request: %w", err)))
		return
	}

	log.Debug("ipc request", "cmd", req.Cmd)
	if err := json.NewEncoder(conn).Encode(handler(ctx, req)); err != nil {
		log.Debug("ipc write failed", "err", err)
	}
}

// SendCommand sends req to the daemon at path and waits for its response.
func SendCommand(path string, req Request, timeout time.Duration) (Response, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	conn, err := net.DialTimeout("unix", path, timeout)
	if err != nil {
		return Response{}, err
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(timeout))

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return Response{}, fmt.Errorf("send: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("receive: %w", err)
	}
	return resp, nil
}
