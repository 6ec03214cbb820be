package ipc

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"copilot/internal/timeline"
)

func socketPath(t *testing.T) string {
	// unix socket paths are length limited; keep it short.
	dir, err := os.MkdirTemp("", "ipc")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "c.sock")
}

func TestRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := socketPath(t)
	srv, err := Listen(ctx, path, func(_ context.Context, req Request) Response {
		switch req.Cmd {
		case CmdAsk:
			return Response{OK: true, Reply: "echo: " + req.Text}
		case CmdHistory:
			return Response{OK: true, Messages: []timeline.Message{{ID: 1, Role: timeline.RoleBot, Content: "hi"}}}
		default:
			return Fail(errors.New("unknown command " + req.Cmd))
		}
	})
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer srv.Close()

	resp, err := SendCommand(path, Request{Cmd: CmdAsk, Text: "best driver"}, time.Second)
	if err != nil {
		t.Fatalf("SendCommand failed: %v", err)
	}
	if !resp.OK || resp.Reply != "echo: best driver" {
		t.Errorf("ask response = %+v", resp)
	}

	resp, err = SendCommand(path, Request{Cmd: CmdHistory}, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Messages) != 1 || resp.Messages[0].Content != "hi" {
		t.Errorf("history response = %+v", resp)
	}

	resp, err = SendCommand(path, Request{Cmd: "dance"}, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if resp.OK || resp.Error == "" {
		t.Errorf("unknown command response = %+v", resp)
	}
}

func TestBadRequest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := socketPath(t)
	srv, err := Listen(ctx, path, func(context.Context, Request) Response {
		t.Error("handler called for malformed request")
		return Response{}
	})
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Close()

	conn, err := net.Dial("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.Write([]byte("{not json\n"))

	buf := make([]byte, 256)
	conn.SetReadDeadline(time.Now().Add(time.Second))
	n, _ := conn.Read(buf)
	if n == 0 {
		t.Fatal("no error response for malformed request")
	}
}

func TestSendCommand_NoDaemon(t *testing.T) {
	if _, err := SendCommand(socketPath(t), Request{Cmd: CmdListen}, 100*time.Millisecond); err == nil {
		t.Fatal("expected error when daemon is not running")
	}
}

func TestListen_ContextCancelCloses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	path := socketPath(t)
	if _, err := Listen(ctx, path, func(context.Context, Request) Response { return Response{OK: true} }); err != nil {
		t.Fatal(err)
	}
	cancel()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, err := net.Dial("unix", path); err != nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("socket still accepting after cancel")
}
