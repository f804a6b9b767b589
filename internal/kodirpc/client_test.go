package kodirpc

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"
)

// fakeKodi is a minimal in-process stand-in for Kodi's TCP JSON-RPC
// service. Requests are answered by the reply function; notifications can
// be pushed at any time with notify.
type fakeKodi struct {
	t        *testing.T
	listener net.Listener

	mu   sync.Mutex
	conn net.Conn
	enc  *json.Encoder

	reply func(method string, params json.RawMessage) (any, *Error)
}

type fakeRequest struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	ID     string          `json:"id"`
}

func newFakeKodi(t *testing.T, reply func(method string, params json.RawMessage) (any, *Error)) *fakeKodi {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	f := &fakeKodi{t: t, listener: listener, reply: reply}
	t.Cleanup(func() { listener.Close() })
	go f.serve()
	return f
}

func (f *fakeKodi) addr() string {
	return f.listener.Addr().String()
}

func (f *fakeKodi) serve() {
	conn, err := f.listener.Accept()
	if err != nil {
		return
	}
	f.mu.Lock()
	f.conn = conn
	f.enc = json.NewEncoder(conn)
	f.mu.Unlock()

	dec := json.NewDecoder(conn)
	for {
		var req fakeRequest
		if err := dec.Decode(&req); err != nil {
			return
		}
		if req.ID == "" {
			continue
		}
		var result any = "OK"
		var rpcErr *Error
		if f.reply != nil {
			result, rpcErr = f.reply(req.Method, req.Params)
		}
		f.mu.Lock()
		if rpcErr != nil {
			f.enc.Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "error": rpcErr})
		} else {
			f.enc.Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
		}
		f.mu.Unlock()
	}
}

func (f *fakeKodi) notify(method string, data any) {
	deadline := time.Now().Add(2 * time.Second)
	for {
		f.mu.Lock()
		enc := f.enc
		f.mu.Unlock()
		if enc != nil {
			break
		}
		if time.Now().After(deadline) {
			f.t.Fatal("no client connection to notify")
		}
		time.Sleep(5 * time.Millisecond)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enc.Encode(map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  map[string]any{"data": data},
	})
}

func dialTest(t *testing.T, f *fakeKodi) *Client {
	t.Helper()
	client, err := Dial(context.Background(), f.addr(), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestCallRoundTrip(t *testing.T) {
	fake := newFakeKodi(t, func(method string, _ json.RawMessage) (any, *Error) {
		if method != "JSONRPC.Ping" {
			t.Errorf("method = %q", method)
		}
		return "pong", nil
	})
	client := dialTest(t, fake)

	var result string
	if err := client.Call(context.Background(), "JSONRPC.Ping", nil, &result); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result != "pong" {
		t.Errorf("result = %q, want pong", result)
	}
}

func TestCallSurfacesRPCError(t *testing.T) {
	fake := newFakeKodi(t, func(string, json.RawMessage) (any, *Error) {
		return nil, &Error{Code: -32601, Message: "Method not found"}
	})
	client := dialTest(t, fake)

	err := client.Call(context.Background(), "Bogus.Method", nil, nil)
	var rpcErr *Error
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if rpcErr.Code != -32601 {
		t.Errorf("code = %d", rpcErr.Code)
	}
}

func TestCallHonorsContextCancel(t *testing.T) {
	fake := newFakeKodi(t, func(string, json.RawMessage) (any, *Error) {
		select {} // never answer
	})
	client := dialTest(t, fake)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := client.Call(ctx, "JSONRPC.Ping", nil, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestNotificationDispatch(t *testing.T) {
	fake := newFakeKodi(t, nil)
	client := dialTest(t, fake)

	got := make(chan json.RawMessage, 1)
	client.Handle("VideoLibrary.OnScanFinished", func(_ string, data json.RawMessage) {
		got <- data
	})

	// Issue a call first so the fake has accepted the connection.
	if err := client.Call(context.Background(), "JSONRPC.Ping", nil, nil); err != nil {
		t.Fatalf("Call: %v", err)
	}
	fake.notify("VideoLibrary.OnScanFinished", map[string]any{})

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("notification not dispatched")
	}
}

func TestCallAfterClose(t *testing.T) {
	fake := newFakeKodi(t, nil)
	client := dialTest(t, fake)
	client.Close()

	if err := client.Call(context.Background(), "JSONRPC.Ping", nil, nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func movieDetailsReply(t *testing.T, files map[int]string) func(string, json.RawMessage) (any, *Error) {
	t.Helper()
	return func(method string, params json.RawMessage) (any, *Error) {
		if method != "VideoLibrary.GetMovieDetails" {
			return "OK", nil
		}
		var req struct {
			MovieID int `json:"movieid"`
		}
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, &Error{Code: -32602, Message: "Invalid params"}
		}
		file, ok := files[req.MovieID]
		if !ok {
			return nil, &Error{Code: -32602, Message: "unknown movie"}
		}
		return map[string]any{"moviedetails": map[string]any{"file": file}}, nil
	}
}

func TestWatchLibraryBatchesAddedMoviesUntilScanFinishes(t *testing.T) {
	fake := newFakeKodi(t, movieDetailsReply(t, map[int]string{
		42: "/media/movies/Heat (1995).mkv",
		43: "/media/movies/Ran (1985).mkv",
	}))
	client := dialTest(t, fake)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := client.WatchLibrary(ctx)

	// Prime the connection so the fake can push notifications.
	if err := client.Call(ctx, "JSONRPC.Ping", nil, nil); err != nil {
		t.Fatalf("Call: %v", err)
	}

	fake.notify("VideoLibrary.OnUpdate", map[string]any{
		"added": true,
		"item":  map[string]any{"type": "movie", "id": 42},
	})
	// Same movie announced twice in one scan is delivered once.
	fake.notify("VideoLibrary.OnUpdate", map[string]any{
		"added": true,
		"item":  map[string]any{"type": "movie", "id": 42},
	})
	fake.notify("VideoLibrary.OnUpdate", map[string]any{
		"added": true,
		"item":  map[string]any{"type": "movie", "id": 43},
	})

	// Nothing is delivered while the scan is still running.
	select {
	case ev := <-events:
		t.Fatalf("event before scan finished: %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}

	fake.notify("VideoLibrary.OnScanFinished", map[string]any{})

	select {
	case ev := <-events:
		if len(ev.Paths) != 2 {
			t.Fatalf("Paths = %v, want both movies once each", ev.Paths)
		}
		if ev.Paths[0] != "/media/movies/Heat (1995).mkv" || ev.Paths[1] != "/media/movies/Ran (1985).mkv" {
			t.Fatalf("Paths = %v", ev.Paths)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no batch after scan finished")
	}
}

func TestWatchLibraryIgnoresNonAddUpdates(t *testing.T) {
	fake := newFakeKodi(t, nil)
	client := dialTest(t, fake)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := client.WatchLibrary(ctx)

	if err := client.Call(ctx, "JSONRPC.Ping", nil, nil); err != nil {
		t.Fatalf("Call: %v", err)
	}
	// A playcount touch after playback: OnUpdate without the added flag.
	fake.notify("VideoLibrary.OnUpdate", map[string]any{
		"item":      map[string]any{"type": "movie", "id": 7},
		"playcount": 1,
	})
	// Episodes are not handled even when added.
	fake.notify("VideoLibrary.OnUpdate", map[string]any{
		"added": true,
		"item":  map[string]any{"type": "episode", "id": 8},
	})
	fake.notify("VideoLibrary.OnScanFinished", map[string]any{})

	select {
	case ev := <-events:
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(300 * time.Millisecond):
	}
}
