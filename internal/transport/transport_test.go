// Copyright (C) 2026 serenad contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newPipePeer wires two Transports back to back over in-memory pipes so
// a test can drive both the client and the simulated server side.
func newPipePeer() (client, server *Transport) {
	csR, csW := io.Pipe()
	scR, scW := io.Pipe()

	client = New(scR, csW)
	server = New(csR, scW)
	return client, server
}

func TestTransport_WriteMessage_FramesContentLength(t *testing.T) {
	var buf bytes.Buffer
	tr := New(strings.NewReader(""), &buf)

	err := tr.writeMessage(request{JSONRPC: jsonrpcVersion, ID: 1, Method: "test"})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Content-Length:")
	assert.Contains(t, out, `"method":"test"`)
}

func TestTransport_Call_TimesOutWithoutResponse(t *testing.T) {
	client, server := newPipePeer()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = server.ReadLoop(context.Background())
	}()
	go func() {
		_ = client.ReadLoop(context.Background())
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	// Without a responder answering id 1, Call must time out rather than
	// hang forever.
	_, err := client.Call(ctx, "echo", map[string]string{"hello": "world"})
	assert.ErrorIs(t, err, ErrTimeout)

	client.Close()
	server.Close()
	// Close does not interrupt a ReadLoop blocked in a read; ending the
	// streams does.
	client.writer.(io.Closer).Close()
	server.writer.(io.Closer).Close()
	wg.Wait()
}

func TestTransport_Call_FailsFastAfterClose(t *testing.T) {
	var buf bytes.Buffer
	tr := New(strings.NewReader(""), &buf)
	tr.Close()

	_, err := tr.Call(context.Background(), "anything", nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestTransport_Call_NilContext(t *testing.T) {
	var buf bytes.Buffer
	tr := New(strings.NewReader(""), &buf)

	_, err := tr.Call(nil, "anything", nil) //nolint:staticcheck
	require.Error(t, err)
}

func TestTransport_ReadLoop_DispatchesNotification(t *testing.T) {
	body := []byte(`{"jsonrpc":"2.0","method":"window/logMessage","params":{"message":"hi"}}`)
	frame := fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body)

	tr := New(strings.NewReader(frame), &bytes.Buffer{})

	received := make(chan string, 1)
	tr.OnNotification("window/logMessage", func(params json.RawMessage) {
		var v struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(params, &v)
		received <- v.Message
	})

	err := tr.ReadLoop(context.Background())
	require.NoError(t, err)

	select {
	case msg := <-received:
		assert.Equal(t, "hi", msg)
	default:
		t.Fatal("notification handler was not invoked")
	}
}

func TestTransport_ReadLoop_RoutesResponseByID(t *testing.T) {
	body := []byte(`{"jsonrpc":"2.0","id":1,"result":{"ok":true}}`)
	frame := fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body)

	tr := New(strings.NewReader(frame), &bytes.Buffer{})
	ch := make(chan response, 1)
	tr.pendingMu.Lock()
	tr.pending[1] = ch
	tr.pendingMu.Unlock()

	require.NoError(t, tr.ReadLoop(context.Background()))

	select {
	case resp := <-ch:
		assert.Nil(t, resp.Error)
		assert.JSONEq(t, `{"ok":true}`, string(resp.Result))
	default:
		t.Fatal("response was not routed to pending channel")
	}
}

func TestTransport_Close_FlushesPendingWithError(t *testing.T) {
	tr := New(strings.NewReader(""), &bytes.Buffer{})
	ch := make(chan response, 1)
	tr.pendingMu.Lock()
	tr.pending[1] = ch
	tr.pendingMu.Unlock()

	tr.Close()

	resp, ok := <-ch
	require.True(t, ok)
	require.True(t, resp.transportClosed)
	assert.Nil(t, resp.Error)
}
