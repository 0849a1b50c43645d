package wsserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSplitLines(t *testing.T) {
	require.Equal(t, []string{"hello"}, splitLines("hello"))
	require.Equal(t, []string{"a", "b"}, splitLines("a\r\nb\n"))
	require.Equal(t, []string{""}, splitLines(""))
	require.Equal(t, []string{"a", "", "b"}, splitLines("a\n\nb"))
}

func TestRouterServesLinesOverWebSocket(t *testing.T) {
	srv := New("", zerolog.Nop())
	srv.Users = func() int { return 3 }

	got := make(chan string, 8)
	handler := func(ctx context.Context, conn *Conn) {
		for {
			line, err := conn.ReadLine()
			if err != nil {
				if errors.Is(err, io.EOF) {
					got <- "<eof>"
				}
				return
			}
			got <- line
			_ = conn.WriteLine("echo " + line)
		}
	}

	httpSrv := httptest.NewServer(srv.Router(context.Background(), handler))
	defer httpSrv.Close()

	resp, err := http.Get(httpSrv.URL + "/healthz")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, "ok users=3\n", string(body))

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws"
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("bob\r\n/join chat")))
	require.Equal(t, "bob", <-got)
	require.Equal(t, "/join chat", <-got)

	_, msg, err := client.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, "echo bob", string(msg))

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	require.NoError(t, client.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second)))

	select {
	case line := <-got:
		require.Equal(t, "<eof>", line)
	case <-time.After(time.Second):
		t.Fatal("no end of stream")
	}
	client.Close()
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	srv := New("127.0.0.1:0", zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(ctx, func(ctx context.Context, conn *Conn) {
			<-ctx.Done()
		})
	}()

	wsURL := "ws://" + srv.ListenAddr().String() + "/ws"
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer client.Close()

	cancel()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
