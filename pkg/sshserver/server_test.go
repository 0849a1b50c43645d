package sshserver

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func TestLoadOrGenerateSignerPersistsKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "host_ed25519")

	first, err := LoadOrGenerateSigner(path)
	require.NoError(t, err)
	require.Equal(t, ssh.KeyAlgoED25519, first.PublicKey().Type())

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second, err := LoadOrGenerateSigner(path)
	require.NoError(t, err)
	require.Equal(t, first.PublicKey().Marshal(), second.PublicKey().Marshal())
}

func TestLoadOrGenerateSignerRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host")
	require.NoError(t, os.WriteFile(path, []byte("not a key"), 0o600))

	_, err := LoadOrGenerateSigner(path)
	require.Error(t, err)
}

func TestServerEchoesLinesOverShell(t *testing.T) {
	signer, err := EphemeralSigner()
	require.NoError(t, err)

	srv := New("127.0.0.1:0", signer, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(ctx, func(ctx context.Context, term *Terminal) {
			_ = term.WriteLine("name?")
			line, err := term.ReadLine()
			if err != nil {
				return
			}
			_ = term.WriteLine("hello " + line)
		})
	}()

	client, err := ssh.Dial("tcp", srv.ListenAddr().String(), &ssh.ClientConfig{
		User:            "anyone",
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         time.Second,
	})
	require.NoError(t, err)
	defer client.Close()

	session, err := client.NewSession()
	require.NoError(t, err)
	defer session.Close()

	stdin, err := session.StdinPipe()
	require.NoError(t, err)
	stdout, err := session.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, session.Shell())

	_, err = stdin.Write([]byte("bruce\r"))
	require.NoError(t, err)

	reader := bufio.NewReader(stdout)
	var seen strings.Builder
	require.Eventually(t, func() bool {
		chunk, err := reader.ReadString('\n')
		seen.WriteString(chunk)
		return err != nil || strings.Contains(seen.String(), "hello bruce")
	}, 2*time.Second, time.Millisecond)
	require.Contains(t, seen.String(), "name?")
	require.Contains(t, seen.String(), "hello bruce")

	cancel()
	select {
	case err := <-errCh:
		require.True(t, errors.Is(err, context.Canceled), "unexpected error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
