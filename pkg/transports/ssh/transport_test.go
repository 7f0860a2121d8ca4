package ssh

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"

	"github.com/cookbridge/cookbridge/pkg/client"
	"github.com/cookbridge/cookbridge/pkg/engine"
	"github.com/cookbridge/cookbridge/pkg/memengine"
	"github.com/cookbridge/cookbridge/pkg/server"
)

// testSSHServer answers "exec" with an in-process engine server on the channel and
// serves the sftp subsystem from the local filesystem.
type testSSHServer struct {
	listener net.Listener
	config   *ssh.ServerConfig
	engine   *memengine.Engine
	commands chan string
}

func newTestSSHServer(t *testing.T, e *memengine.Engine) *testSSHServer {
	t.Helper()
	_, privKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate host key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(privKey)
	if err != nil {
		t.Fatalf("failed to create signer: %v", err)
	}

	config := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if c.User() == "artist" && string(pass) == "secret" {
				return nil, nil
			}
			return nil, fmt.Errorf("invalid credentials")
		},
	}
	config.AddHostKey(signer)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	s := &testSSHServer{listener: listener, config: config, engine: e, commands: make(chan string, 4)}
	go s.serve()
	t.Cleanup(func() { listener.Close() })
	return s
}

func (s *testSSHServer) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConnection(conn)
	}
}

func (s *testSSHServer) handleConnection(netConn net.Conn) {
	defer netConn.Close()

	sshConn, chans, reqs, err := ssh.NewServerConn(netConn, s.config)
	if err != nil {
		return
	}
	defer sshConn.Close()
	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		channel, requests, err := newChannel.Accept()
		if err != nil {
			continue
		}
		go s.handleChannel(channel, requests)
	}
}

func (s *testSSHServer) handleChannel(channel ssh.Channel, requests <-chan *ssh.Request) {
	defer channel.Close()

	for req := range requests {
		switch req.Type {
		case "exec":
			var payload struct{ Command string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
				req.Reply(false, nil)
				continue
			}
			req.Reply(true, nil)
			s.commands <- payload.Command

			srv := server.New(s.engine, server.Config{Logger: zerolog.Nop()})
			_ = srv.Serve(context.Background(), channel, channel)
			channel.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{0}))
			return

		case "subsystem":
			var payload struct{ Name string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil || payload.Name != "sftp" {
				req.Reply(false, nil)
				continue
			}
			req.Reply(true, nil)
			sftpServer, err := sftp.NewServer(channel)
			if err != nil {
				return
			}
			_ = sftpServer.Serve()
			return

		default:
			if req.WantReply {
				req.Reply(false, nil)
			}
		}
	}
}

func (s *testSSHServer) transportConfig(t *testing.T) *Config {
	t.Helper()
	host, portStr, err := net.SplitHostPort(s.listener.Addr().String())
	if err != nil {
		t.Fatalf("bad listener address: %v", err)
	}
	port, _ := strconv.Atoi(portStr)

	config := DefaultConfig(host, "artist")
	config.Port = port
	config.AuthMethod = AuthMethodPassword
	config.Password = "secret"
	config.StrictHostKeyChecking = false
	config.ConnectionTimeout = 5 * time.Second
	return config
}

func TestEngineTransportRunsRemoteServer(t *testing.T) {
	e := memengine.New()
	e.SetLicense(engine.LicenseHoudiniEngine)
	s := newTestSSHServer(t, e)

	config := s.transportConfig(t)
	config.ServerArgs = []string{"--idle-timeout", "1m"}
	transport, err := NewEngineTransport(config, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create transport: %v", err)
	}

	dir := t.TempDir()
	local := filepath.Join(dir, "engine-server")
	if err := os.WriteFile(local, []byte("#!/bin/sh\n"), 0o644); err != nil {
		t.Fatalf("failed to write binary: %v", err)
	}
	remote := filepath.Join(dir, "remote", "engine-server")

	c, err := client.New(client.Config{
		Transport:  transport,
		LocalPath:  local,
		RemotePath: remote,
		Logger:     zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	ctx := context.Background()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	info, err := os.Stat(remote)
	if err != nil {
		t.Fatalf("engine server was not uploaded: %v", err)
	}
	if info.Mode().Perm()&0o100 == 0 {
		t.Errorf("uploaded binary is not executable: %v", info.Mode())
	}
	if cmd := <-s.commands; cmd != remote+" --idle-timeout 1m" {
		t.Errorf("unexpected command %q", cmd)
	}
	if got := c.Ready().License; got != engine.LicenseHoudiniEngine {
		t.Errorf("expected license %v, got %v", engine.LicenseHoudiniEngine, got)
	}
	if transport.ConnectionInfo().ConnectedAt.IsZero() {
		t.Error("expected connection time to be set")
	}

	if err := c.IsSessionValid(ctx); err != nil {
		t.Errorf("session should be valid: %v", err)
	}

	if err := c.Close(ctx); err != nil {
		t.Fatalf("failed to close: %v", err)
	}
	if _, err := os.Stat(remote); !os.IsNotExist(err) {
		t.Errorf("expected uploaded binary to be removed, stat err: %v", err)
	}
}

func TestEngineTransportRejectsBadCredentials(t *testing.T) {
	s := newTestSSHServer(t, memengine.New())
	config := s.transportConfig(t)
	config.Password = "wrong"

	transport, err := NewEngineTransport(config, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create transport: %v", err)
	}
	err = transport.Connect(context.Background())
	if err == nil {
		t.Fatal("expected authentication failure")
	}
	if _, ok := err.(*TransportError); !ok {
		t.Errorf("expected *TransportError, got %T", err)
	}
}

func TestNewEngineTransportValidates(t *testing.T) {
	if _, err := NewEngineTransport(&Config{}, zerolog.Nop()); err == nil {
		t.Error("expected validation error")
	}
}
