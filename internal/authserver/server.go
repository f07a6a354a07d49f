// Package authserver implements the auth-service TCP listener and
// ClientHelloAuth handshake: build check, rate limiting, account
// lookup, SRP-6 verification, and ticket issuance. The accept-loop
// shape is adapted from the teacher's internal/login/server.go
// Server.Run/Serve/acceptLoop/handleConnection.
package authserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/ionforge/wildcore/internal/authpackets"
	"github.com/ionforge/wildcore/internal/bufpool"
	"github.com/ionforge/wildcore/internal/config"
	"github.com/ionforge/wildcore/internal/constants"
	"github.com/ionforge/wildcore/internal/dispatch"
	"github.com/ionforge/wildcore/internal/opcode"
	"github.com/ionforge/wildcore/internal/ratelimit"
	"github.com/ionforge/wildcore/internal/session"
	"github.com/ionforge/wildcore/internal/store"
	"github.com/ionforge/wildcore/internal/wire"
)

// Server is the auth service: it accepts connections, greets each with
// ServerHello, and dispatches ClientHelloAuth through the registered
// handler.
type Server struct {
	cfg        config.AuthServer
	dispatcher *dispatch.Dispatcher
	limiter    *ratelimit.Limiter
	sendPool   *bufpool.Pool
	readPool   *bufpool.Pool

	mu       sync.Mutex
	listener net.Listener
}

// New builds a Server wired to the given account store and credential
// verifier.
func New(cfg config.AuthServer, accounts store.AccountStore, crypto store.Crypto) *Server {
	limiter := ratelimit.New(map[ratelimit.Class]ratelimit.Policy{
		AuthClass: {
			Count:  cfg.RateLimit.Auth.Count,
			Window: time.Duration(cfg.RateLimit.Auth.Window) * time.Second,
		},
	})

	d := dispatch.New()
	registerHandlers(d, deps{accounts: accounts, crypto: crypto, limiter: limiter})

	return &Server{
		cfg:        cfg,
		dispatcher: d,
		limiter:    limiter,
		sendPool:   bufpool.New(constants.DefaultSendBufSize),
		readPool:   bufpool.New(constants.DefaultReadBufSize),
	}
}

// Addr returns the listener's bound address, or nil before Run/Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close closes the listener, unblocking Accept in the running accept
// loop.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// Run listens on the configured bind address and serves until ctx is
// canceled.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	return s.Serve(ctx, ln)
}

// Serve accepts connections on an already-bound listener, useful for
// tests that want a random port.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("auth server started", "address", ln.Addr())
		s.acceptLoop(ctx, &wg, ln)
	}()
	wg.Wait()
	return nil
}

func (s *Server) acceptLoop(ctx context.Context, wg *sync.WaitGroup, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
				slog.Error("accept failed", "err", err)
				continue
			}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		host = conn.RemoteAddr().String()
	}

	sess := session.New(session.ServiceAuth, host)
	framer := wire.NewFramer(constants.MaxFrameBytes)

	hello, err := authpackets.ServerHello{}.Write()
	if err != nil {
		slog.Error("encoding ServerHello failed", "err", err)
		return
	}
	if err := s.writeFrame(conn, opcode.SServerHelloAuth, hello); err != nil {
		slog.Error("sending ServerHello failed", "peer", host, "err", err)
		return
	}
	sess.Advance(session.AuthGreeted)

	readBuf := s.readPool.Get(constants.DefaultReadBufSize)
	defer s.readPool.Put(readBuf)

	idle := s.cfg.Timeouts.IdlePreAuth()
	for {
		if err := conn.SetReadDeadline(deadline(idle)); err != nil {
			return
		}
		n, err := conn.Read(readBuf)
		if err != nil {
			return
		}
		frames, err := framer.Feed(readBuf[:n])
		if err != nil {
			slog.Warn("framer protocol violation", "peer", host, "err", err)
			return
		}
		for _, f := range frames {
			directive, err := s.dispatcher.Dispatch(ctx, opcode.Auth, sess, f)
			if err != nil {
				if errors.Is(err, dispatch.ErrUnknownOpcode) {
					slog.Warn("unknown opcode", "peer", host, "err", err)
					continue
				}
				slog.Warn("dispatch error", "peer", host, "err", err)
				return
			}
			for _, reply := range directive.Replies {
				send, _ := sess.Ciphers()
				buf, err := dispatch.EncodeReply(reply, send)
				if err != nil {
					slog.Error("encoding reply failed", "peer", host, "err", err)
					return
				}
				if _, err := conn.Write(buf); err != nil {
					return
				}
			}
			// Any reply, acceptance or denial, ends the connection.
			if len(directive.Replies) > 0 {
				return
			}
		}
	}
}

func deadline(d time.Duration) time.Time {
	return time.Now().Add(d)
}

func (s *Server) writeFrame(conn net.Conn, op uint16, payload []byte) error {
	buf := s.sendPool.Get(constants.FrameHeaderSize + len(payload))
	defer s.sendPool.Put(buf)
	n, err := wire.EncodeFrame(buf, op, payload)
	if err != nil {
		return err
	}
	_, err = conn.Write(buf[:n])
	return err
}
