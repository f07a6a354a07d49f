// Package worldserver implements the world service: character list,
// creation, selection, and world entry over a session keyed by the
// ticket the realm service handed off. Unlike authserver/realmserver,
// a world connection is long-lived — it does not close after its
// first reply — so its accept-loop shape adapts the teacher's
// internal/login/server.go Run/Serve/acceptLoop/handleConnection
// pattern to keep reading frames until a handler signals Close.
package worldserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/ionforge/wildcore/internal/bufpool"
	"github.com/ionforge/wildcore/internal/config"
	"github.com/ionforge/wildcore/internal/constants"
	"github.com/ionforge/wildcore/internal/dispatch"
	"github.com/ionforge/wildcore/internal/opcode"
	"github.com/ionforge/wildcore/internal/registry"
	"github.com/ionforge/wildcore/internal/session"
	"github.com/ionforge/wildcore/internal/store"
	"github.com/ionforge/wildcore/internal/wire"
)

// Server is the world service.
type Server struct {
	cfg        config.WorldServer
	dispatcher *dispatch.Dispatcher
	registry   *registry.Registry
	characters store.CharacterStore
	sendPool   *bufpool.Pool
	readPool   *bufpool.Pool

	mu       sync.Mutex
	listener net.Listener
}

// New builds a Server wired to the given stores and a shared session
// registry. reg and entities are process-wide, shared with whatever
// else needs to look up a live session (e.g. a future admin surface);
// worldserver itself only ever reaches them through the same
// registry/entity operations a handler uses.
func New(cfg config.WorldServer, accounts store.AccountStore, characters store.CharacterStore, static store.StaticData, reg *registry.Registry, entities *session.EntityAllocator) *Server {
	d := dispatch.New()
	registerHandlers(d, deps{
		accounts:          accounts,
		characters:        characters,
		static:            static,
		registry:          reg,
		entities:          entities,
		realmID:           cfg.RealmID,
		otherRealms:       cfg.OtherRealms,
		maxCharacterLevel: cfg.MaxCharacterLevel,
	})

	return &Server{
		cfg:        cfg,
		dispatcher: d,
		registry:   reg,
		characters: characters,
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
		slog.Info("world server started", "address", ln.Addr())
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

// handleConnection runs one connection's lifetime end to end: unlike
// auth/realm, it does not return after its first reply — a world
// connection stays open through character list, select, and world
// entry, and only ends when a handler's Directive says Close, the
// peer disconnects, or it goes idle past its current timeout.
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

	sess := session.New(session.ServiceWorld, host)
	sess.SetConn(conn)
	framer := wire.NewFramer(constants.MaxFrameBytes)
	defer s.teardown(ctx, sess, host)

	// writeMu serializes writes between the read loop below and the
	// inbox pump goroutine: both can write replies to the same conn,
	// and net.Conn makes no promise that concurrent Write calls don't
	// interleave their bytes.
	var writeMu sync.Mutex
	writeFrame := func(buf []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_, err := conn.Write(buf)
		return err
	}

	inboxDone := make(chan struct{})
	go s.pumpInbox(sess, writeFrame, inboxDone)
	defer close(inboxDone)

	readBuf := s.readPool.Get(constants.DefaultReadBufSize)
	defer s.readPool.Put(readBuf)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(s.idleTimeout(sess))); err != nil {
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
			directive, err := s.dispatcher.Dispatch(ctx, opcode.World, sess, f)
			if err != nil {
				if errors.Is(err, dispatch.ErrUnknownOpcode) {
					slog.Warn("unknown opcode", "peer", host, "err", err)
					continue
				}
				slog.Warn("dispatch error, terminating connection", "peer", host, "err", err)
				return
			}

			if s.cfg.MaxWriteQueueBytes > 0 {
				pending := 0
				for _, reply := range directive.Replies {
					pending += len(reply.Payload)
				}
				if pending > s.cfg.MaxWriteQueueBytes {
					slog.Warn("reply exceeds write-queue cap, closing", "peer", host, "bytes", pending)
					return
				}
			}

			for _, reply := range directive.Replies {
				send, _ := sess.Ciphers()
				buf, err := dispatch.EncodeReply(reply, send)
				if err != nil {
					slog.Error("encoding reply failed", "peer", host, "err", err)
					return
				}
				if err := writeFrame(buf); err != nil {
					return
				}
			}
			if directive.Close {
				return
			}
		}
	}
}

// pumpInbox drains a session's broadcast inbox (messages delivered by
// other connections' handlers through the registry, spec.md §5) and
// writes each one out world-encrypted, in the FIFO order they arrived.
// It runs for the lifetime of the connection, alongside the read loop
// above; writeFrame serializes the two against each other.
func (s *Server) pumpInbox(sess *session.Session, writeFrame func([]byte) error, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case msg := <-sess.Inbox():
			send, _ := sess.Ciphers()
			buf, err := dispatch.EncodeReply(dispatch.Reply{
				Opcode:   msg.Opcode,
				Payload:  msg.Payload,
				Envelope: dispatch.WorldEncrypted,
			}, send)
			if err != nil {
				slog.Error("encoding broadcast message failed", "peer", sess.PeerIP(), "err", err)
				continue
			}
			if err := writeFrame(buf); err != nil {
				return
			}
		}
	}
}

// idleTimeout switches from the pre-auth to the post-auth idle budget
// once the session cipher is installed (spec.md §5) — ClientHelloRealm
// is the event that marks the boundary, so stage is checked rather
// than the cipher directly.
func (s *Server) idleTimeout(sess *session.Session) time.Duration {
	if sess.Stage() >= session.WorldSessionKeyed {
		return s.cfg.Timeouts.IdlePostAuth()
	}
	return s.cfg.Timeouts.IdlePreAuth()
}

// teardown releases everything a connection owned, in order: its
// character's last-online time (if it ever selected a character; the
// position is not persisted), its entity and zone membership, and
// finally its account-keyed registry entry (spec.md
// §5 Teardown). It runs on every connection exit, successful or not,
// so fields that were never set are simply no-ops.
func (s *Server) teardown(ctx context.Context, sess *session.Session, peer string) {
	accountID, hasAccount := sess.AccountID()
	entity, hasEntity := sess.Entity()
	zone, instance := sess.Zone()

	if hasEntity {
		if charID, ok := sess.CharacterID(); ok {
			if err := s.characters.UpdateLastOnline(ctx, charID); err != nil {
				slog.Error("persisting last-online on teardown failed", "account", accountID, "character_id", charID, "err", err)
			}
		}
		s.registry.LeaveZone(zone, instance, sess)
		s.registry.UnregisterEntity(entity)
	}
	if hasAccount {
		s.registry.UnregisterAccount(accountID, sess)
	}
	sess.ClearWorldState()

	slog.Info("world connection closed", "peer", peer, "account", accountID)
}
