package worldserver

import (
	"context"
	"encoding/hex"
	"log/slog"
	"strconv"

	"github.com/ionforge/wildcore/internal/config"
	"github.com/ionforge/wildcore/internal/dispatch"
	"github.com/ionforge/wildcore/internal/netutil"
	"github.com/ionforge/wildcore/internal/opcode"
	"github.com/ionforge/wildcore/internal/realmpackets"
	"github.com/ionforge/wildcore/internal/session"
	"github.com/ionforge/wildcore/internal/streamcipher"
	"github.com/ionforge/wildcore/internal/worldpackets"
)

// handleClientHelloRealm redeems the ticket the realm service handed
// off and installs the world session's ciphers from it (spec.md §4.5).
// Unlike auth/realm there is no reply on success — the client already
// knows it is clear to proceed and moves straight to ClientCharacterList.
func handleClientHelloRealm(dep deps) dispatch.Handler {
	return func(ctx context.Context, s *session.Session, body []byte) (dispatch.Directive, error) {
		req, err := worldpackets.ReadClientHelloRealm(body)
		if err != nil {
			slog.Warn("malformed ClientHelloRealm", "peer", s.PeerIP(), "err", err)
			return dispatch.Directive{Close: true}, nil
		}

		accountID := strconv.FormatUint(req.AccountID, 10)
		ticketHex := hex.EncodeToString(req.Ticket[:])

		ok, err := dep.accounts.ValidateSession(ctx, req.Email, ticketHex, accountID)
		if err != nil {
			slog.Error("world session validation failed", "email", req.Email, "err", err)
			return dispatch.Directive{Close: true}, nil
		}
		if !ok {
			slog.Warn("world ticket rejected", "email", req.Email, "peer", s.PeerIP())
			return dispatch.Directive{Close: true}, nil
		}

		s.SetAccountID(accountID)
		s.InstallCiphers(streamcipher.SendState(req.Ticket[:]), streamcipher.ReceiveState(req.Ticket[:]))
		s.Advance(session.WorldSessionKeyed)
		dep.registry.RegisterAccount(accountID, s)

		slog.Info("world session installed", "email", req.Email, "peer", s.PeerIP())
		return dispatch.Directive{KeepAlive: true}, nil
	}
}

// handleClientRealmSelect answers the reference client's realm-list
// "back" button, which resends ClientRealmSelect over the already
// established world connection (spec.md §4.8, §8 S8). Reselecting the
// realm the client is already on is a pure no-op — any reply to that
// specific case crashes the reference client. Selecting a different
// realm mints a fresh ticket and redirects.
func handleClientRealmSelect(dep deps) dispatch.Handler {
	return func(ctx context.Context, s *session.Session, body []byte) (dispatch.Directive, error) {
		req, err := realmpackets.ReadClientRealmSelect(body)
		if err != nil {
			slog.Warn("malformed ClientRealmSelect", "peer", s.PeerIP(), "err", err)
			return dispatch.Directive{KeepAlive: true}, nil
		}
		if int(req.RealmID) == dep.realmID {
			return dispatch.Directive{KeepAlive: true}, nil
		}

		var target *config.RealmEntry
		for i := range dep.otherRealms {
			if dep.otherRealms[i].ID == int(req.RealmID) {
				target = &dep.otherRealms[i]
				break
			}
		}
		if target == nil {
			slog.Warn("ClientRealmSelect named unknown realm", "realm_id", req.RealmID, "peer", s.PeerIP())
			return dispatch.Directive{KeepAlive: true}, nil
		}

		accountID, ok := s.AccountID()
		if !ok {
			return dispatch.Directive{KeepAlive: true}, nil
		}

		newTicket, err := session.NewTicket()
		if err != nil {
			slog.Error("ticket generation failed", "account", accountID, "err", err)
			return dispatch.Directive{KeepAlive: true}, nil
		}
		if err := dep.accounts.UpdateTicket(ctx, accountID, newTicket.String()); err != nil {
			slog.Error("ticket persist failed", "account", accountID, "err", err)
			return dispatch.Directive{KeepAlive: true}, nil
		}

		addr, err := netutil.IPv4ToUint32(target.Host)
		if err != nil {
			slog.Error("realm host not a valid IPv4 address", "host", target.Host, "err", err)
			return dispatch.Directive{KeepAlive: true}, nil
		}

		payload, err := realmpackets.ServerNewRealm{
			Address: addr,
			Port:    uint16(target.Port),
			Ticket:  [16]byte(newTicket),
		}.Write()
		if err != nil {
			return dispatch.Directive{}, err
		}

		slog.Info("realm reselect redirecting", "account", accountID, "realm_id", req.RealmID)
		return dispatch.Directive{
			Replies:   []dispatch.Reply{{Opcode: opcode.SServerNewRealmWorld, Payload: payload, Envelope: dispatch.WorldEncrypted}},
			KeepAlive: true,
		}, nil
	}
}

// handleClientPregameKeepAlive only exists to refresh the connection's
// idle timer; the read loop itself does that on every frame, so the
// handler has nothing left to do.
func handleClientPregameKeepAlive(dep deps) dispatch.Handler {
	return func(ctx context.Context, s *session.Session, body []byte) (dispatch.Directive, error) {
		return dispatch.Directive{KeepAlive: true}, nil
	}
}

// handleClientLogoutRequest implements the two-flag logout handshake
// spec.md §4.8 describes: Initiated starts teardown and gets a
// ServerLogout reply followed by connection close; Cancel aborts a
// pending logout and is otherwise a no-op (there is no server-side
// logout timer to cancel in this implementation — spec.md's Non-goals
// exclude simulating the delay, so Cancel's only job is to not close).
func handleClientLogoutRequest(dep deps) dispatch.Handler {
	return func(ctx context.Context, s *session.Session, body []byte) (dispatch.Directive, error) {
		req, err := worldpackets.ReadClientLogoutRequest(body)
		if err != nil {
			slog.Warn("malformed ClientLogoutRequest", "peer", s.PeerIP(), "err", err)
			return dispatch.Directive{KeepAlive: true}, nil
		}
		if req.Cancel || !req.Initiated {
			return dispatch.Directive{KeepAlive: true}, nil
		}

		payload, err := worldpackets.ServerLogout{Requested: true, Reason: worldpackets.LogoutReasonNone}.Write()
		if err != nil {
			return dispatch.Directive{}, err
		}
		return dispatch.Directive{
			Replies: []dispatch.Reply{{Opcode: opcode.SServerLogout, Payload: payload, Envelope: dispatch.WorldEncrypted}},
			Close:   true,
		}, nil
	}
}
