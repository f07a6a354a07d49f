package realmserver

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/ionforge/wildcore/internal/config"
	"github.com/ionforge/wildcore/internal/dispatch"
	"github.com/ionforge/wildcore/internal/netutil"
	"github.com/ionforge/wildcore/internal/opcode"
	"github.com/ionforge/wildcore/internal/realmpackets"
	"github.com/ionforge/wildcore/internal/session"
	"github.com/ionforge/wildcore/internal/store"
	"github.com/ionforge/wildcore/internal/streamcipher"
)

// deps bundles the external collaborators realm handlers close over.
// home is the one realm this realm-service instance hands clients off
// to — spec.md §6 treats realm.port/realm.name/realm.type as
// per-process configuration, not a list the realm service itself
// iterates.
type deps struct {
	accounts store.AccountStore
	home     config.RealmEntry
}

func registerHandlers(d *dispatch.Dispatcher, dep deps) {
	d.Register(opcode.Realm, opcode.CClientHelloAuthRealm, handleClientHelloAuth(dep))
}

func denied(code realmpackets.DenyReason, errVal uint32) (dispatch.Directive, error) {
	payload, err := realmpackets.ServerAuthDenied{ResultCode: code, ErrorValue: errVal}.Write()
	if err != nil {
		return dispatch.Directive{}, err
	}
	return dispatch.Directive{
		Replies: []dispatch.Reply{{Opcode: opcode.SServerAuthDeniedRealm, Payload: payload, Envelope: dispatch.Plain}},
	}, nil
}

// handleClientHelloAuth implements the realm variant of the handshake
// described in spec.md §4.5: the ticket minted by the auth service must
// match the account's stored ticket exactly. On success the realm
// mints a fresh ticket (handed to the world service next), installs
// its own send/receive ciphers keyed from the auth-issued ticket that
// was just redeemed, and replies with a three-message envelope.
func handleClientHelloAuth(dep deps) dispatch.Handler {
	return func(ctx context.Context, s *session.Session, body []byte) (dispatch.Directive, error) {
		req, err := realmpackets.ReadClientHelloAuth(body)
		if err != nil {
			slog.Warn("malformed ClientHelloAuth", "peer", s.PeerIP(), "err", err)
			return dispatch.Directive{KeepAlive: true}, nil
		}

		acct, err := dep.accounts.GetAccount(ctx, req.Email)
		if err != nil {
			slog.Error("account lookup failed", "login", req.Email, "err", err)
			return denied(realmpackets.DenyInvalidToken, 0)
		}
		if acct == nil || acct.Ticket == "" {
			return denied(realmpackets.DenyInvalidToken, 0)
		}

		stored, err := session.ParseTicket(acct.Ticket)
		if err != nil {
			slog.Error("stored ticket malformed", "login", req.Email, "err", err)
			return denied(realmpackets.DenyInvalidToken, 0)
		}
		var presented session.Ticket
		copy(presented[:], req.Ticket[:])
		if !stored.Equal(presented) {
			return denied(realmpackets.DenyInvalidToken, 0)
		}

		accountID, err := parseAccountID(acct.ID)
		if err != nil {
			slog.Error("account id not numeric", "login", req.Email, "err", err)
			return denied(realmpackets.DenyInvalidToken, 0)
		}

		newTicket, err := session.NewTicket()
		if err != nil {
			slog.Error("ticket generation failed", "login", req.Email, "err", err)
			return denied(realmpackets.DenyInvalidToken, 0)
		}
		if err := dep.accounts.UpdateTicket(ctx, acct.ID, newTicket.String()); err != nil {
			slog.Error("ticket persist failed", "login", req.Email, "err", err)
			return denied(realmpackets.DenyInvalidToken, 0)
		}

		s.SetAccountID(acct.ID)
		s.InstallCiphers(streamcipher.SendState(presented[:]), streamcipher.ReceiveState(presented[:]))
		s.SetTicket(newTicket)
		s.Advance(session.RealmListed)

		accepted, err := realmpackets.ServerAuthAccepted{Result: 0}.Write()
		if err != nil {
			return dispatch.Directive{}, err
		}
		messages, err := realmpackets.ServerRealmMessages{Messages: []string{"Welcome to Wildcore."}}.Write()
		if err != nil {
			return dispatch.Directive{}, err
		}
		addr, err := netutil.IPv4ToUint32(dep.home.Host)
		if err != nil {
			slog.Error("realm host not a valid IPv4 address", "host", dep.home.Host, "err", err)
			return denied(realmpackets.DenyInvalidToken, 0)
		}
		var sessionKey [16]byte
		copy(sessionKey[:], newTicket[:])
		info, err := realmpackets.ServerRealmInfo{
			Address:    addr,
			Port:       uint16(dep.home.Port),
			SessionKey: sessionKey,
			AccountID:  accountID,
			RealmName:  dep.home.Name,
			Flags:      0,
			Type:       realmpackets.RealmPvE,
			NoteTextID: 0,
		}.Write()
		if err != nil {
			return dispatch.Directive{}, err
		}

		slog.Info("realm ticket redeemed", "login", req.Email, "peer", s.PeerIP())
		return dispatch.Directive{
			Replies: []dispatch.Reply{
				{Opcode: opcode.SServerAuthAcceptedRealm, Payload: accepted, Envelope: dispatch.AuthEncrypted},
				{Opcode: opcode.SServerRealmMessages, Payload: messages, Envelope: dispatch.AuthEncrypted},
				{Opcode: opcode.SServerRealmInfo, Payload: info, Envelope: dispatch.AuthEncrypted},
			},
		}, nil
	}
}

func parseAccountID(id string) (uint64, error) {
	v, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("account id %q is not numeric: %w", id, err)
	}
	return v, nil
}
