package authserver

import (
	"context"
	"errors"
	"log/slog"
	"math/big"

	"github.com/ionforge/wildcore/internal/authpackets"
	"github.com/ionforge/wildcore/internal/constants"
	"github.com/ionforge/wildcore/internal/dispatch"
	"github.com/ionforge/wildcore/internal/opcode"
	"github.com/ionforge/wildcore/internal/ratelimit"
	"github.com/ionforge/wildcore/internal/session"
	"github.com/ionforge/wildcore/internal/srp6"
	"github.com/ionforge/wildcore/internal/store"
)

// AuthClass is the rate-limit risk class consulted before every
// ClientHelloAuth attempt.
const AuthClass ratelimit.Class = "auth"

// deps bundles the external collaborators handlers close over. Kept
// unexported: only Server constructs and registers handlers.
type deps struct {
	accounts store.AccountStore
	crypto   store.Crypto
	limiter  *ratelimit.Limiter
}

func registerHandlers(d *dispatch.Dispatcher, dep deps) {
	d.Register(opcode.Auth, opcode.CClientHelloAuth, handleClientHelloAuth(dep))
}

func denied(code authpackets.DenyReason, errVal uint32, suspendedDays float32) (dispatch.Directive, error) {
	payload, err := authpackets.ServerAuthDenied{ResultCode: code, ErrorValue: errVal, SuspendedDays: suspendedDays}.Write()
	if err != nil {
		return dispatch.Directive{}, err
	}
	return dispatch.Directive{
		Replies: []dispatch.Reply{{Opcode: opcode.SServerAuthDenied, Payload: payload, Envelope: dispatch.Plain}},
	}, nil
}

// handleClientHelloAuth implements the auth-service handshake described
// in spec.md §4.5: build check, rate limit, account lookup, ban/
// suspension check, SRP-6 verification, ticket mint and persist.
func handleClientHelloAuth(dep deps) dispatch.Handler {
	return func(ctx context.Context, s *session.Session, body []byte) (dispatch.Directive, error) {
		req, err := authpackets.ReadClientHelloAuth(body)
		if err != nil {
			slog.Warn("malformed ClientHelloAuth", "peer", s.PeerIP(), "err", err)
			return dispatch.Directive{KeepAlive: true}, nil
		}

		if req.Build != constants.ExpectedBuild {
			return denied(authpackets.DenyVersionMismatch, 0, 0)
		}

		if !dep.limiter.Allow(AuthClass, s.PeerIP()) {
			return denied(authpackets.DenyUnknown, 0, 0)
		}

		acct, err := dep.accounts.GetAccount(ctx, req.Email)
		if err != nil {
			slog.Error("account lookup failed", "login", req.Email, "err", err)
			return denied(authpackets.DenyDatabaseError, 0, 0)
		}
		if acct == nil {
			return denied(authpackets.DenyInvalidToken, 0, 0)
		}
		if acct.Banned {
			return denied(authpackets.DenyAccountBanned, 0, 0)
		}
		if acct.SuspendedDays > 0 {
			return denied(authpackets.DenyAccountSuspended, 0, float32(acct.SuspendedDays))
		}

		clientA := new(big.Int).SetBytes(req.A[:])
		_, m2, err := dep.crypto.VerifyCredentials(*acct, clientA, req.M1[:])
		if err != nil {
			if errors.Is(err, srp6.ErrProofMismatch) || errors.Is(err, srp6.ErrInvalidPublicKey) {
				return denied(authpackets.DenyInvalidToken, 0, 0)
			}
			slog.Error("srp6 verification error", "login", req.Email, "err", err)
			return denied(authpackets.DenyDatabaseError, 0, 0)
		}
		s.Advance(session.AuthCredentialed)

		ticket, err := session.NewTicket()
		if err != nil {
			slog.Error("ticket generation failed", "login", req.Email, "err", err)
			return denied(authpackets.DenyDatabaseError, 0, 0)
		}
		if err := dep.accounts.UpdateTicket(ctx, acct.ID, ticket.String()); err != nil {
			slog.Error("ticket persist failed", "login", req.Email, "err", err)
			return denied(authpackets.DenyDatabaseError, 0, 0)
		}

		s.SetAccountID(acct.ID)
		s.SetTicket(ticket)
		s.Advance(session.AuthTicketed)

		var accepted authpackets.ServerAuthAccepted
		copy(accepted.M2[:], m2)
		copy(accepted.Ticket[:], ticket[:])
		payload, err := accepted.Write()
		if err != nil {
			return dispatch.Directive{}, err
		}

		slog.Info("auth accepted", "login", req.Email, "peer", s.PeerIP())
		return dispatch.Directive{
			Replies: []dispatch.Reply{{Opcode: opcode.SServerAuthAccepted, Payload: payload, Envelope: dispatch.Plain}},
		}, nil
	}
}
