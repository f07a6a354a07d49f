// Package postgres adapts internal/store's interfaces to a pgx-backed
// Postgres database, the same pool-wrapping/repository shape the
// teacher's internal/db package uses for its account/character
// repositories.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ionforge/wildcore/internal/store"
)

// uniqueViolation is Postgres's error code for a unique-key conflict.
const uniqueViolation = "23505"

// DB wraps a pgx connection pool and implements store.AccountStore,
// store.CharacterStore, and store.StaticData.
type DB struct {
	pool *pgxpool.Pool
}

// New connects to Postgres and returns a DB handle.
func New(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &DB{pool: pool}, nil
}

// Close closes the underlying connection pool.
func (d *DB) Close() { d.pool.Close() }

// Pool returns the underlying pgx pool, for goose migrations.
func (d *DB) Pool() *pgxpool.Pool { return d.pool }

const accountColumns = `id, login, salt, verifier, banned, suspended_days, ticket, tier`

func scanAccount(row pgx.Row) (*store.Account, error) {
	var (
		acc         store.Account
		verifierHex string
		ticket      *string
		tier        uint8
	)
	err := row.Scan(&acc.ID, &acc.Login, &acc.Salt, &verifierHex, &acc.Banned, &acc.SuspendedDays, &ticket, &tier)
	acc.Tier = store.Tier(tier)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning account row: %w", err)
	}
	v, ok := new(big.Int).SetString(verifierHex, 16)
	if !ok {
		return nil, fmt.Errorf("account %q has a malformed verifier", acc.Login)
	}
	acc.Verifier = v
	if ticket != nil {
		acc.Ticket = *ticket
	}
	return &acc, nil
}

// GetAccount implements store.AccountStore.
func (d *DB) GetAccount(ctx context.Context, login string) (*store.Account, error) {
	row := d.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE login = $1`, login)
	acc, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("querying account %q: %w", login, err)
	}
	return acc, nil
}

// GetAccountByID implements store.AccountStore.
func (d *DB) GetAccountByID(ctx context.Context, id string) (*store.Account, error) {
	row := d.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	acc, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("querying account %q: %w", id, err)
	}
	return acc, nil
}

// UpdateTicket implements store.AccountStore. Last-writer-wins: a fresh
// ticket overwrites (and so invalidates) whatever was stored before.
func (d *DB) UpdateTicket(ctx context.Context, accountID string, ticketHex string) error {
	_, err := d.pool.Exec(ctx,
		`UPDATE accounts SET ticket = $1 WHERE id = $2`, ticketHex, accountID)
	if err != nil {
		return fmt.Errorf("updating ticket for account %q: %w", accountID, err)
	}
	return nil
}

// ValidateSession implements store.AccountStore. It checks email, ticket,
// and account id together in a single query so the world service never
// redeems a ticket against the wrong account.
func (d *DB) ValidateSession(ctx context.Context, email, ticketHex, accountID string) (bool, error) {
	var ok bool
	err := d.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE login = $1 AND ticket = $2 AND id = $3)`,
		email, ticketHex, accountID,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("validating session for %q: %w", email, err)
	}
	return ok, nil
}

// ListCharacters implements store.CharacterStore.
func (d *DB) ListCharacters(ctx context.Context, accountID string) ([]store.CharacterSummary, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT character_id, name, level, zone_id, last_login FROM characters WHERE account_id = $1 ORDER BY name`, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing characters for %q: %w", accountID, err)
	}
	defer rows.Close()

	var out []store.CharacterSummary
	for rows.Next() {
		var c store.CharacterSummary
		if err := rows.Scan(&c.CharacterID, &c.Name, &c.Level, &c.ZoneID, &c.LastLogin); err != nil {
			return nil, fmt.Errorf("scanning character row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating characters for %q: %w", accountID, err)
	}
	return out, nil
}

// CreateCharacter implements store.CharacterStore.
func (d *DB) CreateCharacter(ctx context.Context, accountID, name string, attrs store.CharacterAttrs) (store.CharacterSummary, error) {
	c := store.CharacterSummary{Name: name, Level: 1}
	err := d.pool.QueryRow(ctx,
		`INSERT INTO characters (account_id, name, level, zone_id, sex, race, class, path, creation_template_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING character_id`,
		accountID, name, c.Level, c.ZoneID, attrs.Sex, attrs.Race, attrs.Class, attrs.Path, attrs.CreationTemplateID,
	).Scan(&c.CharacterID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return store.CharacterSummary{}, store.ErrCharacterNameTaken
		}
		return store.CharacterSummary{}, fmt.Errorf("creating character %q: %w", name, err)
	}
	return c, nil
}

// GetOwned implements store.CharacterStore.
func (d *DB) GetOwned(ctx context.Context, accountID string, characterID uint64) (*store.CharacterSummary, error) {
	var c store.CharacterSummary
	err := d.pool.QueryRow(ctx,
		`SELECT character_id, name, level, zone_id, last_login FROM characters
		 WHERE account_id = $1 AND character_id = $2`,
		accountID, characterID,
	).Scan(&c.CharacterID, &c.Name, &c.Level, &c.ZoneID, &c.LastLogin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying owned character %d: %w", characterID, err)
	}
	return &c, nil
}

// UpdateLastOnline implements store.CharacterStore.
func (d *DB) UpdateLastOnline(ctx context.Context, characterID uint64) error {
	_, err := d.pool.Exec(ctx,
		`UPDATE characters SET last_login = extract(epoch from now())::bigint WHERE character_id = $1`, characterID)
	if err != nil {
		return fmt.Errorf("updating last_login for character %d: %w", characterID, err)
	}
	return nil
}

// RealmStatuses implements store.StaticData.
func (d *DB) RealmStatuses(ctx context.Context) ([]store.RealmStatus, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT id, name, host, port, online_players, max_players, online FROM realms ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing realms: %w", err)
	}
	defer rows.Close()

	var out []store.RealmStatus
	for rows.Next() {
		var r store.RealmStatus
		if err := rows.Scan(&r.ID, &r.Name, &r.Host, &r.Port, &r.OnlinePlayers, &r.MaxPlayers, &r.Online); err != nil {
			return nil, fmt.Errorf("scanning realm row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating realms: %w", err)
	}
	return out, nil
}

// GetCharacterCreationTemplate implements store.StaticData.
func (d *DB) GetCharacterCreationTemplate(ctx context.Context, id uint32) (*store.CreationTemplate, error) {
	var t store.CreationTemplate
	err := d.pool.QueryRow(ctx,
		`SELECT id, race, class, sex, faction, start_stage, starting_item_ids
		 FROM character_creation_templates WHERE id = $1`, id,
	).Scan(&t.ID, &t.Race, &t.Class, &t.Sex, &t.Faction, &t.StartStage, &t.StartingItemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying creation template %d: %w", id, err)
	}
	return &t, nil
}
