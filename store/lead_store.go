package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"foodcost/api/models"
)

// ErrNotFound is returned when a row addressed by id does not exist.
var ErrNotFound = errors.New("not found")

const leadColumns = `id, name, phone, email, message, source, status, notes, utm_data, created_at, updated_at`

type LeadStore struct {
	db *sql.DB
}

func NewLeadStore(db *sql.DB) *LeadStore {
	return &LeadStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (*models.Lead, error) {
	var (
		lead models.Lead
		utm  []byte
	)
	err := row.Scan(
		&lead.ID,
		&lead.Name,
		&lead.Phone,
		&lead.Email,
		&lead.Message,
		&lead.Source,
		&lead.Status,
		&lead.Notes,
		&utm,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(utm) > 0 {
		lead.UtmData = json.RawMessage(utm)
	}
	return &lead, nil
}

// CreateLead inserts a new lead with status "new".
func (s *LeadStore) CreateLead(ctx context.Context, req models.CreateLeadRequest) (*models.Lead, error) {
	source := req.Source
	if source == "" {
		source = models.LeadSourceForm
	}

	var utm any
	if len(req.UtmData) > 0 && string(req.UtmData) != "null" {
		utm = string(req.UtmData)
	}

	query := `
		INSERT INTO leads (name, phone, email, message, source, status, utm_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + leadColumns

	lead, err := scanLead(s.db.QueryRowContext(ctx, query,
		req.Name,
		req.Phone,
		nullString(req.Email),
		nullString(req.Message),
		source,
		models.LeadStatusNew,
		utm,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create lead: %w", err)
	}

	log.Info().Str("lead_id", lead.ID).Str("source", string(lead.Source)).Msg("Lead created")
	return lead, nil
}

// ListLeads returns leads newest first. Empty or "all" filters are ignored.
func (s *LeadStore) ListLeads(ctx context.Context, f models.LeadFilter) ([]models.Lead, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" && f.Status != "all" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Source != "" && f.Source != "all" {
		args = append(args, f.Source)
		where = append(where, fmt.Sprintf("source = $%d", len(args)))
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		args = append(args, "%"+escapeLike(search)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR phone ILIKE $%d OR email ILIKE $%d)", n, n, n))
	}

	query := `SELECT ` + leadColumns + ` FROM leads`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	return collectLeads(rows)
}

// LeadsBetween returns leads created in [since, until], newest first.
func (s *LeadStore) LeadsBetween(ctx context.Context, since, until time.Time, limit int) ([]models.Lead, error) {
	query := `SELECT ` + leadColumns + `
		FROM leads
		WHERE created_at >= $1 AND created_at <= $2
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := s.db.QueryContext(ctx, query, since, until, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leads in window: %w", err)
	}
	defer rows.Close()

	return collectLeads(rows)
}

// UpdateLead applies the operator-editable fields that are set in req.
func (s *LeadStore) UpdateLead(ctx context.Context, id string, req models.UpdateLeadRequest) (*models.Lead, error) {
	var (
		sets []string
		args []any
	)
	if req.Status != nil {
		args = append(args, string(*req.Status))
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)))
	}
	if req.Notes != nil {
		args = append(args, *req.Notes)
		sets = append(sets, fmt.Sprintf("notes = $%d", len(args)))
	}
	if len(sets) == 0 {
		return nil, errors.New("no fields to update")
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE leads SET %s, updated_at = now() WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), leadColumns)

	lead, err := scanLead(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update lead %s: %w", id, err)
	}
	return lead, nil
}

func (s *LeadStore) DeleteLead(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete lead %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete lead %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func collectLeads(rows *sql.Rows) ([]models.Lead, error) {
	results := make([]models.Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		results = append(results, *lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leads: %w", err)
	}
	return results, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
