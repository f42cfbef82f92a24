package pg

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"remind/internal/domain"
	"remind/internal/store"
)

type Store struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

func (s *Store) ListRules(ctx context.Context) ([]domain.ReminderRule, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, name, COALESCE(description,''), reminder_type, trigger_type, trigger_days,
		       repeat_interval, max_reminders, conditions_json, subject, body, is_enabled,
		       created_at, updated_at
		FROM reminder_rules ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ReminderRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) GetRule(ctx context.Context, id string) (domain.ReminderRule, bool, error) {
	row := s.DB.QueryRow(ctx, `
		SELECT id, name, COALESCE(description,''), reminder_type, trigger_type, trigger_days,
		       repeat_interval, max_reminders, conditions_json, subject, body, is_enabled,
		       created_at, updated_at
		FROM reminder_rules WHERE id=$1
	`, id)
	r, err := scanRule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ReminderRule{}, false, nil
		}
		return domain.ReminderRule{}, false, err
	}
	return r, true, nil
}

func scanRule(row pgx.Row) (domain.ReminderRule, error) {
	var r domain.ReminderRule
	var condsJSON []byte
	err := row.Scan(&r.ID, &r.Name, &r.Description, &r.ReminderType, &r.TriggerType,
		&r.TriggerDays, &r.RepeatInterval, &r.MaxReminders, &condsJSON,
		&r.Template.Subject, &r.Template.Body, &r.IsEnabled, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return domain.ReminderRule{}, err
	}
	_ = json.Unmarshal(condsJSON, &r.Conditions)
	return r, nil
}

func (s *Store) InsertRule(ctx context.Context, r domain.ReminderRule) error {
	b, _ := json.Marshal(r.Conditions)
	_, err := s.DB.Exec(ctx, `
		INSERT INTO reminder_rules (id, name, description, reminder_type, trigger_type, trigger_days,
			repeat_interval, max_reminders, conditions_json, subject, body, is_enabled, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, r.ID, r.Name, nullIfEmpty(r.Description), r.ReminderType, r.TriggerType, r.TriggerDays,
		r.RepeatInterval, r.MaxReminders, b, r.Template.Subject, r.Template.Body,
		r.IsEnabled, r.CreatedAt, r.UpdatedAt)
	return err
}

func (s *Store) UpdateRule(ctx context.Context, r domain.ReminderRule) error {
	b, _ := json.Marshal(r.Conditions)
	ct, err := s.DB.Exec(ctx, `
		UPDATE reminder_rules
		SET name=$2, description=$3, reminder_type=$4, trigger_type=$5, trigger_days=$6,
		    repeat_interval=$7, max_reminders=$8, conditions_json=$9, subject=$10, body=$11,
		    is_enabled=$12, updated_at=$13
		WHERE id=$1
	`, r.ID, r.Name, nullIfEmpty(r.Description), r.ReminderType, r.TriggerType, r.TriggerDays,
		r.RepeatInterval, r.MaxReminders, b, r.Template.Subject, r.Template.Body,
		r.IsEnabled, r.UpdatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteRule(ctx context.Context, id string) error {
	_, err := s.DB.Exec(ctx, `DELETE FROM reminder_rules WHERE id=$1`, id)
	return err
}

func (s *Store) ListTemplates(ctx context.Context) ([]domain.ReminderTemplate, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, name, reminder_type, subject, body, created_at, updated_at
		FROM reminder_templates ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ReminderTemplate
	for rows.Next() {
		var t domain.ReminderTemplate
		if err := rows.Scan(&t.ID, &t.Name, &t.ReminderType, &t.Subject, &t.Body, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) GetTemplate(ctx context.Context, id string) (domain.ReminderTemplate, bool, error) {
	var t domain.ReminderTemplate
	err := s.DB.QueryRow(ctx, `
		SELECT id, name, reminder_type, subject, body, created_at, updated_at
		FROM reminder_templates WHERE id=$1
	`, id).Scan(&t.ID, &t.Name, &t.ReminderType, &t.Subject, &t.Body, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ReminderTemplate{}, false, nil
		}
		return domain.ReminderTemplate{}, false, err
	}
	return t, true, nil
}

func (s *Store) InsertTemplate(ctx context.Context, t domain.ReminderTemplate) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO reminder_templates (id, name, reminder_type, subject, body, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, t.ID, t.Name, t.ReminderType, t.Subject, t.Body, t.CreatedAt, t.UpdatedAt)
	return err
}

func (s *Store) UpdateTemplate(ctx context.Context, t domain.ReminderTemplate) error {
	ct, err := s.DB.Exec(ctx, `
		UPDATE reminder_templates SET name=$2, reminder_type=$3, subject=$4, body=$5, updated_at=$6
		WHERE id=$1
	`, t.ID, t.Name, t.ReminderType, t.Subject, t.Body, t.UpdatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	_, err := s.DB.Exec(ctx, `DELETE FROM reminder_templates WHERE id=$1`, id)
	return err
}

func (s *Store) InsertSchedules(ctx context.Context, schedules []domain.ReminderSchedule) error {
	for _, sc := range schedules {
		_, err := s.DB.Exec(ctx, `
			INSERT INTO reminder_schedules (id, invoice_id, rule_id, scheduled_at, status,
				attempt_count, last_attempt, next_attempt, error_message, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		`, sc.ID, sc.InvoiceID, sc.RuleID, sc.ScheduledAt, sc.Status,
			sc.AttemptCount, sc.LastAttempt, sc.NextAttempt, nullIfEmpty(sc.ErrorMessage),
			sc.CreatedAt, sc.UpdatedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ListSchedules(ctx context.Context) ([]domain.ReminderSchedule, error) {
	return s.querySchedules(ctx, `
		SELECT id, invoice_id, rule_id, scheduled_at, status, attempt_count,
		       last_attempt, next_attempt, COALESCE(error_message,''), created_at, updated_at
		FROM reminder_schedules ORDER BY scheduled_at
	`)
}

func (s *Store) ListDueSchedules(ctx context.Context, now time.Time) ([]domain.ReminderSchedule, error) {
	return s.querySchedules(ctx, `
		SELECT id, invoice_id, rule_id, scheduled_at, status, attempt_count,
		       last_attempt, next_attempt, COALESCE(error_message,''), created_at, updated_at
		FROM reminder_schedules
		WHERE status='scheduled' AND scheduled_at <= $1
		  AND (next_attempt IS NULL OR next_attempt <= $1)
		ORDER BY scheduled_at
	`, now)
}

func (s *Store) querySchedules(ctx context.Context, sql string, args ...any) ([]domain.ReminderSchedule, error) {
	rows, err := s.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ReminderSchedule
	for rows.Next() {
		var sc domain.ReminderSchedule
		if err := rows.Scan(&sc.ID, &sc.InvoiceID, &sc.RuleID, &sc.ScheduledAt, &sc.Status,
			&sc.AttemptCount, &sc.LastAttempt, &sc.NextAttempt, &sc.ErrorMessage,
			&sc.CreatedAt, &sc.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *Store) MarkSchedule(ctx context.Context, m store.ScheduleMark) error {
	ct, err := s.DB.Exec(ctx, `
		UPDATE reminder_schedules
		SET status=$2, attempt_count=$3, last_attempt=$4, next_attempt=$5, error_message=$6, updated_at=$7
		WHERE id=$1
	`, m.ID, m.Status, m.AttemptCount, m.LastAttempt, m.NextAttempt, nullIfEmpty(m.ErrorMessage), m.Now)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) InsertLog(ctx context.Context, l domain.ReminderLog) error {
	rb, _ := json.Marshal(l.Recipient)
	mb, _ := json.Marshal(l.Metadata)
	_, err := s.DB.Exec(ctx, `
		INSERT INTO reminder_logs (id, invoice_id, rule_id, schedule_id, reminder_type,
			status, sent_at, recipient_json, subject, body, metadata_json)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, l.ID, l.InvoiceID, l.RuleID, l.ScheduleID, l.ReminderType,
		l.Status, l.SentAt, rb, l.Subject, l.Body, mb)
	return err
}

func (s *Store) ListLogs(ctx context.Context, f store.LogFilter) ([]domain.ReminderLog, error) {
	sql := `
		SELECT id, invoice_id, rule_id, schedule_id, reminder_type, status, sent_at,
		       recipient_json, subject, body, metadata_json
		FROM reminder_logs
	`
	var args []any
	if f.InvoiceID != "" {
		sql += ` WHERE invoice_id=$1`
		args = append(args, f.InvoiceID)
	}
	sql += ` ORDER BY sent_at DESC`
	if f.Limit > 0 {
		sql += ` LIMIT ` + strconv.Itoa(f.Limit)
	}

	rows, err := s.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ReminderLog
	for rows.Next() {
		var l domain.ReminderLog
		var rb, mb []byte
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.RuleID, &l.ScheduleID, &l.ReminderType,
			&l.Status, &l.SentAt, &rb, &l.Subject, &l.Body, &mb); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(rb, &l.Recipient)
		_ = json.Unmarshal(mb, &l.Metadata)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) CountLogsSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.DB.QueryRow(ctx,
		`SELECT count(*) FROM reminder_logs WHERE sent_at >= $1`, since).Scan(&n)
	return n, err
}

func (s *Store) LoadSettings(ctx context.Context) (domain.ReminderSettings, bool, error) {
	var b []byte
	err := s.DB.QueryRow(ctx, `SELECT settings_json FROM reminder_settings WHERE id=1`).Scan(&b)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ReminderSettings{}, false, nil
		}
		return domain.ReminderSettings{}, false, err
	}
	var out domain.ReminderSettings
	if err := json.Unmarshal(b, &out); err != nil {
		return domain.ReminderSettings{}, false, err
	}
	return out, true, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings domain.ReminderSettings) error {
	b, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `
		INSERT INTO reminder_settings (id, settings_json, updated_at)
		VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE SET settings_json=$1, updated_at=now()
	`, b)
	return err
}

// Invoices and clients are owned by the surrounding application; the engine
// only reads them.

func (s *Store) ListOpenInvoices(ctx context.Context) ([]domain.Invoice, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, number, client_id, COALESCE(user_id,''), status, total, currency, issued_at, due_date
		FROM invoices
		WHERE status NOT IN ('draft','paid','cancelled')
		ORDER BY due_date
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Invoice
	for rows.Next() {
		var inv domain.Invoice
		if err := rows.Scan(&inv.ID, &inv.Number, &inv.ClientID, &inv.UserID, &inv.Status,
			&inv.Total, &inv.Currency, &inv.IssuedAt, &inv.DueDate); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (s *Store) GetInvoice(ctx context.Context, id string) (domain.Invoice, bool, error) {
	var inv domain.Invoice
	err := s.DB.QueryRow(ctx, `
		SELECT id, number, client_id, COALESCE(user_id,''), status, total, currency, issued_at, due_date
		FROM invoices WHERE id=$1
	`, id).Scan(&inv.ID, &inv.Number, &inv.ClientID, &inv.UserID, &inv.Status,
		&inv.Total, &inv.Currency, &inv.IssuedAt, &inv.DueDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Invoice{}, false, nil
		}
		return domain.Invoice{}, false, err
	}
	return inv, true, nil
}

func (s *Store) GetClient(ctx context.Context, id string) (domain.Client, bool, error) {
	var c domain.Client
	err := s.DB.QueryRow(ctx, `SELECT id, name, email FROM clients WHERE id=$1`, id).
		Scan(&c.ID, &c.Name, &c.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Client{}, false, nil
		}
		return domain.Client{}, false, err
	}
	return c, true, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
