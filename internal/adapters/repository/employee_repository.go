package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/ports"
)

// EmployeeRepositoryImpl implements ports.EmployeeRepository
type EmployeeRepositoryImpl struct {
	db *sqlx.DB
}

// NewEmployeeRepository creates a new employee repository
func NewEmployeeRepository(db *sqlx.DB) ports.EmployeeRepository {
	return &EmployeeRepositoryImpl{db: db}
}

func (r *EmployeeRepositoryImpl) Create(ctx context.Context, employee *entities.Employee) error {
	query := `
		INSERT INTO employees (user_id, name)
		VALUES ($1, $2)
		RETURNING id, created_at`

	if employee.UserID == uuid.Nil {
		employee.UserID = uuid.New()
	}

	err := r.db.QueryRowxContext(ctx, query, employee.UserID, employee.Name).
		Scan(&employee.ID, &employee.CreatedAt)
	return translate("create employee", err, nil)
}

func (r *EmployeeRepositoryImpl) GetByID(ctx context.Context, id int) (*entities.Employee, error) {
	var employee entities.Employee
	err := r.db.GetContext(ctx, &employee, `SELECT id, user_id, name, created_at FROM employees WHERE id = $1`, id)
	if err != nil {
		return nil, translate("get employee", err, entities.ErrEmployeeNotFound)
	}
	return &employee, nil
}

// EmployeeByUser returns (nil, nil) when the user has no employee record.
func (r *EmployeeRepositoryImpl) EmployeeByUser(ctx context.Context, userID uuid.UUID) (*entities.Employee, error) {
	var employee entities.Employee
	err := r.db.GetContext(ctx, &employee, `SELECT id, user_id, name, created_at FROM employees WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translate("get employee by user", err, nil)
	}
	return &employee, nil
}

// AuditRepositoryImpl stores activity notes in audit_notes
type AuditRepositoryImpl struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new audit note repository
func NewAuditRepository(db *sqlx.DB) ports.AuditRepository {
	return &AuditRepositoryImpl{db: db}
}

type auditRow struct {
	ID            uuid.UUID      `db:"id"`
	Model         string         `db:"model"`
	ResID         int            `db:"res_id"`
	Body          string         `db:"body"`
	AttachmentIDs pq.StringArray `db:"attachment_ids"`
	CreatedAt     time.Time      `db:"created_at"`
}

func (r *AuditRepositoryImpl) Post(ctx context.Context, note *entities.AuditNote) error {
	if note.ID == uuid.Nil {
		note.ID = uuid.New()
	}
	ids := make([]string, len(note.AttachmentIDs))
	for i, id := range note.AttachmentIDs {
		ids[i] = id.String()
	}

	query := `
		INSERT INTO audit_notes (id, model, res_id, body, attachment_ids)
		VALUES ($1, $2, $3, $4, $5::uuid[])
		RETURNING created_at`

	err := r.db.QueryRowxContext(ctx, query, note.ID, note.Model, note.ResID, note.Body, pq.StringArray(ids)).
		Scan(&note.CreatedAt)
	return translate("post audit note", err, nil)
}

// List returns the notes of one record, oldest first.
func (r *AuditRepositoryImpl) List(ctx context.Context, model string, resID int) ([]*entities.AuditNote, error) {
	query := `
		SELECT id, model, res_id, body, attachment_ids::text[] AS attachment_ids, created_at
		FROM audit_notes
		WHERE model = $1 AND res_id = $2
		ORDER BY created_at ASC, seq ASC`

	var rows []auditRow
	if err := r.db.SelectContext(ctx, &rows, query, model, resID); err != nil {
		return nil, translate("list audit notes", err, nil)
	}

	notes := make([]*entities.AuditNote, 0, len(rows))
	for _, row := range rows {
		note := &entities.AuditNote{
			ID:        row.ID,
			Model:     row.Model,
			ResID:     row.ResID,
			Body:      row.Body,
			CreatedAt: row.CreatedAt,
		}
		for _, raw := range row.AttachmentIDs {
			id, err := uuid.Parse(strings.TrimSpace(raw))
			if err != nil {
				return nil, entities.NewPersistenceError("decode audit attachment id", err)
			}
			note.AttachmentIDs = append(note.AttachmentIDs, id)
		}
		notes = append(notes, note)
	}
	return notes, nil
}

// AttachmentRepositoryImpl keeps uploaded files in the attachments table
type AttachmentRepositoryImpl struct {
	db       *sqlx.DB
	maxBytes int64
	clock    ports.Clock
}

// NewAttachmentRepository creates an attachment repository. maxBytes <= 0
// disables the size limit.
func NewAttachmentRepository(db *sqlx.DB, maxBytes int64, clock ports.Clock) ports.AttachmentRepository {
	return &AttachmentRepositoryImpl{db: db, maxBytes: maxBytes, clock: clock}
}

func (r *AttachmentRepositoryImpl) Save(ctx context.Context, upload ports.Upload) (uuid.UUID, error) {
	if strings.TrimSpace(upload.Name) == "" {
		return uuid.Nil, entities.ErrInvalidInput.Withf("attachment name is required")
	}
	if r.maxBytes > 0 && int64(len(upload.Data)) > r.maxBytes {
		return uuid.Nil, entities.ErrAttachmentTooLarge.Withf("attachment %s exceeds %d bytes", upload.Name, r.maxBytes)
	}

	att := entities.NewAttachment(upload.Name, upload.ContentType, upload.Data, r.clock.Now())
	query := `
		INSERT INTO attachments (id, name, content_type, size, checksum, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query, att.ID, att.Name, att.ContentType, att.Size, att.Checksum, att.Data, att.CreatedAt)
	if err != nil {
		return uuid.Nil, translate("save attachment", err, nil)
	}
	return att.ID, nil
}

func (r *AttachmentRepositoryImpl) Get(ctx context.Context, id uuid.UUID) (*entities.Attachment, error) {
	var att entities.Attachment
	query := `SELECT id, name, content_type, size, checksum, data, created_at FROM attachments WHERE id = $1`
	if err := r.db.GetContext(ctx, &att, query, id); err != nil {
		return nil, translate("get attachment", err, entities.ErrAttachmentNotFound)
	}
	return &att, nil
}
