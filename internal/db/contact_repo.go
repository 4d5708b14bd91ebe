package db

import (
	"context"
	"encoding/json"
	"time"

	"leadloop/internal/types"
)

// ContactRepository provides data access for CRM contacts. The sweep only
// touches contacts through workflow update_contact nodes, so the surface is
// a single field-merge operation.
type ContactRepository struct {
	db DBTX
}

// NewContactRepository creates a new ContactRepository backed by the given
// database connection (pool or transaction).
func NewContactRepository(db DBTX) *ContactRepository {
	return &ContactRepository{db: db}
}

// ApplyFields merges the given fields into the contact's attribute document.
// Existing keys are overwritten; keys not present in fields are untouched.
func (r *ContactRepository) ApplyFields(ctx context.Context, companyID, contactID string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}

	doc, err := json.Marshal(fields)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode contact fields", err)
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE contacts
		 SET fields = COALESCE(fields, '{}'::jsonb) || $3::jsonb, updated_at = $4
		 WHERE company_id = $1 AND id = $2`,
		companyID,
		contactID,
		doc,
		time.Now().UTC(),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update contact fields", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundContact, "contact not found", nil)
	}
	return nil
}
