package models

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Document is an uploaded document and its processing result.
type Document struct {
	// ID is the document identifier used in URLs (a UUID string).
	ID string `gorm:"primaryKey;type:varchar(64)"`

	// Filename is the original name of the uploaded file.
	Filename string `gorm:"type:varchar(500);not null"`

	// Status is the processing status (pending, processing, completed, failed).
	Status string `gorm:"type:varchar(20);not null;default:'pending';index"`

	// Result is the processing result as raw JSON.
	Result JSON `gorm:"type:text"`

	// ResultPath is the result file path relative to the results directory.
	ResultPath string `gorm:"type:varchar(500)"`

	// SourcePath is the uploaded source file path relative to the incoming
	// directory.
	SourcePath string `gorm:"type:varchar(500)"`

	CreatedAt time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// DocumentStatus constants
const (
	DocumentStatusPending    = "pending"
	DocumentStatusProcessing = "processing"
	DocumentStatusCompleted  = "completed"
	DocumentStatusFailed     = "failed"
)

// TableName specifies the table name.
func (Document) TableName() string {
	return "documents"
}

// Validate checks the document's fields.
func (d *Document) Validate() error {
	return validation.ValidateStruct(d,
		validation.Field(&d.Filename, validation.Required, validation.Length(1, 500)),
		validation.Field(&d.Status, validation.Required, validation.In(
			DocumentStatusPending,
			DocumentStatusProcessing,
			DocumentStatusCompleted,
			DocumentStatusFailed,
		)),
	)
}

// BeforeCreate assigns an ID and default status.
func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Status == "" {
		d.Status = DocumentStatusPending
	}
	return nil
}

// Create creates a new document in the database.
func (d *Document) Create(db *gorm.DB) error {
	if d.Status == "" {
		d.Status = DocumentStatusPending
	}
	if err := d.Validate(); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	return db.Create(d).Error
}

// Get retrieves a document by ID.
func (d *Document) Get(db *gorm.DB, id string) error {
	if err := validation.Validate(id, validation.Required); err != nil {
		return err
	}

	return db.
		Where("id = ?", id).
		First(d).
		Error
}

// Update saves all fields of the document.
func (d *Document) Update(db *gorm.DB) error {
	if err := validation.Validate(d.ID, validation.Required); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	if err := d.Validate(); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	return db.Save(d).Error
}

// Documents is a slice of documents.
type Documents []Document

// GetAll retrieves all documents, newest first.
func (ds *Documents) GetAll(db *gorm.DB) error {
	return db.
		Order("created_at DESC").
		Find(ds).
		Error
}
