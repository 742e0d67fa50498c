package store

import "gorm.io/datatypes"

// resumeDocumentRow is the GORM row backing a Resume Document's structured
// fields. Ingestion (out of scope) owns writes; the core only ever reads
// this table. Embeddings live in Qdrant, not here.
type resumeDocumentRow struct {
	ID      string         `gorm:"column:id;primaryKey;size:64"`
	Name    string         `gorm:"column:name;size:255;index"`
	Email   string         `gorm:"column:email;size:255;index"`
	Phone   string         `gorm:"column:phone;size:64"`
	Role    string         `gorm:"column:role;size:255"`
	Company string         `gorm:"column:company;size:255"`
	Text    string         `gorm:"column:text;type:mediumtext"`
	Skills  datatypes.JSON `gorm:"column:skills;type:json"`
}

// TableName pins the GORM model to a fixed table name regardless of the
// naming strategy configured on the *gorm.DB.
func (resumeDocumentRow) TableName() string {
	return "resume_documents"
}
