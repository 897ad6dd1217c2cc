// Package recorder persists property document metadata harvested
// from a county recorder's site, keyed by Property Identification
// Number (PIN).
package recorder

type EntityStatus string

const (
	EntityGrantor EntityStatus = "grantor"
	EntityGrantee EntityStatus = "grantee"
)

// Entity is one grantor or grantee party named on a document.
type Entity struct {
	Name        string
	Status      EntityStatus
	TrustNumber *string
}

// Document is one recorded instrument (deed, mortgage, release...)
// together with the relationships found on its detail page. DocNum is
// globally unique; the same document may be reached from several
// related PINs, only one row exists for it. Nullable fields use
// pointers, the site omits them freely.
type Document struct {
	DocNum              string
	Pin                 string
	DateExecuted        *string
	DateRecorded        *string
	NumPages            *int64
	Address             *string
	DocType             string
	ConsiderationAmount *string
	PdfUrl              *string

	Entities    []Entity
	RelatedPins []string
	PriorDocs   []string
}
