// Package opinion holds the records that flow between the extract, transform and load phases.
package opinion

import "time"

// SourceOrigin identifies which kind of feed produced a raw record.
type SourceOrigin string

const (
	OriginCSV      SourceOrigin = "CSV"
	OriginDatabase SourceOrigin = "Database"
	OriginAPI      SourceOrigin = "API"
)

// Classification is the canonical sentiment label stored in the warehouse.
type Classification string

const (
	Positive Classification = "Positiva"
	Negative Classification = "Negativa"
	Neutral  Classification = "Neutral"
)

// Metadata keys set by the extractors.
const (
	MetaPlatform   = "Platform"
	MetaLikes      = "Likes"
	MetaShares     = "Shares"
	MetaIsVerified = "IsVerified"
	MetaFileName   = "FileName"
	MetaSource     = "Source"
	MetaUserHandle = "UserHandle"
)

// RawOpinion is a record as read from a source, before any normalization.
// Empty strings mean the source did not provide the value.
type RawOpinion struct {
	IDOriginal string

	ClientID    string
	ClientName  string
	ClientEmail string

	ProductID       string
	ProductName     string
	ProductCategory string

	Date           string
	Comment        string
	Rating         string
	Classification string

	SourceOrigin SourceOrigin
	Metadata     map[string]string
}

// Meta returns the metadata value for key, or "".
func (r RawOpinion) Meta(key string) string {
	if r.Metadata == nil {
		return ""
	}
	return r.Metadata[key]
}

// Opinion is the normalized, classified record the loader writes as a fact row.
type Opinion struct {
	IDOriginal   string
	SourceOrigin SourceOrigin

	ClientID    string
	ClientName  string
	ClientEmail string

	ProductID       string
	ProductName     string
	ProductCategory string

	Date              time.Time
	Comment           string
	Classification    Classification
	SatisfactionScore float64
	OriginalChannel   string
}
