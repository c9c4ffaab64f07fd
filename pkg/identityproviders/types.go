package identityproviders

import (
	"github.com/google/uuid"
)

// CSVSettings declares the upload format: the delimiter and the expected
// header names. The number of provider triples is driven by each upload's
// header, not by configuration.
type CSVSettings struct {
	Separator              rune
	HeaderUserID           string
	HeaderFirstName        string
	HeaderLastName         string
	HeaderEmail            string
	HeaderProviderAlias    string
	HeaderProviderUserID   string
	HeaderProviderUserName string
}

// DefaultCSVSettings returns the standard upload format
func DefaultCSVSettings() CSVSettings {
	return CSVSettings{
		Separator:              ',',
		HeaderUserID:           "UserId",
		HeaderFirstName:        "FirstName",
		HeaderLastName:         "LastName",
		HeaderEmail:            "Email",
		HeaderProviderAlias:    "ProviderAlias",
		HeaderProviderUserID:   "ProviderUserId",
		HeaderProviderUserName: "ProviderUserName",
	}
}

// providerTriple is one declared (alias, user id, user name) column group
type providerTriple struct {
	Alias    string
	UserID   string
	UserName string
}

// uploadRow is one parsed data row
type uploadRow struct {
	CompanyUserID uuid.UUID
	FirstName     string
	LastName      string
	Email         string
	Triples       []providerTriple
}

// RowError describes one failed row, in stream order
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// ReconcileResult summarizes a reconciliation run. Total always equals
// Updated + Unchanged + Error.
type ReconcileResult struct {
	Total     int        `json:"total"`
	Updated   int        `json:"updated"`
	Unchanged int        `json:"unchanged"`
	Error     int        `json:"error"`
	Errors    []RowError `json:"errors,omitempty"`
}
