package identityproviders

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/meshfoundry/idhub/pkg/fault"
)

// fixedColumns are the leading non-provider columns of every upload
const fixedColumns = 4

// parseHeader validates the fixed columns and counts the provider triples
// declared by this specific upload. Returns the triple count.
func parseHeader(record []string, cs CSVSettings) (int, error) {
	expected := []string{cs.HeaderUserID, cs.HeaderFirstName, cs.HeaderLastName, cs.HeaderEmail}
	if len(record) < fixedColumns {
		return 0, fmt.Errorf("header has %d columns, expected at least %d", len(record), fixedColumns)
	}
	for i, name := range expected {
		if record[i] != name {
			return 0, fmt.Errorf("header column %d is %q, expected %q", i+1, record[i], name)
		}
	}

	rest := record[fixedColumns:]
	if len(rest)%3 != 0 {
		return 0, fmt.Errorf("header declares %d provider columns, expected a multiple of 3", len(rest))
	}

	numTriples := len(rest) / 3
	for i := 0; i < numTriples; i++ {
		group := rest[i*3 : i*3+3]
		if group[0] != cs.HeaderProviderAlias || group[1] != cs.HeaderProviderUserID || group[2] != cs.HeaderProviderUserName {
			return 0, fmt.Errorf("provider column group %d is %v, expected [%s %s %s]",
				i+1, group, cs.HeaderProviderAlias, cs.HeaderProviderUserID, cs.HeaderProviderUserName)
		}
	}
	return numTriples, nil
}

// parseRow maps one data row against the header's declared triple count
func parseRow(record []string, numTriples, rowNumber int) (*uploadRow, error) {
	if len(record) != fixedColumns+numTriples*3 {
		return nil, &fault.RowFormatError{
			Line:   rowNumber,
			Reason: fmt.Sprintf("%d columns, expected %d", len(record), fixedColumns+numTriples*3),
		}
	}

	companyUserID, err := uuid.Parse(record[0])
	if err != nil {
		return nil, &fault.RowFormatError{Line: rowNumber, Reason: fmt.Sprintf("invalid user id %q", record[0])}
	}

	row := &uploadRow{
		CompanyUserID: companyUserID,
		FirstName:     record[1],
		LastName:      record[2],
		Email:         record[3],
		Triples:       make([]providerTriple, 0, numTriples),
	}
	for i := 0; i < numTriples; i++ {
		group := record[fixedColumns+i*3 : fixedColumns+i*3+3]
		row.Triples = append(row.Triples, providerTriple{
			Alias:    group[0],
			UserID:   group[1],
			UserName: group[2],
		})
	}
	return row, nil
}
