package sources

import "permit_ingest_backend/internal/permits/domain"

// Houston has no API; permits are scraped from a published HTML table that
// carries no row key, so record ids are content hashes.
func init() {
	register(Definition{
		Source:       domain.SourceHouston,
		Format:       FormatHTML,
		Jurisdiction: "tx-houston",
		DefaultCity:  "Houston",
		DefaultState: "TX",
		Fields: FieldMap{
			PermitNo:        []string{"permit_number", "permit_no", "project_number", "permit"},
			County:          []string{"county"},
			PermitType:      []string{"permit_type", "type"},
			PermitClass:     []string{"occupancy", "class"},
			WorkDescription: []string{"description", "work_description", "comments"},
			Address:         []string{"address", "project_address", "site_address"},
			City:            []string{"city"},
			Zipcode:         []string{"zip", "zip_code"},
			Valuation:       []string{"valuation", "value", "job_value"},
			ApplicantName:   []string{"applicant", "applicant_name"},
			OwnerName:       []string{"owner", "owner_name"},
			ContractorName:  []string{"contractor", "contractor_name"},
			Status:          []string{"status"},
			AppliedDate:     []string{"applied", "application_date"},
			IssuedDate:      []string{"issue_date", "issued", "date_issued"},
		},
	})
}
