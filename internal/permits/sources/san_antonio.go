package sources

import "permit_ingest_backend/internal/permits/domain"

// San Antonio publishes issued permits as a CSV export.
func init() {
	register(Definition{
		Source:       domain.SourceSanAntonio,
		Format:       FormatCSV,
		Jurisdiction: "tx-san-antonio",
		DefaultCity:  "San Antonio",
		DefaultState: "TX",
		Fields: FieldMap{
			RecordID:        []string{"permit", "permit_number", "permit_no"},
			PermitNo:        []string{"permit", "permit_number", "permit_no"},
			County:          []string{"county"},
			PermitType:      []string{"permit_type", "type"},
			PermitClass:     []string{"work_type", "permit_class"},
			WorkDescription: []string{"project_name", "description", "work_description"},
			Address:         []string{"address", "project_address", "location"},
			City:            []string{"city"},
			State:           []string{"state"},
			Zipcode:         []string{"zip", "zip_code"},
			Latitude:        []string{"x_coord_lat", "latitude"},
			Longitude:       []string{"y_coord_lon", "longitude"},
			Valuation:       []string{"declared_valuation", "valuation"},
			ApplicantName:   []string{"primary_contact", "applicant"},
			OwnerName:       []string{"owner_name", "owner"},
			ContractorName:  []string{"contractor", "contractor_name"},
			Status:          []string{"status"},
			AppliedDate:     []string{"date_submitted", "applied_date"},
			IssuedDate:      []string{"date_issued", "issued_date"},
			ExpirationDate:  []string{"expiration_date"},
		},
	})
}
