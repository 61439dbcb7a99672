package sources

import "permit_ingest_backend/internal/permits/domain"

// Dallas publishes building permits on Socrata (dataset e7gq-4sah).
func init() {
	register(Definition{
		Source:       domain.SourceDallas,
		Format:       FormatJSON,
		Jurisdiction: "tx-dallas",
		Socrata:      true,
		DefaultCity:  "Dallas",
		DefaultState: "TX",
		Fields: FieldMap{
			RecordID:        []string{"permit_id", "permit_number", "permit_no", ":id"},
			PermitNo:        []string{"permit_number", "permit_no"},
			County:          []string{"county"},
			PermitType:      []string{"permit_type", "type_of_work"},
			PermitClass:     []string{"land_use", "permit_class"},
			WorkDescription: []string{"work_description", "description"},
			Address:         []string{"street_address", "address", "full_address"},
			City:            []string{"city"},
			State:           []string{"state"},
			Zipcode:         []string{"zip_code", "zip", "zipcode"},
			Latitude:        []string{"latitude", "lat"},
			Longitude:       []string{"longitude", "lon"},
			Location:        []string{"geocoded_column", "location"},
			Valuation:       []string{"value", "valuation", "job_value"},
			ApplicantName:   []string{"applicant", "applicant_name"},
			OwnerName:       []string{"owner", "owner_name"},
			ContractorName:  []string{"contractor", "contractor_name"},
			Status:          []string{"status", "permit_status"},
			AppliedDate:     []string{"applied_date", "application_date"},
			IssuedDate:      []string{"issued_date", "issue_date"},
			ExpirationDate:  []string{"expiration_date"},
		},
	})
}
