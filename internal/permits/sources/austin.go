package sources

import "permit_ingest_backend/internal/permits/domain"

// Austin publishes issued construction permits on Socrata (dataset 3syk-w9eu).
func init() {
	register(Definition{
		Source:       domain.SourceAustin,
		Format:       FormatJSON,
		Jurisdiction: "tx-austin",
		Socrata:      true,
		DefaultCity:  "Austin",
		DefaultState: "TX",
		Fields: FieldMap{
			RecordID:        []string{"permit_id", "permitnum", "permit_number", ":id"},
			PermitNo:        []string{"permit_number", "permitnum", "permit_num"},
			County:          []string{"county", "jurisdiction_county"},
			PermitType:      []string{"permit_type_desc", "permittype", "permit_type"},
			PermitClass:     []string{"permit_class_mapped", "permit_class", "work_class"},
			WorkDescription: []string{"description", "work_description", "project_description"},
			Address:         []string{"permit_location", "original_address1", "project_address", "address", "full_address"},
			City:            []string{"original_city", "city"},
			State:           []string{"original_state", "state"},
			Zipcode:         []string{"original_zip", "zip", "zipcode"},
			Latitude:        []string{"latitude"},
			Longitude:       []string{"longitude"},
			Location:        []string{"location"},
			Valuation:       []string{"total_job_valuation", "total_valuation_remodel", "valuation"},
			ApplicantName:   []string{"applicant_full_name", "applicant_name", "applicant_org"},
			OwnerName:       []string{"owner_full_name", "owner_name"},
			ContractorName:  []string{"contractor_company_name", "contractor_full_name", "contractor_name"},
			Status:          []string{"status_current", "status"},
			AppliedDate:     []string{"applieddate", "applied_date"},
			IssuedDate:      []string{"issue_date", "issued_date", "issueddate"},
			ExpirationDate:  []string{"expiresdate", "expires_date", "expiration_date"},
		},
	})
}
