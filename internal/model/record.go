package model

// CompanyRecord is one row of the ranked input list.
type CompanyRecord struct {
	Rank        string `json:"rank"`
	CompanyName string `json:"company_name"`
}

// EnrichedRecord is a CompanyRecord plus the Decision resolved for it.
type EnrichedRecord struct {
	CompanyRecord
	Decision Decision `json:"decision"`
}
