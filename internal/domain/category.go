package domain

import (
	"errors"
	"strings"
)

// Region is the applicant jurisdiction axis.
type Region string

const (
	RegionLocal   Region = "local"
	RegionForeign Region = "foreign"
)

// ApplicantType is the individual/corporate axis.
type ApplicantType string

const (
	ApplicantIndividual ApplicantType = "individual"
	ApplicantCorporate  ApplicantType = "corporate"
)

// Category is one of the four region × applicant type combinations. Each
// category owns exactly one storage collection.
type Category string

const (
	CategoryLocalIndividual   Category = "local-individual"
	CategoryLocalCorporate    Category = "local-corporate"
	CategoryForeignIndividual Category = "foreign-individual"
	CategoryForeignCorporate  Category = "foreign-corporate"
)

// ErrInvalidClassification is returned when region/applicant type or a
// category key do not name one of the four categories.
var ErrInvalidClassification = errors.New("invalid region/applicant type classification")

// Categories lists every category in lookup order.
var Categories = []Category{
	CategoryLocalIndividual,
	CategoryLocalCorporate,
	CategoryForeignIndividual,
	CategoryForeignCorporate,
}

// ResolveCategory maps a (region, applicant type) pair onto its category.
func ResolveCategory(region Region, applicantType ApplicantType) (Category, error) {
	switch region {
	case RegionLocal:
		switch applicantType {
		case ApplicantIndividual:
			return CategoryLocalIndividual, nil
		case ApplicantCorporate:
			return CategoryLocalCorporate, nil
		}
	case RegionForeign:
		switch applicantType {
		case ApplicantIndividual:
			return CategoryForeignIndividual, nil
		case ApplicantCorporate:
			return CategoryForeignCorporate, nil
		}
	}
	return "", ErrInvalidClassification
}

// ParseCategory maps an admin category key onto its category.
func ParseCategory(key string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(key)))
	for _, known := range Categories {
		if c == known {
			return c, nil
		}
	}
	return "", ErrInvalidClassification
}

// Region returns the region half of the category.
func (c Category) Region() Region {
	switch c {
	case CategoryLocalIndividual, CategoryLocalCorporate:
		return RegionLocal
	case CategoryForeignIndividual, CategoryForeignCorporate:
		return RegionForeign
	}
	return ""
}

// ApplicantType returns the applicant type half of the category.
func (c Category) ApplicantType() ApplicantType {
	switch c {
	case CategoryLocalIndividual, CategoryForeignIndividual:
		return ApplicantIndividual
	case CategoryLocalCorporate, CategoryForeignCorporate:
		return ApplicantCorporate
	}
	return ""
}

// Collection is the table/collection name backing the category.
func (c Category) Collection() string {
	return strings.ReplaceAll(string(c), "-", "_") + "_applications"
}

// Label is the human readable category name used in emails and PDFs.
func (c Category) Label() string {
	switch c {
	case CategoryLocalIndividual:
		return "Local Individual"
	case CategoryLocalCorporate:
		return "Local Corporate"
	case CategoryForeignIndividual:
		return "Foreign Individual"
	case CategoryForeignCorporate:
		return "Foreign Corporate"
	}
	return string(c)
}

// ApplicantEmailPaths are the formData paths tried, in order, for the
// applicant's contact address.
func (c Category) ApplicantEmailPaths() []string {
	switch c {
	case CategoryLocalIndividual:
		return []string{"clientRegistration.principal.email", "clientRegistration.email", "personalDetails.email"}
	case CategoryForeignIndividual:
		return []string{"clientRegistration.principal.email", "personalDetails.email", "contact.email"}
	case CategoryLocalCorporate:
		return []string{"companyRegistration.contactPerson.email", "companyRegistration.email", "authorisedSignatory.email"}
	case CategoryForeignCorporate:
		return []string{"entityRegistration.contactPerson.email", "entityRegistration.email", "authorisedSignatory.email"}
	}
	return nil
}
