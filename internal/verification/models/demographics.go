package models

import (
	"fmt"
)

// DefaultCountry is recorded for every verified account; intake does not extract it.
const DefaultCountry = "India"

// MinimumAge is the youngest age an identity document may attest to.
const MinimumAge = 18

type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
)

// Genders lists every gender the extractor may produce.
var Genders = []Gender{GenderMale, GenderFemale}

type AgeBracket string

const (
	AgeBracket18to25 AgeBracket = "18-25"
	AgeBracket26to35 AgeBracket = "26-35"
	AgeBracket36to45 AgeBracket = "36-45"
	AgeBracket46to55 AgeBracket = "46-55"
	AgeBracket56to65 AgeBracket = "56-65"
	AgeBracket65Plus AgeBracket = "65+"
)

// AgeBracketFor maps an age to its bracket. Ages below MinimumAge have no bracket.
func AgeBracketFor(age int) (AgeBracket, error) {
	switch {
	case age < MinimumAge:
		return "", fmt.Errorf("age %d is below the minimum of %d", age, MinimumAge)
	case age <= 25:
		return AgeBracket18to25, nil
	case age <= 35:
		return AgeBracket26to35, nil
	case age <= 45:
		return AgeBracket36to45, nil
	case age <= 55:
		return AgeBracket46to55, nil
	case age <= 65:
		return AgeBracket56to65, nil
	default:
		return AgeBracket65Plus, nil
	}
}

type Region string

const (
	RegionWestern  Region = "Western India"
	RegionNorthern Region = "Northern India"
	RegionSouthern Region = "Southern India"
	RegionEastern  Region = "Eastern India"
	RegionCentral  Region = "Central India"
	RegionOther    Region = "Other"
)

var stateRegions = map[string]Region{
	"Maharashtra":    RegionWestern,
	"Gujarat":        RegionWestern,
	"Delhi":          RegionNorthern,
	"Rajasthan":      RegionNorthern,
	"Uttar Pradesh":  RegionNorthern,
	"Karnataka":      RegionSouthern,
	"Tamil Nadu":     RegionSouthern,
	"West Bengal":    RegionEastern,
	"Bihar":          RegionEastern,
	"Madhya Pradesh": RegionCentral,
}

// RegionForState looks up the region of a state; unknown states map to RegionOther.
func RegionForState(state string) Region {
	if r, ok := stateRegions[state]; ok {
		return r
	}
	return RegionOther
}

// Accents and Languages are the categorical values a voice sample can yield.
var (
	Accents   = []string{"Indian English", "Hindi", "Tamil", "Bengali", "Marathi", "Gujarati"}
	Languages = []string{"Hindi", "English", "Tamil", "Bengali", "Marathi", "Telugu"}
)

// Demographics is the attribute set derived from evidence. Empty fields are absent.
type Demographics struct {
	Age             *int       `json:"age,omitempty"`
	AgeBracket      AgeBracket `json:"age_bracket,omitempty"`
	Gender          Gender     `json:"gender,omitempty"`
	Region          Region     `json:"region,omitempty"`
	State           string     `json:"state,omitempty"`
	Country         string     `json:"country,omitempty"`
	PrimaryLanguage string     `json:"primary_language,omitempty"`
	Accent          string     `json:"accent,omitempty"`
	Education       string     `json:"education,omitempty"`
}

// Merge overlays every present attribute of other onto d. Last writer wins per attribute.
func (d Demographics) Merge(other Demographics) Demographics {
	if other.Age != nil {
		age := *other.Age
		d.Age = &age
	}
	if other.AgeBracket != "" {
		d.AgeBracket = other.AgeBracket
	}
	if other.Gender != "" {
		d.Gender = other.Gender
	}
	if other.Region != "" {
		d.Region = other.Region
	}
	if other.State != "" {
		d.State = other.State
	}
	if other.Country != "" {
		d.Country = other.Country
	}
	if other.PrimaryLanguage != "" {
		d.PrimaryLanguage = other.PrimaryLanguage
	}
	if other.Accent != "" {
		d.Accent = other.Accent
	}
	if other.Education != "" {
		d.Education = other.Education
	}
	return d
}

// WithDefaults fills in fields that every persisted record carries.
func (d Demographics) WithDefaults() Demographics {
	if d.Country == "" {
		d.Country = DefaultCountry
	}
	return d
}

// Field returns the string value of a filterable attribute and whether it is present.
func (d Demographics) Field(name Attribute) (string, bool) {
	var v string
	switch name {
	case AttributeGender:
		v = string(d.Gender)
	case AttributeAgeBracket:
		v = string(d.AgeBracket)
	case AttributeRegion:
		v = string(d.Region)
	case AttributeState:
		v = d.State
	case AttributeAccent:
		v = d.Accent
	case AttributePrimaryLanguage:
		v = d.PrimaryLanguage
	case AttributeCountry:
		v = d.Country
	case AttributeEducation:
		v = d.Education
	default:
		return "", false
	}
	return v, v != ""
}

// Attribute names a filterable demographic attribute.
type Attribute string

const (
	AttributeGender          Attribute = "gender"
	AttributeAgeBracket      Attribute = "age_bracket"
	AttributeRegion          Attribute = "region"
	AttributeState           Attribute = "state"
	AttributeAccent          Attribute = "accent"
	AttributePrimaryLanguage Attribute = "primary_language"
	AttributeCountry         Attribute = "country"
	AttributeEducation       Attribute = "education"
)

var attributeAliases = map[string]Attribute{
	"gender":           AttributeGender,
	"age_bracket":      AttributeAgeBracket,
	"ageBracket":       AttributeAgeBracket,
	"age_range":        AttributeAgeBracket,
	"ageRange":         AttributeAgeBracket,
	"region":           AttributeRegion,
	"state":            AttributeState,
	"accent":           AttributeAccent,
	"primary_language": AttributePrimaryLanguage,
	"primaryLanguage":  AttributePrimaryLanguage,
	"country":          AttributeCountry,
	"education":        AttributeEducation,
}

// ParseAttribute resolves a criteria key, accepting snake_case and camelCase spellings.
func ParseAttribute(key string) (Attribute, bool) {
	a, ok := attributeAliases[key]
	return a, ok
}
