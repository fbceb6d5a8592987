package models

// Unspecified stands in for every absent token-metadata value.
const Unspecified = "unspecified"

// TokenMetadata is the flat projection of a record used for token minting.
// Every string is populated; absent values read Unspecified.
type TokenMetadata struct {
	Verified        bool   `json:"verified"`
	VerificationID  string `json:"verificationId"`
	Gender          string `json:"gender"`
	AgeRange        string `json:"ageRange"`
	Region          string `json:"region"`
	State           string `json:"state"`
	Accent          string `json:"accent"`
	PrimaryLanguage string `json:"primaryLanguage"`
	Country         string `json:"country"`
}

// TokenMetadataFor projects rec. A nil record yields an unverified, all-unspecified projection.
func TokenMetadataFor(rec *Record) TokenMetadata {
	if rec == nil {
		return TokenMetadata{
			VerificationID:  Unspecified,
			Gender:          Unspecified,
			AgeRange:        Unspecified,
			Region:          Unspecified,
			State:           Unspecified,
			Accent:          Unspecified,
			PrimaryLanguage: Unspecified,
			Country:         Unspecified,
		}
	}
	d := rec.Demographics
	return TokenMetadata{
		Verified:        rec.IsVerified,
		VerificationID:  orUnspecified(string(rec.VerificationID)),
		Gender:          orUnspecified(string(d.Gender)),
		AgeRange:        orUnspecified(string(d.AgeBracket)),
		Region:          orUnspecified(string(d.Region)),
		State:           orUnspecified(d.State),
		Accent:          orUnspecified(d.Accent),
		PrimaryLanguage: orUnspecified(d.PrimaryLanguage),
		Country:         orUnspecified(d.Country),
	}
}

func orUnspecified(s string) string {
	if s == "" {
		return Unspecified
	}
	return s
}
