package types

import "strings"

// Contact is a read-only entry supplied by a contact source.
type Contact struct {
	ID         string `json:"recordID" yaml:"recordID"`
	GivenName  string `json:"givenName" yaml:"givenName"`
	FamilyName string `json:"familyName" yaml:"familyName"`
}

// FullName joins given and family name, skipping empty parts.
func (c Contact) FullName() string {
	return strings.TrimSpace(c.GivenName + " " + c.FamilyName)
}
