package types

// Gender is the predicted label attached to a favourite.
type Gender string

const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderUnknown Gender = "unknown"
)

// ParseGender maps a raw label onto the closed set; anything unrecognised
// becomes GenderUnknown.
func ParseGender(s string) Gender {
	switch Gender(s) {
	case GenderMale, GenderFemale:
		return Gender(s)
	}
	return GenderUnknown
}

// Favourite is a contact the user explicitly marked, with the message they
// wrote and the gender resolved when it was added. Name is a snapshot taken
// at that time and is never re-derived from the contact.
type Favourite struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Message string `json:"message"`
	Gender  Gender `json:"gender"`
}
