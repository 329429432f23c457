package schema

// Favourites describes the persisted favourites blob: an array of records.
// Only id and name are required and extra properties are allowed, so blobs
// written by a newer build that added fields still load.
const Favourites = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "name"],
    "properties": {
      "id":      {"type": "string", "minLength": 1},
      "name":    {"type": "string"},
      "message": {"type": "string"},
      "gender":  {"type": "string"}
    }
  }
}`

var defaultValidator = NewValidator()

// ValidateFavourites checks a persisted favourites blob.
func ValidateFavourites(blob []byte) error {
	return defaultValidator.Validate(Favourites, blob)
}
