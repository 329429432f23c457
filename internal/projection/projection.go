// Package projection derives the contact list shown to the user.
package projection

import "github.com/jeanpaul/favourites/internal/types"

// Filter returns contacts unchanged when onlyFavourites is false, otherwise
// the contacts whose id is in favourites, in the contacts' own order.
func Filter(contacts []types.Contact, favourites map[string]struct{}, onlyFavourites bool) []types.Contact {
	if !onlyFavourites {
		return contacts
	}
	out := make([]types.Contact, 0, len(favourites))
	for _, c := range contacts {
		if _, ok := favourites[c.ID]; ok {
			out = append(out, c)
		}
	}
	return out
}
