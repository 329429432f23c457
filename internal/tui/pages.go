package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jeanpaul/favourites/internal/contact"
	"github.com/jeanpaul/favourites/internal/store"
	"github.com/jeanpaul/favourites/internal/types"
)

const helpMarkdown = `# Favourites

| Key | Action |
|---|---|
| ↑ / k, ↓ / j | move |
| enter / a | add to favourites, or show a favourite |
| d / x | remove from favourites |
| f / tab | show only favourites |
| r | reload contacts |
| esc / q | back, quit |

Messages are up to 200 characters of letters, digits and spaces.
Gender is looked up from the first name when you save; if the lookup
fails the favourite is saved as *unknown*.
`

func detailMarkdown(f types.Favourite) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", f.Name)
	fmt.Fprintf(&b, "> %s\n\n", f.Message)
	fmt.Fprintf(&b, "- **Gender:** %s\n", f.Gender)
	fmt.Fprintf(&b, "- **Contact id:** `%s`\n", f.ID)
	return b.String()
}

// render runs md through glamour, falling back to the raw text.
func (m Model) render(md string) string {
	if m.renderer == nil {
		return md
	}
	out, err := m.renderer.Render(md)
	if err != nil {
		return md
	}
	return out
}

// describeFailure turns an add/remove error into the one line shown to the
// user.
func describeFailure(err error) string {
	var ve *store.ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return "Message: " + ve.Reason
	case errors.Is(err, store.ErrDuplicateFavourite):
		return "Already a favourite"
	case errors.Is(err, store.ErrAddCancelled):
		return "Cancelled"
	case errors.Is(err, store.ErrNotReady):
		return "Favourites are still loading"
	}
	return "Something went wrong, try again"
}

func describeContactsErr(err error) string {
	if errors.Is(err, contact.ErrPermissionDenied) {
		return "permission denied"
	}
	return "could not read contacts"
}
