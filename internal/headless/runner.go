package headless

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/jeanpaul/favourites/internal/favourites"
	"github.com/jeanpaul/favourites/internal/types"
)

// ErrUnknownContact is returned when an id names no loaded contact.
var ErrUnknownContact = errors.New("unknown contact")

// Runner executes one favourites command and prints the result to Out.
// Failures are returned; the caller decides how to report them.
type Runner struct {
	Svc  *favourites.Service
	Out  io.Writer
	JSON bool
}

type row struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Favourite bool         `json:"favourite"`
	Message   string       `json:"message,omitempty"`
	Gender    types.Gender `json:"gender,omitempty"`
}

// List prints the contact list, or only favourited contacts.
func (r *Runner) List(onlyFavourites bool) error {
	contacts := r.Svc.ListFiltered(onlyFavourites)
	rows := make([]row, 0, len(contacts))
	for _, c := range contacts {
		rw := row{ID: c.ID, Name: c.FullName()}
		if f, ok := r.Svc.Favourite(c.ID); ok {
			rw.Favourite = true
			rw.Message = f.Message
			rw.Gender = f.Gender
		}
		rows = append(rows, rw)
	}
	if r.JSON {
		return r.writeJSON(rows)
	}
	if len(rows) == 0 {
		_, err := fmt.Fprintln(r.Out, "no contacts")
		return err
	}
	for _, rw := range rows {
		mark := " "
		if rw.Favourite {
			mark = "*"
		}
		if _, err := fmt.Fprintf(r.Out, "%s %-10s %s\n", mark, rw.ID, rw.Name); err != nil {
			return err
		}
	}
	return nil
}

// Add favourites the contact with id, waiting for the gender lookup.
func (r *Runner) Add(ctx context.Context, id, message string) error {
	c, ok := r.contact(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownContact, id)
	}
	res := r.Svc.AddFavourite(ctx, c, message)
	if !res.OK {
		return res.Err
	}
	return r.printFavourite(res.Favourite)
}

// Remove unfavourites id. Ids that are not favourites are not an error.
func (r *Runner) Remove(id string) error {
	if res := r.Svc.RemoveFavourite(id); !res.OK {
		return res.Err
	}
	if r.JSON {
		return r.writeJSON(map[string]string{"removed": id})
	}
	_, err := fmt.Fprintf(r.Out, "removed %s\n", id)
	return err
}

// Show prints the stored favourite for id.
func (r *Runner) Show(id string) error {
	f, ok := r.Svc.Favourite(id)
	if !ok {
		return fmt.Errorf("%s is not a favourite", id)
	}
	return r.printFavourite(f)
}

func (r *Runner) printFavourite(f types.Favourite) error {
	if r.JSON {
		return r.writeJSON(f)
	}
	_, err := fmt.Fprintf(r.Out, "%s\t%s\t%s\t%s\n", f.ID, f.Name, f.Gender, f.Message)
	return err
}

func (r *Runner) contact(id string) (types.Contact, bool) {
	for _, c := range r.Svc.Contacts() {
		if c.ID == id {
			return c, true
		}
	}
	return types.Contact{}, false
}

func (r *Runner) writeJSON(v any) error {
	enc := json.NewEncoder(r.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
