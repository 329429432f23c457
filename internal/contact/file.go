package contact

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/jeanpaul/favourites/internal/types"
)

// FileSource reads contacts from exported files matched by doublestar
// patterns (e.g. "~/contacts/**/*.{json,csv}"). Supported extensions are
// .json, .yaml, .yml, .csv and .xlsx.
type FileSource struct {
	patterns []string
}

func NewFileSource(patterns ...string) *FileSource {
	return &FileSource{patterns: patterns}
}

func (f *FileSource) ListContacts(ctx context.Context) ([]types.Contact, error) {
	paths, err := f.match()
	if err != nil {
		return nil, err
	}

	var out []types.Contact
	seen := map[string]bool{}
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := readFile(p)
		if err != nil {
			return nil, err
		}
		for _, c := range rows {
			if c.ID == "" || seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *FileSource) match() ([]string, error) {
	set := map[string]bool{}
	for _, pattern := range f.patterns {
		pattern = expandHome(pattern)
		base, rest := doublestar.SplitPattern(filepath.ToSlash(pattern))
		matches, err := doublestar.Glob(os.DirFS(base), rest)
		if err != nil {
			return nil, fmt.Errorf("%w: bad pattern %q: %v", ErrProvider, pattern, err)
		}
		for _, m := range matches {
			set[filepath.Join(base, m)] = true
		}
	}
	paths := make([]string, 0, len(set))
	for p := range set {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

func readFile(path string) ([]types.Contact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}

	var rows []types.Contact
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		rows, err = decodeJSON(data)
	case ".yaml", ".yml":
		rows, err = decodeYAML(data)
	case ".csv":
		rows, err = decodeCSV(bytes.NewReader(data))
	case ".xlsx":
		rows, err = decodeXLSX(bytes.NewReader(data))
	default:
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrProvider, path, err)
	}
	return rows, nil
}

// record accepts both the device export key (recordID) and a plain id.
type record struct {
	RecordID   string `json:"recordID" yaml:"recordID"`
	ID         string `json:"id" yaml:"id"`
	GivenName  string `json:"givenName" yaml:"givenName"`
	FamilyName string `json:"familyName" yaml:"familyName"`
}

func (r record) contact() types.Contact {
	id := r.RecordID
	if id == "" {
		id = r.ID
	}
	return types.Contact{
		ID:         strings.TrimSpace(id),
		GivenName:  strings.TrimSpace(r.GivenName),
		FamilyName: strings.TrimSpace(r.FamilyName),
	}
}

func decodeJSON(data []byte) ([]types.Contact, error) {
	var recs []record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, err
	}
	return toContacts(recs), nil
}

func decodeYAML(data []byte) ([]types.Contact, error) {
	var recs []record
	if err := yaml.Unmarshal(data, &recs); err != nil {
		return nil, err
	}
	return toContacts(recs), nil
}

func toContacts(recs []record) []types.Contact {
	out := make([]types.Contact, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.contact())
	}
	return out
}

func decodeCSV(r io.Reader) ([]types.Contact, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	return fromTable(rows)
}

func decodeXLSX(r io.Reader) ([]types.Contact, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	return fromTable(rows)
}

// fromTable maps a header row plus data rows onto contacts. Header names are
// matched case-insensitively; "recordID" and "id" are both accepted.
func fromTable(rows [][]string) ([]types.Contact, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	col := map[string]int{}
	for i, h := range rows[0] {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	idCol, ok := col["id"]
	if !ok {
		idCol, ok = col["recordid"]
	}
	if !ok {
		return nil, errors.New("missing id column")
	}
	get := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	out := make([]types.Contact, 0, len(rows)-1)
	for _, row := range rows[1:] {
		id := ""
		if idCol < len(row) {
			id = row[idCol]
		}
		out = append(out, record{
			ID:         id,
			GivenName:  get(row, "givenname"),
			FamilyName: get(row, "familyname"),
		}.contact())
	}
	return out, nil
}
