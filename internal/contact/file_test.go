package contact

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jeanpaul/favourites/internal/types"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func writeXLSX(t *testing.T, path string, rows [][]any) {
	t.Helper()
	book := excelize.NewFile()
	defer book.Close()
	sheet := book.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, book.SetSheetRow(sheet, cell, &row))
	}
	require.NoError(t, book.SaveAs(path))
}

func TestFileSourceFormats(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.json"), `[
		{"recordID":"1","givenName":"Ann","familyName":"Lee"},
		{"id":"2","givenName":"Sam","familyName":"Roe"}
	]`)
	writeFile(t, filepath.Join(dir, "b.yaml"), `
- recordID: "3"
  givenName: Kim
  familyName: Park
`)
	writeFile(t, filepath.Join(dir, "nested", "c.csv"), "ID,GivenName,FamilyName\n4,Lou,Ng\n,Skip,Me\n1,Dup,Row\n")
	writeXLSX(t, filepath.Join(dir, "d.xlsx"), [][]any{
		{"recordID", "givenName", "familyName"},
		{"5", "Eve", "Ho"},
	})
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")

	src := NewFileSource(filepath.Join(dir, "**", "*.{json,yaml,yml,csv,xlsx}"))
	got, err := src.ListContacts(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []types.Contact{
		{ID: "1", GivenName: "Ann", FamilyName: "Lee"},
		{ID: "2", GivenName: "Sam", FamilyName: "Roe"},
		{ID: "3", GivenName: "Kim", FamilyName: "Park"},
		{ID: "5", GivenName: "Eve", FamilyName: "Ho"},
		{ID: "4", GivenName: "Lou", FamilyName: "Ng"},
	}, got)
}

func TestFileSourceNoMatches(t *testing.T) {
	got, err := NewFileSource(filepath.Join(t.TempDir(), "*.json")).ListContacts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFileSourceBadFileIsProviderError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "broken.json"), `{"not":"a list"`)
	_, err := NewFileSource(filepath.Join(dir, "*.json")).ListContacts(context.Background())
	assert.ErrorIs(t, err, ErrProvider)
}

func TestFileSourceCSVNeedsIDColumn(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "x.csv"), "name\nAnn\n")
	_, err := NewFileSource(filepath.Join(dir, "*.csv")).ListContacts(context.Background())
	assert.ErrorIs(t, err, ErrProvider)
}

func TestFileSourceUnreadableIsPermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores file modes")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "locked.json")
	writeFile(t, path, `[]`)
	require.NoError(t, os.Chmod(path, 0))

	_, err := NewFileSource(filepath.Join(dir, "*.json")).ListContacts(context.Background())
	assert.ErrorIs(t, err, ErrPermissionDenied)
}
