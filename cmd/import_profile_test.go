package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/event-scout/internal/config"
	"github.com/sells-group/event-scout/internal/registry"
)

func writeLikedEvents(t *testing.T, path string) {
	t.Helper()

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Liked Events")
	require.NoError(t, err)

	header := sheet.AddRow()
	for _, h := range []string{"Event Name", "Event Type", "URL"} {
		header.AddCell().SetString(h)
	}
	for _, r := range [][]string{
		{"May Day March Downtown", "protest", "https://blockclubchicago.org/may-day"},
		{"Winter Lantern Festival", "festival", "https://www.timeout.com/lanterns"},
	} {
		row := sheet.AddRow()
		for _, cell := range r {
			row.AddCell().SetString(cell)
		}
	}

	require.NoError(t, f.Save(path))
}

// setImportFlags sets the command's package-level flag variables and
// restores them when the test ends.
func setImportFlags(t *testing.T, xlsxPath, name, location string) {
	t.Helper()
	importXLSX, importName, importSheet, importLocation = xlsxPath, name, "", location
	t.Cleanup(func() {
		importXLSX, importName, importSheet, importLocation = "", "", "", ""
	})
}

func TestImportProfileCmd_Metadata(t *testing.T) {
	assert.Equal(t, "import-profile", importProfileCmd.Use)
	assert.NotEmpty(t, importProfileCmd.Short)
}

func TestImportProfileCmd_CreatesProfile(t *testing.T) {
	tmpDir := t.TempDir()
	xlsxPath := filepath.Join(tmpDir, "liked.xlsx")
	writeLikedEvents(t, xlsxPath)

	profilesPath := filepath.Join(tmpDir, "profiles.yaml")
	cfg = &config.Config{Registry: config.RegistryConfig{ProfilesPath: profilesPath}}
	setImportFlags(t, xlsxPath, "street", "Chicago, IL")

	require.NoError(t, importProfileCmd.RunE(importProfileCmd, nil))

	profiles, err := registry.LoadProfiles(profilesPath)
	require.NoError(t, err)
	require.Len(t, profiles, 1)

	p := profiles[0]
	assert.Equal(t, "street", p.Name)
	assert.Equal(t, "Chicago, IL", p.Location)
	assert.ElementsMatch(t, []string{"protest", "festival"}, p.Interests)
	assert.Contains(t, p.Domains, "blockclubchicago.org")
	assert.Contains(t, p.Domains, "timeout.com")
}

func TestImportProfileCmd_UpdatesExisting(t *testing.T) {
	tmpDir := t.TempDir()
	xlsxPath := filepath.Join(tmpDir, "liked.xlsx")
	writeLikedEvents(t, xlsxPath)

	profilesPath := filepath.Join(tmpDir, "profiles.yaml")
	existing := `profiles:
  - name: street
    interests: [stale]
  - name: docs
    location: "New York, NY"
`
	require.NoError(t, os.WriteFile(profilesPath, []byte(existing), 0o644))

	cfg = &config.Config{Registry: config.RegistryConfig{ProfilesPath: profilesPath}}
	setImportFlags(t, xlsxPath, "street", "")

	require.NoError(t, importProfileCmd.RunE(importProfileCmd, nil))

	profiles, err := registry.LoadProfiles(profilesPath)
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	street, ok := registry.FindProfile(profiles, "street")
	require.True(t, ok)
	assert.NotContains(t, street.Interests, "stale")
	assert.Contains(t, street.Interests, "protest")

	docs, ok := registry.FindProfile(profiles, "docs")
	require.True(t, ok)
	assert.Equal(t, "New York, NY", docs.Location)
}

func TestImportProfileCmd_MissingSpreadsheet(t *testing.T) {
	cfg = &config.Config{Registry: config.RegistryConfig{ProfilesPath: filepath.Join(t.TempDir(), "profiles.yaml")}}
	setImportFlags(t, "/nonexistent/liked.xlsx", "street", "")

	err := importProfileCmd.RunE(importProfileCmd, nil)
	require.Error(t, err)
}
