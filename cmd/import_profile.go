package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/event-scout/internal/feedback"
	"github.com/sells-group/event-scout/internal/model"
	"github.com/sells-group/event-scout/internal/registry"
)

var (
	importXLSX     string
	importName     string
	importSheet    string
	importLocation string
)

var importProfileCmd = &cobra.Command{
	Use:   "import-profile",
	Short: "Build an interest profile from a liked-events spreadsheet",
	Long:  "Distills a liked-events XLSX export into an interest profile: event types become interests, recurring title words become keywords, and source URLs become trusted domains.",
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := feedback.ImportXLSX(importXLSX, importName, feedback.ImportOptions{
			SheetName: importSheet,
		})
		if err != nil {
			return err
		}

		profile := result.Profile
		if importLocation != "" {
			profile.Location = importLocation
		}

		path := cfg.Registry.ProfilesPath
		var profiles []model.InterestProfile
		if _, statErr := os.Stat(path); statErr == nil {
			profiles, err = registry.LoadProfiles(path)
			if err != nil {
				return eris.Wrap(err, "load existing profiles")
			}
		}

		profiles = registry.UpsertProfile(profiles, profile)
		if err := registry.SaveProfiles(path, profiles); err != nil {
			return err
		}

		zap.L().Info("profile imported",
			zap.String("name", profile.Name),
			zap.String("path", path),
			zap.Int("rows", result.Rows),
			zap.Int("skipped", result.Skipped),
			zap.Int("interests", len(profile.Interests)),
			zap.Int("keywords", len(profile.Keywords)),
			zap.Int("domains", len(profile.Domains)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(profile)
	},
}

func init() {
	importProfileCmd.Flags().StringVar(&importXLSX, "xlsx", "", "liked-events spreadsheet to import (required)")
	importProfileCmd.Flags().StringVar(&importName, "name", "", "profile name to create or update (required)")
	importProfileCmd.Flags().StringVar(&importSheet, "sheet", "", "sheet name (default first sheet)")
	importProfileCmd.Flags().StringVar(&importLocation, "location", "", "home location to set on the profile")
	_ = importProfileCmd.MarkFlagRequired("xlsx")
	_ = importProfileCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(importProfileCmd)
}
