package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/PabloGalante/folio-chat/internal/app/profile"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Fetch the GitHub profile, repositories and latest posts",
	Args:  cobra.NoArgs,
	RunE:  runProfile,
}

func runProfile(cmd *cobra.Command, _ []string) error {
	svc := newProfileService(cfg, logger)
	if svc == nil {
		return profile.ErrNotConfigured
	}

	p, err := svc.Load(cmd.Context())
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(p)
}
