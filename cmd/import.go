package main

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/lead-enricher/internal/model"
)

// leadFile is the import format. JSON files parse as YAML.
type leadFile struct {
	Leads []model.LeadRecord `yaml:"leads"`
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Load lead records from a YAML or JSON file into the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		leads, err := loadLeads(args[0])
		if err != nil {
			return err
		}

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		for _, l := range leads {
			if err := st.UpsertLead(ctx, l); err != nil {
				return eris.Wrapf(err, "import lead %q", l.Name)
			}
		}

		zap.L().Info("import complete",
			zap.Int("leads", len(leads)),
			zap.String("file", args[0]),
		)
		return nil
	},
}

// loadLeads reads and validates a lead file. A missing type defaults to
// business; an unknown type or a missing name is an error.
func loadLeads(path string) ([]model.LeadRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "read lead file")
	}

	var f leadFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "parse lead file")
	}
	if len(f.Leads) == 0 {
		return nil, eris.Errorf("lead file %s has no leads", path)
	}

	for i := range f.Leads {
		l := &f.Leads[i]
		l.Name = strings.TrimSpace(l.Name)
		if l.Name == "" {
			return nil, eris.Errorf("lead %d: name is required", i+1)
		}
		if l.Type == "" {
			l.Type = model.LeadTypeBusiness
		}
		if !l.Type.Valid() {
			return nil, eris.Errorf("lead %d (%s): unknown type %q", i+1, l.Name, l.Type)
		}
	}
	return f.Leads, nil
}

func init() {
	rootCmd.AddCommand(importCmd)
}
