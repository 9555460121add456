package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List the recognized document types",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}

		type typeInfo struct {
			Key         string `json:"key"`
			DisplayName string `json:"display_name"`
			Fields      int    `json:"fields"`
			Required    int    `json:"required"`
		}

		var out []typeInfo
		for _, key := range reg.Keys() {
			dt, err := reg.Type(key)
			if err != nil {
				return err
			}
			out = append(out, typeInfo{
				Key:         dt.Key,
				DisplayName: dt.DisplayName,
				Fields:      len(dt.Fields),
				Required:    len(dt.RequiredFields()),
			})
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	rootCmd.AddCommand(typesCmd)
}
