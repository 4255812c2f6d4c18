package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/totegamma/chatrelay/client"
)

var mappingCmd = &cobra.Command{
	Use:   "mapping",
	Short: "Inspect or refresh the domain to channel mapping",
}

var mappingUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Fetch the mapping sheet and replace the stored rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := openStores(cmd.Context(), conf)
		if err != nil {
			return err
		}
		defer s.rdb.Close()

		rules, err := newMappingUsecase(s, conf, client.New(userAgent)).UpdateChannelMapping(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(rules)
	},
}

var mappingShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := openStores(cmd.Context(), conf)
		if err != nil {
			return err
		}
		defer s.rdb.Close()

		rules, err := newMappingUsecase(s, conf, client.New(userAgent)).ListRules(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(rules)
	},
}

func init() {
	mappingCmd.AddCommand(mappingUpdateCmd)
	mappingCmd.AddCommand(mappingShowCmd)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
