package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/matthewbaird/entitygrid/internal/schema"
)

var (
	flagSchemaRefresh bool
	flagSchemaJSON    bool
)

var schemaCmd = &cobra.Command{
	Use:   "schema [type...]",
	Short: "Show the entity schema",
	Long: `Schema prints the entity types and their fields as YAML (or JSON with
--json). The schema is fetched from the server once and kept in the state
database; --refresh fetches it again.`,
	RunE: runSchema,
}

func init() {
	schemaCmd.Flags().BoolVar(&flagSchemaRefresh, "refresh", false, "fetch the schema from the server again")
	schemaCmd.Flags().BoolVar(&flagSchemaJSON, "json", false, "output as JSON")
}

type schemaField struct {
	Name      string `yaml:"name" json:"name"`
	Type      string `yaml:"type" json:"type"`
	AllowNull bool   `yaml:"allowNull,omitempty" json:"allowNull,omitempty"`
	Length    int    `yaml:"length,omitempty" json:"length,omitempty"`
}

type schemaEntity struct {
	Name   string        `yaml:"name" json:"name"`
	Fields []schemaField `yaml:"fields" json:"fields"`
}

func runSchema(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	if flagSchemaRefresh && settings.GetString(cfgKeySchemaFile) == "" {
		if err := a.fetchSchema(ctx); err != nil {
			return err
		}
	}

	names := args
	if len(names) == 0 {
		names = a.schema.EntityNames()
	}
	out := make([]schemaEntity, 0, len(names))
	for _, name := range names {
		es := a.schema.Entity(name)
		if es == nil {
			return fmt.Errorf("unknown entity type %s", name)
		}
		out = append(out, describe(es))
	}

	var data []byte
	if flagSchemaJSON {
		data, err = json.MarshalIndent(out, "", "  ")
	} else {
		data, err = yaml.Marshal(out)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func describe(es *schema.EntitySchema) schemaEntity {
	se := schemaEntity{Name: es.Name}
	for _, name := range es.FieldOrder {
		fs := es.Field(name)
		se.Fields = append(se.Fields, schemaField{
			Name:      fs.Name,
			Type:      fs.Type,
			AllowNull: fs.AllowNull,
			Length:    fs.Length,
		})
	}
	return se
}
