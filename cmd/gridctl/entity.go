package main

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matthewbaird/entitygrid/internal/client"
	"github.com/matthewbaird/entitygrid/internal/field"
	"github.com/matthewbaird/entitygrid/internal/form"
	"github.com/matthewbaird/entitygrid/internal/schema"
	"github.com/matthewbaird/entitygrid/internal/types"
	"github.com/matthewbaird/entitygrid/internal/wire"
)

var flagEntityID int64

var createCmd = &cobra.Command{
	Use:   "create <type> [field=value...]",
	Short: "Create an entity",
	Long: `Create validates the given field values against the schema and sends
the new entity to the server. Values are parsed as JSON when possible and
used as strings otherwise.

Example:
  gridctl create Customer CustomerName=Acme Balance=120.5`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEntity(cmd, wire.ActionCreateEntity, args[0], args[1:])
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <type> --id N [field=value...]",
	Short: "Update an entity",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEntity(cmd, wire.ActionUpdateEntity, args[0], args[1:])
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <type> --id N",
	Short: "Delete an entity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEntity(cmd, wire.ActionDeleteEntity, args[0], nil)
	},
}

func init() {
	for _, c := range []*cobra.Command{updateCmd, deleteCmd} {
		c.Flags().Int64Var(&flagEntityID, "id", 0, "entity ID")
		c.MarkFlagRequired("id")
	}
}

func runEntity(cmd *cobra.Command, action, typ string, assignments []string) error {
	ctx := cmd.Context()
	values, err := parseAssignments(assignments)
	if err != nil {
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	if a.schema.Entity(typ) == nil {
		return fmt.Errorf("unknown entity type %s", typ)
	}
	if _, err := a.pull(ctx); err != nil {
		return fmt.Errorf("pull: %w", err)
	}

	var e *types.Entity
	if action == wire.ActionCreateEntity {
		e = types.NewEntity(typ, 0)
	} else {
		found, ok := a.cache.Find(typ, flagEntityID)
		if !ok {
			return fmt.Errorf("%s %d not found", typ, flagEntityID)
		}
		e = found
	}
	if action != wire.ActionDeleteEntity {
		if e, err = editEntity(a.env(), e, values); err != nil {
			return err
		}
	}

	resp, err := await(ctx, func(ok client.SuccessFunc, fail client.FailureFunc) {
		send(ctx, a.client, action, e, a.cache.LastUpdate(), ok, fail)
	})
	if err != nil {
		return err
	}
	a.cache.Apply(ctx, resp)
	if err := a.save(ctx); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	if resp.ResponseEntity == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %d deleted\n", typ, e.ID)
		return nil
	}
	out, err := json.MarshalIndent(resp.ResponseEntity, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func send(ctx context.Context, c *client.Client, action string, e *types.Entity, lastUpdate int64, ok client.SuccessFunc, fail client.FailureFunc) {
	switch action {
	case wire.ActionCreateEntity:
		c.CreateEntity(ctx, e, lastUpdate, ok, fail)
	case wire.ActionUpdateEntity:
		c.UpdateEntity(ctx, e, lastUpdate, ok, fail)
	default:
		c.DeleteEntity(ctx, e, lastUpdate, ok, fail)
	}
}

// editEntity runs the values through a form over every schema field of the
// entity's type and returns the edited copy, or the validation failures.
func editEntity(env *field.Env, e *types.Entity, values map[string]any) (*types.Entity, error) {
	es := env.Schema.Entity(e.Type)
	var specs []*field.Spec
	for _, name := range es.FieldOrder {
		if name == types.IDProperty || types.IsEntitiesProperty(name) {
			continue
		}
		specs = append(specs, field.NewField(e.Type, name, "", field.DefaultEdit()))
	}
	f, err := form.New(env, e, specs, form.Options{})
	if err != nil {
		return nil, err
	}
	defer f.Dispose()
	if err := f.Render(nil); err != nil {
		return nil, err
	}

	for prop, v := range values {
		fc, ok := f.Field(prop)
		if !ok {
			return nil, fmt.Errorf("%s has no field %s", e.Type, prop)
		}
		if fs := es.Field(prop); fs != nil && fs.Type == schema.TypeString {
			v = field.Format(v)
		}
		fc.Control.SetValue(v)
	}

	if errs := f.Validate(); len(errs) > 0 {
		var msgs []string
		for _, id := range slices.Sorted(maps.Keys(errs)) {
			msgs = append(msgs, errs[id]...)
		}
		return nil, fmt.Errorf("invalid %s: %s", e.Type, strings.Join(msgs, " "))
	}
	if !e.IsNew() && !f.IsDirty() {
		return nil, fmt.Errorf("nothing to update")
	}
	return f.Entity(), nil
}

// parseAssignments reads field=value pairs. Values that parse as JSON keep
// their JSON type; anything else is a string.
func parseAssignments(args []string) (map[string]any, error) {
	out := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q (expected field=value)", arg)
		}
		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err != nil {
			parsed = value
		}
		out[key] = parsed
	}
	return out, nil
}
