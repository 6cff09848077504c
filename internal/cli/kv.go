package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/splunkgo/internal/kvstore"
)

var (
	kvFields      []string
	kvForce       bool
	kvFilter      string
	kvSort        string
	kvLimit       int
	kvSkip        int
	kvQueryFields []string
	kvFlat        bool
)

var kvCmd = &cobra.Command{
	Use:   "kv",
	Short: "Manage KV store collections and records",
	Long: `Manage KV store collections and records.

The backend is splunkd's KV store by default. Set kv_backend: surreal (or
SPLUNK_KV_BACKEND=surreal) to keep collections in SurrealDB instead.

Examples:
  splunk kv list
  splunk kv create assets --field host=string --field cpu=number
  splunk kv insert assets '{"host":"web-1","cpu":4}'
  splunk kv query assets --filter '{"cpu":{"$gte":4}}' --sort cpu:-1
  splunk kv drop assets --force`,
}

var kvListCmd = &cobra.Command{
	Use:   "list",
	Short: "List collections",
	Args:  cobra.NoArgs,
	RunE:  runKVList,
}

var kvCreateCmd = &cobra.Command{
	Use:   "create <collection>",
	Short: "Create a collection",
	Args:  cobra.ExactArgs(1),
	RunE:  runKVCreate,
}

var kvDropCmd = &cobra.Command{
	Use:   "drop <collection>",
	Short: "Delete a collection and all its records",
	Args:  cobra.ExactArgs(1),
	RunE:  runKVDrop,
}

var kvInsertCmd = &cobra.Command{
	Use:   "insert <collection> <json>",
	Short: "Insert a record and print its key",
	Args:  cobra.ExactArgs(2),
	RunE:  runKVInsert,
}

var kvGetCmd = &cobra.Command{
	Use:   "get <collection> <key>",
	Short: "Print one record",
	Args:  cobra.ExactArgs(2),
	RunE:  runKVGet,
}

var kvUpdateCmd = &cobra.Command{
	Use:   "update <collection> <key> <json>",
	Short: "Replace a record",
	Args:  cobra.ExactArgs(3),
	RunE:  runKVUpdate,
}

var kvDeleteCmd = &cobra.Command{
	Use:   "delete <collection> <key>",
	Short: "Delete a record",
	Args:  cobra.ExactArgs(2),
	RunE:  runKVDelete,
}

var kvQueryCmd = &cobra.Command{
	Use:   "query <collection>",
	Short: "Query records",
	Args:  cobra.ExactArgs(1),
	RunE:  runKVQuery,
}

func init() {
	kvCreateCmd.Flags().StringSliceVar(&kvFields, "field", nil, "field type as name=type (repeatable)")
	kvDropCmd.Flags().BoolVarP(&kvForce, "force", "f", false, "skip confirmation")

	kvQueryCmd.Flags().StringVar(&kvFilter, "filter", "", "JSON filter document")
	kvQueryCmd.Flags().StringVar(&kvSort, "sort", "", "sort spec, e.g. cpu:-1,host")
	kvQueryCmd.Flags().IntVarP(&kvLimit, "limit", "n", 0, "max records (0 = no limit)")
	kvQueryCmd.Flags().IntVar(&kvSkip, "skip", 0, "records to skip")
	kvQueryCmd.Flags().StringSliceVar(&kvQueryFields, "fields", nil, "fields to return")
	kvQueryCmd.Flags().BoolVar(&kvFlat, "flat", false, "print records with dotted keys")

	kvCmd.AddCommand(kvListCmd)
	kvCmd.AddCommand(kvCreateCmd)
	kvCmd.AddCommand(kvDropCmd)
	kvCmd.AddCommand(kvInsertCmd)
	kvCmd.AddCommand(kvGetCmd)
	kvCmd.AddCommand(kvUpdateCmd)
	kvCmd.AddCommand(kvDeleteCmd)
	kvCmd.AddCommand(kvQueryCmd)
}

// activeStore opens the store and activates collection.
func activeStore(ctx context.Context, collection string) (*kvstore.Store, error) {
	store, err := newStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := store.SetActive(ctx, collection); err != nil {
		return nil, err
	}
	return store, nil
}

func runKVList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, err := newStore(ctx)
	if err != nil {
		return err
	}

	names, err := store.Collections(ctx)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(names) == 0 {
		fmt.Fprintln(out, "No collections found")
		return nil
	}
	for _, name := range names {
		fmt.Fprintln(out, name)
	}
	return nil
}

func parseFieldSpecs(specs []string) (map[string]string, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	fields := make(map[string]string, len(specs))
	for _, spec := range specs {
		name, typ, ok := strings.Cut(spec, "=")
		if !ok || name == "" || typ == "" {
			return nil, fmt.Errorf("invalid field %q (expected name=type)", spec)
		}
		fields[name] = typ
	}
	return fields, nil
}

func runKVCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	fields, err := parseFieldSpecs(kvFields)
	if err != nil {
		return err
	}

	store, err := newStore(ctx)
	if err != nil {
		return err
	}
	if err := store.Create(ctx, args[0], fields); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", args[0])
	return nil
}

func runKVDrop(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	name := args[0]
	out := cmd.OutOrStdout()

	if !kvForce {
		fmt.Fprintf(out, "About to delete collection %s and all its records\n", name)
		fmt.Fprint(out, "\nContinue? [y/N]: ")

		reader := bufio.NewReader(cmd.InOrStdin())
		response, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("read input: %w", err)
		}
		response = strings.TrimSpace(strings.ToLower(response))

		if response != "y" && response != "yes" {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	store, err := newStore(ctx)
	if err != nil {
		return err
	}
	if err := store.Drop(ctx, name); err != nil {
		return fmt.Errorf("drop collection: %w", err)
	}

	fmt.Fprintf(out, "Deleted: %s\n", name)
	return nil
}

func parseRecord(s string) (map[string]any, error) {
	var rec map[string]any
	if err := json.Unmarshal([]byte(s), &rec); err != nil {
		return nil, fmt.Errorf("parse record: %w", err)
	}
	return rec, nil
}

func runKVInsert(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	rec, err := parseRecord(args[1])
	if err != nil {
		return err
	}

	store, err := activeStore(ctx, args[0])
	if err != nil {
		return err
	}
	key, err := store.Insert(ctx, rec)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), key)
	return nil
}

func runKVGet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, err := activeStore(ctx, args[0])
	if err != nil {
		return err
	}

	rec, err := store.Lookup(ctx, args[1])
	if err != nil {
		return fmt.Errorf("get record: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), rec)
}

func runKVUpdate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	rec, err := parseRecord(args[2])
	if err != nil {
		return err
	}

	store, err := activeStore(ctx, args[0])
	if err != nil {
		return err
	}
	if err := store.Update(ctx, args[1], rec); err != nil {
		return fmt.Errorf("update record: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Updated: %s\n", args[1])
	return nil
}

func runKVDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, err := activeStore(ctx, args[0])
	if err != nil {
		return err
	}
	if err := store.Remove(ctx, args[1]); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Deleted: %s\n", args[1])
	return nil
}

func runKVQuery(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	q := kvstore.Query{
		Sort:   kvSort,
		Limit:  kvLimit,
		Skip:   kvSkip,
		Fields: kvQueryFields,
	}
	if kvFilter != "" {
		if err := json.Unmarshal([]byte(kvFilter), &q.Filter); err != nil {
			return fmt.Errorf("parse filter: %w", err)
		}
	}

	store, err := activeStore(ctx, args[0])
	if err != nil {
		return err
	}
	if _, err := store.Query(ctx, q); err != nil {
		return fmt.Errorf("query records: %w", err)
	}

	if kvFlat {
		return printJSON(cmd.OutOrStdout(), store.Flat())
	}
	return printJSON(cmd.OutOrStdout(), store.Nested())
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
