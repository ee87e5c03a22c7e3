package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/poiesic/partners"
	"github.com/poiesic/partners/core"
	"github.com/poiesic/partners/config"
	"github.com/poiesic/partners/reembed"
	"github.com/urfave/cli/v2"
)

// loadConfig reads the environment and applies the global flags on top.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, err
	}
	if c.IsSet("postgres-url") {
		cfg.Postgres.URL = c.String("postgres-url")
		cfg.Store = config.StorePostgres
	}
	if c.IsSet("store") {
		cfg.Store = c.String("store")
	}
	if c.IsSet("db") {
		cfg.DataDir = c.String("db")
	}
	if c.IsSet("embedding-backend") {
		cfg.Embedding.Backend = c.String("embedding-backend")
	}
	if c.IsSet("embedding-host") {
		cfg.Embedding.Host = c.String("embedding-host")
	}
	if c.IsSet("embedding-model") {
		cfg.Embedding.Model = c.String("embedding-model")
	}
	if c.IsSet("model-path") {
		cfg.Embedding.ModelPath = c.String("model-path")
	}
	cfg.Normalize()
	return cfg, nil
}

func openDatabase(c *cli.Context) (*partners.Database, *config.Config, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	db, err := partners.NewDatabase(c.Context, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, cfg, nil
}

func addCommand(c *cli.Context) error {
	in, err := partnerInput(c)
	if err != nil {
		return err
	}

	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	cat, err := db.NewCatalog()
	if err != nil {
		return err
	}
	defer cat.Release()

	p, err := cat.Create(c.Context, in)
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, p)
}

func getCommand(c *cli.Context) error {
	id, err := idArg(c)
	if err != nil {
		return err
	}

	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	p, err := db.Store().GetPartner(c.Context, id)
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, p)
}

func listCommand(c *cli.Context) error {
	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	cat, err := db.NewCatalog()
	if err != nil {
		return err
	}
	defer cat.Release()

	page, err := cat.List(c.Context, c.Int("offset"), c.Int("limit"))
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, page)
}

func updateCommand(c *cli.Context) error {
	id, err := idArg(c)
	if err != nil {
		return err
	}
	patch, err := partnerPatch(c)
	if err != nil {
		return err
	}

	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	cat, err := db.NewCatalog()
	if err != nil {
		return err
	}
	defer cat.Release()

	p, err := cat.Update(c.Context, id, patch)
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, p)
}

func deleteCommand(c *cli.Context) error {
	id, err := idArg(c)
	if err != nil {
		return err
	}

	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Store().DeletePartner(c.Context, id); err != nil {
		return err
	}
	return printJSON(c.App.Writer, map[string]any{"deleted": id})
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	strategy, err := core.ParseStrategy(c.String("strategy"))
	if err != nil {
		return err
	}

	db, cfg, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	topN := cfg.TopN
	if c.IsSet("top-n") {
		topN = c.Int("top-n")
	}

	searcher, err := db.NewSearcher()
	if err != nil {
		return err
	}
	resp, err := searcher.Recommend(c.Context, strategy, core.SearchRequest{Query: query, TopN: topN})
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, resp)
}

func importCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("import requires exactly one FILE argument")
	}
	inputs, err := readInputs(c.Args().First(), os.Stdin)
	if err != nil {
		return err
	}

	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	cat, err := db.NewCatalog()
	if err != nil {
		return err
	}
	defer cat.Release()

	created, err := cat.Import(c.Context, inputs)
	if printErr := printJSON(c.App.Writer, created); printErr != nil {
		return printErr
	}
	if err != nil {
		return fmt.Errorf("import finished with errors (%d of %d created): %w", len(created), len(inputs), err)
	}
	return nil
}

func reembedCommand(c *cli.Context) error {
	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if err := reembedConfig.Validate(); err != nil {
		return err
	}

	db, cfg, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	reembedder, err := db.NewReembedder(reembedConfig, c.App.ErrWriter)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.ErrWriter, "Store: %s\n", cfg.Store)
	fmt.Fprintf(c.App.ErrWriter, "Embedding backend: %s\n", cfg.Embedding.Backend)
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", cfg.Embedding.Model)
	fmt.Fprintln(c.App.ErrWriter)

	summary, err := reembedder.Run(c.Context)
	if err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return printJSON(c.App.Writer, summary)
}

func indexCommand(c *cli.Context) error {
	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.EnsureIndexes(c.Context); err != nil {
		return err
	}
	return printJSON(c.App.Writer, map[string]bool{"vector": true, "lexical": true})
}

func idArg(c *cli.Context) (core.ID, error) {
	if c.NArg() != 1 {
		return 0, fmt.Errorf("%s requires exactly one ID argument", c.Command.Name)
	}
	id, err := strconv.ParseUint(c.Args().First(), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invalid partner ID %q", core.ErrValidation, c.Args().First())
	}
	return core.ID(id), nil
}

// optionalText returns the flag value, or nil when the flag was not given.
func optionalText(c *cli.Context, name string) *string {
	if !c.IsSet(name) {
		return nil
	}
	return core.Text(c.String(name))
}

func partnerInput(c *cli.Context) (core.PartnerInput, error) {
	attrs, err := parseAttrs(c.StringSlice("attr"))
	if err != nil {
		return core.PartnerInput{}, err
	}
	return core.PartnerInput{
		Name:           c.String("name"),
		Description:    optionalText(c, "description"),
		Industry:       optionalText(c, "industry"),
		Location:       optionalText(c, "location"),
		Website:        optionalText(c, "website"),
		ContactEmail:   optionalText(c, "email"),
		ContactPhone:   optionalText(c, "phone"),
		AdditionalData: attrs,
	}, nil
}

// partnerPatch builds a patch from --patch, then applies the field flags and
// --clear on top of it.
func partnerPatch(c *cli.Context) (core.PartnerPatch, error) {
	var patch core.PartnerPatch
	if raw := c.String("patch"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &patch); err != nil {
			return patch, fmt.Errorf("%w: --patch: %w", core.ErrValidation, err)
		}
	}

	if c.IsSet("name") {
		name := c.String("name")
		patch.Name = &name
	}
	changes := map[string]*core.TextChange{
		"description": &patch.Description,
		"industry":    &patch.Industry,
		"location":    &patch.Location,
		"website":     &patch.Website,
		"email":       &patch.ContactEmail,
		"phone":       &patch.ContactPhone,
	}
	for flag, change := range changes {
		if c.IsSet(flag) {
			*change = core.SetText(c.String(flag))
		}
	}
	for _, field := range c.StringSlice("clear") {
		change, ok := changes[strings.ToLower(field)]
		if !ok {
			if strings.EqualFold(field, "attr") || strings.EqualFold(field, "additional_data") {
				patch.AdditionalData = &core.Attributes{}
				continue
			}
			return patch, fmt.Errorf("%w: cannot clear %q", core.ErrValidation, field)
		}
		*change = core.ClearText()
	}

	if c.IsSet("attr") {
		attrs, err := parseAttrs(c.StringSlice("attr"))
		if err != nil {
			return patch, err
		}
		patch.AdditionalData = &attrs
	}
	if patch.IsEmpty() {
		return patch, fmt.Errorf("%w: nothing to update", core.ErrValidation)
	}
	return patch, nil
}

// parseAttrs parses key=value pairs in order. Values that are valid JSON
// keep their type; anything else is a string.
func parseAttrs(pairs []string) (core.Attributes, error) {
	var attrs core.Attributes
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: attribute %q must be key=value", core.ErrValidation, pair)
		}
		var v core.Value
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = core.StringValue(raw)
		}
		attrs.Set(key, v)
	}
	return attrs, nil
}

func readInputs(path string, stdin io.Reader) ([]core.PartnerInput, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var inputs []core.PartnerInput
	if err := json.NewDecoder(r).Decode(&inputs); err != nil {
		return nil, fmt.Errorf("%w: reading partners: %w", core.ErrValidation, err)
	}
	return inputs, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
