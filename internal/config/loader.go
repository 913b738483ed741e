package config

import (
	"encoding/json"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"

	"github.com/liarsdice/persistence/pkg/coreerr"
)

// globalConfigFileName and projectConfigFileName mirror the teacher's
// XDG-then-project-file convention, renamed for this domain.
const (
	globalConfigDirName   = "liarsdiced"
	globalConfigFileName  = "config.json"
	projectConfigFileName = ".liarsdiced.json"
)

// LoadConfig loads the init/seed document with precedence (lowest to
// highest): built-in defaults, global user file, project file, explicit
// path argument. String/numeric fields override the previous layer only when
// non-zero; boolean fields override whenever the layer's source explicitly
// set them — including to false — so a later layer can turn off a
// default-true toggle such as run_migrations.
func LoadConfig(workDir, explicitPath string, env []string) (Document, error) {
	doc := DefaultDocument()

	globalPath := globalConfigPath(env)
	if globalPath != "" {
		merged, overlay, loaded, err := loadLayer(globalPath, false)
		if err != nil {
			return Document{}, err
		}

		if loaded {
			doc = merge(doc, merged, overlay)
		}
	}

	projectPath := filepath.Join(workDir, projectConfigFileName)

	merged, overlay, loaded, err := loadLayer(projectPath, false)
	if err != nil {
		return Document{}, err
	}

	if loaded {
		doc = merge(doc, merged, overlay)
	}

	if explicitPath != "" {
		path := explicitPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(workDir, path)
		}

		merged, overlay, loaded, err := loadLayer(path, true)
		if err != nil {
			return Document{}, err
		}

		if loaded {
			doc = merge(doc, merged, overlay)
		}
	}

	return doc, nil
}

func globalConfigPath(env []string) string {
	for _, e := range env {
		if after, ok := strings.CutPrefix(e, "XDG_CONFIG_HOME="); ok {
			return filepath.Join(after, globalConfigDirName, globalConfigFileName)
		}
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, globalConfigDirName, globalConfigFileName)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".config", globalConfigDirName, globalConfigFileName)
}

func loadLayer(path string, mustExist bool) (Document, boolOverlay, bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled config location
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return Document{}, boolOverlay{}, false, nil
		}

		return Document{}, boolOverlay{}, false, coreerr.Wrap(coreerr.InvalidParameter, "read config file "+path, err)
	}

	doc, overlay, err := parse(path, data)
	if err != nil {
		return Document{}, boolOverlay{}, false, err
	}

	return doc, overlay, true, nil
}

// Parse decodes data as JSON(C) or XML based on path's extension.
func Parse(path string, data []byte) (Document, error) {
	doc, _, err := parse(path, data)

	return doc, err
}

// parse decodes data into both the Document and its boolOverlay — the
// overlay is decoded from the same bytes so merge can see which boolean
// fields this layer actually set, as opposed to left absent.
func parse(path string, data []byte) (Document, boolOverlay, error) {
	if strings.EqualFold(filepath.Ext(path), ".xml") {
		var doc Document

		var overlay documentOverlay

		if err := xml.Unmarshal(data, &doc); err != nil {
			return Document{}, boolOverlay{}, coreerr.Wrap(coreerr.InvalidParameter, "parse XML config "+path, err)
		}

		if err := xml.Unmarshal(data, &overlay); err != nil {
			return Document{}, boolOverlay{}, coreerr.Wrap(coreerr.InvalidParameter, "parse XML config "+path, err)
		}

		return doc, overlay.Database, nil
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Document{}, boolOverlay{}, coreerr.Wrap(coreerr.InvalidParameter, "parse JSONC config "+path, err)
	}

	var doc Document

	if err := json.Unmarshal(standardized, &doc); err != nil {
		return Document{}, boolOverlay{}, coreerr.Wrap(coreerr.InvalidParameter, "parse JSON config "+path, err)
	}

	var overlay documentOverlay

	if err := json.Unmarshal(standardized, &overlay); err != nil {
		return Document{}, boolOverlay{}, coreerr.Wrap(coreerr.InvalidParameter, "parse JSON config "+path, err)
	}

	return doc, overlay.Database, nil
}

// merge overlays b's Database onto a, field-by-field. Boolean fields override
// only when overlay reports the layer explicitly set them (present in the
// parsed source, true or false); a bool left absent from b's source never
// touches a's value, including a's built-in defaults.
func merge(a, b Document, overlay boolOverlay) Document {
	out := a

	bd := b.Database

	if overlay.CreateSchema != nil {
		out.Database.CreateSchema = *overlay.CreateSchema
	}

	if overlay.SeedData != nil {
		out.Database.SeedData = *overlay.SeedData
	}

	if overlay.RunMigrations != nil {
		out.Database.RunMigrations = *overlay.RunMigrations
	}

	if overlay.ValidateSchema != nil {
		out.Database.ValidateSchema = *overlay.ValidateSchema
	}

	if bd.MigrationDirectory != "" {
		out.Database.MigrationDirectory = bd.MigrationDirectory
	}

	if bd.SeedDataFile != "" {
		out.Database.SeedDataFile = bd.SeedDataFile
	}

	if bd.Performance.CacheSize != 0 {
		out.Database.Performance.CacheSize = bd.Performance.CacheSize
	}

	if bd.Performance.PageSize != 0 {
		out.Database.Performance.PageSize = bd.Performance.PageSize
	}

	if bd.Performance.JournalMode != "" {
		out.Database.Performance.JournalMode = bd.Performance.JournalMode
	}

	if bd.Performance.Synchronous != "" {
		out.Database.Performance.Synchronous = bd.Performance.Synchronous
	}

	if overlay.Features.EnableForeignKeys != nil {
		out.Database.Features.EnableForeignKeys = *overlay.Features.EnableForeignKeys
	}

	if overlay.Features.EnableTriggers != nil {
		out.Database.Features.EnableTriggers = *overlay.Features.EnableTriggers
	}

	if overlay.Features.EnableFullTextSearch != nil {
		out.Database.Features.EnableFullTextSearch = *overlay.Features.EnableFullTextSearch
	}

	if len(bd.RequiredTables) > 0 {
		out.Database.RequiredTables = bd.RequiredTables
	}

	return out
}
