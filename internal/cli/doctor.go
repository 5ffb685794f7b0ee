package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/seuros/scout/internal/config"
	"github.com/seuros/scout/internal/database"
	"github.com/seuros/scout/internal/filters"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run health checks on a Scout installation",
	Long: `Run health checks on a Scout installation.

Checks performed:
  - Filter schema is valid
  - Database connection
  - PostgreSQL version ≥14
  - Database migrations completed
  - Required tables exist
  - Every filter dimension has a transactions column

Example:
  scout doctor
  scout doctor --json`,
	RunE: runDoctor,
}

type CheckResult struct {
	Name       string `json:"name"`
	Pass       bool   `json:"pass"`
	Error      string `json:"error,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	Details    string `json:"details,omitempty"`
}

const minPostgresMajor = 14

var requiredTables = []string{"transactions", "saved_views"}

func checkFilterSchema(cfg *config.Config) (*filters.Schema, CheckResult) {
	schema, err := cfg.Schema()
	if err != nil {
		return nil, CheckResult{
			Name:       "Filter Schema",
			Pass:       false,
			Error:      err.Error(),
			Suggestion: "Fix filters.dimensions / filters.hierarchies in scout.toml",
		}
	}
	return schema, CheckResult{
		Name:    "Filter Schema",
		Pass:    true,
		Details: fmt.Sprintf("%d dimensions, %d hierarchies", len(schema.Dimensions()), len(schema.Hierarchies())),
	}
}

func checkDatabaseConnection(db *sql.DB) CheckResult {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return CheckResult{
			Name:       "Database Connection",
			Pass:       false,
			Error:      err.Error(),
			Suggestion: "Verify DATABASE_URL and ensure PostgreSQL is running",
		}
	}
	return CheckResult{Name: "Database Connection", Pass: true}
}

func checkPostgreSQLVersion(db *sql.DB) CheckResult {
	var version string
	err := db.QueryRow("SHOW server_version").Scan(&version)
	if err != nil {
		return CheckResult{Name: "PostgreSQL Version", Pass: false, Error: err.Error()}
	}

	// Parse version (e.g., "17.1 (Debian 17.1-1)")
	number, _, _ := strings.Cut(version, " ")
	majorStr, _, _ := strings.Cut(number, ".")
	major, _ := strconv.Atoi(majorStr)

	if major < minPostgresMajor {
		return CheckResult{
			Name:       "PostgreSQL Version",
			Pass:       false,
			Error:      fmt.Sprintf("Version %s found, need ≥%d", number, minPostgresMajor),
			Suggestion: fmt.Sprintf("Upgrade PostgreSQL to version %d or higher", minPostgresMajor),
		}
	}
	return CheckResult{Name: "PostgreSQL Version", Pass: true, Details: number}
}

// migrationVersion is swapped in tests.
var migrationVersion = database.GetMigrationVersion

func checkMigrations(databaseURL string) CheckResult {
	version, dirty, err := migrationVersion(databaseURL)
	if err != nil {
		return CheckResult{
			Name:       "Database Migrations",
			Pass:       false,
			Error:      err.Error(),
			Suggestion: "Run migrations with: scout migrate up",
		}
	}

	expected, err := database.LatestMigrationVersion()
	if err != nil {
		return CheckResult{Name: "Database Migrations", Pass: false, Error: err.Error()}
	}
	if version != expected {
		return CheckResult{
			Name:       "Database Migrations",
			Pass:       false,
			Error:      fmt.Sprintf("Migration version %d, expected %d", version, expected),
			Suggestion: "Run migrations with: scout migrate up",
		}
	}

	if dirty {
		return CheckResult{
			Name:       "Database Migrations",
			Pass:       false,
			Error:      "Migration state is dirty",
			Suggestion: "Fix dirty migration state, may need manual intervention",
		}
	}

	return CheckResult{Name: "Database Migrations", Pass: true, Details: fmt.Sprintf("v%d", version)}
}

func checkTables(db *sql.DB) CheckResult {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = ANY($1)
	`
	missing, err := missingNames(db, query, requiredTables)
	if err != nil {
		return CheckResult{Name: "Tables", Pass: false, Error: err.Error()}
	}
	if len(missing) > 0 {
		return CheckResult{
			Name:       "Tables",
			Pass:       false,
			Error:      fmt.Sprintf("Missing tables: %s", strings.Join(missing, ", ")),
			Suggestion: "Run migrations with: scout migrate up",
		}
	}
	return CheckResult{
		Name:    "Tables",
		Pass:    true,
		Details: fmt.Sprintf("%d/%d tables found", len(requiredTables), len(requiredTables)),
	}
}

// checkDimensionColumns verifies that the data source can filter on every
// configured dimension.
func checkDimensionColumns(db *sql.DB, schema *filters.Schema) CheckResult {
	query := `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = 'transactions' AND column_name = ANY($1)
	`
	dims := schema.Dimensions()
	missing, err := missingNames(db, query, dims)
	if err != nil {
		return CheckResult{Name: "Dimension Columns", Pass: false, Error: err.Error()}
	}
	if len(missing) > 0 {
		return CheckResult{
			Name:       "Dimension Columns",
			Pass:       false,
			Error:      fmt.Sprintf("transactions has no column for: %s", strings.Join(missing, ", ")),
			Suggestion: "Add the columns or remove the dimensions from filters.dimensions",
		}
	}
	return CheckResult{
		Name:    "Dimension Columns",
		Pass:    true,
		Details: fmt.Sprintf("%d/%d columns found", len(dims), len(dims)),
	}
}

// missingNames runs query with names as $1 and returns the names it did not
// return, in input order.
func missingNames(db *sql.DB, query string, names []string) ([]string, error) {
	rows, err := db.Query(query, pq.Array(names))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	found := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		found[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []string
	for _, name := range names {
		if !found[name] {
			missing = append(missing, name)
		}
	}
	return missing, nil
}

func runDoctor(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.LoadWithOverrides(flagDatabaseURL, "")
	if err != nil {
		fmt.Printf("✗ Configuration Error: %v\n", err)
		return err
	}

	results := runChecks(cfg)

	out := cmd.OutOrStdout()
	if jsonOutput {
		outputDoctorJSON(out, results)
	} else {
		outputDoctorHuman(out, results)
	}

	for _, r := range results {
		if !r.Pass {
			os.Exit(1)
		}
	}
	return nil
}

func runChecks(cfg *config.Config) []CheckResult {
	schema, schemaResult := checkFilterSchema(cfg)
	results := []CheckResult{schemaResult}

	if cfg.DatabaseURL == "" {
		return append(results, CheckResult{
			Name:       "Database Connection",
			Pass:       false,
			Error:      "no database configured",
			Suggestion: "Set DATABASE_URL or database_url in scout.toml",
		})
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return append(results, CheckResult{
			Name:       "Database Connection",
			Pass:       false,
			Error:      err.Error(),
			Suggestion: "Verify DATABASE_URL is valid",
		})
	}
	defer func() { _ = db.Close() }()

	results = append(results, checkDatabaseConnection(db))
	results = append(results, checkPostgreSQLVersion(db))
	results = append(results, checkMigrations(cfg.DatabaseURL))
	results = append(results, checkTables(db))
	if schema != nil {
		results = append(results, checkDimensionColumns(db, schema))
	}
	return results
}

func outputDoctorHuman(w io.Writer, results []CheckResult) {
	_, _ = fmt.Fprintln(w, "\nScout Health Check")

	passed := 0
	for _, r := range results {
		icon := "✓"
		if !r.Pass {
			icon = "✗"
		} else {
			passed++
		}

		_, _ = fmt.Fprintf(w, "%s %s", icon, r.Name)
		if r.Details != "" {
			_, _ = fmt.Fprintf(w, " (%s)", r.Details)
		}
		_, _ = fmt.Fprintln(w)

		if !r.Pass {
			if r.Error != "" {
				_, _ = fmt.Fprintf(w, "  Error: %s\n", r.Error)
			}
			if r.Suggestion != "" {
				_, _ = fmt.Fprintf(w, "  Hint: %s\n", r.Suggestion)
			}
		}
	}

	_, _ = fmt.Fprintf(w, "\n%d/%d checks passed\n\n", passed, len(results))
}

func outputDoctorJSON(w io.Writer, results []CheckResult) {
	data, _ := json.MarshalIndent(results, "", "  ")
	_, _ = fmt.Fprintln(w, string(data))
}

func init() {
	doctorCmd.Flags().Bool("json", false, "Output results as JSON")
}
