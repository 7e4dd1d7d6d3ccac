package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/graphmart/graphmart/internal/sqlgen"
	"github.com/graphmart/graphmart/pkg/warehouse"
)

// Governance is the classification and access metadata applied to every
// object a run creates. Domain and process come from the owning model's
// group; the PII flag and role list from the model itself. A nil PII means
// unclassified, which is distinct from false.
type Governance struct {
	Domain  string
	Process string
	PII     *bool
	Roles   []string
}

// Empty reports whether there is nothing to tag or grant.
func (g Governance) Empty() bool {
	return g.Domain == "" && g.Process == "" && g.PII == nil && len(g.Roles) == 0
}

// objectPrivileges maps each object kind to the minimum privilege granted to
// access roles. Tasks get OPERATE; everything readable gets SELECT.
var objectPrivileges = map[warehouse.ObjectType]string{
	warehouse.ObjectTable:  "SELECT",
	warehouse.ObjectView:   "SELECT",
	warehouse.ObjectStream: "SELECT",
	warehouse.ObjectTask:   "OPERATE",
}

// Governor applies tags and grants to deployed objects. Every operation is
// best-effort: failures are logged at warning level and never abort the
// deployment.
type Governor struct {
	exec   warehouse.Executor
	logger *slog.Logger
}

// NewGovernor creates a Governor over the run's shared connection.
// If logger is nil, a discard logger is used.
func NewGovernor(exec warehouse.Executor, logger *slog.Logger) *Governor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Governor{exec: exec, logger: logger}
}

// EnsureTags creates the DOMAIN, PROCESS, and PII tags if absent.
func (g *Governor) EnsureTags(ctx context.Context) {
	stmts := []string{
		"CREATE TAG IF NOT EXISTS DOMAIN\n    COMMENT = 'Business domain classification for data objects (e.g., Procurement, Maintenance, Finance)'",
		"CREATE TAG IF NOT EXISTS PROCESS\n    COMMENT = 'Business process classification for data objects (e.g., Procure to Pay, Asset Management, Accounting)'",
		"CREATE TAG IF NOT EXISTS PII\n    COMMENT = 'PII classification flag for data objects (TRUE indicates PII)'",
	}
	for _, stmt := range stmts {
		if err := g.exec.Exec(ctx, stmt); err != nil {
			g.logger.Warn("could not ensure governance tags exist", slog.Any("error", err))
			return
		}
	}
}

// ApplyTags sets the DOMAIN, PROCESS, and PII tags on one object. Returns
// true when every applicable tag was set (or there was nothing to set).
func (g *Governor) ApplyTags(ctx context.Context, kind warehouse.ObjectType, database, schema, name string, gov Governance) bool {
	if gov.Domain == "" && gov.Process == "" && gov.PII == nil {
		return true
	}

	qualified := qualifyUpper(database, schema, name)

	var stmts []string
	if gov.Domain != "" {
		stmts = append(stmts, fmt.Sprintf("ALTER %s %s SET TAG DOMAIN = %s", kind, qualified, sqlgen.QuoteLiteral(gov.Domain)))
	}
	if gov.Process != "" {
		stmts = append(stmts, fmt.Sprintf("ALTER %s %s SET TAG PROCESS = %s", kind, qualified, sqlgen.QuoteLiteral(gov.Process)))
	}
	if gov.PII != nil {
		value := "FALSE"
		if *gov.PII {
			value = "TRUE"
		}
		stmts = append(stmts, fmt.Sprintf("ALTER %s %s SET TAG PII = '%s'", kind, qualified, value))
	}

	for _, stmt := range stmts {
		if err := g.exec.Exec(ctx, stmt); err != nil {
			g.logger.Warn("could not apply tags",
				slog.String("object", qualified),
				slog.String("kind", string(kind)),
				slog.Any("error", err))
			return false
		}
	}
	return true
}

// GrantAccess grants the object-kind-appropriate privilege on one object to
// each role, creating the role if absent and granting container usage on the
// database and schema first, since object grants are useless without it.
func (g *Governor) GrantAccess(ctx context.Context, kind warehouse.ObjectType, database, schema, name string, roles []string) {
	if len(roles) == 0 || name == "" {
		return
	}

	privilege, ok := objectPrivileges[kind]
	if !ok {
		return
	}

	db := sqlgen.QuoteIdentifier(strings.ToUpper(database))
	sch := sqlgen.QuoteIdentifier(strings.ToUpper(schema))
	qualified := fmt.Sprintf("%s.%s.%s", db, sch, sqlgen.QuoteIdentifier(strings.ToUpper(name)))

	for _, role := range roles {
		if role == "" {
			continue
		}
		quoted := sqlgen.QuoteIdentifier(strings.ToUpper(role))

		if err := g.exec.Exec(ctx, "CREATE ROLE IF NOT EXISTS "+quoted); err != nil {
			g.logger.Warn("could not ensure role exists", slog.String("role", role), slog.Any("error", err))
		}

		if err := g.exec.Exec(ctx, fmt.Sprintf("GRANT USAGE ON DATABASE %s TO ROLE %s", db, quoted)); err != nil {
			g.logger.Warn("could not grant database usage", slog.String("role", role), slog.Any("error", err))
		}
		if err := g.exec.Exec(ctx, fmt.Sprintf("GRANT USAGE ON SCHEMA %s.%s TO ROLE %s", db, sch, quoted)); err != nil {
			g.logger.Warn("could not grant schema usage", slog.String("role", role), slog.Any("error", err))
		}

		if err := g.exec.Exec(ctx, fmt.Sprintf("GRANT %s ON %s %s TO ROLE %s", privilege, kind, qualified, quoted)); err != nil {
			g.logger.Warn("could not grant object privilege",
				slog.String("privilege", privilege),
				slog.String("object", qualified),
				slog.String("role", role),
				slog.Any("error", err))
		}
	}
}

func qualifyUpper(database, schema, name string) string {
	return fmt.Sprintf("%s.%s.%s",
		strings.ToUpper(database), strings.ToUpper(schema), strings.ToUpper(name))
}
