package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jkemi/plipsql"
)

// ErrUnbound reports query parameters that no --param supplied.
var ErrUnbound = errors.New("unbound parameters")

// execOptions are the exec command's own flags.
type execOptions struct {
	params   []string
	execOnly bool
}

func newExecCommand() *cobra.Command {
	var opts execOptions

	cmd := &cobra.Command{
		Use:   "exec SQL",
		Short: "Prepare a query with :name placeholders, bind values and run it",
		Example: `  plipsql exec --dsn app.db "SELECT * FROM users WHERE id = :id" -p id:int=7
  plipsql exec --driver pgx --dsn "$DATABASE_URL" --exec \
    "UPDATE users SET name = :name WHERE id = :id" -p id:int=7 -p name=ada`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig(cmd.Context())
			return runExec(cmd.Context(), cmd.OutOrStdout(), newLogger(cfg, cmd), cfg, args[0], opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.params, "param", "p", nil, "parameter as name[:type]=value (repeatable)")
	cmd.Flags().BoolVar(&opts.execOnly, "exec", false, "run as a statement and report rows affected")

	return cmd
}

// runExec opens the database, prepares and binds the query, runs it and
// writes the outcome to w. Every acquired handle is released on return.
func runExec(ctx context.Context, w io.Writer, logger *slog.Logger, cfg *Config, query string, opts execOptions) (err error) {
	values, err := parseParams(opts.params)
	if err != nil {
		return err
	}
	dialect, err := cfg.ResolveDialect()
	if err != nil {
		return err
	}

	b := plipsql.New(dialect, plipsql.Config{Logger: logger})
	s := b.NewStack()
	defer func() { err = errors.Join(err, s.Release()) }()

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}
	plipsql.Push(s, db)
	if cfg.DSN == DefaultDSN {
		// each sqlite connection would see its own empty in-memory database
		db.SetMaxOpenConns(1)
	}

	pq := b.Parse(query)
	var unknown []string
	for name := range values {
		if !pq.Has(name) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		return fmt.Errorf("%w: %s", plipsql.ErrParamNotFound, strings.Join(unknown, ", "))
	}

	st, err := b.PrepareWith(ctx, db, query, values)
	if err != nil {
		return err
	}
	plipsql.Push(s, st)

	if unbound := st.UnboundParamNames(); len(unbound) > 0 {
		return fmt.Errorf("%w: %s", ErrUnbound, strings.Join(unbound, ", "))
	}

	if opts.execOnly {
		res, err := st.ExecContext(ctx)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		return renderAffected(w, n, cfg.Format)
	}

	rows, err := st.QueryContext(ctx)
	if err != nil {
		return err
	}
	return renderRows(w, s.PushRows(rows), cfg.Format)
}
