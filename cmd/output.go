// File: cmd/output.go
package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eSupun-real/Fake-Signup-Helper/internal/config"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/identity"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/observability"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	failureColor = color.New(color.FgRed, color.Bold)
	labelColor   = color.New(color.FgCyan)
)

func printSuccess(w io.Writer, format string, a ...interface{}) {
	successColor.Fprintf(w, format+"\n", a...)
}

func printFailure(w io.Writer, format string, a ...interface{}) {
	failureColor.Fprintf(w, format+"\n", a...)
}

func printField(w io.Writer, label, value string) {
	labelColor.Fprintf(w, "%-10s", label+":")
	fmt.Fprintln(w, value)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printRecord(w io.Writer, rec identity.Record) {
	printField(w, "Username", rec.Username)
	printField(w, "Name", rec.Name)
	printField(w, "Address", rec.Address)
	printField(w, "Phone", rec.Phone)
	printField(w, "Email", rec.Email)
	printField(w, "Password", rec.Password)
}

// runWithComponents loads the configuration, wires the services and hands
// them to fn, closing them afterwards.
func runWithComponents(cmd *cobra.Command, fn func(ctx context.Context, cfg config.Interface, c *components, logger *zap.Logger) error) error {
	ctx := cmd.Context()
	cfg, err := getConfigFromContext(ctx)
	if err != nil {
		return err
	}
	logger := observability.GetLogger()

	c, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Shutdown(logger)

	return fn(ctx, cfg, c, logger)
}
