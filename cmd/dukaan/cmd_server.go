package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/dukaan/app/controllers"
	"github.com/shashiranjanraj/dukaan/app/gql"
	"github.com/shashiranjanraj/dukaan/app/realtime"
	"github.com/shashiranjanraj/dukaan/app/routes"
	"github.com/shashiranjanraj/dukaan/internal/server"
	gqlhttp "github.com/shashiranjanraj/dukaan/pkg/graphql"
	"github.com/shashiranjanraj/dukaan/pkg/router"
)

// dukaan serve — start the HTTP and gRPC servers.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Run()
	},
}

// dukaan route:list — print all registered routes.
var routeListCmd = &cobra.Command{
	Use:   "route:list",
	Short: "List all registered named routes",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Registration only records method/path/name; handlers are never
		// invoked, so nil-backed controllers are fine here.
		schema, err := gqlhttp.NewSchema(gql.RootQuery(nil))
		if err != nil {
			return err
		}

		r := router.New()
		routes.RegisterAPI(r, routes.Deps{
			Products: controllers.NewProductController(nil, nil, nil, nil, nil, 0),
			Auth:     controllers.NewAuthController(nil),
			Stock:    realtime.NewStockFeed(),
			Schema:   schema,
		})

		infos := r.Routes()
		if len(infos) == 0 {
			fmt.Println("No named routes registered.")
			return nil
		}

		// Sort by path then method.
		sort.Slice(infos, func(i, j int) bool {
			if infos[i].Path != infos[j].Path {
				return infos[i].Path < infos[j].Path
			}
			return infos[i].Method < infos[j].Method
		})

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "METHOD\tPATH\tNAME")
		fmt.Fprintln(w, "------\t----\t----")
		for _, ri := range infos {
			fmt.Fprintf(w, "%s\t%s\t%s\n", ri.Method, ri.Path, ri.Name)
		}
		return w.Flush()
	},
}
