package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-maps/internal/importer"
	"github.com/joeblew999/plat-maps/internal/server"
	"github.com/joeblew999/plat-maps/internal/storage"
)

// Options defines all CLI flags and env vars for the maps server.
// Flags: --host, --port, --data-dir, --web-dir, ...
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_WEB_DIR, ...
type Options struct {
	Host     string `doc:"Host to bind to" default:"0.0.0.0"`
	Port     int    `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir  string `doc:"Directory for the embedded database and local uploads" default:".data"`
	WebDir   string `doc:"Path to web/ directory" default:"web"`
	LogLevel string `doc:"Log level (debug, info, warn, error)" default:"info"`

	Store       string `doc:"Store backend: duckdb or postgres" default:"duckdb"`
	DatabaseURL string `doc:"Postgres connection string"`
	JWTSecret   string `doc:"HS256 secret used to verify access tokens"`

	SessionBackend string `doc:"Map session backend: memory or redis" default:"memory"`
	RedisAddr      string `doc:"Redis address for sessions"`
	SessionTTL     string `doc:"Idle map session lifetime" default:"12h"`

	Storage    string `doc:"Upload storage: local or s3" default:"local"`
	S3Bucket   string `doc:"S3 bucket for uploads"`
	S3Endpoint string `doc:"Custom S3-compatible endpoint"`
	S3Region   string `doc:"S3 region"`

	WMSRate        int    `doc:"Outbound WMS requests per second" default:"5"`
	RequestTimeout string `doc:"Per-request timeout" default:"30s"`
}

func (o *Options) config() (server.Config, error) {
	ttl, err := time.ParseDuration(o.SessionTTL)
	if err != nil {
		return server.Config{}, fmt.Errorf("--session-ttl: %w", err)
	}
	timeout, err := time.ParseDuration(o.RequestTimeout)
	if err != nil {
		return server.Config{}, fmt.Errorf("--request-timeout: %w", err)
	}
	return server.Config{
		Host:           o.Host,
		Port:           fmt.Sprintf("%d", o.Port),
		DataDir:        o.DataDir,
		WebDir:         o.WebDir,
		Store:          o.Store,
		DatabaseURL:    o.DatabaseURL,
		JWTSecret:      o.JWTSecret,
		SessionBackend: o.SessionBackend,
		RedisAddr:      o.RedisAddr,
		SessionTTL:     ttl,
		Storage:        o.Storage,
		S3:             storage.S3Config{Bucket: o.S3Bucket, Endpoint: o.S3Endpoint, Region: o.S3Region},
		WMSRate:        float64(o.WMSRate),
		RequestTimeout: timeout,
	}, nil
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	// SERVICE_* values may live in a .env file; a missing file is fine.
	_ = godotenv.Load()

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		log := server.NewLogger(opts.LogLevel)
		var srv *server.Server
		var httpSrv *http.Server

		hooks.OnStart(func() {
			cfg, err := opts.config()
			if err != nil {
				log.Fatal().Err(err).Msg("invalid configuration")
			}
			srv, err = server.New(context.Background(), cfg, log)
			if err != nil {
				log.Fatal().Err(err).Msg("server init failed")
			}

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-maps server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Store:   %s  Sessions: %s  Storage: %s\n", opts.Store, opts.SessionBackend, opts.Storage)
			fmt.Println()
			fmt.Printf("  Pages:   %s/login, %s/dashboard\n", baseURL, baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Printf("  Metrics: %s/metrics\n", baseURL)
			fmt.Println()

			httpSrv = &http.Server{Addr: addr, Handler: srv, ReadHeaderTimeout: 10 * time.Second}
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatal().Err(err).Msg("server error")
			}
		})

		hooks.OnStop(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if httpSrv != nil {
				_ = httpSrv.Shutdown(ctx)
			}
			if srv != nil {
				if err := srv.Close(); err != nil {
					log.Warn().Err(err).Msg("close failed")
				}
			}
		})
	})

	cli.Root().Use = "maps"
	cli.Root().Short = "Pudumaps GIS project manager"
	cli.Root().Version = server.Version

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			cfg, err := opts.config()
			if err != nil {
				fatal("Error: %v", err)
			}
			// The OpenAPI document does not depend on the backends; use throwaway ones.
			cfg.Store, cfg.DataDir = server.StoreDuckDB, ""
			cfg.SessionBackend, cfg.Storage = server.SessionsMemory, server.StorageLocal
			if cfg.JWTSecret == "" {
				cfg.JWTSecret = "spec"
			}
			srv, err := server.New(cmd.Context(), cfg, server.NewLogger("error"))
			if err != nil {
				fatal("Error: %v", err)
			}
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fatal("Error marshaling spec: %v", err)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// migrate subcommand: apply the schema to the selected store
	cli.Root().AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema for the selected store",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			cfg, err := opts.config()
			if err != nil {
				fatal("Error: %v", err)
			}
			st, err := server.OpenStore(cmd.Context(), cfg)
			if err != nil {
				fatal("Error migrating %s store: %v", opts.Store, err)
			}
			defer st.Close()
			fmt.Printf("%s schema up to date\n", opts.Store)
		}),
	})

	// import subcommand: convert a geodata file to GeoJSON on stdout
	cli.Root().AddCommand(&cobra.Command{
		Use:   "import <file>",
		Short: "Convert a GeoJSON, zipped Shapefile, KML or KMZ file to a GeoJSON FeatureCollection",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			data, err := os.ReadFile(args[0])
			if err != nil {
				fatal("Error: %v", err)
			}
			fc, err := importer.Import(args[0], data)
			if err != nil {
				fatal("Error: %v", err)
			}
			out, err := json.MarshalIndent(fc, "", "  ")
			if err != nil {
				fatal("Error: %v", err)
			}
			fmt.Println(string(out))
		},
	})

	cli.Run()
}
