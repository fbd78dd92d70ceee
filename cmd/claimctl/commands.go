package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/leafy-insurance/claims-backend/internal/claim"
	"github.com/leafy-insurance/claims-backend/internal/client"
	"github.com/leafy-insurance/claims-backend/internal/logging"
	"github.com/leafy-insurance/claims-backend/internal/models"
)

const defaultServer = "http://localhost:3000"

type rootOptions struct {
	server   string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "claimctl",
		Short:        "Upload claim photos and follow their review",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.server, "server", "s", defaultServer, "Claims server base URL")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		newUploadCmd(opts),
		newSamplesCmd(opts),
	)
	return cmd
}

func (o *rootOptions) logger(cmd *cobra.Command) *log.Logger {
	return logging.New(cmd.ErrOrStderr(), o.logLevel)
}

func newSamplesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "samples",
		Short: "List the sample photos offered by the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gw := client.New(opts.server, client.ProxyPaths, nil)
			names, err := gw.ListSamples(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newUploadCmd(opts *rootOptions) *cobra.Command {
	var (
		sample string
		typing time.Duration
	)
	cmd := &cobra.Command{
		Use:   "upload [file]",
		Short: "Upload a photo, stream its description and print the claim summary",
		Example: `  claimctl upload ./crash.jpg
  claimctl upload --sample car1.jpg --typing 15ms`,
		Args: func(cmd *cobra.Command, args []string) error {
			if sample == "" && len(args) != 1 {
				return fmt.Errorf("expected a file or --sample")
			}
			if sample != "" && len(args) > 0 {
				return fmt.Errorf("a file and --sample are mutually exclusive")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			out := cmd.OutOrStdout()
			gw := client.New(opts.server, client.ProxyPaths, nil)
			machine := claim.NewMachine(uuid.New().String())

			if sample != "" {
				if err := selectSample(ctx, machine, gw, sample); err != nil {
					return err
				}
			} else {
				img, err := readImage(args[0])
				if err != nil {
					return err
				}
				machine.Drop(img)
			}

			tw := &typewriter{w: out, delay: typing}
			machine.Subscribe(func(ev claim.Event, _ models.FlowSnapshot) {
				if ev.Kind == claim.EventChunkReceived {
					tw.Write(ev.Text)
				}
			})

			reporter := &cliReporter{w: cmd.ErrOrStderr()}
			flow := claim.NewFlow(machine, gw, gw, claim.FlowOptions{
				Scheduler: inlineScheduler{},
				Reporter:  reporter,
				Logger:    opts.logger(cmd),
			})

			res := flow.Upload(ctx)
			fmt.Fprintln(out)
			details, err := res.Unwrap()
			if err != nil {
				return err
			}

			fmt.Fprintln(out)
			return claim.NewSummary(details, time.Now()).Render(out)
		},
	}
	cmd.Flags().StringVar(&sample, "sample", "", "Use a server sample photo instead of a local file")
	cmd.Flags().DurationVar(&typing, "typing", 0, "Delay per character when printing the description")
	return cmd
}

func selectSample(ctx context.Context, m *claim.Machine, lister claim.SampleLister, name string) error {
	picker := claim.NewPicker(m, lister)
	if _, err := picker.Load(ctx); err != nil {
		return err
	}
	if !picker.Highlight(models.SampleRef(name)) {
		return fmt.Errorf("sample %q not found", name)
	}
	picker.Confirm()
	return nil
}

func readImage(path string) (claim.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return claim.Image{}, fmt.Errorf("reading image: %w", err)
	}
	return claim.Image{
		Name:        filepath.Base(path),
		ContentType: mimetype.Detect(data).String(),
		Data:        data,
	}, nil
}

// inlineScheduler shows the toast as soon as the stream ends.
type inlineScheduler struct{}

func (inlineScheduler) AfterFunc(_ time.Duration, f func()) { f() }

type cliReporter struct {
	w io.Writer
}

func (r *cliReporter) Alert(message string) {
	fmt.Fprintln(r.w, message)
}

func (r *cliReporter) Notify(message string) {
	fmt.Fprintf(r.w, "\n* %s\n", message)
}

func (r *cliReporter) Failure(err *claim.FlowError) {
	fmt.Fprintf(r.w, "upload failed: %s\n", err.Details)
}

// typewriter prints text rune by rune with an optional delay.
type typewriter struct {
	w     io.Writer
	delay time.Duration
}

func (t *typewriter) Write(text string) {
	if t.delay <= 0 {
		io.WriteString(t.w, text)
		return
	}
	for len(text) > 0 {
		_, size := utf8.DecodeRuneInString(text)
		io.WriteString(t.w, text[:size])
		text = text[size:]
		time.Sleep(t.delay)
	}
}
