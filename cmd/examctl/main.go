package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"examsearch/internal/app"
	"examsearch/internal/config"
	"examsearch/internal/index"
	"examsearch/internal/models"
	"examsearch/internal/providers"
	"examsearch/internal/query"
	"examsearch/internal/util"

	"github.com/abiiranathan/goflag"
	"github.com/joho/godotenv"
)

type options struct {
	Token    string
	Scope    string
	Keyword  string
	Group    string
	Subject  string
	Page     int
	PageSize int
	ID       string
	Output   string
	Timeout  int
}

func main() {
	log.SetPrefix("[examctl]: ")
	log.SetFlags(0)
	_ = godotenv.Load(".env")

	opts := &options{Scope: "examctl", Page: 1, PageSize: query.DefaultPageSize, Timeout: 120}
	ctx := defineFlags(opts)
	subcmd, err := ctx.Parse(os.Args)
	if err != nil {
		log.Fatalln(err)
	}
	if subcmd == nil {
		ctx.PrintUsage(os.Stdout)
		os.Exit(1)
	}
	subcmd.Handler()
}

func defineFlags(opts *options) *goflag.Context {
	ctx := goflag.NewContext()
	ctx.AddFlag(goflag.FlagString, "token", "t", &opts.Token,
		"Upstream access token; defaults to EXAMSEARCH_SERVICE_ACCESS_TOKEN", false)
	ctx.AddFlag(goflag.FlagString, "scope", "s", &opts.Scope,
		"Cache scope the index is stored under", false)
	ctx.AddFlag(goflag.FlagInt, "timeout", "w", &opts.Timeout,
		"Seconds before the command gives up", false, goflag.Min(1), goflag.Max(3600))

	ctx.AddSubCommand("search", "Search the exam index", func() {
		run(opts, func(c context.Context, a *app.App, scope index.Scope) (any, error) {
			snap, err := a.Manager.GetOrBuild(c, scope)
			if err != nil {
				return nil, err
			}
			return query.Query(snap.Exams, specFrom(opts)), nil
		})
	}).AddFlag(goflag.FlagString, "keyword", "k", &opts.Keyword, "Case-insensitive keyword", false).
		AddFlag(goflag.FlagString, "group", "g", &opts.Group, "Exam-group code such as DR2401", false).
		AddFlag(goflag.FlagString, "subject", "j", &opts.Subject, "Subject name", false).
		AddFlag(goflag.FlagInt, "page", "p", &opts.Page, "1-based page", false, goflag.Min(1)).
		AddFlag(goflag.FlagInt, "page-size", "n", &opts.PageSize, "Results per page", false, goflag.Min(1), goflag.Max(500))

	ctx.AddSubCommand("rebuild", "Rebuild the index from the document source", func() {
		run(opts, func(c context.Context, a *app.App, scope index.Scope) (any, error) {
			snap, err := a.Manager.ForceRebuild(c, scope)
			if err != nil {
				return nil, err
			}
			return models.RebuildStatus{
				Status:    "success",
				Message:   "Index rebuilt successfully",
				ExamCount: len(snap.Exams),
				Timestamp: time.Now().UTC(),
				BuildID:   snap.BuildID,
			}, nil
		})
	})

	ctx.AddSubCommand("show", "Print one exam", func() {
		run(opts, func(c context.Context, a *app.App, scope index.Scope) (any, error) {
			exam, ok, err := a.Manager.GetByID(c, scope, opts.ID)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, fmt.Errorf("exam %s not found", opts.ID)
			}
			return exam, nil
		})
	}).AddFlag(goflag.FlagString, "id", "i", &opts.ID, "Exam id", true)

	ctx.AddSubCommand("export", "Write the index as a cache entry file", func() {
		run(opts, func(c context.Context, a *app.App, scope index.Scope) (any, error) {
			snap, err := a.Manager.GetOrBuild(c, scope)
			if err != nil {
				return nil, err
			}
			raw, err := index.Encode(snap)
			if err != nil {
				return nil, err
			}
			if err := util.WriteFileAtomic(opts.Output, raw); err != nil {
				return nil, err
			}
			return map[string]any{"path": opts.Output, "examCount": len(snap.Exams), "buildId": snap.BuildID}, nil
		})
	}).AddFlag(goflag.FlagString, "output", "o", &opts.Output, "File to write", true)

	return ctx
}

func specFrom(opts *options) models.QuerySpec {
	spec := models.QuerySpec{Keyword: opts.Keyword, Page: opts.Page, PageSize: opts.PageSize}
	if opts.Group != "" {
		spec.GroupCodes = []string{opts.Group}
	}
	if opts.Subject != "" {
		spec.Subjects = []string{opts.Subject}
	}
	return spec
}

func run(opts *options, fn func(context.Context, *app.App, index.Scope) (any, error)) {
	cfg := config.Load()
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(opts.Timeout)*time.Second)
	defer cancel()

	a, err := app.New(ctx, cfg, cfg.NewLogger())
	if err != nil {
		log.Fatalln(err)
	}
	defer a.Close()

	token := opts.Token
	if token == "" {
		token = cfg.ServiceAccessToken
	}
	out, err := fn(ctx, a, index.Scope{Key: opts.Scope, Credentials: providers.Credentials{AccessToken: token}})
	if err != nil {
		log.Fatalln(err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		log.Fatalln(err)
	}
}
