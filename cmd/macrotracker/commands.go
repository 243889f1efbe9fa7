package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deusflow/macrotracker/internal/app"
	"github.com/deusflow/macrotracker/internal/bias"
	"github.com/deusflow/macrotracker/internal/logger"
	"github.com/deusflow/macrotracker/internal/macro"
	"github.com/deusflow/macrotracker/internal/render"
	"github.com/deusflow/macrotracker/internal/server"
	"github.com/spf13/cobra"
)

func runServe(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		logger.Info("starting macrotracker",
			"addr", cfg.HTTPAddr,
			"news_provider", cfg.NewsProvider,
			"auto_refresh", cfg.AutoRefresh,
		)

		if err := a.Service.Warmup(ctx); err != nil {
			logger.Warn("initial refresh incomplete", "error", err)
		}

		sched, err := a.Scheduler()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		if sched != nil {
			sched.Start(ctx)
		}

		srv := server.New(a.Service, server.Config{
			Addr:   cfg.HTTPAddr,
			RPS:    cfg.APIRPS,
			Burst:  cfg.APIBurst,
			Quotas: a.Limiter,
		})
		err = srv.Run(ctx)

		cancel()
		if sched != nil {
			sched.Wait()
		}
		logger.Info("macrotracker stopped")
		return err
	})
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		snap, result, err := a.Service.Snapshot(ctx)
		if jsonOut {
			if err != nil {
				return err
			}
			return printJSON(struct {
				Snapshot macro.Snapshot `json:"snapshot"`
				Bias     bias.Result    `json:"bias"`
			}{snap, result})
		}

		if err != nil {
			fmt.Println(render.Snapshot(macro.Failed(err, time.Now()), nil, time.Now()))
			return err
		}
		fmt.Println(render.Snapshot(macro.Succeeded(snap), &result, time.Now()))
		return nil
	})
}

func runNews(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		feed, err := a.Service.News(ctx)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(feed)
		}
		fmt.Println(render.Feed(feed, time.Now()))
		if feed.FetchError != "" {
			return errors.New(feed.FetchError)
		}
		return nil
	})
}

func runArticle(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		article, err := a.Service.Article(ctx, args[0])
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(article)
		}
		fmt.Println(render.Article(article))
		return nil
	})
}
