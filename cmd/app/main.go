package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github-trend-scout/internal/adapter/httpapi"
	"github-trend-scout/internal/domain"
	"github-trend-scout/internal/platform/config"
	"github-trend-scout/internal/platform/logger"
	"github-trend-scout/internal/service"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFiles []string

	root := &cobra.Command{
		Use:           "trend-scout",
		Short:         "用自然语言查询 GitHub 热门仓库，并定时推送日报和周报",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(envFiles...); err != nil {
				return err
			}
			logger.Init(logger.FromEnv())
			return nil
		},
	}
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, ".env 文件路径，可重复")

	root.AddCommand(newServeCmd(), newAskCmd(), newDigestCmd())
	return root
}

// newServeCmd 启动 HTTP 服务和定时推送，收到 SIGINT/SIGTERM 后优雅退出
func newServeCmd() *cobra.Command {
	var noScheduler bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动 A2A HTTP 服务和定时推送",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			settings := config.Load()
			a, err := newApp(ctx, settings, true)
			if err != nil {
				return err
			}
			defer a.Close()

			agent := service.NewAgent(a.resolver, logger.Named("agent"))
			srv, err := httpapi.NewServer(agent, a.store, a.historyPort(), httpapi.Options{
				Addr:           settings.HTTP.Addr(),
				AllowedOrigins: settings.HTTP.AllowedOrigins,
				RateLimitRPM:   settings.HTTP.RateLimitRPM,
				SlowRequest:    2 * time.Second,
			})
			if err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.Run(gctx) })

			switch {
			case noScheduler || !settings.Scheduler.Enabled:
				a.log.Info().Msg("定时推送已关闭")
			case a.notifier == nil:
				a.log.Warn().Str("channel", settings.Delivery.Channel).Msg("未配置推送地址，定时推送不启动")
			default:
				sched, err := a.newScheduler(settings.Scheduler.Daily, settings.Scheduler.Weekly)
				if err != nil {
					stop()
					_ = g.Wait()
					return err
				}
				sched.Start()
				g.Go(func() error {
					<-gctx.Done()
					stopCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), settings.Scheduler.Timeout)
					defer cancel()
					return sched.Stop(stopCtx)
				})
			}

			return g.Wait()
		},
	}
	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "只启动 HTTP 服务")
	return cmd
}

// newAskCmd 在终端里走一遍完整的解析流水线
func newAskCmd() *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "执行一次查询并打印结果",
		Example: `  trend-scout ask -q "Trending Rust projects this week"
  trend-scout ask top 10 go cli tools today`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if query == "" {
				query = strings.Join(args, " ")
			}
			query = strings.TrimSpace(query)
			if query == "" {
				return errors.New("请通过 -q 或参数提供查询内容")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), config.Load(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			out, err := a.resolver.Resolve(cmd.Context(), query)
			if err != nil {
				return err
			}
			a.log.Debug().
				Str("parse_source", string(out.ParseSource)).
				Str("search_source", string(out.SearchSource)).
				Str("query", out.Spec.Scope()).
				Msg("查询完成")
			fmt.Fprintln(cmd.OutOrStdout(), out.Text)
			return nil
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "查询内容")
	return cmd
}

// newDigestCmd 立即执行一次日报或周报推送，不经过 cron
func newDigestCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "digest daily|weekly",
		Short:     "立即推送一次日报或周报",
		ValidArgs: []string{string(domain.DigestDaily), string(domain.DigestWeekly)},
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := config.Load()
			a, err := newApp(cmd.Context(), settings, true)
			if err != nil {
				return err
			}
			defer a.Close()

			sched, err := a.newScheduler("", "")
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), settings.Scheduler.Timeout)
			defer cancel()

			record, err := sched.RunDigest(ctx, domain.DigestKind(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ %s 推送完成，共 %d 个仓库 (id=%s)\n", record.Kind, record.RepoCount, record.ID)
			return nil
		},
	}
}
