package main

import (
	"context"
	"fmt"

	"github-trend-scout/internal/adapter/cache"
	"github-trend-scout/internal/adapter/feishu"
	"github-trend-scout/internal/adapter/gemini"
	"github-trend-scout/internal/adapter/github"
	"github-trend-scout/internal/adapter/repository"
	"github-trend-scout/internal/adapter/webhook"
	"github-trend-scout/internal/platform/config"
	"github-trend-scout/internal/platform/logger"
	"github-trend-scout/internal/port"
	"github-trend-scout/internal/service"

	"github.com/rs/zerolog"
)

// app 持有所有已初始化的依赖
type app struct {
	settings config.Settings
	log      *zerolog.Logger

	store    *cache.Store
	parser   *gemini.Parser // 没有 GEMINI_API_KEY 时为 nil
	resolver *service.Resolver
	notifier port.Notifier // 没有配置推送地址时为 nil
	history  *repository.PostgresRepo
}

// newApp 按配置组装流水线；withHistory 为 false 或 DATABASE_DSN 为空时不连数据库
func newApp(ctx context.Context, settings config.Settings, withHistory bool) (*app, error) {
	a := &app{settings: settings, log: logger.Named("app")}

	store, err := cache.NewStore(settings.Cache.MaxEntries)
	if err != nil {
		return nil, fmt.Errorf("初始化缓存失败: %w", err)
	}
	a.store = store

	executor, err := github.NewExecutor(settings.GitHub.Token, settings.GitHub.BaseURL, logger.Named("github"))
	if err != nil {
		return nil, err
	}
	executor.SetMaxFanOut(settings.GitHub.MaxFanOut)
	if settings.GitHub.Token == "" {
		a.log.Warn().Msg("未设置 GITHUB_TOKEN，匿名访问限制为 60 次/小时")
	}

	var parser port.Parser
	if settings.LLM.APIKey != "" {
		prompt, err := gemini.LoadPrompt(settings.LLM.PromptFile)
		if err != nil {
			return nil, err
		}
		p, err := gemini.NewParser(ctx, settings.LLM.APIKey, settings.LLM.Model, prompt)
		if err != nil {
			return nil, err
		}
		a.parser = p
		parser = p
	} else {
		a.log.Warn().Msg("未设置 GEMINI_API_KEY，使用关键词兜底解析")
	}

	opts := service.DefaultResolverOptions()
	opts.ParserTTL = settings.Cache.ParserTTL
	opts.SearchTTL = settings.Cache.SearchTTL
	opts.ParseTimeout = settings.LLM.Timeout
	opts.SearchTimeout = settings.GitHub.Timeout
	opts.SingleFlight = settings.Cache.SingleFlight
	opts.Logger = logger.Named("resolver")
	a.resolver = service.NewResolver(parser, executor, store, opts)

	notifier, err := newNotifier(settings.Delivery)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.notifier = notifier

	if withHistory && settings.Database.DSN != "" {
		repo, err := repository.NewPostgresRepo(ctx, settings.Database.DSN, logger.Named("db"))
		if err != nil {
			a.Close()
			return nil, err
		}
		a.history = repo
	}

	return a, nil
}

// newNotifier 按渠道选择推送实现，地址为空时返回 nil
func newNotifier(d config.DeliverySettings) (port.Notifier, error) {
	switch d.Channel {
	case "", "webhook":
		if d.WebhookURL == "" {
			return nil, nil
		}
		return webhook.NewNotifier(d.WebhookURL, d.Timeout), nil
	case "feishu":
		if d.FeishuURL == "" {
			return nil, nil
		}
		return feishu.NewNotifier(d.FeishuURL, d.Timeout), nil
	default:
		return nil, fmt.Errorf("未知的推送渠道 %q，可选 webhook 或 feishu", d.Channel)
	}
}

// historyPort 避免把 nil 指针包成非 nil 接口
func (a *app) historyPort() port.DigestHistory {
	if a.history == nil {
		return nil
	}
	return a.history
}

func (a *app) newScheduler(daily, weekly string) (*service.DigestScheduler, error) {
	return service.NewDigestScheduler(a.resolver, a.notifier, a.historyPort(), service.SchedulerOptions{
		Daily:    daily,
		Weekly:   weekly,
		Location: a.settings.Scheduler.Location,
		Timeout:  a.settings.Scheduler.Timeout,
		Logger:   logger.Named("scheduler"),
	})
}

// Close 释放 Gemini 客户端和数据库连接
func (a *app) Close() {
	if a.parser != nil {
		if err := a.parser.Close(); err != nil {
			a.log.Warn().Err(err).Msg("关闭 Gemini 客户端失败")
		}
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.log.Warn().Err(err).Msg("关闭数据库连接失败")
		}
	}
}
