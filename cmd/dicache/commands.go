package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goccy/go-json"
	"github.com/gocrud/container/cron"
	"github.com/gocrud/container/di"
	"github.com/gocrud/container/hosting"
	"github.com/gocrud/container/logging"
	"github.com/gocrud/container/web"
	"github.com/samber/lo"
	"github.com/urfave/cli"
)

func check(c *cli.Context) error {
	sess, err := openSession(c, false)
	if err != nil {
		return err
	}
	defer sess.Close()

	container := sess.newContainer()
	if err := sess.loadDefinitions(container); err != nil {
		return err
	}
	if err := container.Validate(); err != nil {
		return cli.NewExitError(err.Error(), exitInvalid)
	}

	fmt.Fprintf(c.App.Writer, "ok: %d services, %d files\n",
		len(userServices(container.Container)), len(container.LoadedFiles()))
	return nil
}

// dumpOutput dump 命令的输出结构
type dumpOutput struct {
	Parameters    map[string]any      `json:"parameters"`
	Services      map[string]string   `json:"services"`
	Aliases       map[string]string   `json:"aliases"`
	LoadedFiles   []string            `json:"loaded_files"`
	Notifications map[string][]string `json:"notifications"`
}

func dump(c *cli.Context) error {
	sess, err := openSession(c, c.Bool("from-cache"))
	if err != nil {
		return err
	}
	defer sess.Close()

	container := sess.newContainer()
	if c.Bool("from-cache") {
		if err := container.LoadFromCache(context.Background()); err != nil {
			return cli.NewExitError(fmt.Sprintf("failed to load cache: %v", err), exitCache)
		}
	} else if err := sess.loadDefinitions(container); err != nil {
		return err
	}

	params, err := container.DumpParameters()
	if err != nil {
		return cli.NewExitError(err.Error(), exitInvalid)
	}

	out := dumpOutput{
		Parameters:  params,
		Services:    make(map[string]string),
		Aliases:     lo.OmitByValues(container.Aliases(), []string{di.ContainerName}),
		LoadedFiles: container.LoadedFiles(),
		Notifications: lo.MapValues(container.PendingNotifications(), func(list []di.Notification, _ string) []string {
			return lo.Map(list, func(n di.Notification, _ int) string {
				return fmt.Sprintf("%s -> %s.%s", n.Sender, n.Target, n.Method)
			})
		}),
	}
	for _, name := range userServices(container.Container) {
		def, err := container.GetDefinition(name)
		if err != nil {
			return cli.NewExitError(err.Error(), exitInvalid)
		}
		out.Services[name] = def.String()
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, string(data))
	return nil
}

func warm(c *cli.Context) error {
	sess, err := openSession(c, true)
	if err != nil {
		return err
	}
	defer sess.Close()

	container := sess.newContainer()
	if err := sess.loadDefinitions(container); err != nil {
		return err
	}
	if !c.Bool("force") {
		if err := container.Validate(); err != nil {
			return cli.NewExitError(err.Error(), exitInvalid)
		}
	}
	if err := container.CacheCurrentState(context.Background()); err != nil {
		return cli.NewExitError(fmt.Sprintf("failed to write cache: %v", err), exitCache)
	}

	fmt.Fprintf(c.App.Writer, "cached %d services to %s\n",
		len(userServices(container.Container)), sess.backend.Driver)
	return nil
}

func flush(c *cli.Context) error {
	sess, err := openSession(c, true)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.newContainer().ClearCache(context.Background()); err != nil {
		return cli.NewExitError(fmt.Sprintf("failed to flush cache: %v", err), exitCache)
	}
	fmt.Fprintf(c.App.Writer, "flushed %s cache\n", sess.backend.Driver)
	return nil
}

func serve(c *cli.Context) error {
	sess, err := openSession(c, true)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx := context.Background()
	container := sess.newContainer()
	if err := container.LoadFromCache(ctx); err != nil {
		if !errors.Is(err, di.ErrCacheDataNotFound) {
			return cli.NewExitError(fmt.Sprintf("failed to load cache: %v", err), exitCache)
		}
		sess.logger.Info("No cached snapshot, loading definition files")
		if err := sess.loadDefinitions(container); err != nil {
			return err
		}
		if err := container.CacheCurrentState(ctx); err != nil {
			return cli.NewExitError(fmt.Sprintf("failed to write cache: %v", err), exitCache)
		}
	}

	var mu sync.Mutex
	manager := hosting.NewHostedServiceManager(sess.logger.WithCategory("hosting"))
	manager.Add("inspector", web.New(container.Container,
		web.WithPort(c.Int("port")),
		web.WithLogger(sess.logger.WithCategory("web")),
		web.WithLock(&mu)))

	schedule := lo.Ternary(c.String("schedule") != "", c.String("schedule"), sess.settings.Schedule)
	if schedule != "" {
		scheduler, err := cron.New(
			cron.WithLogger(sess.logger.WithCategory("cron")),
			cron.AddJob(schedule, "rewarm", rewarmJob(container, &mu, sess.logger)),
		)
		if err != nil {
			return cli.NewExitError(err.Error(), exitConfig)
		}
		manager.Add("scheduler", scheduler)
	}

	if err := manager.Run(ctx, hosting.DefaultShutdownTimeout); err != nil {
		return cli.NewExitError(err.Error(), exitServe)
	}
	return nil
}

// rewarmJob 定期把容器当前状态写回缓存，包括运行期间投递过的通知
func rewarmJob(container *di.CachedContainer, mu sync.Locker, logger logging.Logger) cron.JobFunc {
	return func(ctx context.Context) error {
		mu.Lock()
		defer mu.Unlock()

		if err := container.CacheCurrentState(ctx); err != nil {
			return err
		}
		logger.Debug("Snapshot rewritten")
		return nil
	}
}

// userServices 除容器自身外的服务名
func userServices(c *di.Container) []string {
	return lo.Without(c.ServiceNames(), di.ContainerName)
}
