package main

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ccheney/problem-lifecycle/internal/application"
	"github.com/ccheney/problem-lifecycle/internal/domain"
	"github.com/ccheney/problem-lifecycle/internal/infrastructure"
)

const envPrefix = "PROBLEMCTL"

// userRegistry is a user directory that also accepts registrations.
type userRegistry interface {
	application.UserDirectoryPort
	AddUser(ctx context.Context, id domain.ActorId, fullname string) error
}

// notificationInbox is a dispatcher whose deliveries can be read back.
type notificationInbox interface {
	application.NotificationDispatcherPort
	ListForUser(ctx context.Context, userID domain.ActorId, limit int) ([]infrastructure.Notification, error)
}

// App holds the wired object graph for one CLI invocation.
type App struct {
	Router      *application.Router
	Users       userRegistry
	Inbox       notificationInbox
	Broadcaster *application.Broadcaster
	Logger      application.LoggerPort
	Actor       string
	Output      string
	Pretty      bool
	Out         io.Writer
	Err         io.Writer

	closers []func() error
}

// Close waits for pending fan-out and releases connections.
func (a *App) Close() {
	if a.Broadcaster != nil {
		a.Broadcaster.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

// AppProvider lazily builds the App on first use so that commands like
// version never touch the database.
type AppProvider struct {
	once sync.Once
	app  *App
	err  error

	Flags *pflag.FlagSet
	Out   io.Writer
	Err   io.Writer
}

// Get returns the App, initializing it on first call.
func (p *AppProvider) Get() (*App, error) {
	p.once.Do(func() {
		if p.app == nil {
			p.app, p.err = p.init()
		}
	})
	return p.app, p.err
}

// Close releases the App if it was built.
func (p *AppProvider) Close() {
	if p.app != nil {
		p.app.Close()
	}
}

func (p *AppProvider) init() (*App, error) {
	v, err := loadConfig(p.Flags)
	if err != nil {
		return nil, err
	}

	logger, err := infrastructure.NewZapLogger(infrastructure.LoggerConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
		Output: p.Err,
	})
	if err != nil {
		return nil, domain.NewInvalidArgument(err.Error())
	}

	dbPath, err := resolveDbPath(v, logger)
	if err != nil {
		return nil, err
	}

	conn, err := infrastructure.OpenSQLite(dbPath, v.GetInt("busy_timeout_ms"))
	if err != nil {
		return nil, err
	}
	app := &App{
		Logger: logger,
		Actor:  v.GetString("actor"),
		Output: v.GetString("output"),
		Pretty: v.GetBool("pretty"),
		Out:    p.Out,
		Err:    p.Err,
	}
	app.closers = append(app.closers, logger.Sync, conn.Close)

	ctx := context.Background()
	if err := conn.EnsureSchema(ctx); err != nil {
		app.Close()
		return nil, err
	}

	if err := wireAdapters(v, conn, logger, app); err != nil {
		app.Close()
		return nil, err
	}

	store := infrastructure.NewSQLiteProblemStore(conn)
	app.Broadcaster = application.NewBroadcaster(app.Users, app.Inbox, logger, application.BroadcastConfig{
		BatchSize:   v.GetInt("fanout.batch_size"),
		Concurrency: v.GetInt("fanout.concurrency"),
		Timeout:     v.GetDuration("fanout.timeout"),
	})
	engine := application.NewLifecycleEngine(
		store,
		app.Users,
		app.Broadcaster,
		infrastructure.NewUUIDGenerator(),
		infrastructure.NewSystemClock(),
		logger,
	)
	app.Router = application.NewRouter(
		engine,
		application.NewApprovalLedger(store, logger),
		application.NewSubscriptionRegistry(store, logger),
	)
	return app, nil
}

// wireAdapters picks the user directory and notification inbox backends.
func wireAdapters(v *viper.Viper, conn *infrastructure.SQLiteDB, logger application.LoggerPort, app *App) error {
	directory := v.GetString("directory")
	notifications := v.GetString("notifications")

	if directory == "redis" || notifications == "redis" {
		cfg := infrastructure.DefaultRedisConfig()
		cfg.Addr = v.GetString("redis.addr")
		cfg.Password = v.GetString("redis.password")
		cfg.DB = v.GetInt("redis.db")
		cfg.UsersKey = v.GetString("redis.users_key")
		cfg.InboxCap = v.GetInt("redis.inbox_cap")

		client, err := infrastructure.NewRedisClient(cfg)
		if err != nil {
			return domain.NewStorageError(domain.ErrCodeStorage, err.Error())
		}
		app.closers = append(app.closers, client.Close)

		if directory == "redis" {
			app.Users = infrastructure.NewRedisUserDirectory(client, cfg.UsersKey)
		}
		if notifications == "redis" {
			app.Inbox = infrastructure.NewRedisNotificationInbox(client, cfg.InboxCap, logger)
		}
	}

	if app.Users == nil {
		app.Users = infrastructure.NewSQLiteUserDirectory(conn)
	}
	if app.Inbox == nil {
		app.Inbox = infrastructure.NewSQLiteNotificationInbox(conn, logger)
	}

	logger.Debug("adapters_wired", map[string]interface{}{
		"directory":     directory,
		"notifications": notifications,
	})
	return nil
}

func resolveDbPath(v *viper.Viper, logger application.LoggerPort) (string, error) {
	if dbPath := v.GetString("db"); dbPath != "" {
		logger.Debug("workspace_discovery", map[string]interface{}{
			"db_path": dbPath,
			"source":  "override",
		})
		return dbPath, nil
	}

	cwd, err := workspaceStart(v)
	if err != nil {
		return "", err
	}

	adapter := infrastructure.NewWorkspaceDiscoveryAdapter()
	root, err := adapter.FindWorkspaceRoot(cwd)
	if err != nil {
		return "", err
	}
	dbPath, err := adapter.FindDbPath(root)
	if err != nil {
		return "", err
	}

	logger.Debug("workspace_discovery", map[string]interface{}{
		"cwd":            cwd,
		"workspace_root": root,
		"db_path":        dbPath,
		"source":         "auto",
	})
	return dbPath, nil
}

func workspaceStart(v *viper.Viper) (string, error) {
	if ws := v.GetString("workspace"); ws != "" {
		return ws, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", domain.NewStorageError(domain.ErrCodeUnexpected, "failed to get working directory: "+err.Error())
	}
	return cwd, nil
}

// loadConfig layers flags over environment over the config file over defaults.
func loadConfig(flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for key, flag := range flagKeys {
			if f := flags.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, domain.NewInvalidArgument(err.Error())
				}
			}
		}
	}

	configPath := v.GetString("config")
	if configPath == "" {
		if start, err := workspaceStart(v); err == nil {
			adapter := infrastructure.NewWorkspaceDiscoveryAdapter()
			if root, err := adapter.FindWorkspaceRoot(start); err == nil {
				if _, statErr := os.Stat(adapter.ConfigPath(root)); statErr == nil {
					configPath = adapter.ConfigPath(root)
				}
			}
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, domain.NewInvalidArgument("failed to read config " + configPath + ": " + err.Error())
		}
	}
	return v, nil
}

// flagKeys maps config keys to the persistent flags that override them.
var flagKeys = map[string]string{
	"config":          "config",
	"db":              "db",
	"workspace":       "workspace",
	"busy_timeout_ms": "timeout-ms",
	"log.level":       "log-level",
	"output":          "output",
	"pretty":          "pretty",
	"actor":           "actor",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("busy_timeout_ms", 3000)
	v.SetDefault("log.level", "error")
	v.SetDefault("log.format", "json")
	v.SetDefault("output", "json")
	v.SetDefault("pretty", false)
	v.SetDefault("directory", "sqlite")
	v.SetDefault("notifications", "sqlite")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.users_key", "problemctl:users")
	v.SetDefault("redis.inbox_cap", 500)
	v.SetDefault("fanout.batch_size", 100)
	v.SetDefault("fanout.concurrency", 4)
	v.SetDefault("fanout.timeout", "30s")
}
