package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/nhle/taskflow/internal/api"
	"github.com/nhle/taskflow/internal/events"
	"github.com/nhle/taskflow/internal/model"
	"github.com/nhle/taskflow/internal/session"
	"github.com/nhle/taskflow/internal/store"
	appsync "github.com/nhle/taskflow/internal/sync"
	"github.com/nhle/taskflow/internal/tasks"
)

// runtime lazily assembles the client components for one invocation.
type runtime struct {
	opts       *Options
	configPath string
	verbose    bool

	cfg     *model.AppConfig
	client  *api.Client
	db      *store.SQLiteStore
	session *session.Store
	repo    *tasks.Repository
}

func (rt *runtime) path() string {
	if rt.configPath != "" {
		return rt.configPath
	}
	return model.DefaultConfigPath()
}

func (rt *runtime) config() (*model.AppConfig, error) {
	if rt.cfg != nil {
		return rt.cfg, nil
	}
	cfg, err := model.LoadConfig(rt.path())
	if err != nil {
		return nil, err
	}
	rt.cfg = cfg
	return cfg, nil
}

// open builds the REST client, local storage, session store and task
// repository, and restores any persisted session.
func (rt *runtime) open(ctx context.Context) error {
	if rt.session != nil {
		return nil
	}

	cfg, err := rt.config()
	if err != nil {
		return err
	}

	client, err := api.NewClient(cfg.Backend)
	if err != nil {
		return err
	}

	db, err := store.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("opening local storage: %w", err)
	}

	// Without a vault the session survives only as long as this process.
	var vault session.CookieVault
	if v, err := rt.opts.OpenVault(cfg.Storage.CredentialsDir); err != nil {
		log.Printf("credential vault unavailable: %v", err)
	} else {
		vault = v
	}

	sess := session.New(client, db, vault)
	if err := sess.Hydrate(ctx); err != nil {
		db.Close()
		return fmt.Errorf("restoring session: %w", err)
	}

	rt.client = client
	rt.db = db
	rt.session = sess
	rt.repo = tasks.NewRepository(client, sess)
	return nil
}

func (rt *runtime) close() {
	if rt.db != nil {
		if err := rt.db.Close(); err != nil {
			log.Printf("closing local storage: %v", err)
		}
	}
}

// requireSession opens the runtime and returns the signed-in identity.
func (rt *runtime) requireSession(ctx context.Context) (model.Session, error) {
	if err := rt.open(ctx); err != nil {
		return model.Session{}, err
	}
	return rt.session.RequireCurrent()
}

// live wires the event stream to the refresh coordinator: every
// task:assigned triggers a refresh, and the stream follows identity
// changes. The returned stop func releases everything.
func (rt *runtime) live(ctx context.Context) (*events.Client, *appsync.Syncer, func()) {
	cfg := events.ConfigFrom(rt.client.BaseURL(), rt.client.Jar(), rt.cfg.Events, rt.cfg.Notifications)
	if rt.cfg.Notifications.Sound {
		cfg.Alerter = &events.BellAlerter{W: rt.opts.Stderr}
	}
	stream := events.NewClient(cfg)
	syncer := appsync.New(rt.repo, rt.cfg.Sync.PollInterval())

	unsubAssigned := stream.OnAssigned(func(model.NotificationEvent) {
		syncer.Trigger(appsync.ReasonEvent)
	})
	unsubSession := rt.session.Subscribe(func(s model.Session, ok bool) {
		stream.Disconnect()
		if !ok {
			rt.repo.Reset()
			return
		}
		if err := stream.Connect(ctx, s.UserID); err != nil {
			log.Printf("event stream: %v", err)
		}
	})

	stop := func() {
		unsubSession()
		unsubAssigned()
		syncer.Stop()
		stream.Disconnect()
	}
	return stream, syncer, stop
}
