// Command imserver is the IM backend entrypoint: resolve configuration,
// wire storage and domain services, and run the dual-protocol server
// until a shutdown signal arrives. Grounded on
// original_source/server/src/main.cpp's getopt/sigaction/Webserver
// construction, translated from one monolithic constructor call to
// explicit dependency wiring across the Go packages it was split into.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/sususu5/im-server/auth"
	"github.com/sususu5/im-server/binproto"
	"github.com/sususu5/im-server/config"
	"github.com/sususu5/im-server/friendsvc"
	"github.com/sususu5/im-server/httpproto"
	"github.com/sususu5/im-server/imlog"
	"github.com/sususu5/im-server/msgsvc"
	"github.com/sususu5/im-server/msgwriter"
	"github.com/sususu5/im-server/push"
	"github.com/sususu5/im-server/server"
	"github.com/sususu5/im-server/store/frienddb"
	"github.com/sususu5/im-server/store/msgstore"
	"github.com/sususu5/im-server/store/userdb"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "imserver:", err)
		os.Exit(1)
	}
}

func run() error {
	fs := config.FlagSet()
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}
	cfg, err := config.Load(fs)
	if err != nil {
		return fmt.Errorf("resolve config: %w", err)
	}

	var log *imlog.Logger
	if cfg.OpenLog {
		log = imlog.New(cfg.LogDir, ".log", imlog.Level(cfg.LogLevel), cfg.LogQueueSize)
		defer log.Close()
	}
	zapLog := zap.NewNop()
	if log != nil {
		zapLog = log.Zap()
	}

	db, err := sql.Open("mysql", mysqlDSN(cfg))
	if err != nil {
		return fmt.Errorf("open mysql: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.DBPoolSize)

	users := userdb.NewWithDB(db)
	friends := frienddb.NewWithDB(db)
	if err := users.EnsureSchema(context.Background()); err != nil {
		return fmt.Errorf("ensure im_user schema: %w", err)
	}
	if err := friends.EnsureSchema(context.Background()); err != nil {
		return fmt.Errorf("ensure im_friend schema: %w", err)
	}

	cluster := msgstore.NewCluster(cfg.ScyllaHosts)
	cluster.Keyspace = cfg.ScyllaKeyspace
	msgs, err := msgstore.Open(cluster)
	if err != nil {
		return fmt.Errorf("open message store: %w", err)
	}
	defer msgs.Close()

	pushSvc := push.NewService()
	friendSvc := friendsvc.NewService(friends, pushSvc)
	authSvc := auth.NewService(users, friendLister{friendSvc}, pushSvc, []byte(cfg.JWTSecret), cfg.JWTIssuer)

	writer := msgwriter.New(msgs, zapLog)
	writer.Start(context.Background())
	defer writer.Stop()

	msgSvc := msgsvc.NewService(writer, pushSvc, msgs)

	dispatcher := binproto.NewDispatcher(authSvc, friendSvc, msgSvc, pushSvc, log)
	httpProc := httpproto.NewProcessor(cfg.StaticRoot, httpAuth{authSvc})

	srv, err := server.New(cfg, dispatcher, httpProc, pushSvc, log)
	if err != nil {
		return fmt.Errorf("start listener: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		if log != nil {
			log.Info("server: received shutdown signal, stopping")
		}
		srv.Stop()
	}()

	return srv.Run(context.Background())
}

func mysqlDSN(cfg config.Config) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		cfg.MySQLUser, cfg.MySQLPass, cfg.MySQLHost, cfg.MySQLPort, cfg.MySQLDB)
}

// friendLister adapts friendsvc.Service to auth.PendingFriendLister,
// converting friendsvc.Edge (the relational store's row shape) to the
// smaller field set auth needs for a login catch-up push.
type friendLister struct {
	friends *friendsvc.Service
}

func (f friendLister) GetPendingRequests(ctx context.Context, userID uint64) ([]auth.PendingFriendRequest, error) {
	edges, err := f.friends.GetPendingRequests(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]auth.PendingFriendRequest, 0, len(edges))
	for _, e := range edges {
		out = append(out, auth.PendingFriendRequest{
			ReqID:      e.ID,
			SenderID:   e.UserID,
			SenderName: e.SenderName,
			VerifyMsg:  e.VerifyMsg,
		})
	}
	return out, nil
}

// httpAuth adapts auth.Service to httpproto.AuthBackend, collapsing the
// wire-level RegisterResult/LoginResult down to the bool the legacy
// static-HTML form flow (welcome.html vs. error.html) needs.
type httpAuth struct {
	auth *auth.Service
}

func (h httpAuth) Login(ctx context.Context, username, password string) bool {
	res, err := h.auth.Login(ctx, username, password)
	return err == nil && res.Success
}

func (h httpAuth) Register(ctx context.Context, username, password string) bool {
	res, err := h.auth.Register(ctx, username, password)
	return err == nil && res.Success
}
