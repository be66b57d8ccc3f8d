package echobot

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/peerbot/peerbot/bot"
	"github.com/peerbot/peerbot/core"
)

type (
	Options struct {
		Address        string
		Secret         string
		Debug          bool
		DisableReqLogs bool
		Dispatcher     *bot.Dispatcher
		Logger         core.Logger
	}

	Server interface {
		http.Handler
		Start()
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	s := &server{
		opts: opts,
		app:  echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !s.opts.Debug {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newBotHTTPErrorHandler(s.opts.Logger, func() {
		go func() { _ = s.Stop(context.Background()) }()
	})
	s.app.Debug = s.opts.Debug

	s.app.GET("/", home)

	// the secret path segment stands in for authentication, as chat bot
	// webhook APIs commonly do
	s.app.POST("/bot/:secret/update", s.update)
}

func (s *server) Start() {
	s.app.Logger.Fatal(s.app.Start(s.opts.Address))
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

type update struct {
	Message struct {
		From struct {
			ID       int64  `json:"id"`
			Username string `json:"username"`
		} `json:"from"`
		Text string `json:"text"`
	} `json:"message"`
}

func (s *server) update(ctx echo.Context) error {
	if ctx.Param("secret") != s.opts.Secret {
		return errHttpNotFound
	}
	var upd update
	if err := ctx.Bind(&upd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid update payload")
	}
	s.opts.Dispatcher.Dispatch(upd.Message.From.ID, upd.Message.From.Username, upd.Message.Text)
	return ctx.JSON(http.StatusOK, echo.Map{"ok": true})
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Peerbot!")
}
