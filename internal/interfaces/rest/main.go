package rest

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"strings"

	"github.com/labstack/echo/v4"
	echo_middleware "github.com/labstack/echo/v4/middleware"
	"github.com/pot-code/coursegate/internal/event"
	infra "github.com/pot-code/coursegate/internal/infrastructure"
	"github.com/pot-code/coursegate/internal/infrastructure/auth"
	"github.com/pot-code/coursegate/internal/infrastructure/driver"
	"github.com/pot-code/coursegate/internal/infrastructure/logging"
	"github.com/pot-code/coursegate/internal/infrastructure/validate"
	"github.com/pot-code/coursegate/internal/interfaces/rest/handler"
	"github.com/pot-code/coursegate/internal/interfaces/rest/middleware"
	"github.com/pot-code/coursegate/internal/playback"
	"github.com/pot-code/coursegate/internal/progress"
	"github.com/pot-code/coursegate/internal/quiz"
	"github.com/pot-code/coursegate/internal/unlock"
	"go.elastic.co/apm/module/apmechov4"
	"go.uber.org/zap"
)

// RevokedTokenPrefix key prefix of revoked tokens in the kv store
const RevokedTokenPrefix = "revoked:"

// Serve create http transport server
func Serve(
	gateway progress.Gateway,
	kv driver.KeyValueDB,
	option *infra.AppConfig,
	ProgressUseCase *unlock.UseCase,
	PlaybackUseCase *playback.UseCase,
	QuizUseCase *quiz.UseCase,
	hub *event.Hub,
	logger *zap.Logger,
) {
	app := NewApp(gateway, kv, option, ProgressUseCase, PlaybackUseCase, QuizUseCase, hub, logger)
	printRoutes(app, logger)
	if err := app.Start(fmt.Sprintf("%s:%d", option.Host, option.Port)); err != nil {
		log.Fatal(err)
	}
}

// NewApp build the echo application with every route registered
func NewApp(
	gateway progress.Gateway,
	kv driver.KeyValueDB,
	option *infra.AppConfig,
	ProgressUseCase *unlock.UseCase,
	PlaybackUseCase *playback.UseCase,
	QuizUseCase *quiz.UseCase,
	hub *event.Hub,
	logger *zap.Logger,
) *echo.Echo {
	var (
		app       = echo.New()
		validator = validate.NewValidator("en")
		websocket = infra.NewWebsocket()
		jwtUtil   = auth.NewJWTUtil(option.Security.JWTMethod,
			option.Security.JWTSecret,
			option.Security.TokenName)
		jwtMiddleware = middleware.VerifyToken(jwtUtil, &middleware.ValidateTokenOption{
			InBlackList: func(ctx context.Context, token string) (bool, error) {
				return kv.Exists(ctx, RevokedTokenPrefix+token)
			},
		})
		isProbe = func(c echo.Context) bool {
			return strings.HasPrefix(c.Request().RequestURI, "/healthz")
		}
	)
	app.HideBanner = true

	registerLivenessProbe(app, gateway, kv)
	if option.Env == infra.EnvDevelopment {
		registerProfileEndpoints(app)

		app.Use(middleware.Logging(logger, &middleware.LoggingConfig{
			Skipper: isProbe,
		}))
	}
	app.Use(middleware.ErrorHandling(
		&middleware.ErrorHandlingOption{
			Handler: func(c echo.Context, err error) {
				traceID := c.Response().Header().Get(echo.HeaderXRequestID)
				code, detail := handler.StatusOf(err)
				c.JSON(code, handler.NewRESTStandardError(code, detail).SetTraceID(traceID))

				reqLogger := logging.ExtractLoggerFromContext(c.Request().Context())
				if code >= http.StatusInternalServerError {
					reqLogger.Error(err.Error(), zap.String("trace.id", traceID))
				} else {
					reqLogger.Debug(err.Error(), zap.String("trace.id", traceID))
				}
			},
		},
	))
	app.Use(echo_middleware.Secure())
	if option.DevOP.APM {
		app.Use(apmechov4.Middleware())
	}
	app.Use(echo_middleware.CORS())
	app.Use(middleware.AbortRequest(&middleware.AbortRequestOption{
		Timeout: option.RequestTimeout,
		Skipper: func(c echo.Context) bool {
			return strings.Contains(c.Request().RequestURI, "/ws/")
		},
	}))

	var (
		ProgressHandler = handler.NewProgressHandler(ProgressUseCase, jwtUtil)
		PlaybackHandler = handler.NewPlaybackHandler(PlaybackUseCase, jwtUtil, validator)
		QuizHandler     = handler.NewQuizHandler(QuizUseCase, jwtUtil, validator)
		EventHandler    = handler.NewEventHandler(hub, jwtUtil)
	)

	createEndpoint(app,
		&endpoint{
			apiVersion:  "api/v1",
			middlewares: []echo.MiddlewareFunc{echo_middleware.RequestID(), middleware.SetTraceLogger(logger)},
			groups: []*apiGroup{
				{
					prefix:      "/course",
					middlewares: []echo.MiddlewareFunc{jwtMiddleware},
					routes: []*route{
						{"GET", "/:course/progress", ProgressHandler.HandleGetCourseProgress, nil},
						{"POST", "/:course/lesson/:lesson/start", PlaybackHandler.HandleStart, nil},
						{"GET", "/:course/quiz", QuizHandler.HandleGetQuiz, nil},
						{"POST", "/:course/quiz", QuizHandler.HandleSubmitQuiz, nil},
					},
				},
				{
					prefix:      "/playback",
					middlewares: []echo.MiddlewareFunc{jwtMiddleware},
					routes: []*route{
						{"POST", "/:session/progress", PlaybackHandler.HandleProgress, nil},
						{"POST", "/:session/ended", PlaybackHandler.HandleEnded, nil},
					},
				},
				{
					prefix:      "/ws",
					middlewares: []echo.MiddlewareFunc{jwtMiddleware},
					routes: []*route{
						{"GET", "/events", websocket.WithHeartbeat(EventHandler.HandleEventStream), nil},
					},
				},
			},
		})
	return app
}

func printRoutes(app *echo.Echo, logger *zap.Logger) {
	for _, route := range app.Routes() {
		if !strings.HasPrefix(route.Name, "github.com/labstack/echo") {
			logger.Info("Registered route", zap.String("method", route.Method), zap.String("path", route.Path))
		}
	}
}

func registerLivenessProbe(app *echo.Echo, gateway progress.Gateway, kv driver.KeyValueDB) {
	app.GET("/healthz", func(c echo.Context) error {
		if gateway.Ping() == nil && kv.Ping() == nil {
			c.NoContent(http.StatusOK)
		} else {
			c.NoContent(http.StatusServiceUnavailable)
		}
		return nil
	})
}

func registerProfileEndpoints(app *echo.Echo) {
	expvarHandler := expvar.Handler()
	app.GET("/debug/vars", func(c echo.Context) error {
		expvarHandler.ServeHTTP(c.Response().Writer, c.Request())
		return nil
	})
	app.GET("/debug/pprof/", func(c echo.Context) error {
		pprof.Index(c.Response().Writer, c.Request())
		return nil
	})
	app.GET("/debug/pprof/:name", func(c echo.Context) error {
		switch c.Param("name") {
		case "cmdline":
			pprof.Cmdline(c.Response().Writer, c.Request())
		case "profile":
			pprof.Profile(c.Response().Writer, c.Request())
		case "symbol":
			pprof.Symbol(c.Response().Writer, c.Request())
		case "trace":
			pprof.Trace(c.Response().Writer, c.Request())
		default:
			pprof.Handler(c.Param("name")).ServeHTTP(c.Response().Writer, c.Request())
		}
		return nil
	})
}
