package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/tiendago/facturacion-api/internal/application/auth"
	"github.com/tiendago/facturacion-api/internal/application/invoicing"
	domafip "github.com/tiendago/facturacion-api/internal/domain/afip"
	infraafip "github.com/tiendago/facturacion-api/internal/infrastructure/afip"
	infrapdf "github.com/tiendago/facturacion-api/internal/infrastructure/pdf"
	"github.com/tiendago/facturacion-api/internal/infrastructure/postgres"
	httpRouter "github.com/tiendago/facturacion-api/internal/interfaces/http"
	pkgafip "github.com/tiendago/facturacion-api/pkg/afip"
	"github.com/tiendago/facturacion-api/pkg/config"
	"github.com/tiendago/facturacion-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("afip_env", cfg.AFIP.Environment).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	userRepo := postgres.NewUserRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	invoiceRepo := postgres.NewInvoiceRepository(pool)
	attemptRepo := postgres.NewAttemptRepository(pool)

	// Clientes AFIP. En dev todo es local: firma simulada, sesión sintética y
	// un autorizador en memoria que respeta la numeración.
	var (
		sessions infraafip.SessionProvider
		fiscal   infraafip.FiscalService
	)
	if cfg.AFIP.Simulated() {
		log.Warn().Msg("AFIP en modo dev: autorización simulada en memoria")
		sessions = &infraafip.DevSessionProvider{}
		fiscal = infraafip.NewDevFiscalService()
	} else {
		cert, err := infraafip.LoadCredential(cfg.AFIP.CertPath, cfg.AFIP.KeyPath, cfg.AFIP.CertPassword)
		if err != nil {
			log.Fatal().Err(err).Msg("cargar credencial AFIP")
		}
		signer := infraafip.NewHTTPSigner(cfg.AFIP.SignerURL, cfg.AFIP.RequestTimeout)
		wsaa, err := infraafip.NewWSAAClient(infraafip.WSAAConfig{
			Environment:  cfg.AFIP.Environment,
			SafetyMargin: cfg.AFIP.TokenMargin,
			Timeout:      cfg.AFIP.RequestTimeout,
		}, signer, cert, log)
		if err != nil {
			log.Fatal().Err(err).Msg("construir cliente WSAA")
		}
		wsfe, err := infraafip.NewWSFEClient(infraafip.WSFEConfig{
			Environment: cfg.AFIP.Environment,
			CUIT:        cfg.AFIP.CUIT,
			Timeout:     cfg.AFIP.RequestTimeout,
		}, log)
		if err != nil {
			log.Fatal().Err(err).Msg("construir cliente WSFE")
		}
		sessions = wsaa
		fiscal = wsfe
	}

	sellerClass := domafip.TaxClass(cfg.AFIP.TaxClass)
	if !sellerClass.Valid() {
		log.Fatal().Str("condicion", cfg.AFIP.TaxClass).Msg("condición de IVA del emisor inválida")
	}
	if cfg.AFIP.CUIT != 0 {
		if err := pkgafip.ValidateCUIT(strconv.FormatInt(cfg.AFIP.CUIT, 10)); err != nil {
			log.Fatal().Err(err).Msg("CUIT del emisor inválido")
		}
	}
	seller := invoicing.SellerConfig{
		CUIT:        cfg.AFIP.CUIT,
		PointOfSale: cfg.AFIP.PointOfSale,
		TaxClass:    sellerClass,
		Name:        cfg.AFIP.BusinessName,
		Address:     cfg.AFIP.Address,
	}

	issueUC := invoicing.NewIssueInvoiceUseCase(
		orderRepo, invoiceRepo, attemptRepo, sessions, fiscal, seller, log,
	)
	pdfUC := invoicing.NewPDFUseCase(invoiceRepo, orderRepo, infrapdf.NewMarotoInvoiceGenerator(), seller)
	authUC := auth.NewAuthUseCase(userRepo, auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		ExpMinutes: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 60, // la emisión espera la respuesta de AFIP
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Facturación API",
	}))

	httpRouter.Router(app, httpRouter.RouterDeps{
		IssueInvoice: issueUC,
		InvoicePDF:   pdfUC,
		AuthUC:       authUC,
		Fiscal:       fiscal,
		JWTSecret:    cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
