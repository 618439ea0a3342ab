package router

import (
	"time"

	"facturador/internal/afip"
	"facturador/internal/config"
	"facturador/internal/handler"
	"facturador/internal/infra"
	"facturador/internal/middleware"
	"facturador/internal/numeracion"
	"facturador/internal/repository"
	"facturador/internal/service"
	"facturador/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns the configured Gin engine plus the
// worker handlers for the async pool. The Firmante and Autorizador are chosen
// by the caller: certificate-backed against live WSFE in production, the
// simulator elsewhere.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, firmante afip.Firmante, autorizador afip.Autorizador) (*gin.Engine, worker.Handlers) {
	if cfg.EsProduccion() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Infrastructure ───────────────────────────────────────────────────────
	mailer := infra.NewMailer(cfg)
	dispatcher := worker.NewDispatcher(rdb)

	// ── Repositories ─────────────────────────────────────────────────────────
	comprobanteRepo := repository.NewComprobanteRepository(db)
	numerador := numeracion.NewGormNumerador(db)

	// ── Services ─────────────────────────────────────────────────────────────
	facturacionSvc := service.NewFacturacionService(
		numerador,
		firmante,
		autorizador,
		comprobanteRepo,
		dispatcher,
		cfg.CUITEmisor,
		cfg.RazonSocial,
		cfg.PuntoVenta,
		cfg.PDFStoragePath,
	)

	// ── Handlers ─────────────────────────────────────────────────────────────
	facturasH := handler.NewFacturasHandler(facturacionSvc, dispatcher, cfg.PuntoVenta)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb))

	// Protected routes. When no secret is configured (local development)
	// the group runs open.
	v1 := r.Group("/v1")
	if cfg.JWTSecret != "" {
		v1.Use(middleware.JWTAuth(cfg.JWTSecret))
	}
	{
		v1.POST("/facturas", facturasH.EmitirFactura)
		v1.GET("/facturas/proximo-numero", facturasH.ProximoNumero)
		v1.GET("/facturas/pdf/:id", facturasH.DescargarPDF)
		v1.GET("/facturas/:id", facturasH.ObtenerFactura)
		v1.GET("/facturas/:id/qr", facturasH.ObtenerQR)
	}

	// Swagger UI — only enabled outside production
	if !cfg.EsProduccion() {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handlers := worker.Handlers{
		Facturacion: worker.NewFacturacionWorker(facturacionSvc, rdb),
		Email:       worker.NewEmailWorker(mailer),
	}
	return r, handlers
}
